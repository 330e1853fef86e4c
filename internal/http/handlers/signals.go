package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/iago/career-agent/internal/domain"
	"github.com/iago/career-agent/internal/service"
)

type signalRequest struct {
	PackageID  string `json:"package_id"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	ReceivedAt string `json:"received_at,omitempty"`
}

type signalResponse struct {
	SignalID  string           `json:"signal_id"`
	Trigger   bool             `json:"trigger"`
	SearchKey string           `json:"search_key,omitempty"`
	Source    domain.SourceApp `json:"source"`
	Query     string           `json:"query,omitempty"`
}

// Signals accepts a forwarded phone notification and queues it when it should
// trigger a pipeline run. An Idempotency-Key header makes resends harmless.
func (api *API) Signals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var request signalRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(request.PackageID) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "package_id is required")
		return
	}

	var receivedAt time.Time
	if value := strings.TrimSpace(request.ReceivedAt); value != "" {
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "received_at must be RFC3339")
			return
		}
		receivedAt = parsed
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadHash := hashPayload(request)
	if idempotencyKey != "" {
		if entry, exists := api.idempotency.Get(idempotencyKey); exists {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict", "Idempotency-Key already used with different payload")
				return
			}
			writeJSON(w, http.StatusAccepted, entry.Response)
			return
		}
	}

	result, err := api.signals.Ingest(r.Context(), domain.InboundSignal{
		PackageID:  request.PackageID,
		Title:      request.Title,
		Text:       request.Text,
		ReceivedAt: receivedAt,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignal) {
			writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		api.logger.Error("signal ingest failed", "error", err)
		writeError(w, r, http.StatusServiceUnavailable, "queue_unavailable", "failed to queue signal")
		return
	}

	response := signalResponse{
		SignalID:  result.SignalID,
		Trigger:   result.Decision.Trigger,
		SearchKey: result.Decision.SearchKey,
		Source:    result.Decision.SourceHint,
		Query:     result.Decision.Query,
	}
	if idempotencyKey != "" {
		api.idempotency.Put(idempotencyKey, payloadHash, response)
	}
	writeJSON(w, http.StatusAccepted, response)
}
