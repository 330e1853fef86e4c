package handlers

import (
	"net/http"
	"strings"

	"github.com/iago/career-agent/internal/domain"
)

// ProcessMessage runs the pipeline synchronously for /v1/messages/{id}/process.
func (api *API) ProcessMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/messages/")
	messageID, action, ok := strings.Cut(rest, "/")
	messageID = strings.TrimSpace(messageID)
	if !ok || action != "process" {
		writeError(w, r, http.StatusNotFound, "not_found", "route not found")
		return
	}
	if messageID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "message id is required")
		return
	}

	result := api.processor.Process(r.Context(), messageID)
	status := http.StatusOK
	if result.Kind == domain.ResultFailed {
		switch result.Error {
		case domain.ErrorKindInvalidInput:
			status = http.StatusBadRequest
		case domain.ErrorKindFetch:
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, result)
}
