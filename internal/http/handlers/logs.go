package handlers

import (
	"net/http"

	"github.com/iago/career-agent/internal/domain"
)

func (api *API) Logs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	logs := api.state.Logs()
	if logs == nil {
		logs = []domain.AgentLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": logs, "count": len(logs)})
}

func (api *API) Updates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	updates := api.state.Updates()
	if updates == nil {
		updates = []domain.CareerUpdate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": updates, "count": len(updates)})
}
