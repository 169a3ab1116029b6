package api

import (
	"net/http"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/logsink"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/runner"
)

type StatusResponse struct {
	Connection models.ConnectionState `json:"connection"`
	Runner     runner.Snapshot        `json:"runner"`
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetStatusHandler состояние канала, цикла и счётчики
func (h *Handlers) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Connection: h.conn.State(),
		Runner:     h.runner.Snapshot(),
	})
}

// GetLogsHandler последние записи лога
func (h *Handlers) GetLogsHandler(w http.ResponseWriter, r *http.Request) {
	entries := []logsink.Entry{}
	if h.logs != nil {
		entries = h.logs.Entries()
	}
	writeJSON(w, http.StatusOK, entries)
}
