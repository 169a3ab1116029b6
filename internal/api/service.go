package api

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/logsink"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/runner"
)

// Connection ручное управление каналом, как кнопка на станции
type Connection interface {
	Connect()
	Disconnect()
	State() models.ConnectionState
}

type Snapshotter interface {
	Snapshot() runner.Snapshot
}

type Handlers struct {
	conn   Connection
	runner Snapshotter
	logs   *logsink.Ring
}

func NewHandlers(conn Connection, r Snapshotter, logs *logsink.Ring) *Handlers {
	return &Handlers{conn: conn, runner: r, logs: logs}
}

// Router регистрирует обработчики
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.HealthHandler).Methods("GET")
	r.HandleFunc("/status", h.GetStatusHandler).Methods("GET")
	r.HandleFunc("/logs", h.GetLogsHandler).Methods("GET")
	r.HandleFunc("/connect", h.ConnectHandler).Methods("POST")
	r.HandleFunc("/disconnect", h.DisconnectHandler).Methods("POST")
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
