package api

import (
	"net/http"
)

type connectionResponse struct {
	Connection string `json:"connection"`
}

func (h *Handlers) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	h.conn.Connect()
	writeJSON(w, http.StatusAccepted, connectionResponse{Connection: string(h.conn.State())})
}

// DisconnectHandler отвечает уже с состоянием disconnected
func (h *Handlers) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	h.conn.Disconnect()
	writeJSON(w, http.StatusOK, connectionResponse{Connection: string(h.conn.State())})
}
