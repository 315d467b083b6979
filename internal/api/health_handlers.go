package api

import (
	"net/http"
	"time"

	"github.com/technosupport/ts-signal/internal/broker"
	"github.com/technosupport/ts-signal/internal/session"
)

type HealthHandler struct {
	Broker   *broker.Broker
	Sessions session.Store
}

type pingResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Cameras   int    `json:"cameras"`
	Viewers   int    `json:"viewers"`
	Sessions  int    `json:"sessions"`
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	cameras, viewers := h.Broker.Counts()
	writeJSON(w, http.StatusOK, pingResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Cameras:   cameras,
		Viewers:   viewers,
		Sessions:  h.Sessions.Count(r.Context()),
	})
}
