package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fernwick/relaychat/internal/core"
)

// AdminHandlers provides HTTP handlers for the admin endpoints.
type AdminHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(hub *core.Hub, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{hub: hub, log: logger}
}

// StatsResponse represents the stats response body.
type StatsResponse struct {
	Connections int            `json:"connections"`
	Channels    []ChannelStats `json:"channels"`
}

// ChannelStats represents one channel in the stats response.
type ChannelStats struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health reports liveness.
// GET /health
func (h *AdminHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Stats reports live connection and channel state. The snapshot is taken on
// the hub goroutine, so it is always internally consistent.
// GET /api/stats
func (h *AdminHandlers) Stats(c *gin.Context) {
	snap, err := h.hub.Stats(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to snapshot hub state")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "hub unavailable"})
		return
	}

	resp := StatsResponse{
		Connections: snap.Connections,
		Channels:    make([]ChannelStats, 0, len(snap.Channels)),
	}
	for _, ch := range snap.Channels {
		resp.Channels = append(resp.Channels, ChannelStats{Name: ch.Name, Members: ch.Members})
	}
	c.JSON(http.StatusOK, resp)
}
