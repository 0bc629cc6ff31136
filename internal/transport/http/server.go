// Package http serves the operational admin surface: health and live
// hub statistics. It is separate from the chat protocol, which runs over raw
// TCP.
package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fernwick/relaychat/internal/core"
)

// NewServer builds the admin HTTP server.
func NewServer(addr string, hub *core.Hub, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	h := NewAdminHandlers(hub, logger)
	router.GET("/health", h.Health)
	router.GET("/api/stats", h.Stats)

	return &stdhttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
