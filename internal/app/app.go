package app

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernwick/relaychat/internal/config"
	"github.com/fernwick/relaychat/internal/core"
	transporthttp "github.com/fernwick/relaychat/internal/transport/http"
	transporttcp "github.com/fernwick/relaychat/internal/transport/tcp"
)

// App wires together the hub, the chat TCP server, and the admin HTTP server.
type App struct {
	hub             *core.Hub
	chat            *transporttcp.Server
	admin           *stdhttp.Server
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) *App {
	hub := core.NewHub(logger)
	return &App{
		hub:             hub,
		chat:            transporttcp.NewServer(cfg.Addr, cfg.ReadBufferSize, hub, logger),
		admin:           transporthttp.NewServer(cfg.AdminAddr, hub, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}
}

// Run starts everything and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	if err := a.chat.Listen(); err != nil {
		return err
	}

	serverErr := make(chan error, 2)
	go func() {
		serverErr <- a.chat.Serve(ctx)
	}()
	go func() {
		a.log.Info().Str("addr", a.admin.Addr).Msg("admin server listening")
		if err := a.admin.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.shutdown(stopHub)
		return err
	case <-ctx.Done():
		err := a.shutdown(stopHub)
		<-serverErr
		return err
	}
}

func (a *App) shutdown(stopHub context.CancelFunc) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.log.Info().Msg("shutting down")
	a.chat.Close()
	stopHub()
	if err := a.admin.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
