package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fernwick/relaychat/internal/app"
	"github.com/fernwick/relaychat/internal/config"
	"github.com/fernwick/relaychat/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath      string
		addr            string
		adminAddr       string
		logLevel        string
		shutdownTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:           "relaychat-server",
		Short:         "Framed-TCP multi-channel chat server",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLog := log.New("info")
			cfg, path, err := config.Load(bootLog, configPath)
			if err != nil {
				return err
			}

			cfg.UpdateFrom(config.Config{
				Addr:            flagValue(cmd, "addr", addr),
				AdminAddr:       flagValue(cmd, "admin-addr", adminAddr),
				LogLevel:        flagValue(cmd, "log-level", logLevel),
				ShutdownTimeout: shutdownTimeout,
			})

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting relaychat server")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application := app.New(cfg, logger)
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "chat listen address (default :6000)")
	cmd.Flags().StringVar(&adminAddr, "admin-addr", "", "admin HTTP listen address (default :6060)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	return cmd
}

// flagValue returns the flag's value only when it was set explicitly, so
// config-file values survive unset flags.
func flagValue(cmd *cobra.Command, name, value string) string {
	if cmd.Flags().Changed(name) {
		return value
	}
	return ""
}
