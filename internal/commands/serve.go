package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/diogo/nanogenius/internal/config"
	"github.com/diogo/nanogenius/internal/logging"
	"github.com/diogo/nanogenius/internal/server"
	"github.com/diogo/nanogenius/internal/session"
)

func newServeCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	var (
		listen    string
		ephemeral bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve sessions and chat over HTTP",
		Long: `Serve sessions and chat over HTTP.

Routes:
  GET    /api/sessions              List sessions and the current id
  GET    /api/sessions/watch        Stream the session list on every change
  POST   /api/sessions              Create a session
  DELETE /api/sessions/:id          Delete a session
  POST   /api/sessions/:id/select   Make a session current
  POST   /api/send                  Send text (JSON) or text + image (multipart);
                                    replies stream as server-sent events
  GET    /healthz                   Health check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			if ephemeral {
				cfg.Storage.Backend = config.StorageMemory
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, deps, cfg)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Address to listen on (default from config)")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "Keep sessions in memory only")
	return cmd
}

func runServe(ctx context.Context, deps *Dependencies, cfg config.Config) error {
	logCloser, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if logging.ParseLevel(cfg.LogLevel) > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	notifier := server.NewNotifier()
	state, err := openSessions(cfg, session.WithOnChange(notifier.Notify))
	if err != nil {
		return err
	}
	defer state.Close()

	service, err := deps.NewService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer service.Close()

	srv := server.New(state.sessions, service,
		server.WithLogger(logging.Component("server")),
		server.WithNotifier(notifier),
	)
	return srv.Run(ctx, cfg.Server.Listen)
}
