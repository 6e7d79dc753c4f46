package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/nanogenius/internal/chat"
	"github.com/diogo/nanogenius/internal/config"
	"github.com/diogo/nanogenius/internal/logging"
	"github.com/diogo/nanogenius/internal/render"
	"github.com/diogo/nanogenius/internal/speech"
	"github.com/diogo/nanogenius/internal/tui"
)

func newChatCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive chat",
		Long: `Start the interactive chat.

The conversation you last used is reopened. Press Ctrl+N for a new
conversation, Ctrl+O to switch between conversations and Ctrl+R for voice
input. Type /help for the slash commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), deps, flags)
		},
	}
}

func runChat(ctx context.Context, deps *Dependencies, flags *globalFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	// the alt screen owns the terminal, so logs go to the file
	logCloser, err := setupLogging(cfg, true)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	state, err := openSessions(cfg)
	if err != nil {
		return err
	}
	defer state.Close()

	service, err := deps.NewService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer service.Close()

	events := make(chan chat.Event, 64)
	coord := chat.NewCoordinator(state.sessions, service,
		chat.WithObserver(tui.Observer(events)),
		chat.WithLogger(logging.Component("chat")),
	)

	capability := speech.Detect(cfg.Speech)
	var recognizer speech.Recognizer
	if capability.Available() {
		if r, err := speech.NewCommandRecognizer(cfg.Speech); err == nil {
			recognizer = r
		} else {
			logging.Logger.Warn().Err(err).Msg("speech recognizer unavailable")
			capability = speech.Capability{Status: speech.Unavailable, Reason: err.Error()}
		}
	} else {
		logging.Logger.Debug().Str("reason", capability.Reason).Msg("speech disabled")
	}

	if cfg.TUITheme != "" && !tui.ApplyPalette(cfg.TUITheme) {
		logging.Logger.Warn().Str("theme", cfg.TUITheme).Msg("unknown theme, using default")
	}

	downloadDir, err := config.GetDownloadDir(cfg)
	if err != nil {
		return err
	}

	return deps.RunTUI(ctx, tui.Deps{
		Sessions:    state.sessions,
		Coordinator: coord,
		Events:      events,
		Recognizer:  recognizer,
		Speech:      capability,
		ModelName:   cfg.TextModel,
		DownloadDir: downloadDir,
		Markdown:    render.OptionsFromConfig(cfg.Markdown, terminalWidth(deps.Stdout)),
	})
}
