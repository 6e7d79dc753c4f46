package commands

import (
	"context"
	"io"
	"os"

	"golang.org/x/term"
	"google.golang.org/genai"

	"github.com/diogo/nanogenius/internal/api"
	"github.com/diogo/nanogenius/internal/config"
	"github.com/diogo/nanogenius/internal/logging"
	"github.com/diogo/nanogenius/internal/tui"
)

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// NewService builds the AI backend for cfg.
	NewService func(ctx context.Context, cfg config.Config) (api.Service, error)

	// RunTUI runs the interactive chat screen.
	RunTUI func(ctx context.Context, deps tui.Deps) error

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// IsTerminal reports whether f is attached to a terminal.
	IsTerminal func(f any) bool
}

// NewDependencies creates a Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		NewService: newGeminiService,
		RunTUI:     tui.Run,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		IsTerminal: isTerminal,
	}
}

func newGeminiService(ctx context.Context, cfg config.Config) (api.Service, error) {
	backend, err := api.BackendFromName(cfg.API.Backend)
	if err != nil {
		return nil, err
	}
	return api.NewClient(ctx,
		api.WithAPIKey(cfg.APIKey),
		api.WithTextModel(cfg.TextModel),
		api.WithImageModel(cfg.ImageModel),
		api.WithBackend(backend),
		api.WithHTTPOptions(genai.HTTPOptions{
			BaseURL:    cfg.API.BaseURL,
			APIVersion: cfg.API.Version,
		}),
		api.WithLogger(logging.Component("api")),
	)
}

func isTerminal(f any) bool {
	file, ok := f.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// terminalWidth returns the width of out or a default value
func terminalWidth(out io.Writer) int {
	file, ok := out.(*os.File)
	if !ok {
		return 80
	}
	width, _, err := term.GetSize(int(file.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
