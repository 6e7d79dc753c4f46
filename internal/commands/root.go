// Package commands provides CLI commands for nanogenius.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diogo/nanogenius/internal/config"
	"github.com/diogo/nanogenius/internal/logging"
)

var (
	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// globalFlags are the persistent flags shared by every command
type globalFlags struct {
	model      string
	imageModel string
	storage    string
	logLevel   string
}

// NewRootCmd creates the command tree
func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps == nil {
		deps = NewDependencies()
	}
	flags := &globalFlags{}
	ask := &askOptions{}

	cmd := &cobra.Command{
		Use:   "nanogenius [prompt]",
		Short: "Chat with Gemini and generate images from the terminal",
		Long: `nanogenius is a terminal chat client for Google Gemini. Conversations are
kept as sessions on disk; text replies stream in as they are written and
prompts that ask for a picture are routed to the image model.

Examples:
  nanogenius                            Start the interactive chat
  nanogenius "What is Go?"              Send a single prompt
  nanogenius -i photo.png "Make it 8-bit"
  cat notes.md | nanogenius             Read the prompt from stdin
  nanogenius sessions list              List saved conversations
  nanogenius serve                      Serve the HTTP API`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(deps.Stdout, "nanogenius %s (built %s)\n", Version, BuildTime)
				return nil
			}

			prompt, err := readPrompt(deps, ask.file, args)
			if err != nil {
				return err
			}
			if prompt == "" && ask.image == "" {
				return runChat(cmd.Context(), deps, flags)
			}
			return runAsk(cmd.Context(), deps, flags, ask, prompt)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.model, "model", "m", "", "Text model to use (e.g., gemini-2.5-flash)")
	cmd.PersistentFlags().StringVar(&flags.imageModel, "image-model", "", "Image model to use")
	cmd.PersistentFlags().StringVar(&flags.storage, "storage", "",
		"Session storage backend ("+strings.Join(config.AvailableStorageBackends(), ", ")+")")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolP("version", "v", false, "Show version and exit")
	ask.bind(cmd)

	cmd.AddCommand(newChatCmd(deps, flags))
	cmd.AddCommand(newAskCmd(deps, flags))
	cmd.AddCommand(newSessionsCmd(deps, flags))
	cmd.AddCommand(newConfigCmd(deps, flags))
	cmd.AddCommand(newServeCmd(deps, flags))

	cmd.SetIn(deps.Stdin)
	cmd.SetOut(deps.Stdout)
	cmd.SetErr(deps.Stderr)
	return cmd
}

// Execute runs the root command
func Execute() {
	deps := NewDependencies()
	if err := NewRootCmd(deps).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(deps.Stderr, formatErrorMessage(err, "Error"))
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment, then applies flags
func loadConfig(flags *globalFlags) (config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return cfg, err
	}
	if flags.model != "" {
		cfg.TextModel = flags.model
	}
	if flags.imageModel != "" {
		cfg.ImageModel = flags.imageModel
	}
	if flags.storage != "" {
		cfg.Storage.Backend = flags.storage
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, nil
}

// setupLogging sends logs to the log file when the terminal belongs to a
// full-screen UI and to stderr otherwise
func setupLogging(cfg config.Config, toFile bool) (io.Closer, error) {
	opts := logging.Options{Level: cfg.LogLevel}
	if toFile {
		path, err := config.GetLogPath()
		if err != nil {
			return nil, err
		}
		opts.File = path
	}
	return logging.Configure(opts)
}

// readPrompt returns the prompt from --file, piped stdin or the argument
func readPrompt(deps *Dependencies, file string, args []string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}
	if deps.Stdin == nil || deps.IsTerminal(deps.Stdin) {
		return "", nil
	}
	if f, ok := deps.Stdin.(*os.File); ok && !hasPipedInput(f) {
		return "", nil
	}

	data, err := io.ReadAll(deps.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// hasPipedInput reports whether f is a pipe or a non-empty redirected file
func hasPipedInput(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	mode := stat.Mode()
	return mode&os.ModeNamedPipe != 0 || (mode.IsRegular() && stat.Size() > 0)
}
