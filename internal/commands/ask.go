package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/diogo/nanogenius/internal/chat"
	"github.com/diogo/nanogenius/internal/config"
	"github.com/diogo/nanogenius/internal/logging"
	"github.com/diogo/nanogenius/internal/media"
	"github.com/diogo/nanogenius/internal/models"
	"github.com/diogo/nanogenius/internal/render"
)

// askOptions are the flags of a one-shot request
type askOptions struct {
	file       string
	image      string
	output     string
	raw        bool
	cont       bool
	copy       bool
	verbose    bool
	saveImages bool
}

func (o *askOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "Read prompt from file")
	cmd.Flags().StringVarP(&o.image, "image", "i", "", "Path to an image to attach")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "Save the reply text to a file")
	cmd.Flags().BoolVar(&o.raw, "raw", false, "Print only the reply text")
	cmd.Flags().BoolVarP(&o.cont, "continue", "c", false, "Continue the current conversation instead of starting a new one")
	cmd.Flags().BoolVar(&o.copy, "copy", false, "Copy the reply to the clipboard")
	cmd.Flags().BoolVar(&o.verbose, "verbose", false, "Log to stderr")
	cmd.Flags().BoolVar(&o.saveImages, "save-image", true, "Save a generated image to the download directory")
}

func newAskCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send a single prompt and print the reply",
		Long: `Send a single prompt and print the reply.

The exchange is saved as a new conversation unless --continue is given.
Prompts that ask for a picture, or come with --image, go to the image
model and the result is saved to the download directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(deps, opts.file, args)
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), deps, flags, opts, prompt)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runAsk(ctx context.Context, deps *Dependencies, flags *globalFlags, opts *askOptions, prompt string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(prompt) == "" && opts.image == "" {
		return fmt.Errorf("prompt cannot be empty")
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if !opts.verbose {
		cfg.LogLevel = "error"
	}
	logCloser, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	var att *media.Attachment
	if opts.image != "" {
		att, err = media.LoadAttachment(opts.image)
		if err != nil {
			return err
		}
	}

	state, err := openSessions(cfg)
	if err != nil {
		return err
	}
	defer state.Close()

	if !opts.cont {
		if cur, ok := state.sessions.Current(); !ok || len(cur.Messages) > 0 {
			state.sessions.Create()
		}
	}

	service, err := deps.NewService(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer service.Close()

	decorated := !opts.raw && opts.output == "" && deps.IsTerminal(deps.Stdout)
	printer := &streamPrinter{out: deps.Stdout, live: !decorated && opts.output == ""}

	var spin *spinner
	if decorated {
		spin = newSpinner(deps.Stderr, "Thinking")
		spin.start()
	}

	var reply chat.Event
	coord := chat.NewCoordinator(state.sessions, service,
		chat.WithLogger(logging.Component("chat")),
		chat.WithObserver(func(ev chat.Event) {
			switch ev.Kind {
			case chat.EventChunk:
				if spin != nil {
					spin.setMessage("Writing")
				}
				printer.write(ev.Text)
			case chat.EventReply, chat.EventFailed:
				reply = ev
			}
		}),
	)

	sendErr := coord.Send(ctx, chat.Input{Text: prompt, Attachment: att})
	if spin != nil {
		if sendErr != nil {
			spin.stopWithError()
		} else {
			spin.stopWithSuccess("Done")
		}
	}
	if sendErr != nil {
		if !opts.raw {
			fmt.Fprintln(deps.Stderr, formatErrorMessage(sendErr, "Request failed"))
		}
		return fmt.Errorf("request failed: %w", sendErr)
	}

	text := reply.Text
	if printer.live {
		printer.finish(text)
	}

	if reply.ImageURL != "" && opts.saveImages {
		if err := saveReplyImage(deps, cfg, reply.ImageURL, prompt); err != nil {
			fmt.Fprintln(deps.Stderr, formatErrorMessage(err, "Failed to save image"))
		}
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, []byte(text), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !opts.raw {
			fmt.Fprintln(deps.Stderr, successStyle.Render("✓ Response saved to "+opts.output))
		}
	}

	if opts.copy && text != "" {
		if err := clipboard.WriteAll(text); err != nil {
			fmt.Fprintln(deps.Stderr, formatErrorMessage(err, "Failed to copy to clipboard"))
		} else if !opts.raw {
			fmt.Fprintln(deps.Stderr, successStyle.Render("✓ Copied to clipboard"))
		}
	}

	if decorated && text != "" {
		printBubble(deps.Stdout, cfg, text)
	}
	return nil
}

// streamPrinter writes text replies as they grow. Chunk events carry the
// whole reply so far, so only the unseen suffix is printed.
type streamPrinter struct {
	out     io.Writer
	live    bool
	printed int
}

func (p *streamPrinter) write(full string) {
	if !p.live || len(full) <= p.printed {
		return
	}
	fmt.Fprint(p.out, full[p.printed:])
	p.printed = len(full)
}

// finish prints whatever the final reply adds and ends the line
func (p *streamPrinter) finish(full string) {
	p.write(full)
	if p.printed > 0 && !strings.HasSuffix(full, "\n") {
		fmt.Fprintln(p.out)
	}
}

func printBubble(out io.Writer, cfg config.Config, text string) {
	bubbleWidth := min(max(terminalWidth(out)-4, 40), 120)
	contentWidth := bubbleWidth - 4

	rendered := render.MarkdownOrPlain(text, render.OptionsFromConfig(cfg.Markdown, contentWidth))
	fmt.Fprintln(out, modelLabelStyle.Render("✦ NanoGenius"))
	fmt.Fprintln(out, modelBubbleStyle.Width(bubbleWidth).Render(rendered))
}

func saveReplyImage(deps *Dependencies, cfg config.Config, imageURL, prompt string) error {
	if !models.IsDataURL(imageURL) {
		return errors.New("reply image is not inline data")
	}
	dir, err := config.GetDownloadDir(cfg)
	if err != nil {
		return err
	}
	path, err := media.SaveDataURL(imageURL, dir, prompt)
	if err != nil {
		return err
	}
	fmt.Fprintln(deps.Stderr, successStyle.Render("✓ Image saved to "+path))
	return nil
}
