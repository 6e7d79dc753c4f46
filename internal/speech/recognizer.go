package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/diogo/nanogenius/internal/config"
)

// ErrAlreadyListening is returned by Start while a recognition is running
var ErrAlreadyListening = errors.New("speech recognition already running")

// stopGrace bounds how long Wait lingers on output pipes after a stop
const stopGrace = 500 * time.Millisecond

// EventKind identifies a recognizer event
type EventKind int

const (
	EventStarted EventKind = iota
	EventEnded
	EventResult
	EventFailed
)

// Event is emitted by a Recognizer. Transcript is set for EventResult and
// Err for EventFailed.
type Event struct {
	Kind       EventKind
	Transcript string
	Err        error
}

// Recognizer captures one utterance per Start
type Recognizer interface {
	Start(ctx context.Context) error
	Stop()
	Events() <-chan Event
}

// CommandRecognizer runs an external command that records a single
// utterance and prints the transcript on stdout. The language is exposed
// as NANOGENIUS_SPEECH_LANGUAGE and substituted for {lang} in arguments.
type CommandRecognizer struct {
	path     string
	args     []string
	language string
	events   chan Event

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

var _ Recognizer = (*CommandRecognizer)(nil)

// NewCommandRecognizer returns a recognizer for cfg, or an error carrying
// the capability reason when the command is unavailable
func NewCommandRecognizer(cfg config.SpeechConfig) (*CommandRecognizer, error) {
	capability := Detect(cfg)
	if !capability.Available() {
		return nil, fmt.Errorf("%s: %s", UnsupportedNotice, capability.Reason)
	}

	args := make([]string, len(cfg.Args))
	for i, arg := range cfg.Args {
		args[i] = strings.ReplaceAll(arg, "{lang}", cfg.Language)
	}

	return &CommandRecognizer{
		path:     capability.Path,
		args:     args,
		language: cfg.Language,
		events:   make(chan Event, 8),
	}, nil
}

// Events returns the event stream shared by all recognitions
func (r *CommandRecognizer) Events() <-chan Event {
	return r.events
}

// Start launches the command. Events follow on Events(): Started, then
// Result or Failed, then Ended.
func (r *CommandRecognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyListening
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	cmd := exec.CommandContext(runCtx, r.path, r.args...)
	cmd.Env = append(os.Environ(), "NANOGENIUS_SPEECH_LANGUAGE="+r.language)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = stopGrace
	killProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		r.finish()
		cancel()
		return fmt.Errorf("failed to start speech command: %w", err)
	}

	r.events <- Event{Kind: EventStarted}

	go func() {
		defer cancel()
		err := cmd.Wait()

		switch {
		case runCtx.Err() != nil:
			// stopped by the user or shutdown
		case err != nil:
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				err = fmt.Errorf("%w: %s", err, msg)
			}
			r.events <- Event{Kind: EventFailed, Err: err}
		default:
			if transcript := strings.TrimSpace(stdout.String()); transcript != "" {
				r.events <- Event{Kind: EventResult, Transcript: transcript}
			}
		}

		r.finish()
		r.events <- Event{Kind: EventEnded}
	}()

	return nil
}

// Stop aborts a running recognition. Ended is still emitted.
func (r *CommandRecognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Listening reports whether a recognition is in progress
func (r *CommandRecognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *CommandRecognizer) finish() {
	r.mu.Lock()
	r.running = false
	r.cancel = nil
	r.mu.Unlock()
}
