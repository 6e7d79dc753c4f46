// Package chat runs send operations: it appends the user's turn, routes it
// to the text or image model and folds the reply into the session.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/diogo/nanogenius/internal/api"
	"github.com/diogo/nanogenius/internal/media"
	"github.com/diogo/nanogenius/internal/models"
)

// Precondition failures. Send leaves all state untouched when it returns one.
var (
	ErrBusy       = errors.New("a message is already being sent")
	ErrEmptyInput = errors.New("nothing to send")
	ErrNoSession  = errors.New("no active session")
)

// Service is the AI backend used by the coordinator
type Service interface {
	StreamText(ctx context.Context, history []models.Message, text string) iter.Seq2[string, error]
	GenerateImage(ctx context.Context, prompt string, input *api.ImageInput) (*models.GenerationResult, error)
}

// Sessions is the session state the coordinator reads and writes
type Sessions interface {
	CurrentID() string
	Get(id string) (models.ChatSession, bool)
	Update(id string, messages []models.Message, title string) bool
}

// Input is one user submission
type Input struct {
	Text       string
	Attachment *media.Attachment
	// OnAccepted runs once the user message is committed, before any
	// service call. Callers clear their pending input here.
	OnAccepted func()
}

// Coordinator allows one outstanding send at a time
type Coordinator struct {
	sessions Sessions
	service  Service
	observer Observer
	now      func() time.Time
	logger   zerolog.Logger

	busy atomic.Bool
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithObserver sets the event observer
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		c.observer = o
	}
}

// WithClock overrides the time source for message timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator wires a coordinator to the session state and AI backend
func NewCoordinator(sessions Sessions, service Service, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions: sessions,
		service:  service,
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Busy reports whether a send is outstanding
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

// Send runs one operation to completion on the calling goroutine.
//
// ErrEmptyInput, ErrBusy and ErrNoSession are returned without touching any
// state. Any other error is a service or attachment failure that has
// already been recorded in the session as an error message.
func (c *Coordinator) Send(ctx context.Context, in Input) error {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Attachment == nil {
		return ErrEmptyInput
	}
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}

	sessionID := c.sessions.CurrentID()
	sess, ok := c.sessions.Get(sessionID)
	if !ok {
		c.busy.Store(false)
		return ErrNoSession
	}

	history := sess.Messages
	var previewURL string
	if in.Attachment != nil {
		previewURL = in.Attachment.PreviewURL
	}
	userMsg := models.NewUserMessage(text, previewURL, c.now())
	withUser := appendMessage(history, userMsg)

	c.sessions.Update(sessionID, withUser, "")
	c.emit(Event{Kind: EventUserMessage, SessionID: sessionID, MessageID: userMsg.ID, Text: text, ImageURL: previewURL})
	if in.OnAccepted != nil {
		in.OnAccepted()
	}

	var err error
	if IsImageRequest(text, in.Attachment != nil) {
		err = c.sendImage(ctx, sessionID, text, in.Attachment, withUser)
	} else {
		err = c.sendText(ctx, sessionID, text, history, withUser)
	}

	if err != nil {
		c.logger.Error().Err(err).Str("session", sessionID).Msg("send failed")
		errMsg := models.NewErrorMessage(c.now())
		c.sessions.Update(sessionID, appendMessage(withUser, errMsg), "")
		c.emit(Event{Kind: EventFailed, SessionID: sessionID, MessageID: errMsg.ID, Text: errMsg.Text, Err: err})
	}

	c.busy.Store(false)
	c.emit(Event{Kind: EventDone, SessionID: sessionID})
	return err
}

func (c *Coordinator) sendImage(ctx context.Context, sessionID, text string, att *media.Attachment, withUser []models.Message) error {
	var input *api.ImageInput
	if att != nil {
		encoded, err := att.Base64()
		if err != nil {
			return fmt.Errorf("failed to encode attachment: %w", err)
		}
		input = &api.ImageInput{Base64: encoded, MIMEType: att.MIMEType}
	}

	prompt := text
	if prompt == "" {
		prompt = models.DefaultImagePrompt
	}

	c.logger.Debug().Str("session", sessionID).Bool("edit", input != nil).Msg("image request")
	result, err := c.service.GenerateImage(ctx, prompt, input)
	if err != nil {
		return err
	}
	if result == nil {
		result = &models.GenerationResult{}
	}
	if result.IsEmpty() {
		c.logger.Warn().Str("session", sessionID).Msg("image service returned no content")
	}

	reply := models.NewModelMessage(result.Text, result.ImageURL, c.now())
	c.sessions.Update(sessionID, appendMessage(withUser, reply), "")
	c.emit(Event{Kind: EventReply, SessionID: sessionID, MessageID: reply.ID, Text: reply.Text, ImageURL: reply.ImageURL})
	return nil
}

func (c *Coordinator) sendText(ctx context.Context, sessionID, text string, history, withUser []models.Message) error {
	placeholder := models.NewModelMessage("", "", c.now())
	messages := appendMessage(withUser, placeholder)
	last := len(messages) - 1

	c.sessions.Update(sessionID, messages, "")
	c.emit(Event{Kind: EventPlaceholder, SessionID: sessionID, MessageID: placeholder.ID})

	var acc strings.Builder
	chunks := 0
	for chunk, err := range c.service.StreamText(ctx, chatHistory(history), text) {
		if err != nil {
			return err
		}
		acc.WriteString(chunk)
		chunks++

		messages[last].Text = acc.String()
		c.sessions.Update(sessionID, messages, "")
		c.emit(Event{Kind: EventChunk, SessionID: sessionID, MessageID: placeholder.ID, Text: messages[last].Text})
	}

	c.logger.Debug().Str("session", sessionID).Int("chunks", chunks).Msg("text reply complete")
	c.emit(Event{Kind: EventReply, SessionID: sessionID, MessageID: placeholder.ID, Text: messages[last].Text})
	return nil
}

func (c *Coordinator) emit(ev Event) {
	if c.observer != nil {
		c.observer(ev)
	}
}

// chatHistory drops error turns and turns without text
func chatHistory(messages []models.Message) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		if m.IsError || m.Text == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// appendMessage returns a new slice; the input is never aliased
func appendMessage(messages []models.Message, msg models.Message) []models.Message {
	out := make([]models.Message, len(messages), len(messages)+2)
	copy(out, messages)
	return append(out, msg)
}
