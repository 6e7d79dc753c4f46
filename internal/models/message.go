package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is a single chat turn. Field names match the persisted layout.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Text      string `json:"text,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	IsError   bool   `json:"isError,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ChatSession is one independent conversation thread
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt int64     `json:"updatedAt"`
}

// GenerationResult is the single-shot result of an image request
type GenerationResult struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// IsEmpty reports whether the service returned neither text nor image
func (r *GenerationResult) IsEmpty() bool {
	return r == nil || (r.Text == "" && r.ImageURL == "")
}

// NewID returns a fresh random identifier
func NewID() string {
	return uuid.NewString()
}

// EpochMillis converts t to integer milliseconds since the epoch
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// NewUserMessage builds a user turn stamped at now
func NewUserMessage(text, imageURL string, now time.Time) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleUser,
		Text:      text,
		ImageURL:  imageURL,
		Timestamp: EpochMillis(now),
	}
}

// NewModelMessage builds a model turn stamped at now
func NewModelMessage(text, imageURL string, now time.Time) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleModel,
		Text:      text,
		ImageURL:  imageURL,
		Timestamp: EpochMillis(now),
	}
}

// NewErrorMessage builds the apology turn that replaces a failed reply
func NewErrorMessage(now time.Time) Message {
	msg := NewModelMessage(ErrorReplyText, "", now)
	msg.IsError = true
	return msg
}

// HasContent reports whether the message carries text or an image
func (m Message) HasContent() bool {
	return m.Text != "" || m.ImageURL != ""
}

// Clone returns a deep copy of the session
func (s ChatSession) Clone() ChatSession {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}

// DeriveTitle returns the title a session should carry after an update.
// An explicit title wins, then the existing one, then the first message's
// text truncated to TitleMaxRunes, then FallbackSessionTitle.
func DeriveTitle(explicit, existing string, messages []Message) string {
	if explicit != "" {
		return explicit
	}
	if existing != "" {
		return existing
	}
	if len(messages) > 0 {
		if title := TruncateRunes(messages[0].Text, TitleMaxRunes); title != "" {
			return title
		}
	}
	return FallbackSessionTitle
}

// TruncateRunes cuts s to at most n runes
func TruncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Preview returns a single-line excerpt of text for list views
func Preview(text string, n int) string {
	line := strings.Join(strings.Fields(text), " ")
	if len([]rune(line)) <= n {
		return line
	}
	return TruncateRunes(line, n-3) + "..."
}
