package storage

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/nanogenius/internal/errors"
	"github.com/diogo/nanogenius/internal/models"
)

// SessionStore mirrors the session collection into a KV under a fixed key.
// It never reports failures to callers; a broken store degrades to an
// empty collection on load and a dropped write on save.
type SessionStore struct {
	kv     KV
	key    string
	logger zerolog.Logger
}

// SessionStoreOption configures a SessionStore
type SessionStoreOption func(*SessionStore)

// WithLogger sets the logger used for recovered failures
func WithLogger(logger zerolog.Logger) SessionStoreOption {
	return func(s *SessionStore) {
		s.logger = logger
	}
}

// WithKey overrides the storage key
func WithKey(key string) SessionStoreOption {
	return func(s *SessionStore) {
		s.key = key
	}
}

// NewSessionStore wraps kv
func NewSessionStore(kv KV, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		kv:     kv,
		key:    models.StorageKey,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the persisted sessions in stored order, or an empty slice
func (s *SessionStore) Load() []models.ChatSession {
	raw, ok, err := s.kv.Get(s.key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("failed to read sessions")
		return []models.ChatSession{}
	}
	if !ok || raw == "" {
		return []models.ChatSession{}
	}

	decoded, err := decodeSessions(s.key, raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("discarding stored sessions")
		return []models.ChatSession{}
	}

	sessions := make([]models.ChatSession, 0, len(decoded))
	for _, sess := range decoded {
		if sess.ID == "" {
			continue
		}
		if sess.Messages == nil {
			sess.Messages = []models.Message{}
		}
		sessions = append(sessions, sess)
	}
	return sessions
}

// decodeSessions parses the stored blob. Failures are ParseErrors whose
// Path is the storage key.
func decodeSessions(key, raw string) ([]models.ChatSession, error) {
	if !gjson.Valid(raw) {
		return nil, apierrors.NewParseError("stored sessions are not valid JSON", key)
	}
	if !gjson.Parse(raw).IsArray() {
		return nil, apierrors.NewParseError("stored sessions are not an array", key)
	}

	var decoded []models.ChatSession
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, apierrors.NewParseError("failed to decode sessions: "+err.Error(), key)
	}
	return decoded, nil
}

// Save writes sessions. An empty collection is never written.
func (s *SessionStore) Save(sessions []models.ChatSession) {
	if len(sessions) == 0 {
		return
	}

	data, err := json.Marshal(sessions)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode sessions")
		return
	}

	if err := s.kv.Set(s.key, string(data)); err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("failed to persist sessions")
	}
}

// Close closes the underlying KV
func (s *SessionStore) Close() error {
	return s.kv.Close()
}
