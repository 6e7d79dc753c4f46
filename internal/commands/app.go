package commands

import (
	"fmt"

	"github.com/diogo/nanogenius/internal/config"
	"github.com/diogo/nanogenius/internal/logging"
	"github.com/diogo/nanogenius/internal/session"
	"github.com/diogo/nanogenius/internal/storage"
)

// sessionState bundles the opened store and the manager on top of it
type sessionState struct {
	store    *storage.SessionStore
	sessions *session.Manager
}

// openSessions opens the configured backend and loads the session collection
func openSessions(cfg config.Config, opts ...session.Option) (*sessionState, error) {
	kv, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	store := storage.NewSessionStore(kv, storage.WithLogger(logging.Component("storage")))
	return &sessionState{
		store:    store,
		sessions: session.New(store, opts...),
	}, nil
}

func (s *sessionState) Close() {
	if err := s.store.Close(); err != nil {
		logging.Logger.Warn().Err(err).Msg("failed to close session storage")
	}
}
