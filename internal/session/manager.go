// Package session owns the in-memory collection of chat sessions and the
// current-session pointer. All mutations go through Manager and are
// mirrored to the store.
package session

import (
	"sync"
	"time"

	"github.com/diogo/nanogenius/internal/models"
)

// Store persists the session collection
type Store interface {
	Load() []models.ChatSession
	Save(sessions []models.ChatSession)
}

// Manager is safe for concurrent use. The collection is ordered newest
// created first and is never empty once New returns.
type Manager struct {
	mu        sync.RWMutex
	sessions  []models.ChatSession
	currentID string

	store    Store
	now      func() time.Time
	onChange func()
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithOnChange registers a hook fired after every committed mutation.
// It runs outside the manager lock.
func WithOnChange(fn func()) Option {
	return func(m *Manager) {
		m.onChange = fn
	}
}

// New loads the persisted sessions. When there are none a fresh session is
// created. The first loaded session becomes current.
func New(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if store != nil {
		m.sessions = store.Load()
	}
	if len(m.sessions) == 0 {
		m.mu.Lock()
		m.createLocked()
		m.persistLocked()
		m.mu.Unlock()
	} else {
		m.currentID = m.sessions[0].ID
	}
	return m
}

// Create inserts an empty session at the front and makes it current
func (m *Manager) Create() models.ChatSession {
	m.mu.Lock()
	sess := m.createLocked()
	m.persistLocked()
	m.mu.Unlock()

	m.changed()
	return sess.Clone()
}

func (m *Manager) createLocked() models.ChatSession {
	sess := models.ChatSession{
		ID:        models.NewID(),
		Title:     models.DefaultSessionTitle,
		Messages:  []models.Message{},
		UpdatedAt: models.EpochMillis(m.now()),
	}
	m.sessions = append([]models.ChatSession{sess}, m.sessions...)
	m.currentID = sess.ID
	return sess
}

// Delete removes the session with id. When it was current the new front
// session becomes current, or a fresh one is created if none remain.
// Reports false for an unknown id.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	idx := m.indexLocked(id)
	if idx < 0 {
		m.mu.Unlock()
		return false
	}

	m.sessions = append(m.sessions[:idx:idx], m.sessions[idx+1:]...)
	if len(m.sessions) == 0 {
		m.createLocked()
	} else if m.currentID == id {
		m.currentID = m.sessions[0].ID
	}
	m.persistLocked()
	m.mu.Unlock()

	m.changed()
	return true
}

// Clear removes every session and starts over with a single fresh one
func (m *Manager) Clear() models.ChatSession {
	m.mu.Lock()
	m.sessions = nil
	sess := m.createLocked()
	m.persistLocked()
	m.mu.Unlock()

	m.changed()
	return sess.Clone()
}

// Select makes id current. Reports false for an unknown id.
func (m *Manager) Select(id string) bool {
	m.mu.Lock()
	if m.indexLocked(id) < 0 {
		m.mu.Unlock()
		return false
	}
	m.currentID = id
	m.mu.Unlock()

	m.changed()
	return true
}

// Update replaces the messages of session id wholesale and bumps its
// timestamp. The title follows models.DeriveTitle. An unknown id is a
// no-op reporting false; Update never creates sessions.
func (m *Manager) Update(id string, messages []models.Message, title string) bool {
	m.mu.Lock()
	idx := m.indexLocked(id)
	if idx < 0 {
		m.mu.Unlock()
		return false
	}

	owned := make([]models.Message, len(messages))
	copy(owned, messages)

	sess := &m.sessions[idx]
	sess.Messages = owned
	sess.UpdatedAt = models.EpochMillis(m.now())
	sess.Title = models.DeriveTitle(title, sess.Title, owned)
	m.persistLocked()
	m.mu.Unlock()

	m.changed()
	return true
}

// Current returns a copy of the current session
func (m *Manager) Current() (models.ChatSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.indexLocked(m.currentID)
	if idx < 0 {
		return models.ChatSession{}, false
	}
	return m.sessions[idx].Clone(), true
}

// CurrentID returns the id of the current session
func (m *Manager) CurrentID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentID
}

// Get returns a copy of the session with id
func (m *Manager) Get(id string) (models.ChatSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.indexLocked(id)
	if idx < 0 {
		return models.ChatSession{}, false
	}
	return m.sessions[idx].Clone(), true
}

// Sessions returns copies of all sessions in collection order
func (m *Manager) Sessions() []models.ChatSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ChatSession, len(m.sessions))
	for i, s := range m.sessions {
		out[i] = s.Clone()
	}
	return out
}

// Len returns the number of sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) indexLocked(id string) int {
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) persistLocked() {
	if m.store == nil {
		return
	}
	snapshot := make([]models.ChatSession, len(m.sessions))
	for i, s := range m.sessions {
		snapshot[i] = s.Clone()
	}
	m.store.Save(snapshot)
}

func (m *Manager) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}
