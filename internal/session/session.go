// Package session holds the per-visitor state of the web shell: the contact
// being reviewed, its card image and whether delete mode is on.
//
// Handlers Load a State, work on their copy and Save it back; nothing is
// shared between visitors.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"cardreader/pkg/models"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 2 * time.Hour

// State is one visitor's session.
type State struct {
	ID string `json:"session_id"`

	// Draft is the contact read from the last scanned card, nil when there is
	// nothing pending review.
	Draft   *models.ContactRecord `json:"contact,omitempty"`
	RawText string                `json:"raw_text,omitempty"`
	Image   []byte                `json:"-"`

	DeleteMode bool      `json:"delete_mode"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasDraft reports whether a scanned contact is waiting to be saved.
func (s State) HasDraft() bool {
	return s.Draft != nil
}

// ClearDraft drops the pending contact and its image.
func (s *State) ClearDraft() {
	s.Draft = nil
	s.RawText = ""
	s.Image = nil
}

// clone copies s so callers never share the draft or image with the manager.
func (s State) clone() State {
	if s.Draft != nil {
		draft := *s.Draft
		s.Draft = &draft
	}
	if s.Image != nil {
		s.Image = append([]byte(nil), s.Image...)
	}
	return s
}

// Manager keeps sessions in memory.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]State
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a Manager expiring sessions idle for longer than ttl.
// A ttl of zero means DefaultTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		sessions: make(map[string]State),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Load returns the session with id, or a fresh session with a new ID when id
// is empty, unknown or expired. The second result reports whether a new
// session was started.
func (m *Manager) Load(id string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expire()

	if state, ok := m.sessions[id]; ok && id != "" {
		return state.clone(), false
	}

	state := State{ID: uuid.NewString(), UpdatedAt: m.now()}
	m.sessions[state.ID] = state
	return state.clone(), true
}

// Save stores state under its ID.
func (m *Manager) Save(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state.UpdatedAt = m.now()
	m.sessions[state.ID] = state.clone()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expire()
	return len(m.sessions)
}

// expire drops idle sessions. Callers hold m.mu.
func (m *Manager) expire() {
	cutoff := m.now().Add(-m.ttl)
	for id, state := range m.sessions {
		if state.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
