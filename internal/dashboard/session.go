package dashboard

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/galeops/windfleet/internal/models"
)

// Session is one dashboard view: a selection controller and a conversation
// controller. Sessions are never shared between clients and never persisted.
type Session struct {
	ID           string
	Selection    *Selection
	Conversation *Conversation

	lastActive time.Time
}

// Registry holds live dashboard sessions and expires idle ones.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func newSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Create builds a new session over the fixed farm set. greeting, if
// non-empty, seeds the conversation with an assistant message.
func (r *Registry) Create(farms []models.WindFarm, responder Responder, greeting string) *Session {
	sess := &Session{
		ID:           newSessionID(),
		Selection:    NewSelection(farms),
		Conversation: NewConversation(responder),
	}
	if greeting != "" {
		sess.Conversation.SeedGreeting(greeting)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sess.lastActive = r.now()
	r.sessions[sess.ID] = sess
	return sess
}

// Get returns the session by id, or nil, and marks it active.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil
	}
	sess.lastActive = r.now()
	return sess
}

// Sweep removes sessions idle past the registry TTL and returns how many
// were dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, sess := range r.sessions {
		if sess.lastActive.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
