package internal

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMaxSessions = 1000
	defaultSessionTTL  = time.Hour
)

// Sessions holds the live sessions. Entries expire after the idle TTL or when
// the registry is full; either way the evicted session is closed.
type Sessions struct {
	poller   *CaptionPoller
	sessions *expirable.LRU[string, *Session]
}

func NewSessions(config SessionConfig, poller *CaptionPoller) *Sessions {
	size := config.MaxSessions
	if size <= 0 {
		size = defaultMaxSessions
	}
	ttl := config.IdleTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	onEvict := func(_ string, session *Session) {
		session.Close()
	}

	return &Sessions{
		poller:   poller,
		sessions: expirable.NewLRU[string, *Session](size, onEvict, ttl),
	}
}

// Open creates the session context for a freshly authenticated user.
func (r *Sessions) Open(user *User) *Session {
	session := NewSession(uuid.NewString(), user, r.poller)
	r.sessions.Add(session.ID, session)
	return session
}

// Get returns the session and renews its idle TTL.
func (r *Sessions) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	session, ok := r.sessions.Get(id)
	if !ok {
		return nil, false
	}
	r.sessions.Add(id, session)

	// A sign out between Get and Add closes the session before Add puts it
	// back.
	if session.Closed() {
		r.sessions.Remove(id)
		return nil, false
	}
	return session, true
}

// Close tears the session down and forgets it.
func (r *Sessions) Close(id string) {
	r.sessions.Remove(id)
}

func (r *Sessions) Len() int {
	return r.sessions.Len()
}

func (r *Sessions) Purge() {
	r.sessions.Purge()
}
