package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/confidohealth/voice-receptionist/pkg/logging"
)

// Session is the per-conversation record: state, the append-only transcript,
// and the idle timestamp the janitor sweeps on.
type Session struct {
	ID          string
	State       State
	Messages    []ChatMessage
	LastUpdated time.Time

	mu sync.Mutex
}

// Append adds a message to the transcript. Messages are never edited or
// removed.
func (s *Session) Append(role, content string) {
	s.Messages = append(s.Messages, ChatMessage{Role: role, Content: content})
	s.LastUpdated = time.Now().UTC()
}

// SessionStore owns every live session. Lookup-or-create is atomic, and
// Acquire hands the session back with its single-writer lock held, so a
// session is never advanced by two concurrent turns while distinct sessions
// proceed in parallel.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *logging.Logger
}

// NewSessionStore builds a store. Sessions idle longer than ttl are removed
// by Sweep; ttl <= 0 disables eviction.
func NewSessionStore(ttl time.Duration, logger *logging.Logger) *SessionStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
	}
}

// Acquire returns the session for id with its turn lock held, creating it on
// first use. created reports a fresh session; release must be called when the
// turn finishes.
func (st *SessionStore) Acquire(id string) (*Session, bool, func()) {
	for {
		st.mu.Lock()
		sess, ok := st.sessions[id]
		created := !ok
		if created {
			sess = &Session{ID: id, LastUpdated: time.Now().UTC()}
			st.sessions[id] = sess
		}
		st.mu.Unlock()

		// Taken outside the map lock so slow turns never block other sessions.
		sess.mu.Lock()

		// The sweeper may have evicted the session between the map fetch and
		// the lock. A turn must never run on an orphaned record, so re-check
		// membership and start over if it is gone.
		st.mu.Lock()
		live := st.sessions[id] == sess
		st.mu.Unlock()
		if live {
			return sess, created, sess.mu.Unlock
		}
		sess.mu.Unlock()
	}
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep evicts sessions idle past the TTL and returns how many were removed.
// A session mid-turn holds its lock and is skipped until the next pass.
func (st *SessionStore) Sweep(now time.Time) int {
	if st.ttl <= 0 {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	evicted := 0
	for id, sess := range st.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		idle := now.Sub(sess.LastUpdated)
		sess.mu.Unlock()
		if idle > st.ttl {
			delete(st.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartJanitor sweeps on the given interval until ctx is cancelled.
func (st *SessionStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if st.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := st.Sweep(time.Now().UTC()); n > 0 {
					st.logger.Info("evicted idle sessions", "count", n)
				}
			}
		}
	}()
}
