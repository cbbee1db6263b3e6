package conversation

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_AcquireCreatesOnce(t *testing.T) {
	store := NewSessionStore(time.Hour, nil)

	var createdCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, created, release := store.Acquire("call-1")
			if created {
				createdCount.Add(1)
			}
			sess.Append(ChatRoleUser, "hello")
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), createdCount.Load(), "exactly one goroutine creates the session")
	assert.Equal(t, 1, store.Len())

	sess, created, release := store.Acquire("call-1")
	defer release()
	assert.False(t, created)
	assert.Len(t, sess.Messages, 50, "no appends lost under contention")
}

func TestSessionStore_DistinctSessionsIndependent(t *testing.T) {
	store := NewSessionStore(time.Hour, nil)

	a, createdA, releaseA := store.Acquire("call-a")
	defer releaseA()
	require.True(t, createdA)

	// Acquiring a different session must not block even while call-a's lock
	// is held.
	done := make(chan struct{})
	go func() {
		_, createdB, releaseB := store.Acquire("call-b")
		assert.True(t, createdB)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("acquiring a distinct session blocked on another session's lock")
	}

	a.State.Task = TaskAppointment
	assert.Equal(t, 2, store.Len())
}

func TestSessionStore_SweepEvictsIdleSessions(t *testing.T) {
	store := NewSessionStore(time.Minute, nil)

	_, _, release := store.Acquire("stale")
	release()

	evicted := store.Sweep(time.Now().UTC().Add(2 * time.Minute))

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 0, store.Len())
}

func TestSessionStore_SweepKeepsFreshSessions(t *testing.T) {
	store := NewSessionStore(time.Hour, nil)

	_, _, release := store.Acquire("fresh")
	release()

	evicted := store.Sweep(time.Now().UTC().Add(time.Minute))

	assert.Equal(t, 0, evicted)
	assert.Equal(t, 1, store.Len())
}

func TestSessionStore_SweepSkipsLockedSessions(t *testing.T) {
	store := NewSessionStore(time.Minute, nil)

	// Session is mid-turn: the lock is held, so the sweep must leave it.
	_, _, release := store.Acquire("busy")
	defer release()

	evicted := store.Sweep(time.Now().UTC().Add(time.Hour))

	assert.Equal(t, 0, evicted)
	assert.Equal(t, 1, store.Len())
}

func TestSessionStore_AcquireRetriesWhenEvictedMidAcquire(t *testing.T) {
	store := NewSessionStore(time.Minute, nil)

	first, _, holdTurn := store.Acquire("call-x")

	// Second acquirer fetches the pointer, then parks on the session lock.
	type acquired struct {
		sess    *Session
		created bool
	}
	got := make(chan acquired)
	go func() {
		sess, created, release := store.Acquire("call-x")
		defer release()
		got <- acquired{sess, created}
	}()

	// Give the goroutine time to reach the session lock, then evict the
	// record the way the sweeper would.
	time.Sleep(50 * time.Millisecond)
	store.mu.Lock()
	delete(store.sessions, "call-x")
	store.mu.Unlock()

	holdTurn()

	res := <-got
	assert.True(t, res.created, "evicted record must be replaced, not reused")
	assert.NotSame(t, first, res.sess, "turn must not run on the orphaned session")
	assert.Equal(t, 1, store.Len())
}

func TestSessionStore_ZeroTTLDisablesEviction(t *testing.T) {
	store := NewSessionStore(0, nil)

	_, _, release := store.Acquire("kept")
	release()

	evicted := store.Sweep(time.Now().UTC().Add(1000 * time.Hour))

	assert.Equal(t, 0, evicted)
	assert.Equal(t, 1, store.Len())
}
