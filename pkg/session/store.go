package session

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned for callIDs with no live session, including
// sessions already terminated or reclaimed by the idle sweeper.
var ErrNotFound = errors.New("session not found")

// Store holds one session per live callID. All operations on the same
// callID are linearized through the session's own lock; operations on
// different callIDs never block each other. The registry lock is only
// held for map access, never across a session's mutation function.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	clock   func() time.Time
}

type entry struct {
	mu   sync.Mutex
	sess CallSession
	gone bool
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		clock:   time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (st *Store) SetClock(clock func() time.Time) {
	if clock != nil {
		st.clock = clock
	}
}

// Create registers a session for callID. Creation is idempotent: when a
// session already exists it is returned unchanged and created is false,
// which tolerates provider-side webhook retries.
func (st *Store) Create(callID, clientID, from, to string) (CallSession, bool) {
	for {
		st.mu.Lock()
		e, ok := st.entries[callID]
		if !ok {
			now := st.clock()
			e = &entry{sess: CallSession{
				CallID:       callID,
				ClientID:     clientID,
				From:         from,
				To:           to,
				State:        StateGathering,
				StartedAt:    now,
				LastActivity: now,
			}}
			st.entries[callID] = e
			snap := e.sess.clone()
			st.mu.Unlock()
			return snap, true
		}
		st.mu.Unlock()

		e.mu.Lock()
		if !e.gone {
			snap := e.sess.clone()
			e.mu.Unlock()
			return snap, false
		}
		e.mu.Unlock()
		// Entry lost a race with Delete; retry against the fresh map state.
	}
}

// Get returns a snapshot copy of the session.
func (st *Store) Get(callID string) (CallSession, error) {
	st.mu.RLock()
	e := st.entries[callID]
	st.mu.RUnlock()
	if e == nil {
		return CallSession{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return CallSession{}, ErrNotFound
	}
	return e.sess.clone(), nil
}

// Mutate applies fn to the session under its per-key lock. The lock is
// held for the whole of fn, so a slow collaborator call inside fn delays
// only events for the same callID. Returns ErrNotFound when the session
// is absent; callers map that to the "session expired" response.
func (st *Store) Mutate(callID string, fn func(*CallSession) error) error {
	st.mu.RLock()
	e := st.entries[callID]
	st.mu.RUnlock()
	if e == nil {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return ErrNotFound
	}
	e.sess.LastActivity = st.clock()
	return fn(&e.sess)
}

// Delete removes the session. Removing an absent callID is not an error.
// A Mutate already holding the session lock finishes before the entry is
// marked gone.
func (st *Store) Delete(callID string) {
	st.mu.Lock()
	e := st.entries[callID]
	delete(st.entries, callID)
	st.mu.Unlock()
	if e == nil {
		return
	}
	e.mu.Lock()
	e.gone = true
	e.mu.Unlock()
}

// DeleteIfIdle removes the session only when its last activity is at or
// before cutoff, returning the final snapshot. A session whose lock is
// currently held is mid-turn and by definition not idle.
func (st *Store) DeleteIfIdle(callID string, cutoff time.Time) (CallSession, bool) {
	st.mu.RLock()
	e := st.entries[callID]
	st.mu.RUnlock()
	if e == nil {
		return CallSession{}, false
	}
	if !e.mu.TryLock() {
		return CallSession{}, false
	}
	defer e.mu.Unlock()
	if e.gone || e.sess.LastActivity.After(cutoff) {
		return CallSession{}, false
	}
	e.gone = true
	snap := e.sess.clone()
	st.mu.Lock()
	if st.entries[callID] == e {
		delete(st.entries, callID)
	}
	st.mu.Unlock()
	return snap, true
}

// IDs returns the callIDs currently registered.
func (st *Store) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]string, 0, len(st.entries))
	for id := range st.entries {
		out = append(out, id)
	}
	return out
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}
