package ems

import (
	"io"
	"slices"
	"sync"
	"time"

	"github.com/andy6609/ems-pipe-server/internal/pipe"
)

// Entry is a read-only view of an active session.
type Entry struct {
	ID           uint64
	RequestPath  string
	ResponsePath string
	ActivatedAt  time.Time
	// Events lists the event ids this session created or reserved seats in,
	// in first-touched order.
	Events []uint
}

type registryEntry struct {
	Entry
	conn io.Closer
}

// Registry tracks sessions whose pipes are open, plus the handshakes still in
// progress. Workers write it; the inspector reads it.
type Registry struct {
	mu         sync.Mutex
	quiet      *sync.Cond
	sessions   map[uint64]*registryEntry
	handshakes map[uint64]*Session
	closed     bool
}

func NewRegistry() *Registry {
	r := &Registry{
		sessions:   make(map[uint64]*registryEntry),
		handshakes: make(map[uint64]*Session),
	}
	r.quiet = sync.NewCond(&r.mu)
	return r
}

// BeginHandshake marks s as opening its pipes. It returns false once the
// registry has been closed.
func (r *Registry) BeginHandshake(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.handshakes[s.ID] = s
	return true
}

// AbortHandshake ends a handshake that failed before both pipes were open.
func (r *Registry) AbortHandshake(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endHandshake(id)
}

// Activate ends the handshake for s and records it as active. conn is closed
// if the registry shuts down while the session is still running. It returns
// false, leaving s pending, when the registry is already closed.
func (r *Registry) Activate(s *Session, conn io.Closer, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endHandshake(s.ID)
	if r.closed {
		return false
	}
	s.Status = StatusActive
	r.sessions[s.ID] = &registryEntry{
		Entry: Entry{
			ID:           s.ID,
			RequestPath:  s.RequestPath,
			ResponsePath: s.ResponsePath,
			ActivatedAt:  now,
		},
		conn: conn,
	}
	return true
}

// RecordEvent notes that the session touched eventID.
func (r *Registry) RecordEvent(id uint64, eventID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || slices.Contains(e.Events, eventID) {
		return
	}
	e.Events = append(e.Events, eventID)
}

// Deactivate removes the session and marks it closed.
func (r *Registry) Deactivate(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s.ID)
	s.Status = StatusClosed
}

// WaitQuiescent blocks until no handshake is in progress. It returns false if
// the registry is closed while waiting.
func (r *Registry) WaitQuiescent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.handshakes) > 0 && !r.closed {
		r.quiet.Wait()
	}
	return !r.closed
}

// Snapshot copies every active entry, ordered by session id.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		c := e.Entry
		c.Events = slices.Clone(e.Events)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) Handshakes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handshakes)
}

// Close refuses new sessions and closes the pipes of active ones, which
// unblocks their workers' reads.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, e := range r.sessions {
		_ = e.conn.Close()
	}
	r.quiet.Broadcast()
}

// WakePending releases workers parked opening a session's pipes. Only
// meaningful after Close; the woken worker sees an empty session.
func (r *Registry) WakePending() {
	r.mu.Lock()
	pending := make([]Session, 0, len(r.handshakes))
	for _, s := range r.handshakes {
		pending = append(pending, *s)
	}
	r.mu.Unlock()

	for _, s := range pending {
		_, _ = pipe.Wake(s.RequestPath)
		_, _ = pipe.WakeWriter(s.ResponsePath)
	}
}

func (r *Registry) endHandshake(id uint64) {
	delete(r.handshakes, id)
	if len(r.handshakes) == 0 {
		r.quiet.Broadcast()
	}
}
