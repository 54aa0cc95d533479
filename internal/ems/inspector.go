package ems

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/andy6609/ems-pipe-server/internal/venue"
)

// Inspector dumps the state of every event touched by an active session.
// Trigger may be called from any goroutine, including a signal handler loop;
// the dump itself runs on whichever goroutine calls RunPending.
type Inspector struct {
	requested atomic.Bool
	registry  *Registry
	store     venue.Store
	out       io.Writer
	logger    *slog.Logger
}

func NewInspector(registry *Registry, store venue.Store, out io.Writer, logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{
		registry: registry,
		store:    store,
		out:      out,
		logger:   logger,
	}
}

func (i *Inspector) Trigger() { i.requested.Store(true) }

func (i *Inspector) Pending() bool { return i.requested.Load() }

// RunPending writes a dump if one was requested since the last call.
func (i *Inspector) RunPending() error {
	if !i.requested.Swap(false) {
		return nil
	}
	return i.Dump()
}

// Dump waits for in-flight handshakes to finish, then writes one block per
// session and event. The snapshot is best effort: sessions may come and go
// while it is written.
func (i *Inspector) Dump() error {
	if !i.registry.WaitQuiescent() {
		return ErrStopped
	}
	entries := i.registry.Snapshot()

	var b strings.Builder
	if len(entries) == 0 {
		b.WriteString("No active sessions\n")
	}
	for _, e := range entries {
		if len(e.Events) == 0 {
			fmt.Fprintf(&b, "Session %d: no events\n", e.ID)
			continue
		}
		for _, eventID := range e.Events {
			text, err := i.store.Show(eventID)
			if err != nil {
				fmt.Fprintf(&b, "Session %d Event %d: %v\n", e.ID, eventID, err)
				continue
			}
			fmt.Fprintf(&b, "Session %d Event %d\n%s", e.ID, eventID, text)
		}
	}

	if _, err := io.WriteString(i.out, b.String()); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}
	InspectionsTotal.Inc()
	i.logger.Info("dumped active sessions", "sessions", len(entries))
	return nil
}
