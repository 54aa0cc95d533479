package ems

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/andy6609/ems-pipe-server/internal/protocol"
	"github.com/andy6609/ems-pipe-server/internal/venue"
)

func TestInspector_DumpsEventsOfActiveSessions(t *testing.T) {
	store := venue.NewMemory(0, nil)
	t.Cleanup(store.Close)
	_ = store.Create(1, 1, 2)
	_ = store.Create(2, 1, 1)
	_ = store.Reserve(1, []protocol.Seat{{X: 0, Y: 1}})

	r := NewRegistry()
	activate(t, r, 4, &closeCounter{})
	activate(t, r, 6, &closeCounter{})
	r.RecordEvent(4, 1)
	r.RecordEvent(4, 2)
	r.RecordEvent(6, 1)
	activate(t, r, 9, &closeCounter{})

	var out bytes.Buffer
	i := NewInspector(r, store, &out, discardLogger())
	if err := i.Dump(); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	want := "Session 4 Event 1\n0 1\n" +
		"Session 4 Event 2\n0\n" +
		"Session 6 Event 1\n0 1\n" +
		"Session 9: no events\n"
	if out.String() != want {
		t.Fatalf("dump:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestInspector_EmptyRegistry(t *testing.T) {
	var out bytes.Buffer
	i := NewInspector(NewRegistry(), venue.NewMemory(0, nil), &out, discardLogger())
	if err := i.Dump(); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if out.String() != "No active sessions\n" {
		t.Fatalf("dump = %q", out.String())
	}
}

func TestInspector_RunPendingOnlyAfterTrigger(t *testing.T) {
	var out bytes.Buffer
	i := NewInspector(NewRegistry(), venue.NewMemory(0, nil), &out, discardLogger())

	if err := i.RunPending(); err != nil || out.Len() != 0 {
		t.Fatalf("RunPending without trigger wrote %q, err %v", out.String(), err)
	}

	i.Trigger()
	i.Trigger()
	if !i.Pending() {
		t.Fatal("Pending = false after Trigger")
	}
	if err := i.RunPending(); err != nil {
		t.Fatalf("RunPending: %v", err)
	}
	if i.Pending() {
		t.Fatal("Pending = true after RunPending")
	}
	first := out.Len()
	if first == 0 {
		t.Fatal("RunPending after Trigger wrote nothing")
	}
	_ = i.RunPending()
	if out.Len() != first {
		t.Fatal("two triggers produced two dumps")
	}
}

func TestInspector_WaitsForHandshakes(t *testing.T) {
	r := NewRegistry()
	var out bytes.Buffer
	i := NewInspector(r, venue.NewMemory(0, nil), &out, discardLogger())

	s := &Session{ID: 1}
	r.BeginHandshake(s)

	done := make(chan error, 1)
	go func() { done <- i.Dump() }()

	select {
	case <-done:
		t.Fatal("Dump ran while a handshake was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	r.Activate(s, &closeCounter{}, time.Now())
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Dump: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dump still blocked after handshake finished")
	}
	if out.String() != "Session 1: no events\n" {
		t.Fatalf("dump = %q", out.String())
	}

	r.BeginHandshake(&Session{ID: 2})
	go func() { done <- i.Dump() }()
	time.Sleep(20 * time.Millisecond)
	r.Close()
	if err := <-done; !errors.Is(err, ErrStopped) {
		t.Fatalf("Dump after Close err = %v, want ErrStopped", err)
	}
}
