package ems

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/andy6609/ems-pipe-server/internal/protocol"
	"github.com/andy6609/ems-pipe-server/internal/venue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, clk clock.Clock) (*sessionHandler, *Registry, *Session) {
	t.Helper()
	store := venue.NewMemory(0, clk)
	t.Cleanup(store.Close)

	r := NewRegistry()
	s := &Session{ID: 1}
	r.BeginHandshake(s)
	r.Activate(s, io.NopCloser(nil), time.Now())

	return &sessionHandler{store: store, registry: r, clock: clk, logger: discardLogger()}, r, s
}

func TestSessionServe_RespondsInOrder(t *testing.T) {
	h, r, s := newTestHandler(t, clock.New())

	in := strings.Join([]string{
		"3|1|2|2",
		"4|1|1|0|0",
		"5|1",
		"bogus",
		"4|1|2|0|0|0|1",
		"6",
		"3|2|1|1",
		"6",
	}, "\n") // last line has no newline
	var out bytes.Buffer

	if err := h.Serve(s, strings.NewReader(in), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	want := "0\n" +
		"0\n" +
		"0|1 0\n0 0\n\n" +
		"1\n" +
		"0|Event: 1\n\n" +
		"0\n" +
		"0|Event: 1\nEvent: 2\n\n"
	if out.String() != want {
		t.Fatalf("responses:\n%q\nwant:\n%q", out.String(), want)
	}

	events := r.Snapshot()[0].Events
	if len(events) != 2 || events[0] != 1 || events[1] != 2 {
		t.Fatalf("recorded events = %v, want [1 2]", events)
	}
}

func TestSessionServe_FailedShowHasNoPayload(t *testing.T) {
	h, r, s := newTestHandler(t, clock.New())
	var out bytes.Buffer

	if err := h.Serve(s, strings.NewReader("5|9\n6\n3|1|0|1\n"), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if want := "1\n0|No events\n\n1\n"; out.String() != want {
		t.Fatalf("responses = %q, want %q", out.String(), want)
	}
	if ev := r.Snapshot()[0].Events; len(ev) != 0 {
		t.Fatalf("failed create recorded events %v", ev)
	}
}

func TestSessionServe_WaitDelaysOnlyThisSession(t *testing.T) {
	mock := clock.NewMock()
	h, _, s := newTestHandler(t, mock)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	served := make(chan error, 1)
	go func() {
		served <- h.Serve(s, inR, outW)
		outW.Close()
	}()

	frames := make(chan protocol.Response, 8)
	go func() {
		br := bufio.NewReader(outR)
		for {
			resp, err := protocol.ReadResponse(br)
			if err != nil {
				close(frames)
				return
			}
			frames <- resp
		}
	}()

	if _, err := io.WriteString(inW, "3|1|1|1\n"); err != nil {
		t.Fatal(err)
	}
	if resp := receive(t, frames); resp.Status != protocol.StatusOK {
		t.Fatalf("create status = %v", resp.Status)
	}

	if _, err := io.WriteString(inW, "WAIT|5\n5|1\n"); err != nil {
		t.Fatal(err)
	}
	select {
	case resp := <-frames:
		t.Fatalf("got %+v before the wait elapsed", resp)
	case <-time.After(50 * time.Millisecond):
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case resp := <-frames:
			if resp.Payload != "0\n" {
				t.Fatalf("show after wait = %+v", resp)
			}
			inW.Close()
			if err := <-served; err != nil {
				t.Fatalf("Serve: %v", err)
			}
			return
		case <-deadline:
			t.Fatal("show never answered while advancing the clock")
		default:
			mock.Add(time.Second)
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestSessionServe_WriteFailureEndsSession(t *testing.T) {
	h, _, s := newTestHandler(t, clock.New())
	err := h.Serve(s, strings.NewReader("6\n6\n"), failingWriter{})
	if err == nil {
		t.Fatal("Serve succeeded with a broken response pipe")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func receive(t *testing.T, ch <-chan protocol.Response) protocol.Response {
	t.Helper()
	select {
	case resp, ok := <-ch:
		if !ok {
			t.Fatal("response stream closed")
		}
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for response")
	}
	panic("unreachable")
}
