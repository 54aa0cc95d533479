package main

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/andy6609/ems-pipe-server/internal/protocol"
	"github.com/andy6609/ems-pipe-server/pkg/client"
)

func TestParseJobs(t *testing.T) {
	input := `
# setup
CREATE 1 10 20
RESERVE 1 [(1,1) (1,2)]
SHOW 1

LIST
WAIT 2
`
	jobs, err := parseJobs(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseJobs: %v", err)
	}
	want := []job{
		{3, protocol.Command{Op: protocol.OpCreate, EventID: 1, Rows: 10, Cols: 20}},
		{4, protocol.Command{Op: protocol.OpReserve, EventID: 1, Seats: []protocol.Seat{{X: 1, Y: 1}, {X: 1, Y: 2}}}},
		{5, protocol.Command{Op: protocol.OpShow, EventID: 1}},
		{7, protocol.Command{Op: protocol.OpList}},
		{8, protocol.Command{Op: protocol.OpWait, Seconds: 2}},
	}
	if !reflect.DeepEqual(jobs, want) {
		t.Fatalf("jobs = %+v\nwant %+v", jobs, want)
	}
}

func TestParseJobErrors(t *testing.T) {
	for _, line := range []string{
		"CREATE 1 2",
		"CREATE 1 2 x",
		"RESERVE 1",
		"RESERVE 1 []",
		"RESERVE 1 [(1 2)]",
		"RESERVE 1 (1,2)",
		"SHOW",
		"LIST 3",
		"WAIT -1",
		"DANCE",
	} {
		if _, err := parseJob(line); err == nil {
			t.Errorf("parseJob(%q) succeeded", line)
		}
	}
}

type fakeRunner struct {
	calls []string
}

func (f *fakeRunner) Create(eventID, rows, cols uint) error {
	f.calls = append(f.calls, "create")
	if eventID == 0 {
		return client.ErrFailed
	}
	return nil
}

func (f *fakeRunner) Reserve(uint, []protocol.Seat) error {
	f.calls = append(f.calls, "reserve")
	return errors.New("broken pipe")
}

func (f *fakeRunner) Show(uint) (string, error) {
	f.calls = append(f.calls, "show")
	return "0 0\n", nil
}

func (f *fakeRunner) List() (string, error) {
	f.calls = append(f.calls, "list")
	return "Event: 1\n", nil
}

func (f *fakeRunner) Wait(uint) error {
	f.calls = append(f.calls, "wait")
	return nil
}

func TestRunJobs(t *testing.T) {
	jobs := []job{
		{1, protocol.Command{Op: protocol.OpCreate, EventID: 0, Rows: 1, Cols: 1}},
		{2, protocol.Command{Op: protocol.OpShow, EventID: 1}},
		{3, protocol.Command{Op: protocol.OpWait, Seconds: 1}},
		{4, protocol.Command{Op: protocol.OpList}},
		{5, protocol.Command{Op: protocol.OpReserve, EventID: 1, Seats: []protocol.Seat{{X: 0, Y: 0}}}},
		{6, protocol.Command{Op: protocol.OpList}},
	}
	var out bytes.Buffer
	f := &fakeRunner{}

	err := runJobs(f, jobs, &out)
	if err == nil || !strings.Contains(err.Error(), "line 5") {
		t.Fatalf("runJobs err = %v, want transport error at line 5", err)
	}
	if want := "line 1: create failed\n0 0\nEvent: 1\n"; out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
	if want := []string{"create", "show", "wait", "list", "reserve"}; !reflect.DeepEqual(f.calls, want) {
		t.Fatalf("calls = %v, want %v", f.calls, want)
	}
}
