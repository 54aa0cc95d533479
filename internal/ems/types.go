package ems

import "github.com/andy6609/ems-pipe-server/internal/protocol"

type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

// Session is one client's registered pipe pair. The worker that dequeues it
// owns it until the client hangs up.
type Session struct {
	ID           uint64
	RequestPath  string
	ResponsePath string
	Status       Status
}

func newSession(id uint64, reg protocol.Registration) *Session {
	return &Session{
		ID:           id,
		RequestPath:  reg.RequestPath,
		ResponsePath: reg.ResponsePath,
		Status:       StatusPending,
	}
}

var (
	ErrStopped        = errorString("server_stopped")
	ErrAlreadyStarted = errorString("server_already_started")
)

type errorString string

func (e errorString) Error() string { return string(e) }
