// Package venue holds event and seat state shared by every session.
package venue

import (
	"errors"

	"github.com/andy6609/ems-pipe-server/internal/protocol"
)

var (
	ErrEventExists   = errors.New("event already exists")
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidSize   = errors.New("invalid event size")
	ErrInvalidSeat   = errors.New("invalid seat")
	ErrSeatTaken     = errors.New("seat already reserved")
	ErrNoSeats       = errors.New("no seats requested")
	ErrClosed        = errors.New("venue store closed")
)

// Store is safe for concurrent use by every worker.
type Store interface {
	Create(eventID, rows, cols uint) error
	// Reserve is all-or-nothing: on error no seat changes.
	Reserve(eventID uint, seats []protocol.Seat) error
	Show(eventID uint) (string, error)
	List() (string, error)
	Close()
}
