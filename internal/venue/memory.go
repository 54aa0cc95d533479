package venue

import (
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/andy6609/ems-pipe-server/internal/protocol"
)

// MaxSeats caps rows*cols for a single event.
const MaxSeats = 1 << 20

type event struct {
	mu            sync.Mutex
	id            uint
	rows, cols    uint
	seats         []uint
	reservationID uint
}

func (e *event) index(s protocol.Seat) (int, bool) {
	if s.X >= e.rows || s.Y >= e.cols {
		return 0, false
	}
	return int(s.X*e.cols + s.Y), true
}

// Memory keeps events in process memory. Each seat access waits delay on the
// clock, simulating slow shared state.
type Memory struct {
	mu     sync.RWMutex
	events map[uint]*event
	closed bool
	delay  time.Duration
	clock  clock.Clock
}

func NewMemory(delay time.Duration, clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.New()
	}
	return &Memory{
		events: make(map[uint]*event),
		delay:  delay,
		clock:  clk,
	}
}

func (m *Memory) Create(eventID, rows, cols uint) error {
	if rows == 0 || cols == 0 || rows > MaxSeats/cols {
		return ErrInvalidSize
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.events[eventID]; ok {
		return ErrEventExists
	}
	m.events[eventID] = &event{
		id:    eventID,
		rows:  rows,
		cols:  cols,
		seats: make([]uint, rows*cols),
	}
	return nil
}

func (m *Memory) Reserve(eventID uint, seats []protocol.Seat) error {
	if len(seats) == 0 {
		return ErrNoSeats
	}
	e, err := m.lookup(eventID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx := make([]int, len(seats))
	for i, s := range seats {
		j, ok := e.index(s)
		if !ok || slices.Contains(idx[:i], j) {
			return ErrInvalidSeat
		}
		if m.seat(e, j) != 0 {
			return ErrSeatTaken
		}
		idx[i] = j
	}

	e.reservationID++
	for _, j := range idx {
		m.wait()
		e.seats[j] = e.reservationID
	}
	return nil
}

func (m *Memory) Show(eventID uint) (string, error) {
	e, err := m.lookup(eventID)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var b strings.Builder
	for x := uint(0); x < e.rows; x++ {
		for y := uint(0); y < e.cols; y++ {
			if y > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatUint(uint64(m.seat(e, int(x*e.cols+y))), 10))
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func (m *Memory) List() (string, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return "", ErrClosed
	}
	ids := make([]uint, 0, len(m.events))
	for id := range m.events {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	if len(ids) == 0 {
		return "No events\n", nil
	}
	slices.Sort(ids)

	var b strings.Builder
	for _, id := range ids {
		b.WriteString("Event: ")
		b.WriteString(strconv.FormatUint(uint64(id), 10))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// Close drops every event. Later calls fail with ErrClosed.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.events = make(map[uint]*event)
}

func (m *Memory) lookup(eventID uint) (*event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	e, ok := m.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e, nil
}

// seat reads one seat. Callers hold e.mu.
func (m *Memory) seat(e *event, j int) uint {
	m.wait()
	return e.seats[j]
}

func (m *Memory) wait() {
	if m.delay > 0 {
		m.clock.Sleep(m.delay)
	}
}
