package protocol

import (
	"strconv"
	"strings"
	"time"
)

// MaxReservationSize bounds the number of seats a single reserve line may carry.
const MaxReservationSize = 256

type Op int

const (
	OpInvalid Op = iota
	OpCreate
	OpReserve
	OpShow
	OpList
	OpWait
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpReserve:
		return "reserve"
	case OpShow:
		return "show"
	case OpList:
		return "list"
	case OpWait:
		return "wait"
	default:
		return "invalid"
	}
}

// Wire codes for each operation.
const (
	CodeCreate  = "3"
	CodeReserve = "4"
	CodeShow    = "5"
	CodeList    = "6"
	CodeWait    = "WAIT"
)

type Seat struct {
	X, Y uint
}

// Command is one decoded request line. Only the fields relevant to Op are set;
// Err explains why a line decoded to OpInvalid.
type Command struct {
	Op      Op
	EventID uint
	Rows    uint
	Cols    uint
	Seats   []Seat
	Seconds uint
	Err     error
}

func (c Command) WaitDuration() time.Duration {
	return time.Duration(c.Seconds) * time.Second
}

// ParseCommand decodes a single request line. It never fails: malformed lines
// come back as OpInvalid with Err set.
func ParseCommand(line string) Command {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, "|")

	switch fields[0] {
	case CodeCreate:
		if len(fields) != 4 {
			return invalid(ErrFieldCount)
		}
		nums, err := parseUints(fields[1:])
		if err != nil {
			return invalid(err)
		}
		return Command{Op: OpCreate, EventID: nums[0], Rows: nums[1], Cols: nums[2]}

	case CodeReserve:
		if len(fields) < 3 {
			return invalid(ErrFieldCount)
		}
		head, err := parseUints(fields[1:3])
		if err != nil {
			return invalid(err)
		}
		n := head[1]
		if n == 0 || n > MaxReservationSize {
			return invalid(ErrSeatCount)
		}
		coords := fields[3:]
		if uint(len(coords)) != 2*n {
			return invalid(ErrFieldCount)
		}
		nums, err := parseUints(coords)
		if err != nil {
			return invalid(err)
		}
		seats := make([]Seat, n)
		for i := range seats {
			seats[i] = Seat{X: nums[2*i], Y: nums[2*i+1]}
		}
		return Command{Op: OpReserve, EventID: head[0], Seats: seats}

	case CodeShow:
		if len(fields) != 2 {
			return invalid(ErrFieldCount)
		}
		nums, err := parseUints(fields[1:])
		if err != nil {
			return invalid(err)
		}
		return Command{Op: OpShow, EventID: nums[0]}

	case CodeList:
		if len(fields) != 1 {
			return invalid(ErrFieldCount)
		}
		return Command{Op: OpList}

	case CodeWait:
		if len(fields) != 2 {
			return invalid(ErrFieldCount)
		}
		nums, err := parseUints(fields[1:])
		if err != nil {
			return invalid(err)
		}
		return Command{Op: OpWait, Seconds: nums[0]}
	}

	return invalid(ErrUnknownCode)
}

// Encode renders the command as a request line, including the trailing newline.
// Invalid commands encode to the empty string.
func (c Command) Encode() string {
	var b strings.Builder
	switch c.Op {
	case OpCreate:
		b.WriteString(CodeCreate)
		writeUints(&b, c.EventID, c.Rows, c.Cols)
	case OpReserve:
		b.WriteString(CodeReserve)
		writeUints(&b, c.EventID, uint(len(c.Seats)))
		for _, s := range c.Seats {
			writeUints(&b, s.X, s.Y)
		}
	case OpShow:
		b.WriteString(CodeShow)
		writeUints(&b, c.EventID)
	case OpList:
		b.WriteString(CodeList)
	case OpWait:
		b.WriteString(CodeWait)
		writeUints(&b, c.Seconds)
	default:
		return ""
	}
	b.WriteByte('\n')
	return b.String()
}

func invalid(err error) Command {
	return Command{Op: OpInvalid, Err: err}
}

func parseUints(fields []string) ([]uint, error) {
	out := make([]uint, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, strconv.IntSize)
		if err != nil {
			return nil, ErrNumber
		}
		out[i] = uint(v)
	}
	return out, nil
}

func writeUints(b *strings.Builder, vals ...uint) {
	for _, v := range vals {
		b.WriteByte('|')
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	}
}
