package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andy6609/ems-pipe-server/internal/protocol"
)

// job is one line of a jobs file:
//
//	CREATE <event> <rows> <cols>
//	RESERVE <event> [(<x>,<y>) (<x>,<y>) ...]
//	SHOW <event>
//	LIST
//	WAIT <seconds>
//
// Blank lines and lines starting with # are skipped.
type job struct {
	line int
	cmd  protocol.Command
}

func parseJobs(r io.Reader) ([]job, error) {
	var jobs []job
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cmd, err := parseJob(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		jobs = append(jobs, job{line: n, cmd: cmd})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func parseJob(text string) (protocol.Command, error) {
	name, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToUpper(name) {
	case "CREATE":
		nums, err := uints(strings.Fields(rest), 3)
		if err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{Op: protocol.OpCreate, EventID: nums[0], Rows: nums[1], Cols: nums[2]}, nil

	case "RESERVE":
		idText, seatText, _ := strings.Cut(rest, " ")
		id, err := uints([]string{idText}, 1)
		if err != nil {
			return protocol.Command{}, err
		}
		seats, err := parseSeats(seatText)
		if err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{Op: protocol.OpReserve, EventID: id[0], Seats: seats}, nil

	case "SHOW":
		nums, err := uints(strings.Fields(rest), 1)
		if err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{Op: protocol.OpShow, EventID: nums[0]}, nil

	case "LIST":
		if rest != "" {
			return protocol.Command{}, fmt.Errorf("LIST takes no arguments")
		}
		return protocol.Command{Op: protocol.OpList}, nil

	case "WAIT":
		nums, err := uints(strings.Fields(rest), 1)
		if err != nil {
			return protocol.Command{}, err
		}
		return protocol.Command{Op: protocol.OpWait, Seconds: nums[0]}, nil
	}
	return protocol.Command{}, fmt.Errorf("unknown command %q", name)
}

// parseSeats reads "[(1,2) (3,4)]".
func parseSeats(text string) ([]protocol.Seat, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		return nil, fmt.Errorf("seats must be enclosed in brackets: %q", text)
	}
	var seats []protocol.Seat
	for _, pair := range strings.Fields(text[1 : len(text)-1]) {
		if !strings.HasPrefix(pair, "(") || !strings.HasSuffix(pair, ")") {
			return nil, fmt.Errorf("bad seat %q", pair)
		}
		x, y, ok := strings.Cut(pair[1:len(pair)-1], ",")
		if !ok {
			return nil, fmt.Errorf("bad seat %q", pair)
		}
		nums, err := uints([]string{x, y}, 2)
		if err != nil {
			return nil, err
		}
		seats = append(seats, protocol.Seat{X: nums[0], Y: nums[1]})
	}
	if len(seats) == 0 {
		return nil, fmt.Errorf("no seats given")
	}
	if len(seats) > protocol.MaxReservationSize {
		return nil, fmt.Errorf("%d seats exceeds the limit of %d", len(seats), protocol.MaxReservationSize)
	}
	return seats, nil
}

func uints(fields []string, want int) ([]uint, error) {
	if len(fields) != want {
		return nil, fmt.Errorf("expected %d numbers, got %d", want, len(fields))
	}
	out := make([]uint, want)
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, strconv.IntSize)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", f)
		}
		out[i] = uint(v)
	}
	return out, nil
}
