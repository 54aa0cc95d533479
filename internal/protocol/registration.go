package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Registration is the message a client writes on the shared registration pipe.
type Registration struct {
	RequestPath  string
	ResponsePath string
}

func ParseRegistration(line string) (Registration, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Registration{}, fmt.Errorf("%w: want 2 paths, got %d", ErrRegistration, len(fields))
	}
	return Registration{RequestPath: fields[0], ResponsePath: fields[1]}, nil
}

func (r Registration) Encode() string {
	return r.RequestPath + " " + r.ResponsePath + "\n"
}

func EncodeSessionID(id uint64) string {
	return strconv.FormatUint(id, 10) + "\n"
}

func ParseSessionID(line string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: session id %q", ErrRegistration, strings.TrimSpace(line))
	}
	return id, nil
}
