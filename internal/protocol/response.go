package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

type Status int

const (
	StatusOK     Status = 0
	StatusFailed Status = 1
)

// Response is one reply frame. Payload is only written when HasPayload is set
// and the status is OK; failed show/list replies are a bare status line.
type Response struct {
	Status     Status
	Payload    string
	HasPayload bool
}

func StatusOf(err error) Response {
	if err != nil {
		return Response{Status: StatusFailed}
	}
	return Response{Status: StatusOK}
}

func PayloadOf(text string, err error) Response {
	if err != nil {
		return Response{Status: StatusFailed}
	}
	return Response{Status: StatusOK, Payload: text, HasPayload: true}
}

// Encode renders the frame. Payload lines are copied verbatim and each is
// newline terminated; an empty line closes a payload-carrying frame.
func (r Response) Encode() string {
	if !r.HasPayload || r.Status != StatusOK {
		return fmt.Sprintf("%d\n", r.Status)
	}
	if r.Payload == "" {
		return fmt.Sprintf("%d|\n", r.Status)
	}
	payload := r.Payload
	if !strings.HasSuffix(payload, "\n") {
		payload += "\n"
	}
	return fmt.Sprintf("%d|%s\n", r.Status, payload)
}

// ReadResponse reads exactly one frame from r.
func ReadResponse(r *bufio.Reader) (Response, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line == "" {
			return Response{}, io.EOF
		}
		return Response{}, fmt.Errorf("%w: %w", ErrFrame, err)
	}
	line = strings.TrimSuffix(line, "\n")

	code, rest, hasPayload := strings.Cut(line, "|")
	var resp Response
	switch code {
	case "0":
		resp.Status = StatusOK
	case "1":
		resp.Status = StatusFailed
	default:
		return Response{}, fmt.Errorf("%w: status %q", ErrFrame, code)
	}
	if !hasPayload {
		return resp, nil
	}
	resp.HasPayload = true
	if rest == "" {
		return resp, nil
	}

	var b strings.Builder
	b.WriteString(rest)
	b.WriteByte('\n')
	for {
		l, err := r.ReadString('\n')
		if err != nil {
			return Response{}, fmt.Errorf("%w: unterminated payload: %w", ErrFrame, err)
		}
		if l == "\n" {
			break
		}
		b.WriteString(l)
	}
	resp.Payload = b.String()
	return resp, nil
}
