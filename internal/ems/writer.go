package ems

import (
	"bufio"
	"io"

	"github.com/andy6609/ems-pipe-server/internal/protocol"
)

// responseWriter writes one frame per call and flushes it before returning,
// so a client never waits on a half-buffered reply.
type responseWriter struct {
	w *bufio.Writer
}

func newResponseWriter(out io.Writer) *responseWriter {
	return &responseWriter{w: bufio.NewWriter(out)}
}

func (rw *responseWriter) Write(resp protocol.Response) error {
	if _, err := rw.w.WriteString(resp.Encode()); err != nil {
		return err
	}
	return rw.w.Flush()
}
