package ems

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/andy6609/ems-pipe-server/internal/protocol"
	"github.com/andy6609/ems-pipe-server/internal/venue"
)

// sessionHandler runs the command loop of one session against the venue store.
type sessionHandler struct {
	store    venue.Store
	registry *Registry
	clock    clock.Clock
	logger   *slog.Logger
}

// Serve reads request lines from in until the client closes its end and
// writes one response per command to out. A nil return means the client hung
// up cleanly; any error is local to this session.
func (h *sessionHandler) Serve(s *Session, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	writer := newResponseWriter(out)

	for {
		line, err := readLine(reader)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		cmd := protocol.ParseCommand(line)
		resp, ok := h.dispatch(s, cmd)
		if !ok {
			continue
		}
		if err := writer.Write(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

// dispatch executes cmd. The second result is false for commands that produce
// no response line.
func (h *sessionHandler) dispatch(s *Session, cmd protocol.Command) (protocol.Response, bool) {
	start := time.Now()
	var resp protocol.Response

	switch cmd.Op {
	case protocol.OpCreate:
		err := h.store.Create(cmd.EventID, cmd.Rows, cmd.Cols)
		if err == nil {
			h.registry.RecordEvent(s.ID, cmd.EventID)
		}
		h.logFailure(s, cmd, err)
		resp = protocol.StatusOf(err)
	case protocol.OpReserve:
		err := h.store.Reserve(cmd.EventID, cmd.Seats)
		if err == nil {
			h.registry.RecordEvent(s.ID, cmd.EventID)
		}
		h.logFailure(s, cmd, err)
		resp = protocol.StatusOf(err)
	case protocol.OpShow:
		text, err := h.store.Show(cmd.EventID)
		h.logFailure(s, cmd, err)
		resp = protocol.PayloadOf(text, err)
	case protocol.OpList:
		text, err := h.store.List()
		h.logFailure(s, cmd, err)
		resp = protocol.PayloadOf(text, err)
	case protocol.OpWait:
		if d := cmd.WaitDuration(); d > 0 {
			h.logger.Debug("session waiting", "session", s.ID, "duration", d)
			h.clock.Sleep(d)
		}
		CommandDuration.WithLabelValues(cmd.Op.String()).Observe(time.Since(start).Seconds())
		return protocol.Response{}, false
	default:
		// No response for undecodable lines; the client sees nothing.
		h.logger.Warn("dropping invalid command", "session", s.ID, "reason", cmd.Err)
		InvalidCommandsTotal.Inc()
		return protocol.Response{}, false
	}

	CommandsTotal.WithLabelValues(cmd.Op.String(), strconv.Itoa(int(resp.Status))).Inc()
	CommandDuration.WithLabelValues(cmd.Op.String()).Observe(time.Since(start).Seconds())
	return resp, true
}

func (h *sessionHandler) logFailure(s *Session, cmd protocol.Command, err error) {
	if err != nil {
		h.logger.Info("command failed", "session", s.ID, "op", cmd.Op.String(), "event", cmd.EventID, "error", err)
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err == nil {
		return line, nil
	}
	if errors.Is(err, io.EOF) && line != "" {
		// last line without newline
		return line, nil
	}
	if errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	return "", fmt.Errorf("read: %w", err)
}
