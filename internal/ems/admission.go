package ems

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/andy6609/ems-pipe-server/internal/pipe"
	"github.com/andy6609/ems-pipe-server/internal/protocol"
	"github.com/andy6609/ems-pipe-server/internal/queue"
)

// admit owns the registration pipe. Any transport error here is fatal to the
// server: there is no session yet to pin the failure on.
func (s *Server) admit() error {
	for {
		if s.stopping.Load() {
			return nil
		}
		if err := s.inspector.RunPending(); err != nil {
			if errors.Is(err, ErrStopped) {
				return nil
			}
			s.logger.Warn("inspection failed", "error", err)
		}

		reg, ok, err := s.readRegistration()
		if err != nil {
			return err
		}
		if !ok || s.stopping.Load() {
			continue
		}

		// admit is the only producer, so ids enter the queue in issue order
		// even though NextID and Enqueue lock separately.
		id := s.queue.NextID()
		if err := s.replySessionID(id); err != nil {
			return err
		}
		RegistrationsTotal.Inc()
		s.logger.Info("session admitted", "session", id, "request", reg.RequestPath, "response", reg.ResponsePath)

		if err := s.queue.Enqueue(queue.Item{ID: id, Registration: reg}); err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}
		QueuedSessions.Set(float64(s.queue.Len()))
	}
}

// readRegistration waits for one writer on the registration pipe. ok is false
// when the writer closed without sending anything (a wakeup) or sent a line
// that is not a registration.
func (s *Server) readRegistration() (protocol.Registration, bool, error) {
	f, err := pipe.OpenRead(s.regPath)
	if err != nil {
		return protocol.Registration{}, false, fmt.Errorf("registration pipe: %w", err)
	}
	line, err := bufio.NewReader(f).ReadString('\n')
	f.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return protocol.Registration{}, false, fmt.Errorf("registration pipe: read: %w", err)
	}
	if line == "" {
		s.wokenUp()
		return protocol.Registration{}, false, nil
	}

	reg, err := protocol.ParseRegistration(line)
	if err != nil {
		s.logger.Warn("ignoring registration", "line", line, "error", err)
		return protocol.Registration{}, false, nil
	}
	return reg, true, nil
}

func (s *Server) replySessionID(id uint64) error {
	f, err := pipe.OpenWrite(s.regPath)
	if err != nil {
		return fmt.Errorf("registration pipe: %w", err)
	}
	if _, err := io.WriteString(f, protocol.EncodeSessionID(id)); err != nil {
		f.Close()
		return fmt.Errorf("registration pipe: write session id: %w", err)
	}
	return f.Close()
}
