package ems

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/andy6609/ems-pipe-server/internal/pipe"
	"github.com/andy6609/ems-pipe-server/internal/queue"
)

// worker serves one session at a time for the lifetime of the server.
type worker struct {
	queue    *queue.Session
	registry *Registry
	handler  *sessionHandler
	logger   *slog.Logger
}

func (w *worker) run() {
	for {
		item, err := w.queue.Dequeue()
		if err != nil {
			return
		}
		QueuedSessions.Set(float64(w.queue.Len()))
		w.serve(newSession(item.ID, item.Registration))
	}
}

func (w *worker) serve(s *Session) {
	logger := w.logger.With("session", s.ID)

	if !w.registry.BeginHandshake(s) {
		return
	}
	// Same order as the client: request pipe first, then response pipe.
	req, err := pipe.OpenRead(s.RequestPath)
	if err != nil {
		w.registry.AbortHandshake(s.ID)
		w.fault(logger, "open_request", err)
		return
	}
	resp, err := pipe.OpenWrite(s.ResponsePath)
	if err != nil {
		req.Close()
		w.registry.AbortHandshake(s.ID)
		w.fault(logger, "open_response", err)
		return
	}

	conn := &sessionConn{req: req, resp: resp}
	if !w.registry.Activate(s, conn, w.handler.clock.Now()) {
		conn.Close()
		return
	}
	ActiveSessions.Inc()
	logger.Info("session active", "request", s.RequestPath, "response", s.ResponsePath)

	err = w.handler.Serve(s, req, resp)
	conn.Close()
	w.registry.Deactivate(s)
	ActiveSessions.Dec()

	switch {
	case err == nil:
		logger.Info("session closed")
	case errors.Is(err, os.ErrClosed):
		logger.Info("session closed by shutdown")
	default:
		w.fault(logger, "serve", err)
	}
}

func (w *worker) fault(logger *slog.Logger, stage string, err error) {
	SessionFaultsTotal.WithLabelValues(stage).Inc()
	logger.Warn("session abandoned", "stage", stage, "error", err)
}

// sessionConn closes both pipes of a session. It is safe to close twice.
type sessionConn struct {
	req  *os.File
	resp *os.File
}

var _ io.Closer = (*sessionConn)(nil)

func (c *sessionConn) Close() error {
	return errors.Join(ignoreClosed(c.req.Close()), ignoreClosed(c.resp.Close()))
}

func ignoreClosed(err error) error {
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
