package ems

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/andy6609/ems-pipe-server/internal/pipe"
	"github.com/andy6609/ems-pipe-server/internal/queue"
	"github.com/andy6609/ems-pipe-server/internal/venue"
)

const (
	// wakeInterval paces retries when nudging goroutines parked in a pipe open.
	wakeInterval = 20 * time.Millisecond
	// wakeTimeout bounds how long a wake holds the registration lock waiting
	// for the admission loop to drop the woken reader.
	wakeTimeout = time.Second
)

type Options struct {
	// RegistrationPath must already exist as a named pipe.
	RegistrationPath string
	// Workers is both the number of concurrently served sessions and the
	// capacity of the admission queue.
	Workers int
	Store   venue.Store
	Clock   clock.Clock
	Logger  *slog.Logger
	// InspectOutput receives active-session dumps. Defaults to stdout.
	InspectOutput io.Writer
}

type Server struct {
	regPath   string
	workers   int
	logger    *slog.Logger
	queue     *queue.Session
	registry  *Registry
	inspector *Inspector
	handler   *sessionHandler

	// wakeMu serializes wakes within the process; regLock excludes clients.
	wakeMu  sync.Mutex
	regLock *pipe.Lock

	started  atomic.Bool
	stopping atomic.Bool
	stopOnce sync.Once

	wake          chan struct{}
	woken         chan struct{}
	stopCh        chan struct{}
	admissionDone chan struct{}
	done          chan struct{}
	wg            sync.WaitGroup
	err           error
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("instance", uuid.NewString())
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Store == nil {
		opts.Store = venue.NewMemory(0, opts.Clock)
	}
	if opts.InspectOutput == nil {
		opts.InspectOutput = os.Stdout
	}

	registry := NewRegistry()
	return &Server{
		regPath:   opts.RegistrationPath,
		workers:   opts.Workers,
		logger:    logger,
		queue:     queue.NewSession(opts.Workers),
		registry:  registry,
		inspector: NewInspector(registry, opts.Store, opts.InspectOutput, logger),
		handler: &sessionHandler{
			store:    opts.Store,
			registry: registry,
			clock:    opts.Clock,
			logger:   logger,
		},
		wake:          make(chan struct{}, 1),
		woken:         make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		admissionDone: make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if !pipe.IsFIFO(s.regPath) {
		s.started.Store(false)
		return fmt.Errorf("%s is not a named pipe", s.regPath)
	}
	lock, err := pipe.OpenLock(s.regPath)
	if err != nil {
		s.started.Store(false)
		return err
	}
	s.regLock = lock

	for i := 0; i < s.workers; i++ {
		w := &worker{
			queue:    s.queue,
			registry: s.registry,
			handler:  s.handler,
			logger:   s.logger.With("worker", i),
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			w.run()
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.admissionDone)
		if err := s.admit(); err != nil {
			s.err = err
			s.logger.Error("admission stopped", "error", err)
		}
	}()
	go s.wakeLoop()
	go func() {
		s.wg.Wait()
		close(s.done)
	}()

	s.logger.Info("server started", "registration", s.regPath, "workers", s.workers)
	return nil
}

// Done is closed when the admission loop exits, either because of Stop or a
// fatal error on the registration pipe.
func (s *Server) Done() <-chan struct{} { return s.admissionDone }

// Err reports why the admission loop exited. Valid after Done is closed.
func (s *Server) Err() error {
	select {
	case <-s.admissionDone:
		return s.err
	default:
		return nil
	}
}

func (s *Server) Registry() *Registry { return s.registry }

// Inspect requests an active-session dump. Safe to call from a signal loop;
// the dump runs on the admission goroutine between registrations.
func (s *Server) Inspect() {
	s.inspector.Trigger()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop closes the queue, ends active sessions, and waits for every goroutine
// until ctx expires. Workers parked opening a session's pipes are nudged
// loose; a client that never answers its registration reply can still pin the
// admission goroutine, in which case ctx bounds the wait.
func (s *Server) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	s.stopOnce.Do(func() {
		s.logger.Info("shutting down")
		s.stopping.Store(true)
		s.queue.Close()
		s.registry.Close()
		close(s.stopCh)
	})

	ticker := time.NewTicker(wakeInterval)
	defer ticker.Stop()
	for {
		s.nudge()
		select {
		case <-s.done:
			s.closeLock()
			s.logger.Info("shutdown complete")
			return nil
		case <-ctx.Done():
			return fmt.Errorf("stop: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Server) nudge() {
	select {
	case <-s.admissionDone:
	default:
		if _, err := s.wakeAdmission(); err != nil {
			s.logger.Debug("wake registration pipe", "error", err)
		}
	}
	s.registry.WakePending()
}

// wakeAdmission releases the admission goroutine from its blocking open on
// the registration pipe with an empty open. It holds the registration lock
// from before the open until admission has closed the woken reader, so no
// client exchange can interleave with the empty stream. It reports false when
// a client holds the lock or nobody was reading; callers retry.
func (s *Server) wakeAdmission() (bool, error) {
	if !s.wakeMu.TryLock() {
		return false, nil
	}
	defer s.wakeMu.Unlock()
	if s.regLock == nil {
		return false, nil
	}

	ok, err := s.regLock.TryLock()
	if err != nil || !ok {
		return false, err
	}
	defer s.regLock.Unlock()

	select {
	case <-s.woken:
	default:
	}
	woke, err := pipe.Wake(s.regPath)
	if err != nil || !woke {
		return false, err
	}

	timeout := time.NewTimer(wakeTimeout)
	defer timeout.Stop()
	select {
	case <-s.woken:
	case <-s.admissionDone:
	case <-timeout.C:
		s.logger.Warn("registration reader did not return after wake")
	}
	return true, nil
}

func (s *Server) closeLock() {
	s.wakeMu.Lock()
	defer s.wakeMu.Unlock()
	if s.regLock != nil {
		s.regLock.Close()
		s.regLock = nil
	}
}

// wokenUp tells a pending wakeAdmission that the woken reader is closed.
func (s *Server) wokenUp() {
	select {
	case s.woken <- struct{}{}:
	default:
	}
}

// wakeLoop releases the admission goroutine from its blocking open whenever an
// inspection is pending, so the dump does not wait for the next client.
func (s *Server) wakeLoop() {
	ticker := time.NewTicker(wakeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.wake:
		case <-s.stopCh:
			return
		case <-s.admissionDone:
			return
		}
		for s.inspector.Pending() {
			if _, err := s.wakeAdmission(); err != nil {
				s.logger.Warn("wake registration pipe", "error", err)
			}
			select {
			case <-ticker.C:
			case <-s.stopCh:
				return
			case <-s.admissionDone:
				return
			}
		}
	}
}
