// ems-server serves event management sessions over named pipes.
//
//	ems-server [flags] <registration-pipe> [access-delay-us]
//
// SIGUSR1 writes the state of every event touched by an active session to
// stdout. SIGINT and SIGTERM stop the server. Logs go to stderr as JSON.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/andy6609/ems-pipe-server/internal/config"
	"github.com/andy6609/ems-pipe-server/internal/ems"
	"github.com/andy6609/ems-pipe-server/internal/pipe"
	"github.com/andy6609/ems-pipe-server/internal/venue"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("ems-server", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to YAML config file")
	workers := flagSet.Int("workers", config.DefaultWorkers, "number of sessions served at once")
	metricsAddr := flagSet.String("metrics-addr", "", "serve Prometheus metrics on this address")
	logLevel := flagSet.String("log-level", "info", "log level (debug, info, warn, error)")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ems-server [flags] <registration-pipe> [access-delay-us]\n\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyArgs(cfg, flagSet.Args()); err != nil {
		flagSet.Usage()
		return err
	}
	if flagSet.Changed("workers") {
		cfg.Server.Workers = *workers
	}
	if flagSet.Changed("metrics-addr") {
		cfg.Server.MetricsAddr = *metricsAddr
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	regPath := cfg.Server.RegistrationPath
	if err := pipe.Create(regPath); err != nil {
		return err
	}
	defer pipe.Remove(regPath)
	defer pipe.Remove(pipe.LockPath(regPath))

	store := venue.NewMemory(cfg.Venue.AccessDelay, clock.New())
	defer store.Close()

	if cfg.Server.MetricsAddr != "" {
		metrics := startMetrics(cfg.Server.MetricsAddr, logger)
		defer metrics.Close()
	}

	srv := ems.NewServer(ems.Options{
		RegistrationPath: regPath,
		Workers:          cfg.Server.Workers,
		Store:            store,
		Logger:           logger,
	})
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, unix.SIGUSR1)
	defer signal.Stop(sigCh)

	for {
		select {
		case sig := <-sigCh:
			if sig == unix.SIGUSR1 {
				srv.Inspect()
				continue
			}
			logger.Info("received signal", "signal", sig.String())
			return stop(srv)
		case <-srv.Done():
			return errors.Join(srv.Err(), stop(srv))
		}
	}
}

// applyArgs takes the registration pipe and the optional per-access delay in
// microseconds from the positional arguments.
func applyArgs(cfg *config.Config, args []string) error {
	if len(args) > 2 {
		return fmt.Errorf("expected at most 2 arguments, got %d", len(args))
	}
	if len(args) >= 1 {
		cfg.Server.RegistrationPath = args[0]
	}
	if len(args) == 2 {
		us, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid delay %q: %w", args[1], err)
		}
		cfg.Venue.AccessDelay = time.Duration(us) * time.Microsecond
	}
	return nil
}

func stop(srv *ems.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(ctx)
}

func startMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return server
}
