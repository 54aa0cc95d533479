// Package pipe wraps the named-pipe operations the server and clients share.
//
// Opening a pipe is a rendezvous: OpenRead blocks until a writer opens the
// same path and OpenWrite blocks until a reader does.
package pipe

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const Mode = 0o640

// Create replaces whatever is at path with a fresh FIFO.
func Create(path string) error {
	if err := Remove(path); err != nil {
		return err
	}
	if err := unix.Mkfifo(path, Mode); err != nil {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

// Remove unlinks path. A missing path is not an error.
func Remove(path string) error {
	if err := unix.Unlink(path); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("unlink %s: %w", path, err)
	}
	return nil
}

func OpenRead(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s for reading: %w", path, err)
	}
	return f, nil
}

func OpenWrite(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s for writing: %w", path, err)
	}
	return f, nil
}

// Wake opens path for writing without blocking and closes it straight away.
// A reader parked in OpenRead on the same path returns and then sees an
// immediate end of stream. It reports false when nobody was reading.
func Wake(path string) (bool, error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			return false, nil
		}
		return false, fmt.Errorf("wake %s: %w", path, err)
	}
	if err := unix.Close(fd); err != nil {
		return true, fmt.Errorf("wake %s: %w", path, err)
	}
	return true, nil
}

// WakeWriter opens path for reading without blocking and closes it straight
// away, releasing a writer parked in OpenWrite. That writer's first write
// then fails with a broken pipe unless a real reader has arrived.
func WakeWriter(path string) (bool, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return false, nil
		}
		return false, fmt.Errorf("wake writer %s: %w", path, err)
	}
	if err := unix.Close(fd); err != nil {
		return true, fmt.Errorf("wake writer %s: %w", path, err)
	}
	return true, nil
}

// IsFIFO reports whether path exists and is a named pipe.
func IsFIFO(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return st.Mode&unix.S_IFMT == unix.S_IFIFO
}
