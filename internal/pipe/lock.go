package pipe

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock is an advisory lock on the file next to a registration pipe. Every
// write-then-read exchange on that pipe, and every empty open used to wake
// its reader, happens while holding it.
type Lock struct {
	f *os.File
}

func LockPath(regPath string) string { return regPath + ".lock" }

// OpenLock opens (creating if needed) the lock file for regPath.
func OpenLock(regPath string) (*Lock, error) {
	f, err := os.OpenFile(LockPath(regPath), os.O_CREATE|os.O_RDWR|unix.O_CLOEXEC, Mode)
	if err != nil {
		return nil, fmt.Errorf("registration lock: %w", err)
	}
	return &Lock{f: f}, nil
}

// Lock blocks until the lock is held.
func (l *Lock) Lock() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("registration lock: %w", err)
	}
	return nil
}

// TryLock takes the lock if it is free and reports whether it did.
func (l *Lock) TryLock() (bool, error) {
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("registration lock: %w", err)
	}
	return true, nil
}

func (l *Lock) Unlock() error {
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}

// Close releases the lock, if held, along with the file.
func (l *Lock) Close() error {
	return l.f.Close()
}
