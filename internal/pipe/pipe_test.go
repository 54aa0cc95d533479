package pipe

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func TestCreateReplacesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fifo")
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !IsFIFO(path) {
		t.Fatal("path is not a fifo after Create")
	}
	if err := Create(path); err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if err := Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if IsFIFO(path) {
		t.Fatal("fifo still present after Remove")
	}
	if err := Remove(path); err != nil {
		t.Fatalf("Remove of missing path: %v", err)
	}
}

func TestOpenRendezvous(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fifo")
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got := make(chan string, 1)
	go func() {
		r, err := OpenRead(path)
		if err != nil {
			got <- "error: " + err.Error()
			return
		}
		defer r.Close()
		b, _ := io.ReadAll(r)
		got <- string(b)
	}()

	w, err := OpenWrite(path)
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	_, _ = w.WriteString("hello\n")
	w.Close()

	select {
	case s := <-got:
		if s != "hello\n" {
			t.Fatalf("read %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reader")
	}
}

func TestWake(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fifo")
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if ok, err := Wake(path); err != nil || ok {
		t.Fatalf("Wake without reader = %v, %v; want false, nil", ok, err)
	}

	got := make(chan int, 1)
	go func() {
		r, err := OpenRead(path)
		if err != nil {
			got <- -1
			return
		}
		defer r.Close()
		b, _ := io.ReadAll(r)
		got <- len(b)
	}()

	deadline := time.After(2 * time.Second)
	for {
		ok, err := Wake(path)
		if err != nil {
			t.Fatalf("Wake: %v", err)
		}
		if ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("reader never parked in open")
		case <-time.After(5 * time.Millisecond):
		}
	}

	select {
	case n := <-got:
		if n != 0 {
			t.Fatalf("woken reader read %d bytes, want 0", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader not released by Wake")
	}
}

func TestWakeWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fifo")
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	opened := make(chan error, 1)
	go func() {
		w, err := OpenWrite(path)
		if err == nil {
			w.Close()
		}
		opened <- err
	}()

	deadline := time.After(2 * time.Second)
	for {
		if _, err := WakeWriter(path); err != nil {
			t.Fatalf("WakeWriter: %v", err)
		}
		select {
		case err := <-opened:
			if err != nil {
				t.Fatalf("OpenWrite: %v", err)
			}
			return
		case <-deadline:
			t.Fatal("writer not released by WakeWriter")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestLockExcludesOtherHolders(t *testing.T) {
	reg := filepath.Join(t.TempDir(), "register")

	a, err := OpenLock(reg)
	if err != nil {
		t.Fatalf("OpenLock: %v", err)
	}
	defer a.Close()
	b, err := OpenLock(reg)
	if err != nil {
		t.Fatalf("OpenLock: %v", err)
	}
	defer b.Close()

	if err := a.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if ok, err := b.TryLock(); err != nil || ok {
		t.Fatalf("TryLock while held = %v, %v; want false, nil", ok, err)
	}

	acquired := make(chan error, 1)
	go func() { acquired <- b.Lock() }()
	select {
	case <-acquired:
		t.Fatal("Lock returned while another holder had it")
	case <-time.After(50 * time.Millisecond):
	}

	if err := a.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("Lock: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Lock still blocked after Unlock")
	}
	if ok, _ := a.TryLock(); ok {
		t.Fatal("TryLock succeeded while the other holder had it")
	}
}
