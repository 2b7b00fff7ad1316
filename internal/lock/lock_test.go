package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	tmpDir := t.TempDir()

	l, err := Acquire(tmpDir)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, FileName))
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if !strings.HasPrefix(string(data), "pid=") {
		t.Errorf("lock file = %q, want pid line", data)
	}

	if err := l.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	if _, err := os.Stat(l.Path()); !os.IsNotExist(err) {
		t.Errorf("lock file still present after Release: %v", err)
	}
}

func TestDoubleAcquireReportsOwner(t *testing.T) {
	tmpDir := t.TempDir()

	l1, err := Acquire(tmpDir)
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	defer func() { _ = l1.Release() }()

	_, err = Acquire(tmpDir)
	var held *HeldError
	if !errors.As(err, &held) {
		t.Fatalf("expected HeldError, got %T: %v", err, err)
	}
	if held.Owner.PID != os.Getpid() {
		t.Errorf("owner pid = %d, want %d", held.Owner.PID, os.Getpid())
	}
	if held.Owner.Since.IsZero() {
		t.Error("owner since not recorded")
	}
}

func TestProbe(t *testing.T) {
	tmpDir := t.TempDir()

	if _, ok, err := Probe(tmpDir); ok || err != nil {
		t.Fatalf("Probe(empty) = %v, %v", ok, err)
	}

	l, err := Acquire(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	owner, ok, err := Probe(tmpDir)
	if err != nil || !ok {
		t.Fatalf("Probe(held) = %v, %v", ok, err)
	}
	if owner.PID != os.Getpid() {
		t.Errorf("owner pid = %d", owner.PID)
	}

	_ = l.Release()
	if _, ok, _ := Probe(tmpDir); ok {
		t.Error("Probe() after release reports held")
	}
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	l, err := Acquire(t.TempDir())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("first Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}
