// Package lock guarantees a single fitmsgd per profile, so one conversation
// store owns each account's state.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file created inside the profile directory.
const FileName = "fitmsgd.lock"

// HeldError is returned when another daemon holds the profile lock.
type HeldError struct {
	Owner Owner
	Path  string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("profile locked by fitmsgd pid %d since %s (%s)",
		e.Owner.PID, e.Owner.Since.Format(time.RFC3339), e.Path)
}

// Owner describes the process holding a lock.
type Owner struct {
	PID   int
	Since time.Time
}

// Lock is an acquired profile lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive, non-blocking flock on the profile directory's
// lock file and records the owner in it.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	path := filepath.Join(dir, FileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			owner, _ := readOwner(path)
			return nil, &HeldError{Owner: owner, Path: path}
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	if err := writeOwner(f, Owner{PID: os.Getpid(), Since: time.Now().UTC()}); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Lock{file: f, path: path}, nil
}

// Probe reports the current owner of dir's lock without taking it. ok is
// false when no live process holds the lock.
func Probe(dir string) (owner Owner, ok bool, err error) {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if os.IsNotExist(err) {
		return Owner{}, false, nil
	}
	if err != nil {
		return Owner{}, false, err
	}
	defer func() { _ = f.Close() }()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB); err == nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		return Owner{}, false, nil
	}
	owner, err = readOwner(path)
	return owner, true, err
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release releases the lock. Safe to call on nil receiver and more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func writeOwner(f *os.File, o Owner) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := fmt.Fprintf(f, "pid=%d\nsince=%s\n", o.PID, o.Since.Format(time.RFC3339))
	return err
}

func readOwner(path string) (Owner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Owner{}, err
	}
	var o Owner
	for _, line := range strings.Split(string(data), "\n") {
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			o.PID, _ = strconv.Atoi(val)
		case "since":
			o.Since, _ = time.Parse(time.RFC3339, val)
		}
	}
	return o, nil
}
