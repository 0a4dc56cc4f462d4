package coord

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bnema/healthline/internal/atomicfile"
)

// PIDLock is an advisory lock file holding the owner's pid. A lock whose
// owner is no longer running is removed on the next inspection.
type PIDLock struct {
	path  string
	pid   int
	alive func(pid int) bool
}

func NewPIDLock(path string) *PIDLock {
	return &PIDLock{path: path, pid: os.Getpid(), alive: processAlive}
}

func (l *PIDLock) Path() string {
	return l.path
}

// Owner returns the live owner's pid. A lock naming a dead process is removed,
// unless another process rewrote it in the meantime.
func (l *PIDLock) Owner() (int, bool) {
	for attempt := 0; attempt < 3; attempt++ {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return 0, false
		}

		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err == nil && pid > 0 && l.alive(pid) {
			return pid, true
		}
		if l.removeIfUnchanged(data) {
			return 0, false
		}
	}

	return 0, false
}

// removeIfUnchanged deletes the lock file only while it still holds stale.
// It reports false when a new owner replaced the content.
func (l *PIDLock) removeIfUnchanged(stale []byte) bool {
	current, err := os.ReadFile(l.path)
	if err != nil {
		return true
	}
	if !bytes.Equal(current, stale) {
		return false
	}
	_ = os.Remove(l.path)
	return true
}

func (l *PIDLock) Held() bool {
	_, ok := l.Owner()
	return ok
}

func (l *PIDLock) HeldBySelf() bool {
	pid, ok := l.Owner()
	return ok && pid == l.pid
}

// Claim takes the lock for this process. It returns false whenever a live
// owner exists, this process included.
func (l *PIDLock) Claim() (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		err := atomicfile.WriteNew(l.path, []byte(strconv.Itoa(l.pid)), atomicfile.FileMode)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return false, fmt.Errorf("claim lock: %w", err)
		}

		if _, ok := l.Owner(); ok {
			return false, nil
		}
	}

	return false, nil
}

// Mark records this process as owner without checking the current one.
func (l *PIDLock) Mark() error {
	return l.Handoff(l.pid)
}

// Handoff rewrites the lock to name pid as the owner.
func (l *PIDLock) Handoff(pid int) error {
	if err := atomicfile.Write(l.path, []byte(strconv.Itoa(pid)), atomicfile.FileMode); err != nil {
		return fmt.Errorf("write lock: %w", err)
	}
	return nil
}

// Release removes the lock only when this process owns it.
func (l *PIDLock) Release() error {
	pid, ok := l.Owner()
	if !ok || pid != l.pid {
		return nil
	}
	return l.Remove()
}

func (l *PIDLock) Remove() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}
