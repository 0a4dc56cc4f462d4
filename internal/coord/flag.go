package coord

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/healthline/internal/atomicfile"
	"github.com/bnema/healthline/internal/ports"
)

// Flag is an idempotent flag file. Its content is the unix-ms time it was
// first raised.
type Flag struct {
	path  string
	clock ports.Clock
}

func NewFlag(path string, clock ports.Clock) *Flag {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Flag{path: path, clock: clock}
}

func (f *Flag) Path() string {
	return f.path
}

// Raise creates the flag. Raising a flag that is already up keeps the
// original timestamp.
func (f *Flag) Raise() error {
	if _, ok := f.stamp(); ok {
		return nil
	}

	data := []byte(strconv.FormatInt(f.clock.Now().UnixMilli(), 10))
	if err := atomicfile.Write(f.path, data, atomicfile.FileMode); err != nil {
		return fmt.Errorf("raise flag: %w", err)
	}
	return nil
}

// RaisedAt reports when the flag was raised. A flag file whose content cannot
// be parsed is still raised; its modification time stands in.
func (f *Flag) RaisedAt() (time.Time, bool) {
	if at, ok := f.stamp(); ok {
		return at, true
	}

	info, err := os.Stat(f.path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// stamp is the timestamp written by Raise.
func (f *Flag) stamp() (time.Time, bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return time.Time{}, false
	}

	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}

	return time.UnixMilli(ms), true
}

func (f *Flag) IsRaised() bool {
	_, ok := f.RaisedAt()
	return ok
}

func (f *Flag) Age() (time.Duration, bool) {
	raisedAt, ok := f.RaisedAt()
	if !ok {
		return 0, false
	}
	age := f.clock.Now().Sub(raisedAt)
	if age < 0 {
		age = 0
	}
	return age, true
}

func (f *Flag) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear flag: %w", err)
	}
	return nil
}
