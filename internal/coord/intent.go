// Package coord lets foreground renders and background refresh daemons agree,
// through files only, on which data categories need refreshing and who is
// refreshing them.
package coord

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bnema/healthline/internal/ports"
)

const (
	intentSuffix     = ".intent"
	inProgressSuffix = ".inprogress"
)

var categoryPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

var ErrInvalidCategory = errors.New("invalid category name")

type Coordinator struct {
	dir   string
	clock ports.Clock
	alive func(pid int) bool
}

func NewCoordinator(dir string, clock ports.Clock) *Coordinator {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Coordinator{dir: dir, clock: clock, alive: processAlive}
}

func (c *Coordinator) Dir() string {
	return c.dir
}

func (c *Coordinator) flag(category string) (*Flag, error) {
	if !categoryPattern.MatchString(category) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	return NewFlag(filepath.Join(c.dir, category+intentSuffix), c.clock), nil
}

// Lock returns the in-progress lock for category.
func (c *Coordinator) Lock(category string) (*PIDLock, error) {
	if !categoryPattern.MatchString(category) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	lock := NewPIDLock(filepath.Join(c.dir, category+inProgressSuffix))
	lock.alive = c.alive
	return lock, nil
}

func (c *Coordinator) SignalRefreshIntent(category string) error {
	f, err := c.flag(category)
	if err != nil {
		return err
	}
	return f.Raise()
}

func (c *Coordinator) HasRefreshIntent(category string) bool {
	f, err := c.flag(category)
	if err != nil {
		return false
	}
	return f.IsRaised()
}

// IntentAge reports how long ago the intent was first signalled.
func (c *Coordinator) IntentAge(category string) (time.Duration, bool) {
	f, err := c.flag(category)
	if err != nil {
		return 0, false
	}
	return f.Age()
}

func (c *Coordinator) ClearRefreshIntent(category string) error {
	f, err := c.flag(category)
	if err != nil {
		return err
	}
	return f.Clear()
}

func (c *Coordinator) SignalRefreshInProgress(category string) error {
	lock, err := c.Lock(category)
	if err != nil {
		return err
	}
	return lock.Mark()
}

// IsRefreshInProgress is true only while the recorded pid is alive.
func (c *Coordinator) IsRefreshInProgress(category string) bool {
	lock, err := c.Lock(category)
	if err != nil {
		return false
	}
	return lock.Held()
}

func (c *Coordinator) ClearRefreshInProgress(category string) error {
	lock, err := c.Lock(category)
	if err != nil {
		return err
	}
	return lock.Remove()
}

// PendingIntents lists categories with a raised intent, sorted by name.
func (c *Coordinator) PendingIntents() []string {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}

	pending := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, intentSuffix) {
			continue
		}
		category := strings.TrimSuffix(name, intentSuffix)
		if c.HasRefreshIntent(category) {
			pending = append(pending, category)
		}
	}

	sort.Strings(pending)
	return pending
}

// CleanStale removes intents and in-progress markers older than maxAge, and
// in-progress markers whose process has exited. It returns the removed file
// names.
func (c *Coordinator) CleanStale(maxAge time.Duration) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read intents directory: %w", err)
	}

	var (
		removed []string
		errs    []error
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}

		switch {
		case strings.HasSuffix(name, intentSuffix):
			f := NewFlag(filepath.Join(c.dir, name), c.clock)
			age, ok := f.Age()
			if ok && age <= maxAge {
				continue
			}
			if err := f.Clear(); err != nil {
				errs = append(errs, err)
				continue
			}
			removed = append(removed, name)
		case strings.HasSuffix(name, inProgressSuffix):
			lock := NewPIDLock(filepath.Join(c.dir, name))
			lock.alive = c.alive
			info, statErr := os.Stat(lock.Path())
			if statErr != nil {
				continue
			}
			if c.clock.Now().Sub(info.ModTime()) > maxAge {
				if err := lock.Remove(); err != nil {
					errs = append(errs, err)
					continue
				}
				removed = append(removed, name)
				continue
			}
			if lock.Held() {
				continue
			}
			removed = append(removed, name)
		}
	}

	sort.Strings(removed)
	return removed, errors.Join(errs...)
}
