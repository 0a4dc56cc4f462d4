package application

import (
	"log/slog"

	"github.com/bnema/healthline/internal/coord"
	"github.com/bnema/healthline/internal/domain"
)

// RefreshOptions control how a refresher takes its category lock.
type RefreshOptions struct {
	// Background is set for children started by a refresh gate. The gate
	// already holds the lock on their behalf, so they take it over instead of
	// claiming it.
	Background bool
	// Progress, when set, is called once per finished item.
	Progress func(RefreshProgress)
}

// RefreshProgress reports one finished item of a refresh.
type RefreshProgress struct {
	Item  string
	Done  int
	Total int
	Err   string
}

// acquireRefresh takes the in-progress lock of category and returns the
// function that gives it back and clears the pending intent.
func acquireRefresh(c *coord.Coordinator, category string, opts RefreshOptions) (func(success bool), error) {
	lock, err := c.Lock(category)
	if err != nil {
		return nil, err
	}

	if opts.Background {
		if err := lock.Mark(); err != nil {
			return nil, err
		}
	} else {
		claimed, err := lock.Claim()
		if err != nil {
			return nil, err
		}
		if !claimed {
			return nil, domain.ErrLockHeld
		}
	}

	return func(success bool) {
		if success {
			if err := c.ClearRefreshIntent(category); err != nil {
				slog.Warn("refresh: clear intent", "category", category, "error", err)
			}
		}
		if err := lock.Release(); err != nil {
			slog.Warn("refresh: release lock", "category", category, "error", err)
		}
	}, nil
}
