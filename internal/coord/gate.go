package coord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bnema/healthline/internal/ports"
)

// RefreshGate starts at most one background refresher per category.
type RefreshGate struct {
	coord    *Coordinator
	category string
	spawner  ports.Spawner
	args     []string
}

func NewRefreshGate(c *Coordinator, category string, spawner ports.Spawner, args ...string) *RefreshGate {
	return &RefreshGate{coord: c, category: category, spawner: spawner, args: args}
}

// MaybeSpawn starts the refresher when the data is stale and nobody else is
// refreshing it. The gate holds the in-progress lock while spawning and then
// hands it to the child.
func (g *RefreshGate) MaybeSpawn(ctx context.Context, stale bool) (bool, error) {
	if !stale || g.spawner == nil {
		return false, nil
	}

	lock, err := g.coord.Lock(g.category)
	if err != nil {
		return false, err
	}

	claimed, err := lock.Claim()
	if err != nil || !claimed {
		return false, err
	}

	pid, err := g.spawner.Spawn(ctx, g.args...)
	if err != nil {
		if releaseErr := lock.Release(); releaseErr != nil {
			slog.Warn("coord: release refresh lock", "category", g.category, "error", releaseErr)
		}
		return false, fmt.Errorf("spawn refresher: %w", err)
	}

	if err := lock.Handoff(pid); err != nil {
		return true, err
	}

	slog.Debug("coord: spawned refresher", "category", g.category, "pid", pid)
	return true, nil
}
