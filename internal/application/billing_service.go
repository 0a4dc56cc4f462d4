package application

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bnema/healthline/internal/billing"
	"github.com/bnema/healthline/internal/coord"
	"github.com/bnema/healthline/internal/freshness"
	"github.com/bnema/healthline/internal/ports"
)

// BillingService prices today's local transcripts into the billing cache.
type BillingService struct {
	ledger       ports.CostLedger
	cache        *billing.CacheStore
	budget       billing.Budget
	slots        ports.SessionRegistryRepository
	coord        *coord.Coordinator
	defaultRoots []string
	clock        ports.Clock
}

type BillingServiceDeps struct {
	Ledger      ports.CostLedger
	Cache       *billing.CacheStore
	Budget      billing.Budget
	Slots       ports.SessionRegistryRepository
	Coordinator *coord.Coordinator
	// DefaultRoots are assistant config dirs scanned in addition to the ones
	// the session registry names.
	DefaultRoots []string
	Clock        ports.Clock
}

func NewBillingService(deps BillingServiceDeps) *BillingService {
	clock := deps.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &BillingService{
		ledger:       deps.Ledger,
		cache:        deps.Cache,
		budget:       deps.Budget,
		slots:        deps.Slots,
		coord:        deps.Coordinator,
		defaultRoots: deps.DefaultRoots,
		clock:        clock,
	}
}

func (s *BillingService) Refresh(ctx context.Context, opts RefreshOptions) (billing.Summary, error) {
	release, err := acquireRefresh(s.coord, freshness.CategoryBillingLocal, opts)
	if err != nil {
		return billing.Summary{}, fmt.Errorf("acquire billing refresh: %w", err)
	}
	succeeded := false
	defer func() { release(succeeded) }()

	now := s.clock.Now()
	start, _ := s.budget.Window(now)

	cost, err := s.ledger.CostSince(ctx, s.roots(ctx), start)
	if err != nil {
		return billing.Summary{}, fmt.Errorf("price transcripts: %w", err)
	}

	s.cache.ClearCache()
	sum := billing.Record(s.cache.Read(), cost, s.budget, now)
	if err := s.cache.Write(sum); err != nil {
		return billing.Summary{}, fmt.Errorf("write billing cache: %w", err)
	}

	succeeded = true
	return sum, nil
}

// roots lists every config dir whose transcripts count toward today's spend.
func (s *BillingService) roots(ctx context.Context) []string {
	seen := map[string]bool{}
	var out []string
	add := func(dir string) {
		if dir == "" {
			return
		}
		dir = filepath.Clean(dir)
		if seen[dir] {
			return
		}
		seen[dir] = true
		out = append(out, dir)
	}

	for _, dir := range s.defaultRoots {
		add(dir)
	}
	if s.slots != nil {
		registry, err := s.slots.Load(ctx)
		if err != nil {
			slog.Debug("billing: session registry unavailable", "error", err)
		}
		for _, slot := range registry.Slots {
			add(slot.ConfigDir)
		}
	}

	return out
}
