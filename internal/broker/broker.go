// Package broker runs registered data sources tier by tier under a shared
// deadline and merges what arrives in time into one snapshot.
package broker

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/freshness"
	"github.com/bnema/healthline/internal/ports"
	"github.com/bnema/healthline/internal/registry"
)

const DefaultBudget = 2 * time.Second

var tiers = []registry.Tier{registry.TierInstant, registry.TierLocal, registry.TierRemote}

type Options struct {
	Registry  *registry.Registry
	Freshness *freshness.Model
	Clock     ports.Clock
	// Budget bounds a cycle whose context has no deadline.
	Budget time.Duration
}

type Broker struct {
	registry *registry.Registry
	fresh    *freshness.Model
	clock    ports.Clock
	budget   time.Duration

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

type Result struct {
	CycleID  string
	Snapshot *domain.Snapshot
	Outcomes map[string]ports.SourceOutcome
}

func New(opts Options) *Broker {
	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.New()
	}
	fresh := opts.Freshness
	if fresh == nil {
		fresh = freshness.New(freshness.DefaultConfig(), clock)
	}
	budget := opts.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	return &Broker{
		registry: reg,
		fresh:    fresh,
		clock:    clock,
		budget:   budget,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

func (b *Broker) SourceCount() int {
	return b.registry.Size()
}

func (b *Broker) SourcesByTier() map[registry.Tier]int {
	out := make(map[registry.Tier]int, len(tiers))
	for _, tier := range tiers {
		out[tier] = len(b.registry.ByTier(tier))
	}
	return out
}

// Gather never fails: sources that error, time out or cool down leave their
// section as it was in gc.Existing.
func (b *Broker) Gather(ctx context.Context, gc domain.GatherContext) Result {
	started := time.Now()
	now := b.clock.Now()

	if gc.Deadline.IsZero() {
		gc.Deadline = started.Add(b.budget)
	}
	if d, ok := ctx.Deadline(); ok && d.Before(gc.Deadline) {
		gc.Deadline = d
	}

	result := Result{
		CycleID:  b.newCycleID(now),
		Snapshot: b.seed(gc, now),
		Outcomes: map[string]ports.SourceOutcome{},
	}
	logger := slog.With("cycle", result.CycleID, "session", gc.SessionID)

	for _, tier := range tiers {
		sources := b.registry.ByTier(tier)
		if len(sources) == 0 {
			continue
		}
		if ctx.Err() != nil || !time.Now().Before(gc.Deadline) {
			for _, d := range sources {
				result.Outcomes[d.ID] = ports.SourceSkipped
			}
			logger.Debug("broker: deadline reached before tier", "tier", int(tier))
			continue
		}

		tierGC := gc
		tierGC.Upstream = result.Snapshot.Clone()
		b.runTier(ctx, tierGC, sources, result, logger)
	}

	b.derive(result.Snapshot, gc, result.Outcomes, b.clock.Now())
	elapsed := time.Since(started)
	result.Snapshot.GatherDurationMs = elapsed.Milliseconds()

	logger.Debug("broker: gather finished", "duration", elapsed, "sources", len(result.Outcomes))

	return result
}

// seed starts the cycle from a copy of the previous snapshot so skipped
// sources keep their last known values.
func (b *Broker) seed(gc domain.GatherContext, now time.Time) *domain.Snapshot {
	snap := gc.Existing.Clone()
	if snap == nil {
		snap = &domain.Snapshot{}
	}

	firstSeen := snap.Identity.FirstSeen
	if firstSeen.IsZero() || snap.Identity.SessionID != gc.SessionID {
		firstSeen = now
	}

	snap.Identity = domain.Identity{
		SessionID:   gc.SessionID,
		ProjectPath: gc.ProjectPath,
		ConfigDir:   gc.ConfigDir,
		KeychainKey: gc.KeychainKey,
		FirstSeen:   firstSeen,
	}
	snap.Health = domain.Health{}
	snap.Alerts = domain.Alerts{}

	return snap
}

type fetchResult struct {
	desc registry.Descriptor
	data any
	err  error
}

func (b *Broker) runTier(ctx context.Context, gc domain.GatherContext, sources []registry.Descriptor, result Result, logger *slog.Logger) {
	tierCtx, cancel := context.WithDeadline(ctx, gc.Deadline)
	defer cancel()

	runnable := make([]registry.Descriptor, 0, len(sources))
	for _, d := range sources {
		if reason := b.skipReason(d, result.Outcomes); reason != "" {
			result.Outcomes[d.ID] = ports.SourceSkipped
			logger.Debug("broker: source skipped", "source", d.ID, "reason", reason)
			continue
		}
		runnable = append(runnable, d)
	}
	if len(runnable) == 0 {
		return
	}

	// Buffered so abandoned fetches never block on send.
	results := make(chan fetchResult, len(runnable))
	for _, d := range runnable {
		timeout := min(d.Timeout, time.Until(gc.Deadline))
		go func(d registry.Descriptor) {
			results <- fetchWithTimeout(tierCtx, d, gc, timeout)
		}(d)
	}

	pending := make(map[string]registry.Descriptor, len(runnable))
	for _, d := range runnable {
		pending[d.ID] = d
	}

	for len(pending) > 0 {
		select {
		case r := <-results:
			delete(pending, r.desc.ID)
			b.apply(r, result, logger)
		case <-tierCtx.Done():
			for id, d := range pending {
				result.Outcomes[id] = ports.SourceTimedOut
				b.fresh.RecordFetch(d.Category, false)
				logger.Debug("broker: source abandoned at deadline", "source", id)
			}
			return
		}
	}
}

func (b *Broker) skipReason(d registry.Descriptor, outcomes map[string]ports.SourceOutcome) string {
	if !b.fresh.ShouldRefetch(d.Category) {
		return "cooldown"
	}
	for _, dep := range d.DependsOn {
		switch outcomes[dep] {
		case ports.SourceFailed, ports.SourceTimedOut:
			return "dependency " + dep + " unavailable"
		}
	}
	return ""
}

func (b *Broker) apply(r fetchResult, result Result, logger *slog.Logger) {
	if r.err != nil {
		outcome := ports.SourceFailed
		if errors.Is(r.err, context.DeadlineExceeded) || errors.Is(r.err, context.Canceled) {
			outcome = ports.SourceTimedOut
		}
		result.Outcomes[r.desc.ID] = outcome
		b.fresh.RecordFetch(r.desc.Category, false)
		logger.Debug("broker: source failed", "source", r.desc.ID, "outcome", outcome, "error", r.err)
		return
	}

	r.desc.Merge(result.Snapshot, r.data)
	result.Outcomes[r.desc.ID] = ports.SourceOK
	b.fresh.RecordFetch(r.desc.Category, true)
}

// fetchWithTimeout returns by the source's timeout even when the source
// ignores its context. A late result is dropped.
func fetchWithTimeout(ctx context.Context, d registry.Descriptor, gc domain.GatherContext, timeout time.Duration) fetchResult {
	if timeout <= 0 {
		return fetchResult{desc: d, err: context.DeadlineExceeded}
	}

	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fetchResult{desc: d, err: fmt.Errorf("source %s panicked: %v", d.ID, p)}
			}
		}()
		data, err := d.Fetch(sctx, gc)
		done <- fetchResult{desc: d, data: data, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil && sctx.Err() != nil {
			r.err = sctx.Err()
		}
		return r
	case <-sctx.Done():
		return fetchResult{desc: d, err: sctx.Err()}
	}
}

func (b *Broker) newCycleID(now time.Time) string {
	b.entropyMu.Lock()
	defer b.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(now), b.entropy).String()
}
