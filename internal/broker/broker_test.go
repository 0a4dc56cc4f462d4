package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/freshness"
	"github.com/bnema/healthline/internal/ports"
	"github.com/bnema/healthline/internal/registry"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

var testNow = time.Date(2026, 8, 3, 9, 30, 0, 0, time.UTC)

func newBroker(t *testing.T, sources ...registry.Descriptor) (*Broker, *freshness.Model) {
	t.Helper()

	reg := registry.New()
	for _, d := range sources {
		require.NoError(t, reg.Register(d))
	}
	fresh := freshness.New(freshness.DefaultConfig(), fixedClock{now: testNow})
	return New(Options{Registry: reg, Freshness: fresh, Clock: fixedClock{now: testNow}}), fresh
}

func branchSource(id string, tier registry.Tier, timeout time.Duration, fetch func(ctx context.Context) (string, error)) registry.Descriptor {
	return registry.NewDescriptor(
		registry.Meta{ID: id, Tier: tier, Category: freshness.CategoryGitStatus, Timeout: timeout},
		registry.GitSection,
		func(ctx context.Context, _ domain.GatherContext) (string, error) { return fetch(ctx) },
		func(dst *domain.Git, branch string) {
			dst.IsRepo = true
			dst.Branch = branch
			dst.LastChecked = testNow
		},
	)
}

func modelSource(name string) registry.Descriptor {
	return registry.NewDescriptor(
		registry.Meta{ID: "model", Tier: registry.TierInstant, Category: freshness.CategoryDefault, Timeout: time.Second},
		registry.ModelSection,
		func(context.Context, domain.GatherContext) (string, error) { return name, nil },
		func(dst *domain.Model, n string) { dst.DisplayName = n },
	)
}

func gatherCtx(existing *domain.Snapshot) domain.GatherContext {
	return domain.GatherContext{
		SessionID: "sess-1",
		Existing:  existing,
		Deadline:  time.Now().Add(2 * time.Second),
	}
}

func TestGatherMergesAllTiers(t *testing.T) {
	t.Parallel()

	b, _ := newBroker(t,
		modelSource("Opus"),
		branchSource("git", registry.TierLocal, time.Second, func(context.Context) (string, error) { return "main", nil }),
	)

	res := b.Gather(context.Background(), gatherCtx(nil))

	assert.NotEmpty(t, res.CycleID)
	assert.Equal(t, "Opus", res.Snapshot.Model.DisplayName)
	assert.Equal(t, "main", res.Snapshot.Git.Branch)
	assert.Equal(t, "sess-1", res.Snapshot.Identity.SessionID)
	assert.Equal(t, testNow, res.Snapshot.Identity.FirstSeen)
	assert.Equal(t, ports.SourceOK, res.Outcomes["model"])
	assert.Equal(t, ports.SourceOK, res.Outcomes["git"])
	assert.Equal(t, domain.HealthHealthy, res.Snapshot.Health.Status)
}

func TestGatherCarriesForwardFirstSeen(t *testing.T) {
	t.Parallel()

	b, _ := newBroker(t, modelSource("Opus"))
	firstSeen := testNow.Add(-time.Hour)
	existing := &domain.Snapshot{Identity: domain.Identity{SessionID: "sess-1", FirstSeen: firstSeen}}

	res := b.Gather(context.Background(), gatherCtx(existing))

	assert.Equal(t, firstSeen, res.Snapshot.Identity.FirstSeen)
	assert.Equal(t, time.Hour, res.Snapshot.Identity.SessionDuration)
}

func TestSlowSourceIsAbandonedAndPriorValueKept(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	b, _ := newBroker(t,
		modelSource("Opus"),
		branchSource("git", registry.TierLocal, 50*time.Millisecond, func(context.Context) (string, error) {
			<-release
			return "late", nil
		}),
	)
	existing := &domain.Snapshot{Git: domain.Git{IsRepo: true, Branch: "prior"}}

	start := time.Now()
	res := b.Gather(context.Background(), gatherCtx(existing))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, ports.SourceTimedOut, res.Outcomes["git"])
	assert.Equal(t, "prior", res.Snapshot.Git.Branch)
	assert.Equal(t, "Opus", res.Snapshot.Model.DisplayName)
	assert.Contains(t, res.Snapshot.Health.Issues, "git unavailable")
}

func TestFailedSourceKeepsPriorValueAndCoolsDown(t *testing.T) {
	t.Parallel()

	calls := 0
	var mu sync.Mutex
	b, fresh := newBroker(t, branchSource("git", registry.TierLocal, time.Second, func(context.Context) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "", errors.New("not a repository")
	}))
	existing := &domain.Snapshot{Git: domain.Git{IsRepo: true, Branch: "prior"}}

	res := b.Gather(context.Background(), gatherCtx(existing))
	assert.Equal(t, ports.SourceFailed, res.Outcomes["git"])
	assert.Equal(t, "prior", res.Snapshot.Git.Branch)
	assert.False(t, fresh.ShouldRefetch(freshness.CategoryGitStatus))

	res = b.Gather(context.Background(), gatherCtx(res.Snapshot))
	assert.Equal(t, ports.SourceSkipped, res.Outcomes["git"])
	assert.Equal(t, 1, calls)
}

func TestDependentSourceSkippedWhenDependencyFails(t *testing.T) {
	t.Parallel()

	failing := branchSource("git", registry.TierLocal, time.Second, func(context.Context) (string, error) {
		return "", errors.New("boom")
	})
	dependent := registry.NewDescriptor(
		registry.Meta{ID: "dirty", Tier: registry.TierRemote, Category: freshness.CategoryDefault, Timeout: time.Second, DependsOn: []string{"git"}},
		registry.ModelSection,
		func(context.Context, domain.GatherContext) (string, error) { return "ran", nil },
		func(dst *domain.Model, v string) { dst.ID = v },
	)

	b, _ := newBroker(t, failing, dependent)
	res := b.Gather(context.Background(), gatherCtx(nil))

	assert.Equal(t, ports.SourceSkipped, res.Outcomes["dirty"])
	assert.Empty(t, res.Snapshot.Model.ID)
}

func TestLaterTiersSeeUpstreamSnapshot(t *testing.T) {
	t.Parallel()

	upstream := registry.NewDescriptor(
		registry.Meta{ID: "echo", Tier: registry.TierRemote, Category: freshness.CategoryDefault, Timeout: time.Second, DependsOn: []string{"git"}},
		registry.ModelSection,
		func(_ context.Context, gc domain.GatherContext) (string, error) { return gc.Upstream.Git.Branch, nil },
		func(dst *domain.Model, v string) { dst.ID = v },
	)

	b, _ := newBroker(t,
		branchSource("git", registry.TierLocal, time.Second, func(context.Context) (string, error) { return "feature", nil }),
		upstream,
	)
	res := b.Gather(context.Background(), gatherCtx(nil))

	assert.Equal(t, "feature", res.Snapshot.Model.ID)
}

func TestExpiredDeadlineSkipsRemainingTiers(t *testing.T) {
	t.Parallel()

	b, _ := newBroker(t, modelSource("Opus"))
	gc := gatherCtx(nil)
	gc.Deadline = time.Now().Add(-time.Millisecond)

	res := b.Gather(context.Background(), gc)

	assert.Equal(t, ports.SourceSkipped, res.Outcomes["model"])
	assert.Empty(t, res.Snapshot.Model.DisplayName)
	assert.Equal(t, domain.HealthUnknown, res.Snapshot.Health.Status)
}

func TestPanickingSourceIsReportedAsFailed(t *testing.T) {
	t.Parallel()

	b, _ := newBroker(t, branchSource("git", registry.TierLocal, time.Second, func(context.Context) (string, error) {
		panic("kaboom")
	}))

	res := b.Gather(context.Background(), gatherCtx(nil))
	assert.Equal(t, ports.SourceFailed, res.Outcomes["git"])
}

func TestDerivedHealthAndAlerts(t *testing.T) {
	t.Parallel()

	contextSource := registry.NewDescriptor(
		registry.Meta{ID: "ctx", Tier: registry.TierInstant, Category: freshness.CategoryDefault, Timeout: time.Second},
		registry.ContextSection,
		func(context.Context, domain.GatherContext) (int, error) { return 96, nil },
		func(dst *domain.ContextWindow, pct int) {
			dst.PercentUsed = pct
			dst.NearCompaction = true
		},
	)
	transcriptSource := registry.NewDescriptor(
		registry.Meta{ID: "transcript", Tier: registry.TierLocal, Category: freshness.CategoryTranscript, Timeout: time.Second},
		registry.TranscriptSection,
		func(context.Context, domain.GatherContext) (time.Time, error) {
			return testNow.Add(-10 * time.Minute), nil
		},
		func(dst *domain.Transcript, mod time.Time) {
			dst.Exists = true
			dst.LastModified = mod
			dst.SecretsDetected = true
		},
	)

	b, _ := newBroker(t, contextSource, transcriptSource)
	existing := &domain.Snapshot{Billing: domain.Billing{LastFetched: testNow.Add(-20 * time.Minute)}}
	res := b.Gather(context.Background(), gatherCtx(existing))

	s := res.Snapshot
	assert.Equal(t, domain.HealthCritical, s.Health.Status)
	assert.True(t, s.Alerts.SecretsDetected)
	assert.True(t, s.Alerts.TranscriptStale)
	assert.True(t, s.Alerts.DataLossRisk)
	assert.False(t, s.Billing.IsFresh)
	assert.Equal(t, []string{
		"secrets detected in transcript",
		"transcript stale near compaction",
		"context 96% used",
		"billing data stale",
	}, s.Health.Issues)
}

func TestIdleTranscriptIssueDoesNotTrackClock(t *testing.T) {
	t.Parallel()

	idle := registry.NewDescriptor(
		registry.Meta{ID: "transcript", Tier: registry.TierLocal, Category: freshness.CategoryTranscript, Timeout: time.Second},
		registry.TranscriptSection,
		func(context.Context, domain.GatherContext) (time.Time, error) {
			return testNow.Add(-10 * time.Minute), nil
		},
		func(dst *domain.Transcript, mod time.Time) {
			dst.Exists = true
			dst.LastModified = mod
		},
	)

	var issues [][]string
	for _, now := range []time.Time{testNow, testNow.Add(7 * time.Minute)} {
		reg := registry.New()
		require.NoError(t, reg.Register(idle))
		clock := fixedClock{now: now}
		b := New(Options{Registry: reg, Freshness: freshness.New(freshness.DefaultConfig(), clock), Clock: clock})

		res := b.Gather(context.Background(), gatherCtx(nil))
		require.True(t, res.Snapshot.Alerts.TranscriptStale)
		issues = append(issues, res.Snapshot.Health.Issues)
	}

	assert.Equal(t, []string{"transcript idle"}, issues[0])
	assert.Equal(t, issues[0], issues[1])
}

func TestDiagnostics(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	require.NoError(t, reg.Register(modelSource("Opus")))
	require.NoError(t, reg.Register(branchSource("git", registry.TierLocal, time.Second, func(context.Context) (string, error) { return "main", nil })))
	b := New(Options{Registry: reg, Clock: fixedClock{now: testNow}})

	assert.Equal(t, 2, b.SourceCount())
	assert.Equal(t, map[registry.Tier]int{registry.TierInstant: 1, registry.TierLocal: 1, registry.TierRemote: 0}, b.SourcesByTier())

	result := b.Gather(context.Background(), gatherCtx(nil))
	assert.Equal(t, ports.SourceOK, result.Outcomes["git"])
}
