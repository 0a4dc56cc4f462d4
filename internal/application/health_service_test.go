package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/healthline/internal/broker"
	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/freshness"
	"github.com/bnema/healthline/internal/ports"
	"github.com/bnema/healthline/internal/registry"
	"github.com/bnema/healthline/internal/state"
)

type branchFetcher struct {
	branch string
	err    error
}

func newHealthService(t *testing.T, fetcher *branchFetcher, metrics ports.MetricsRecorder) (*HealthService, *state.Store) {
	t.Helper()

	clock := fixedClock{now: testNow}
	reg := registry.New()
	require.NoError(t, reg.Register(registry.NewDescriptor(
		registry.Meta{ID: "git", Tier: registry.TierLocal, Category: freshness.CategoryGitStatus, Timeout: time.Second},
		registry.GitSection,
		func(context.Context, domain.GatherContext) (string, error) {
			return fetcher.branch, fetcher.err
		},
		func(dst *domain.Git, branch string) {
			dst.IsRepo = true
			dst.Branch = branch
			dst.LastChecked = testNow
		},
	)))

	// Zero cooldown so a failed fetch does not hide the next attempt.
	fcfg := freshness.DefaultConfig()
	git := fcfg.Categories[freshness.CategoryGitStatus]
	git.Cooldown = 0
	fcfg.Categories[freshness.CategoryGitStatus] = git

	b := broker.New(broker.Options{
		Registry:  reg,
		Freshness: freshness.New(fcfg, clock),
		Clock:     clock,
	})
	store := state.NewStore(t.TempDir())
	return NewHealthService(b, store, clock, metrics), store
}

func TestHealthServiceGatherPersistsOnlyChanges(t *testing.T) {
	t.Parallel()

	fetcher := &branchFetcher{branch: "main"}
	metrics := &recordingMetrics{}
	svc, store := newHealthService(t, fetcher, metrics)

	input := &domain.StructuredInput{
		SessionID: "sess-1",
		Model:     domain.InputModel{ID: "claude-opus-4-1"},
		Workspace: domain.InputWorkspace{CurrentDir: "/work/app/sub", ProjectDir: "/work/app"},
	}

	first, err := svc.Gather(context.Background(), GatherRequest{Input: input})
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.NotEmpty(t, first.CycleID)
	assert.Equal(t, ports.SourceOK, first.Outcomes["git"])
	assert.Equal(t, "main", first.Snapshot.Git.Branch)
	assert.Equal(t, "/work/app", first.Snapshot.Identity.ProjectPath)

	saved, ok, err := store.Load("sess-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), saved.Meta.Count)
	require.NotNil(t, saved.Git)
	assert.Equal(t, "main", saved.Git.Branch)

	second, err := svc.Gather(context.Background(), GatherRequest{Input: input})
	require.NoError(t, err)
	assert.False(t, second.Changed)

	saved, _, err = store.Load("sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Meta.Count)

	fetcher.branch = "feature"
	third, err := svc.Gather(context.Background(), GatherRequest{Input: input})
	require.NoError(t, err)
	assert.True(t, third.Changed)

	saved, _, err = store.Load("sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Meta.Count)
	assert.Equal(t, "feature", saved.Git.Branch)

	require.Len(t, metrics.calls, 3)
	assert.True(t, metrics.calls[0].Changed)
	assert.False(t, metrics.calls[1].Changed)
	assert.Equal(t, ports.SourceOK, metrics.calls[2].Outcomes["git"])
}

func TestHealthServiceGatherKeepsLastKnownSectionOnFailure(t *testing.T) {
	t.Parallel()

	fetcher := &branchFetcher{branch: "main"}
	svc, _ := newHealthService(t, fetcher, nil)
	req := GatherRequest{SessionID: "sess-2", WorkingDir: "/repo"}

	_, err := svc.Gather(context.Background(), req)
	require.NoError(t, err)

	fetcher.err = errors.New("git exploded")
	res, err := svc.Gather(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, ports.SourceFailed, res.Outcomes["git"])
	assert.Equal(t, "main", res.Snapshot.Git.Branch)
	assert.Equal(t, "/repo", res.Snapshot.Identity.ProjectPath)
}

func TestHealthServiceGatherRejectsMissingOrInvalidSession(t *testing.T) {
	t.Parallel()

	svc, _ := newHealthService(t, &branchFetcher{branch: "main"}, nil)

	_, err := svc.Gather(context.Background(), GatherRequest{})
	require.ErrorIs(t, err, ErrNoSession)

	_, err = svc.Gather(context.Background(), GatherRequest{SessionID: "../escape"})
	require.ErrorIs(t, err, state.ErrInvalidSessionID)
}

func TestHealthServiceSnapshot(t *testing.T) {
	t.Parallel()

	svc, store := newHealthService(t, &branchFetcher{branch: "main"}, nil)

	snap, err := svc.Snapshot(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, snap)

	d := state.Serialize(&domain.Snapshot{
		Identity: domain.Identity{SessionID: "sess-3", FirstSeen: testNow.Add(-90 * time.Minute)},
		Health:   domain.Health{Status: domain.HealthWarning, Issues: []string{"quota data stale"}},
	})
	d.Meta = state.Meta{Hash: state.Hash(d), Count: 4, UpdatedAt: testNow.UnixMilli()}
	require.NoError(t, store.Save(d))

	snap, err = svc.Snapshot(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "sess-3", snap.Identity.SessionID)
	assert.Equal(t, domain.HealthWarning, snap.Health.Status)
	assert.Equal(t, 90*time.Minute, snap.Identity.SessionDuration)

	missing, err := svc.Snapshot(context.Background(), "other")
	require.NoError(t, err)
	assert.Nil(t, missing)

	ids, err := svc.Sessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-3"}, ids)
}

func TestBuildGatherContextPrefersExplicitFields(t *testing.T) {
	t.Parallel()

	input := &domain.StructuredInput{
		SessionID:      "from-input",
		TranscriptPath: "/t/input.jsonl",
		Cwd:            "/cwd",
	}

	gc := buildGatherContext(GatherRequest{Input: input, TranscriptPath: "/t/flag.jsonl", ConfigDir: "/cfg"})
	assert.Equal(t, "from-input", gc.SessionID)
	assert.Equal(t, "/t/flag.jsonl", gc.TranscriptPath)
	assert.Equal(t, "/cwd", gc.WorkingDir)
	assert.Equal(t, "/cwd", gc.ProjectPath)
	assert.Equal(t, "/cfg", gc.ConfigDir)
	assert.Same(t, input, gc.Input)
}
