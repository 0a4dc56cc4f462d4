package coord

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func livePIDs(pids ...int) func(int) bool {
	return func(pid int) bool {
		for _, p := range pids {
			if p == pid {
				return true
			}
		}
		return false
	}
}

func TestFlagRaiseIsIdempotent(t *testing.T) {
	t.Parallel()

	clock := newClock()
	f := NewFlag(filepath.Join(t.TempDir(), "billing.intent"), clock)

	require.NoError(t, f.Raise())
	first, ok := f.RaisedAt()
	require.True(t, ok)

	clock.advance(time.Minute)
	require.NoError(t, f.Raise())
	second, ok := f.RaisedAt()
	require.True(t, ok)
	assert.Equal(t, first, second)

	age, ok := f.Age()
	require.True(t, ok)
	assert.Equal(t, time.Minute, age)

	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear())
	assert.False(t, f.IsRaised())
}

func TestFlagWithGarbageContentIsRaisedSinceModTime(t *testing.T) {
	t.Parallel()

	clock := newClock()
	path := filepath.Join(t.TempDir(), "x.intent")
	require.NoError(t, os.WriteFile(path, []byte("soon"), 0o600))
	modTime := clock.Now().Add(-3 * time.Minute)
	require.NoError(t, os.Chtimes(path, modTime, modTime))

	f := NewFlag(path, clock)
	assert.True(t, f.IsRaised())
	age, ok := f.Age()
	require.True(t, ok)
	assert.Equal(t, 3*time.Minute, age)

	require.NoError(t, f.Raise())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(clock.Now().UnixMilli(), 10), string(data))
}

func TestConcurrentIntentSignalsLeaveOneValidFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := NewCoordinator(dir, newClock())

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.SignalRefreshIntent("billing_local")
		}()
	}
	wg.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "billing_local.intent", entries[0].Name())

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	require.NoError(t, err)
	assert.Positive(t, ms)
}

func TestPIDLockClaimRespectsLiveOwner(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quota.inprogress")
	require.NoError(t, os.WriteFile(path, []byte("4242"), 0o600))

	lock := NewPIDLock(path)
	lock.pid = 100
	lock.alive = livePIDs(100, 4242)

	claimed, err := lock.Claim()
	require.NoError(t, err)
	assert.False(t, claimed)

	owner, ok := lock.Owner()
	require.True(t, ok)
	assert.Equal(t, 4242, owner)
	require.NoError(t, lock.Release())
	assert.FileExists(t, path, "release never removes another owner's lock")
}

func TestPIDLockSelfHealsDeadOwner(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quota.inprogress")
	require.NoError(t, os.WriteFile(path, []byte("4242"), 0o600))

	lock := NewPIDLock(path)
	lock.pid = 100
	lock.alive = livePIDs(100)

	claimed, err := lock.Claim()
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.True(t, lock.HeldBySelf())

	require.NoError(t, lock.Release())
	assert.NoFileExists(t, path)
}

func TestPIDLockKeepsLockRewrittenDuringSelfHeal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quota.inprogress")
	require.NoError(t, os.WriteFile(path, []byte("4242"), 0o600))

	lock := NewPIDLock(path)
	lock.pid = 100
	lock.alive = func(pid int) bool {
		if pid == 4242 {
			// Another claimer takes over the dead owner's lock between the
			// liveness check and the removal.
			require.NoError(t, os.WriteFile(path, []byte("200"), 0o600))
			return false
		}
		return pid == 200
	}

	owner, ok := lock.Owner()
	require.True(t, ok)
	assert.Equal(t, 200, owner)
	assert.FileExists(t, path)
}

func TestPIDLockHandoff(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quota.inprogress")
	lock := NewPIDLock(path)
	lock.pid = 100
	lock.alive = livePIDs(100, 200)

	claimed, err := lock.Claim()
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, lock.Handoff(200))
	owner, ok := lock.Owner()
	require.True(t, ok)
	assert.Equal(t, 200, owner)
	assert.False(t, lock.HeldBySelf())
}

func TestPIDLockUsesRealProcessProbe(t *testing.T) {
	t.Parallel()

	lock := NewPIDLock(filepath.Join(t.TempDir(), "self.inprogress"))
	require.NoError(t, lock.Mark())

	assert.True(t, lock.HeldBySelf())
}

func TestInProgressSelfHealsWhenPIDIsDead(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := NewCoordinator(dir, newClock())
	c.alive = livePIDs()

	require.NoError(t, c.SignalRefreshInProgress("quota_broker"))
	assert.False(t, c.IsRefreshInProgress("quota_broker"))
	assert.NoFileExists(t, filepath.Join(dir, "quota_broker.inprogress"))
}

func TestInProgressLifecycle(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(t.TempDir(), newClock())

	require.NoError(t, c.SignalRefreshInProgress("quota_broker"))
	assert.True(t, c.IsRefreshInProgress("quota_broker"))

	require.NoError(t, c.ClearRefreshInProgress("quota_broker"))
	assert.False(t, c.IsRefreshInProgress("quota_broker"))
}

func TestIntentAgeAndPending(t *testing.T) {
	t.Parallel()

	clock := newClock()
	c := NewCoordinator(t.TempDir(), clock)

	_, ok := c.IntentAge("git_status")
	assert.False(t, ok)

	require.NoError(t, c.SignalRefreshIntent("quota_broker"))
	require.NoError(t, c.SignalRefreshIntent("billing_local"))
	clock.advance(90 * time.Second)

	age, ok := c.IntentAge("quota_broker")
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, age)

	assert.Equal(t, []string{"billing_local", "quota_broker"}, c.PendingIntents())

	require.NoError(t, c.ClearRefreshIntent("billing_local"))
	assert.Equal(t, []string{"quota_broker"}, c.PendingIntents())
}

func TestCategoryNamesAreValidated(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(t.TempDir(), newClock())

	assert.ErrorIs(t, c.SignalRefreshIntent("../escape"), ErrInvalidCategory)
	assert.False(t, c.HasRefreshIntent(""))
	_, err := c.Lock("a/b")
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestCleanStaleRemovesOldIntentsAndDeadLocks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clock := newClock()
	c := NewCoordinator(dir, clock)
	c.alive = livePIDs(777)

	require.NoError(t, c.SignalRefreshIntent("old"))
	clock.advance(10 * time.Minute)
	require.NoError(t, c.SignalRefreshIntent("recent"))
	broken := filepath.Join(dir, "broken.intent")
	require.NoError(t, os.WriteFile(broken, []byte("??"), 0o600))
	brokenAt := clock.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(broken, brokenAt, brokenAt))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dead.inprogress"), []byte("1"), 0o600))
	live := filepath.Join(dir, "live.inprogress")
	require.NoError(t, os.WriteFile(live, []byte("777"), 0o600))
	require.NoError(t, os.Chtimes(live, clock.Now(), clock.Now()))

	removed, err := c.CleanStale(5 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"broken.intent", "dead.inprogress", "old.intent"}, removed)

	assert.True(t, c.HasRefreshIntent("recent"))
	assert.True(t, c.IsRefreshInProgress("live"))
	assert.NoFileExists(t, filepath.Join(dir, "dead.inprogress"))
}

func TestCleanStaleRemovesOldMarkerOfLiveProcess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clock := newClock()
	c := NewCoordinator(dir, clock)
	c.alive = livePIDs(777, 778)

	hung := filepath.Join(dir, "quota_broker.inprogress")
	require.NoError(t, os.WriteFile(hung, []byte("777"), 0o600))
	hungAt := clock.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(hung, hungAt, hungAt))

	working := filepath.Join(dir, "billing_local.inprogress")
	require.NoError(t, os.WriteFile(working, []byte("778"), 0o600))
	workingAt := clock.Now().Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(working, workingAt, workingAt))

	removed, err := c.CleanStale(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"quota_broker.inprogress"}, removed)
	assert.NoFileExists(t, hung)
	assert.True(t, c.IsRefreshInProgress("billing_local"))
}

func TestCleanStaleOnMissingDirectory(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(filepath.Join(t.TempDir(), "missing"), newClock())
	removed, err := c.CleanStale(time.Minute)

	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestPIDLockClaimIsNotReentrant(t *testing.T) {
	t.Parallel()

	lock := NewPIDLock(filepath.Join(t.TempDir(), "q.inprogress"))
	lock.pid = 100
	lock.alive = livePIDs(100)

	claimed, err := lock.Claim()
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = lock.Claim()
	require.NoError(t, err)
	assert.False(t, claimed)
}
