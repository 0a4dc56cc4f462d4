package freshness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestStatusBoundariesAreExclusiveBelow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	m := New(DefaultConfig(), &fakeClock{now: now})

	tests := []struct {
		name     string
		category string
		age      time.Duration
		want     Status
	}{
		{name: "billing under fresh", category: CategoryBillingLocal, age: 119 * time.Second, want: StatusFresh},
		{name: "billing at fresh edge", category: CategoryBillingLocal, age: 2 * time.Minute, want: StatusStale},
		{name: "billing under stale edge", category: CategoryBillingLocal, age: 9*time.Minute + 59*time.Second, want: StatusStale},
		{name: "billing at stale edge", category: CategoryBillingLocal, age: 10 * time.Minute, want: StatusCritical},
		{name: "git fresh", category: CategoryGitStatus, age: 29 * time.Second, want: StatusFresh},
		{name: "git stale", category: CategoryGitStatus, age: 30 * time.Second, want: StatusStale},
		{name: "git critical", category: CategoryGitStatus, age: 5 * time.Minute, want: StatusCritical},
		{name: "unknown category uses default", category: "nope", age: 30 * time.Second, want: StatusFresh},
		{name: "future timestamp is fresh", category: CategoryGitStatus, age: -time.Minute, want: StatusFresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Status(now.Add(-tt.age), tt.category))
		})
	}
}

func TestStatusUnknownForZeroTimestamp(t *testing.T) {
	t.Parallel()

	m := New(DefaultConfig(), &fakeClock{now: time.Now()})

	assert.Equal(t, StatusUnknown, m.Status(time.Time{}, CategoryGitStatus))
	assert.Equal(t, "⚠", m.Indicator(time.Time{}, CategoryGitStatus))
}

func TestIndicatorGlyphs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Indicator(StatusFresh))
	assert.Equal(t, "⚠", Indicator(StatusStale))
	assert.Equal(t, "🔺", Indicator(StatusCritical))
	assert.Equal(t, "⚠", Indicator(StatusUnknown))
}

func TestCooldownAfterFailureAndClearOnSuccess(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)}
	m := New(DefaultConfig(), clock)

	assert.True(t, m.ShouldRefetch(CategoryGitStatus))

	m.RecordFetch(CategoryGitStatus, false)
	assert.False(t, m.ShouldRefetch(CategoryGitStatus))
	assert.True(t, m.ShouldRefetch(CategoryBillingLocal), "cooldown is per category")

	clock.advance(9 * time.Second)
	assert.False(t, m.ShouldRefetch(CategoryGitStatus))

	clock.advance(time.Second)
	assert.True(t, m.ShouldRefetch(CategoryGitStatus))

	m.RecordFetch(CategoryGitStatus, false)
	assert.False(t, m.ShouldRefetch(CategoryGitStatus))
	m.RecordFetch(CategoryGitStatus, true)
	assert.True(t, m.ShouldRefetch(CategoryGitStatus))
}

func TestConfiguredCategoryOverridesDefault(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.Categories[CategoryGitStatus] = Category{Name: CategoryGitStatus, Fresh: time.Hour, Stale: 2 * time.Hour}
	m := New(cfg, &fakeClock{now: now})

	assert.Equal(t, StatusFresh, m.Status(now.Add(-10*time.Minute), CategoryGitStatus))
	assert.Equal(t, 10*time.Minute, m.Age(now.Add(-10*time.Minute)))
}
