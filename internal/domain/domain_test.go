package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageTotalAndCompact(t *testing.T) {
	u := Usage{
		InputTokens:      1_200,
		OutputTokens:     300,
		CacheReadTokens:  400,
		CacheWriteTokens: 100,
	}

	require.Equal(t, int64(2_000), u.Total())

	assert.Equal(t, "2.0k", u.TotalCompact())
	assert.Equal(t, "999", CompactNumber(999))
	assert.Equal(t, "1.5M", CompactNumber(1_500_000))
}

func TestPricingForPrefersMostSpecificPrefix(t *testing.T) {
	tests := []struct {
		name  string
		model string
		input float64
	}{
		{name: "opus 4.5", model: "claude-opus-4-5-20251101", input: 5},
		{name: "opus 4.1", model: "claude-opus-4-1-20250805", input: 15},
		{name: "sonnet", model: "claude-sonnet-4-5-20250929", input: 3},
		{name: "haiku", model: "claude-haiku-4-5", input: 1},
		{name: "unknown falls back", model: "mystery", input: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.input, PricingFor(tt.model).InputPerMillion)
		})
	}
}

func TestModelPricingCalculateCost(t *testing.T) {
	p := ModelPricing{InputPerMillion: 3, OutputPerMillion: 15}
	cost := p.CalculateCost(Usage{
		InputTokens:      1_000_000,
		OutputTokens:     1_000_000,
		CacheReadTokens:  1_000_000,
		CacheWriteTokens: 1_000_000,
	})

	assert.InDelta(t, 3+15+0.3+3.75, cost, 1e-9)
}

func TestSessionRegistryLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	reg := SessionRegistry{Slots: []RegistrySlot{{ID: "slot-1"}, {ID: "slot-2", Status: SlotActive}}}

	assert.Equal(t, SlotActive, reg.StatusOf("slot-1"))
	assert.Equal(t, SlotActive, reg.StatusOf("unknown"))

	require.NoError(t, reg.Deactivate("slot-2", " rate limited ", now))
	slot, ok := reg.Slot("slot-2")
	require.True(t, ok)
	assert.Equal(t, SlotInactive, slot.Status)
	assert.Equal(t, "rate limited", slot.DeactivationReason)
	assert.Equal(t, now, slot.DeactivatedAt)

	later := now.Add(time.Hour)
	require.NoError(t, reg.Activate("slot-2", later))
	slot, _ = reg.Slot("slot-2")
	assert.Equal(t, SlotActive, slot.Status)
	assert.Equal(t, later, slot.ReactivatedAt)
	assert.Empty(t, slot.DeactivationReason)

	assert.ErrorIs(t, reg.Deactivate("missing", "", now), ErrSlotNotFound)
}

func TestRegistrySlotValidate(t *testing.T) {
	assert.NoError(t, RegistrySlot{ID: "a"}.Validate())
	assert.Error(t, RegistrySlot{ID: " "}.Validate())
	assert.Error(t, RegistrySlot{ID: "a", Status: "paused"}.Validate())
}

func TestQuotaSlotMatchesEmailIgnoresCase(t *testing.T) {
	slot := QuotaSlot{Email: "Dev@Example.com"}

	assert.True(t, slot.MatchesEmail("dev@example.COM"))
	assert.False(t, slot.MatchesEmail(""))
	assert.False(t, slot.MatchesEmail("other@example.com"))
}

func TestSnapshotCloneDoesNotAlias(t *testing.T) {
	s := &Snapshot{
		Health:  Health{Issues: []string{"a"}},
		Billing: Billing{History: []int64{1, 2}},
	}

	c := s.Clone()
	c.Health.Issues[0] = "b"
	c.Billing.History[0] = 9

	assert.Equal(t, "a", s.Health.Issues[0])
	assert.Equal(t, int64(1), s.Billing.History[0])
	assert.Nil(t, (*Snapshot)(nil).Clone())
}

func TestContextWindowTokensLeft(t *testing.T) {
	assert.Equal(t, int64(150), ContextWindow{TokensUsed: 50, WindowSize: 200}.TokensLeft())
	assert.Equal(t, int64(0), ContextWindow{TokensUsed: 250, WindowSize: 200}.TokensLeft())
}
