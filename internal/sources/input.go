package sources

import (
	"context"
	"math"
	"time"

	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/freshness"
	"github.com/bnema/healthline/internal/registry"
)

const (
	DefaultNearCompactionPercent = 85
	defaultWindowSize            = 200_000
)

func inputModelSource(timeout time.Duration) registry.Descriptor {
	return registry.NewDescriptor(
		registry.Meta{ID: IDInputModel, Tier: registry.TierInstant, Category: freshness.CategoryInputModel, Timeout: timeout},
		registry.ModelSection,
		func(_ context.Context, gc domain.GatherContext) (domain.Model, error) {
			if gc.Input == nil {
				return domain.Model{}, errNoInput
			}
			return domain.Model{ID: gc.Input.Model.ID, DisplayName: gc.Input.Model.DisplayName}, nil
		},
		func(dst *domain.Model, m domain.Model) { *dst = m },
	)
}

func inputContextSource(timeout time.Duration, nearCompaction int) registry.Descriptor {
	return registry.NewDescriptor(
		registry.Meta{ID: IDInputContext, Tier: registry.TierInstant, Category: freshness.CategoryInputContext, Timeout: timeout},
		registry.ContextSection,
		func(_ context.Context, gc domain.GatherContext) (domain.ContextWindow, error) {
			if gc.Input == nil || gc.Input.ContextWindow == nil {
				return domain.ContextWindow{}, errNoInput
			}
			return contextWindow(*gc.Input.ContextWindow, nearCompaction), nil
		},
		func(dst *domain.ContextWindow, c domain.ContextWindow) { *dst = c },
	)
}

func contextWindow(in domain.InputContextWindow, nearCompaction int) domain.ContextWindow {
	out := domain.ContextWindow{
		TokensUsed: in.TotalInputTokens + in.TotalOutputTokens,
		WindowSize: in.ContextWindowSize,
	}
	if out.WindowSize <= 0 {
		out.WindowSize = defaultWindowSize
	}

	if in.UsedPercentage != nil {
		out.PercentUsed = int(math.Round(*in.UsedPercentage))
	} else {
		out.PercentUsed = int(out.TokensUsed * 100 / out.WindowSize)
	}
	out.PercentUsed = min(max(out.PercentUsed, 0), 100)
	out.NearCompaction = out.PercentUsed >= nearCompaction

	return out
}
