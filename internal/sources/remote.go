package sources

import (
	"context"
	"log/slog"
	"time"

	"github.com/bnema/healthline/internal/billing"
	"github.com/bnema/healthline/internal/coord"
	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/freshness"
	"github.com/bnema/healthline/internal/quota"
	"github.com/bnema/healthline/internal/registry"
)

func billingSource(timeout time.Duration, deps Deps) registry.Descriptor {
	return registry.NewDescriptor(
		registry.Meta{ID: IDBilling, Tier: registry.TierRemote, Category: freshness.CategoryBillingLocal, Timeout: timeout},
		registry.BillingSection,
		func(ctx context.Context, _ domain.GatherContext) (domain.Billing, error) {
			summary := deps.Billing.Read()
			stale := deps.Freshness.Status(summary.LastFetched, freshness.CategoryBillingLocal) != freshness.StatusFresh
			requestRefresh(ctx, deps.Coordinator, deps.BillingGate, freshness.CategoryBillingLocal, stale)

			return billing.Apply(summary, deps.Budget, deps.Clock.Now()), nil
		},
		func(dst *domain.Billing, b domain.Billing) {
			sessionCost := dst.SessionCost
			*dst = b
			dst.SessionCost = sessionCost
		},
	)
}

func quotaSource(timeout time.Duration, deps Deps) registry.Descriptor {
	return registry.NewDescriptor(
		registry.Meta{ID: IDQuota, Tier: registry.TierRemote, Category: freshness.CategoryQuotaBroker, Timeout: timeout},
		registry.QuotaSection,
		func(ctx context.Context, gc domain.GatherContext) (domain.Quota, error) {
			slots := domain.SessionRegistry{}
			if deps.Slots != nil {
				loaded, err := deps.Slots.Load(ctx)
				if err != nil {
					slog.Debug("sources: session registry unavailable", "error", err)
				} else {
					slots = loaded
				}
			}

			cache := deps.Quota.Read()
			res, ok := deps.Resolver.Resolve(quota.Request{ConfigDir: gc.ConfigDir, Email: gc.Email}, cache, slots)
			requestRefresh(ctx, deps.Coordinator, deps.QuotaGate, freshness.CategoryQuotaBroker, !ok || res.IsStale)
			if !ok {
				return domain.Quota{}, nil
			}

			out := domain.Quota{
				Resolved:                   true,
				SlotID:                     res.SlotID,
				Email:                      res.Slot.Email,
				Strategy:                   res.Strategy,
				Status:                     res.Status,
				FiveHourPercent:            res.Slot.FiveHourPercent,
				SevenDayPercent:            res.Slot.SevenDayPercent,
				WeeklyBudgetRemainingHours: res.Slot.WeeklyBudgetRemainingHours,
				WeeklyResetDay:             res.Slot.WeeklyResetDay,
				DailyResetTime:             res.Slot.DailyResetTime,
				IsStale:                    res.IsStale,
				LastFetched:                res.Slot.LastFetched,
			}
			if out.LastFetched.IsZero() {
				out.LastFetched = cache.Timestamp
			}
			if deps.Recommender != nil {
				out.SwitchMessage = deps.Recommender.SwitchMessage(res, cache, slots)
			}
			return out, nil
		},
		func(dst *domain.Quota, q domain.Quota) { *dst = q },
	)
}

// requestRefresh records that category wants fresh data and starts a
// background refresher when none is running. Failures only cost freshness.
func requestRefresh(ctx context.Context, c *coord.Coordinator, gate *coord.RefreshGate, category string, stale bool) {
	if !stale {
		return
	}
	if c != nil {
		if err := c.SignalRefreshIntent(category); err != nil {
			slog.Debug("sources: signal refresh intent", "category", category, "error", err)
		}
	}
	if gate != nil {
		if _, err := gate.MaybeSpawn(ctx, true); err != nil {
			slog.Debug("sources: start refresher", "category", category, "error", err)
		}
	}
}
