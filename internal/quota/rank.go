package quota

import (
	"math"
	"sort"
	"time"

	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/ports"
)

// FailoverThreshold is the utilisation at which the active slot should be
// swapped out.
const FailoverThreshold = 95.0

// ApplyUsage copies a usage report onto slot and derives the reset labels.
func ApplyUsage(slot domain.QuotaSlot, report ports.UsageReport, now time.Time) domain.QuotaSlot {
	slot.FiveHourPercent = report.FiveHour.Utilization
	slot.SevenDayPercent = report.SevenDay.Utilization
	slot.FiveHourResetsAt = report.FiveHour.ResetsAt
	slot.SevenDayResetsAt = report.SevenDay.ResetsAt
	slot.LastFetched = now
	slot.Error = ""

	slot.WeeklyBudgetRemainingHours = 0
	slot.WeeklyResetDay = ""
	if reset := report.SevenDay.ResetsAt; !reset.IsZero() {
		hours := math.Max(reset.Sub(now).Hours(), 0)
		slot.WeeklyBudgetRemainingHours = math.Round(hours*10) / 10
		slot.WeeklyResetDay = reset.Local().Format("Mon")
	}

	slot.DailyResetTime = ""
	if reset := report.FiveHour.ResetsAt; !reset.IsZero() {
		slot.DailyResetTime = reset.Local().Format("15:04")
	}

	return slot
}

// Urgency is the higher of the two window utilisations. Lower is better.
func Urgency(slot domain.QuotaSlot) float64 {
	return math.Max(slot.FiveHourPercent, slot.SevenDayPercent)
}

// Rank scores every slot, orders usable slots first (active, no fetch error)
// by urgency, and fills the cache-level recommendation flags.
func Rank(c domain.QuotaCache, registry domain.SessionRegistry) domain.QuotaCache {
	out := c
	out.Slots = make(map[string]domain.QuotaSlot, len(c.Slots))

	var usable, rest []domain.QuotaSlot
	for id, slot := range c.Slots {
		slot.ID = id
		slot.Status = registry.StatusOf(id)
		slot.UrgencyScore = Urgency(slot)
		if slot.Status == domain.SlotActive && slot.Error == "" {
			usable = append(usable, slot)
		} else {
			rest = append(rest, slot)
		}
	}

	sort.Slice(usable, func(i, j int) bool {
		a, b := usable[i], usable[j]
		if a.UrgencyScore != b.UrgencyScore {
			return a.UrgencyScore < b.UrgencyScore
		}
		if sa, sb := a.FiveHourPercent+a.SevenDayPercent, b.FiveHourPercent+b.SevenDayPercent; sa != sb {
			return sa < sb
		}
		return a.ID < b.ID
	})
	sort.Slice(rest, func(i, j int) bool { return rest[i].ID < rest[j].ID })

	out.RecommendedSlot = ""
	rank := 0
	for _, slot := range append(usable, rest...) {
		rank++
		slot.Rank = rank
		out.Slots[slot.ID] = slot
	}
	for _, slot := range usable {
		if !slot.IsExhausted() {
			out.RecommendedSlot = slot.ID
			break
		}
	}

	if registry.Active != "" && registry.StatusOf(registry.Active) != domain.SlotInactive {
		out.ActiveSlot = registry.Active
	}

	out.FailoverNeeded = false
	if active, ok := out.Slots[out.ActiveSlot]; ok {
		out.FailoverNeeded = active.FiveHourPercent >= FailoverThreshold || active.SevenDayPercent >= FailoverThreshold
	}

	out.AllExhausted = len(out.Slots) > 0 && out.RecommendedSlot == ""

	return out
}
