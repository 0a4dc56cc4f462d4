package quota

import (
	"fmt"
	"time"

	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/ports"
)

// Recommender turns the refresher's recommendation into a switch hint, but
// only while the cache is recent enough to trust.
type Recommender struct {
	maxAge time.Duration
	clock  ports.Clock
}

func NewRecommender(maxAge time.Duration, clock ports.Clock) *Recommender {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Recommender{maxAge: maxAge, clock: clock}
}

// NoRecommendation is the refresher's marker for "no slot to recommend".
const NoRecommendation = "none"

// SwitchMessage returns "" when the session already sits on the recommended
// slot or there is nothing to recommend.
func (r *Recommender) SwitchMessage(current Resolution, c domain.QuotaCache, registry domain.SessionRegistry) string {
	if c.Timestamp.IsZero() || r.clock.Now().Sub(c.Timestamp) > r.maxAge {
		return ""
	}

	recommended := c.RecommendedSlot
	if recommended == "" || recommended == NoRecommendation || recommended == current.SlotID {
		return ""
	}

	target, ok := c.Slot(recommended)
	if !ok || registry.StatusOf(recommended) != domain.SlotActive || target.IsExhausted() {
		return ""
	}

	label := target.ID
	if target.Email != "" {
		label = fmt.Sprintf("%s (%s)", target.ID, target.Email)
	}

	return fmt.Sprintf("switch to %s: 5h %.0f%%, 7d %.0f%%", label, target.FiveHourPercent, target.SevenDayPercent)
}
