// Package billing keeps the locally computed daily spend and turns it into the
// billing section of a snapshot.
package billing

import (
	"fmt"
	"math"
	"time"

	"github.com/bnema/healthline/internal/domain"
)

const (
	MaxHistory = 12
	dayLayout  = "2006-01-02"
)

// Budget is the daily spending allowance and the local wall-clock time at
// which the day rolls over.
type Budget struct {
	DailyUSD  float64
	ResetTime string
}

// Window returns the start of the current billing day and the next reset.
func (b Budget) Window(now time.Time) (time.Time, time.Time) {
	hour, minute := parseClock(b.ResetTime)
	start := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start, start.AddDate(0, 0, 1)
}

func (b Budget) resetLabel() string {
	hour, minute := parseClock(b.ResetTime)
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

func parseClock(value string) (int, int) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0
	}
	return t.Hour(), t.Minute()
}

// Record folds a freshly priced day into the stored summary. When the billing
// day changed, the previous day's total moves into the history.
func Record(prev Summary, costUSD float64, budget Budget, now time.Time) Summary {
	start, _ := budget.Window(now)
	day := start.Format(dayLayout)

	history := append([]int64(nil), prev.History...)
	if prev.Day != "" && prev.Day != day {
		history = append(history, Cents(prev.CostTodayUSD))
	}
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}

	elapsed := max(now.Sub(start).Hours(), 1)

	return Summary{
		Day:             day,
		CostTodayUSD:    costUSD,
		BurnRatePerHour: costUSD / elapsed,
		History:         history,
		LastFetched:     now,
	}
}

// Apply derives the billing section from the stored summary. A summary from
// an earlier billing day contributes only its history.
func Apply(s Summary, budget Budget, now time.Time) domain.Billing {
	start, next := budget.Window(now)

	out := domain.Billing{
		ResetTime:       budget.resetLabel(),
		BudgetRemaining: next.Sub(now),
		LastFetched:     s.LastFetched,
		History:         append([]int64(nil), s.History...),
	}
	if s.Day == start.Format(dayLayout) {
		out.CostToday = s.CostTodayUSD
		out.BurnRatePerHour = s.BurnRatePerHour
	}
	if budget.DailyUSD > 0 {
		out.BudgetPercentUsed = int(math.Round(out.CostToday / budget.DailyUSD * 100))
	}

	return out
}

func Cents(usd float64) int64 {
	return int64(math.Round(usd * 100))
}
