package domain

import (
	"strings"
	"time"
)

type SlotStatus string

const (
	SlotActive   SlotStatus = "active"
	SlotInactive SlotStatus = "inactive"
)

// QuotaSlot is one credential slot as captured by the background refresher.
type QuotaSlot struct {
	ID                         string
	Email                      string
	ConfigDir                  string
	KeychainKey                string
	FiveHourPercent            float64
	SevenDayPercent            float64
	FiveHourResetsAt           time.Time
	SevenDayResetsAt           time.Time
	WeeklyBudgetRemainingHours float64
	WeeklyResetDay             string
	DailyResetTime             string
	UrgencyScore               float64
	Rank                       int
	Status                     SlotStatus
	LastFetched                time.Time
	Error                      string
}

func (s QuotaSlot) IsExhausted() bool {
	return s.FiveHourPercent >= 100 || s.SevenDayPercent >= 100
}

func (s QuotaSlot) MatchesEmail(email string) bool {
	email = strings.TrimSpace(email)
	return email != "" && strings.EqualFold(strings.TrimSpace(s.Email), email)
}

// QuotaCache is the cross-process view of every slot.
type QuotaCache struct {
	Slots           map[string]QuotaSlot
	ActiveSlot      string
	RecommendedSlot string
	FailoverNeeded  bool
	AllExhausted    bool
	Timestamp       time.Time
}

func (c QuotaCache) Slot(id string) (QuotaSlot, bool) {
	slot, ok := c.Slots[id]
	return slot, ok
}
