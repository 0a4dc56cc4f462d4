package quota

import (
	"time"

	"github.com/bnema/healthline/internal/cache"
	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/ports"
)

const cacheSchemaVersion = 2

type cacheFile struct {
	Version         int                 `json:"version"`
	Timestamp       int64               `json:"timestamp"`
	ActiveSlot      string              `json:"active_slot"`
	RecommendedSlot string              `json:"recommended_slot"`
	FailoverNeeded  bool                `json:"failover_needed"`
	AllExhausted    bool                `json:"all_exhausted"`
	Slots           map[string]slotFile `json:"slots"`
	UpdatedAt       int64               `json:"updated_at,omitempty"`
}

type slotFile struct {
	Email                      string  `json:"email"`
	ConfigDir                  string  `json:"config_dir"`
	KeychainKey                string  `json:"keychain_key,omitempty"`
	FiveHourPercent            float64 `json:"five_hour_util"`
	SevenDayPercent            float64 `json:"seven_day_util"`
	FiveHourResetsAt           int64   `json:"five_hour_resets_at,omitempty"`
	SevenDayResetsAt           int64   `json:"seven_day_resets_at,omitempty"`
	WeeklyBudgetRemainingHours float64 `json:"weekly_budget_remaining_hours"`
	WeeklyResetDay             string  `json:"weekly_reset_day,omitempty"`
	DailyResetTime             string  `json:"daily_reset_time,omitempty"`
	UrgencyScore               float64 `json:"urgency_score"`
	Rank                       int     `json:"rank"`
	Status                     string  `json:"status"`
	LastFetched                int64   `json:"last_fetched,omitempty"`
	Error                      string  `json:"error,omitempty"`
}

// CacheStore reads and writes the shared quota cache file.
type CacheStore struct {
	file *cache.JSONFile[cacheFile]
}

func NewCacheStore(path string, ttl time.Duration, clock ports.Clock) *CacheStore {
	return &CacheStore{
		file: cache.NewJSONFile(cache.Options[cacheFile]{
			Path:         path,
			TTL:          ttl,
			Version:      cacheSchemaVersion,
			RequiredKeys: []string{"slots", "timestamp"},
			Empty:        func() cacheFile { return cacheFile{Version: cacheSchemaVersion, Slots: map[string]slotFile{}} },
			Clock:        clock,
		}),
	}
}

func (s *CacheStore) Path() string {
	return s.file.Path()
}

func (s *CacheStore) Read() domain.QuotaCache {
	return fromCacheFile(s.file.Read())
}

func (s *CacheStore) Write(c domain.QuotaCache) error {
	return s.file.Write(toCacheFile(c))
}

func (s *CacheStore) ClearCache() {
	s.file.ClearCache()
}

func toCacheFile(c domain.QuotaCache) cacheFile {
	out := cacheFile{
		Version:         cacheSchemaVersion,
		Timestamp:       unixMilli(c.Timestamp),
		ActiveSlot:      c.ActiveSlot,
		RecommendedSlot: c.RecommendedSlot,
		FailoverNeeded:  c.FailoverNeeded,
		AllExhausted:    c.AllExhausted,
		Slots:           make(map[string]slotFile, len(c.Slots)),
	}

	for id, slot := range c.Slots {
		out.Slots[id] = slotFile{
			Email:                      slot.Email,
			ConfigDir:                  slot.ConfigDir,
			KeychainKey:                slot.KeychainKey,
			FiveHourPercent:            slot.FiveHourPercent,
			SevenDayPercent:            slot.SevenDayPercent,
			FiveHourResetsAt:           unixMilli(slot.FiveHourResetsAt),
			SevenDayResetsAt:           unixMilli(slot.SevenDayResetsAt),
			WeeklyBudgetRemainingHours: slot.WeeklyBudgetRemainingHours,
			WeeklyResetDay:             slot.WeeklyResetDay,
			DailyResetTime:             slot.DailyResetTime,
			UrgencyScore:               slot.UrgencyScore,
			Rank:                       slot.Rank,
			Status:                     string(slot.Status),
			LastFetched:                unixMilli(slot.LastFetched),
			Error:                      slot.Error,
		}
	}

	return out
}

func fromCacheFile(f cacheFile) domain.QuotaCache {
	out := domain.QuotaCache{
		ActiveSlot:      f.ActiveSlot,
		RecommendedSlot: f.RecommendedSlot,
		FailoverNeeded:  f.FailoverNeeded,
		AllExhausted:    f.AllExhausted,
		Timestamp:       fromUnixMilli(f.Timestamp),
		Slots:           make(map[string]domain.QuotaSlot, len(f.Slots)),
	}

	for id, slot := range f.Slots {
		status := domain.SlotStatus(slot.Status)
		if status == "" {
			status = domain.SlotActive
		}
		out.Slots[id] = domain.QuotaSlot{
			ID:                         id,
			Email:                      slot.Email,
			ConfigDir:                  slot.ConfigDir,
			KeychainKey:                slot.KeychainKey,
			FiveHourPercent:            slot.FiveHourPercent,
			SevenDayPercent:            slot.SevenDayPercent,
			FiveHourResetsAt:           fromUnixMilli(slot.FiveHourResetsAt),
			SevenDayResetsAt:           fromUnixMilli(slot.SevenDayResetsAt),
			WeeklyBudgetRemainingHours: slot.WeeklyBudgetRemainingHours,
			WeeklyResetDay:             slot.WeeklyResetDay,
			DailyResetTime:             slot.DailyResetTime,
			UrgencyScore:               slot.UrgencyScore,
			Rank:                       slot.Rank,
			Status:                     status,
			LastFetched:                fromUnixMilli(slot.LastFetched),
			Error:                      slot.Error,
		}
	}

	return out
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
