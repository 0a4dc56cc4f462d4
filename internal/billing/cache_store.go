package billing

import (
	"time"

	"github.com/bnema/healthline/internal/cache"
	"github.com/bnema/healthline/internal/ports"
)

const cacheSchemaVersion = 1

// Summary is the billing refresher's output.
type Summary struct {
	Day             string
	CostTodayUSD    float64
	BurnRatePerHour float64
	// History holds completed days in cents, oldest first.
	History     []int64
	LastFetched time.Time
}

type cacheFile struct {
	Version              int     `json:"version"`
	Day                  string  `json:"day"`
	CostTodayCents       int64   `json:"cost_today_cents"`
	BurnRateCentsPerHour int64   `json:"burn_rate_cents_per_hour"`
	History              []int64 `json:"history"`
	LastFetched          int64   `json:"last_fetched"`
	UpdatedAt            int64   `json:"updated_at,omitempty"`
}

type CacheStore struct {
	file *cache.JSONFile[cacheFile]
}

func NewCacheStore(path string, ttl time.Duration, clock ports.Clock) *CacheStore {
	return &CacheStore{
		file: cache.NewJSONFile(cache.Options[cacheFile]{
			Path:         path,
			TTL:          ttl,
			Version:      cacheSchemaVersion,
			RequiredKeys: []string{"day", "cost_today_cents", "last_fetched"},
			Empty:        func() cacheFile { return cacheFile{Version: cacheSchemaVersion} },
			Clock:        clock,
		}),
	}
}

func (s *CacheStore) Path() string {
	return s.file.Path()
}

func (s *CacheStore) Read() Summary {
	f := s.file.Read()

	out := Summary{
		Day:             f.Day,
		CostTodayUSD:    float64(f.CostTodayCents) / 100,
		BurnRatePerHour: float64(f.BurnRateCentsPerHour) / 100,
		History:         append([]int64(nil), f.History...),
	}
	if f.LastFetched > 0 {
		out.LastFetched = time.UnixMilli(f.LastFetched)
	}
	return out
}

func (s *CacheStore) Write(sum Summary) error {
	f := cacheFile{
		Version:              cacheSchemaVersion,
		Day:                  sum.Day,
		CostTodayCents:       Cents(sum.CostTodayUSD),
		BurnRateCentsPerHour: Cents(sum.BurnRatePerHour),
		History:              sum.History,
	}
	if !sum.LastFetched.IsZero() {
		f.LastFetched = sum.LastFetched.UnixMilli()
		f.UpdatedAt = f.LastFetched
	}
	if f.History == nil {
		f.History = []int64{}
	}

	return s.file.Write(f)
}

func (s *CacheStore) ClearCache() {
	s.file.ClearCache()
}
