// Package quota decides which credential slot the current session is using
// and whether another slot would serve it better.
package quota

import (
	"sort"
	"strings"

	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/freshness"
)

type Request struct {
	ConfigDir string
	Email     string
}

// Input is everything a strategy may look at.
type Input struct {
	Request  Request
	Cache    domain.QuotaCache
	Registry domain.SessionRegistry
}

type Strategy struct {
	Name  string
	Match func(in Input) (slotID string, ok bool)
}

type Resolution struct {
	SlotID   string
	Slot     domain.QuotaSlot
	Strategy string
	Status   domain.SlotStatus
	IsStale  bool
}

// DefaultStrategies is the resolution order: the session's own config dir,
// then its account email, the cache's active pointer, a lone slot, and
// finally the best-ranked active slot.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "config_dir", Match: matchConfigDir},
		{Name: "email", Match: matchEmail},
		{Name: "active_pointer", Match: matchActivePointer},
		{Name: "single_slot", Match: matchSingleSlot},
		{Name: "best_active_rank", Match: matchBestActiveRank},
	}
}

type Resolver struct {
	strategies []Strategy
	fresh      *freshness.Model
}

func NewResolver(fresh *freshness.Model, strategies ...Strategy) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Resolver{strategies: strategies, fresh: fresh}
}

// Resolve walks the strategies in order and stops at the first match. It
// returns false when no strategy matches.
func (r *Resolver) Resolve(req Request, cache domain.QuotaCache, registry domain.SessionRegistry) (Resolution, bool) {
	if len(cache.Slots) == 0 {
		return Resolution{}, false
	}

	in := Input{Request: req, Cache: cache, Registry: registry}
	for _, strategy := range r.strategies {
		id, ok := strategy.Match(in)
		if !ok {
			continue
		}
		slot, ok := cache.Slot(id)
		if !ok {
			continue
		}

		return Resolution{
			SlotID:   id,
			Slot:     slot,
			Strategy: strategy.Name,
			Status:   registry.StatusOf(id),
			IsStale:  r.isStale(slot, cache),
		}, true
	}

	return Resolution{}, false
}

func (r *Resolver) isStale(slot domain.QuotaSlot, cache domain.QuotaCache) bool {
	fetched := slot.LastFetched
	if fetched.IsZero() {
		fetched = cache.Timestamp
	}
	return r.fresh.Status(fetched, freshness.CategoryQuotaBroker) != freshness.StatusFresh
}

// matchConfigDir compares directories byte for byte. Callers pass the same
// string the assistant recorded.
func matchConfigDir(in Input) (string, bool) {
	want := in.Request.ConfigDir
	if want == "" {
		return "", false
	}
	for _, id := range sortedIDs(in.Cache) {
		if in.Cache.Slots[id].ConfigDir == want {
			return id, true
		}
	}
	return "", false
}

func matchEmail(in Input) (string, bool) {
	for _, id := range sortedIDs(in.Cache) {
		if in.Cache.Slots[id].MatchesEmail(in.Request.Email) {
			return id, true
		}
	}
	return "", false
}

// matchActivePointer follows the cache's active pointer unless that slot has
// been taken out of rotation since the cache was written.
func matchActivePointer(in Input) (string, bool) {
	id := strings.TrimSpace(in.Cache.ActiveSlot)
	if id == "" {
		return "", false
	}
	slot, ok := in.Cache.Slots[id]
	if !ok || slot.Status == domain.SlotInactive || in.Registry.StatusOf(id) == domain.SlotInactive {
		return "", false
	}
	return id, true
}

func matchSingleSlot(in Input) (string, bool) {
	if len(in.Cache.Slots) != 1 {
		return "", false
	}
	for id := range in.Cache.Slots {
		return id, true
	}
	return "", false
}

func matchBestActiveRank(in Input) (string, bool) {
	best := ""
	bestRank := 0
	for _, id := range sortedIDs(in.Cache) {
		slot := in.Cache.Slots[id]
		if in.Registry.StatusOf(id) != domain.SlotActive || slot.Status == domain.SlotInactive || slot.Rank <= 0 {
			continue
		}
		if best == "" || slot.Rank < bestRank {
			best, bestRank = id, slot.Rank
		}
	}
	return best, best != ""
}

func sortedIDs(cache domain.QuotaCache) []string {
	ids := make([]string, 0, len(cache.Slots))
	for id := range cache.Slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
