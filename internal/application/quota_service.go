package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bnema/healthline/internal/coord"
	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/freshness"
	"github.com/bnema/healthline/internal/ports"
	"github.com/bnema/healthline/internal/quota"
)

const defaultFetchConcurrency = 2

// QuotaService refreshes the shared quota cache and answers resolution
// queries against it.
type QuotaService struct {
	slots       ports.SessionRegistryRepository
	creds       ports.CredentialStore
	usage       ports.UsageClient
	cache       *quota.CacheStore
	coord       *coord.Coordinator
	resolver    *quota.Resolver
	recommender *quota.Recommender
	clock       ports.Clock
}

type QuotaServiceDeps struct {
	Slots       ports.SessionRegistryRepository
	Credentials ports.CredentialStore
	Usage       ports.UsageClient
	Cache       *quota.CacheStore
	Coordinator *coord.Coordinator
	Resolver    *quota.Resolver
	Recommender *quota.Recommender
	Clock       ports.Clock
}

func NewQuotaService(deps QuotaServiceDeps) *QuotaService {
	clock := deps.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = quota.NewResolver(freshness.New(freshness.DefaultConfig(), clock))
	}

	return &QuotaService{
		slots:       deps.Slots,
		creds:       deps.Credentials,
		usage:       deps.Usage,
		cache:       deps.Cache,
		coord:       deps.Coordinator,
		resolver:    resolver,
		recommender: deps.Recommender,
		clock:       clock,
	}
}

// Refresh fetches utilisation for the given slots (all registered slots when
// none are named), ranks every slot and rewrites the cache. A slot whose
// fetch fails keeps its previous numbers and records the error.
func (s *QuotaService) Refresh(ctx context.Context, slotIDs []string, opts RefreshOptions) (domain.QuotaCache, error) {
	release, err := acquireRefresh(s.coord, freshness.CategoryQuotaBroker, opts)
	if err != nil {
		return domain.QuotaCache{}, fmt.Errorf("acquire quota refresh: %w", err)
	}
	succeeded := false
	defer func() { release(succeeded) }()

	registry, err := s.slots.Load(ctx)
	if err != nil {
		return domain.QuotaCache{}, fmt.Errorf("load session registry: %w", err)
	}

	targets, err := selectSlots(registry, slotIDs)
	if err != nil {
		return domain.QuotaCache{}, err
	}

	s.cache.ClearCache()
	prev := s.cache.Read()

	next := domain.QuotaCache{
		ActiveSlot: prev.ActiveSlot,
		Slots:      make(map[string]domain.QuotaSlot, len(registry.Slots)),
	}
	for _, rs := range registry.Slots {
		slot, ok := prev.Slot(rs.ID)
		if !ok {
			slot = domain.QuotaSlot{ID: rs.ID}
		}
		next.Slots[rs.ID] = withRegistryFields(slot, rs)
	}

	var (
		mu       sync.Mutex
		finished int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultFetchConcurrency)
	for _, rs := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			mu.Lock()
			slot := next.Slots[rs.ID]
			mu.Unlock()

			slot = s.fetchSlot(gctx, slot)

			mu.Lock()
			defer mu.Unlock()
			next.Slots[rs.ID] = slot
			finished++
			if opts.Progress != nil {
				opts.Progress(RefreshProgress{Item: rs.ID, Done: finished, Total: len(targets), Err: slot.Error})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.QuotaCache{}, fmt.Errorf("refresh quota slots: %w", err)
	}

	next.Timestamp = s.clock.Now()
	next = quota.Rank(next, registry)

	if err := s.cache.Write(next); err != nil {
		return domain.QuotaCache{}, fmt.Errorf("write quota cache: %w", err)
	}

	succeeded = true
	return next, nil
}

func (s *QuotaService) fetchSlot(ctx context.Context, slot domain.QuotaSlot) domain.QuotaSlot {
	token, err := s.creds.AccessToken(ctx, ports.CredentialRef{KeychainKey: slot.KeychainKey, ConfigDir: slot.ConfigDir})
	if err != nil {
		slot.Error = fmt.Sprintf("load credentials: %v", err)
		slog.Debug("quota: credentials unavailable", "slot", slot.ID, "error", err)
		return slot
	}

	report, err := s.usage.FetchUsage(ctx, token)
	if err != nil {
		slot.Error = fmt.Sprintf("fetch usage: %v", err)
		slog.Debug("quota: usage fetch failed", "slot", slot.ID, "error", err)
		return slot
	}

	return quota.ApplyUsage(slot, report, s.clock.Now())
}

// Resolve answers which slot a session with the given config dir and email
// is using, from the cache as last written.
func (s *QuotaService) Resolve(ctx context.Context, req quota.Request) (quota.Resolution, string, error) {
	registry, err := s.slots.Load(ctx)
	if err != nil {
		return quota.Resolution{}, "", fmt.Errorf("load session registry: %w", err)
	}

	c := s.cache.Read()
	res, ok := s.resolver.Resolve(req, c, registry)
	if !ok {
		return quota.Resolution{}, "", domain.ErrNoResolution
	}

	var message string
	if s.recommender != nil {
		message = s.recommender.SwitchMessage(res, c, registry)
	}
	return res, message, nil
}

// Cache returns the quota cache ranked against the current registry.
func (s *QuotaService) Cache(ctx context.Context) (domain.QuotaCache, error) {
	registry, err := s.slots.Load(ctx)
	if err != nil {
		return domain.QuotaCache{}, fmt.Errorf("load session registry: %w", err)
	}
	return quota.Rank(s.cache.Read(), registry), nil
}

func selectSlots(registry domain.SessionRegistry, ids []string) ([]domain.RegistrySlot, error) {
	if len(registry.Slots) == 0 {
		return nil, fmt.Errorf("no slots registered: %w", domain.ErrSlotNotFound)
	}
	if len(ids) == 0 {
		return slices.Clone(registry.Slots), nil
	}

	out := make([]domain.RegistrySlot, 0, len(ids))
	for _, id := range ids {
		slot, ok := registry.Slot(id)
		if !ok {
			return nil, fmt.Errorf("slot %s: %w", id, domain.ErrSlotNotFound)
		}
		out = append(out, slot)
	}
	return out, nil
}

func withRegistryFields(slot domain.QuotaSlot, rs domain.RegistrySlot) domain.QuotaSlot {
	slot.ID = rs.ID
	if rs.Email != "" {
		slot.Email = rs.Email
	}
	slot.ConfigDir = rs.ConfigDir
	slot.KeychainKey = rs.KeychainKey
	return slot
}
