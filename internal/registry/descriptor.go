package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/healthline/internal/domain"
)

type Tier int

const (
	TierInstant Tier = 1
	TierLocal   Tier = 2
	TierRemote  Tier = 3
)

// Section selects the part of the snapshot a source is allowed to write.
type Section[S any] func(*domain.Snapshot) *S

var (
	IdentitySection   Section[domain.Identity]      = func(s *domain.Snapshot) *domain.Identity { return &s.Identity }
	BillingSection    Section[domain.Billing]       = func(s *domain.Snapshot) *domain.Billing { return &s.Billing }
	ModelSection      Section[domain.Model]         = func(s *domain.Snapshot) *domain.Model { return &s.Model }
	ContextSection    Section[domain.ContextWindow] = func(s *domain.Snapshot) *domain.ContextWindow { return &s.Context }
	GitSection        Section[domain.Git]           = func(s *domain.Snapshot) *domain.Git { return &s.Git }
	TranscriptSection Section[domain.Transcript]    = func(s *domain.Snapshot) *domain.Transcript { return &s.Transcript }
	AlertsSection     Section[domain.Alerts]        = func(s *domain.Snapshot) *domain.Alerts { return &s.Alerts }
	QuotaSection      Section[domain.Quota]         = func(s *domain.Snapshot) *domain.Quota { return &s.Quota }
)

type Meta struct {
	ID        string
	Tier      Tier
	Category  string
	Timeout   time.Duration
	DependsOn []string
}

// Descriptor is a registered data source. Build it with NewDescriptor so the
// merge can only touch its declared section.
type Descriptor struct {
	Meta

	fetch func(ctx context.Context, gc domain.GatherContext) (any, error)
	merge func(s *domain.Snapshot, data any)
}

func NewDescriptor[D, S any](
	meta Meta,
	section Section[S],
	fetch func(ctx context.Context, gc domain.GatherContext) (D, error),
	merge func(dst *S, data D),
) Descriptor {
	return Descriptor{
		Meta: meta,
		fetch: func(ctx context.Context, gc domain.GatherContext) (any, error) {
			return fetch(ctx, gc)
		},
		merge: func(s *domain.Snapshot, data any) {
			typed, ok := data.(D)
			if !ok {
				return
			}
			merge(section(s), typed)
		},
	}
}

func (d Descriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("source id is required")
	}
	if d.Tier < TierInstant || d.Tier > TierRemote {
		return fmt.Errorf("source %q: unsupported tier %d", d.ID, d.Tier)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("source %q: timeout must be positive", d.ID)
	}
	if d.fetch == nil || d.merge == nil {
		return fmt.Errorf("source %q: built without NewDescriptor", d.ID)
	}
	return nil
}

func (d Descriptor) Fetch(ctx context.Context, gc domain.GatherContext) (any, error) {
	return d.fetch(ctx, gc)
}

func (d Descriptor) Merge(s *domain.Snapshot, data any) {
	d.merge(s, data)
}
