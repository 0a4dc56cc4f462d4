package ports

import (
	"context"

	"github.com/bnema/healthline/internal/domain"
)

type SessionRegistryRepository interface {
	Load(ctx context.Context) (domain.SessionRegistry, error)
	Save(ctx context.Context, registry domain.SessionRegistry) error
	// Update is a locked read-modify-write.
	Update(ctx context.Context, fn func(*domain.SessionRegistry) error) error
}
