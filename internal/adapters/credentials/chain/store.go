package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	filestore "github.com/bnema/healthline/internal/adapters/credentials/file"
	keychainstore "github.com/bnema/healthline/internal/adapters/credentials/keychain"
	"github.com/bnema/healthline/internal/cache"
	"github.com/bnema/healthline/internal/ports"
)

// Store asks the primary backend first and falls back to the secondary one.
// Successful lookups are memoised per credential reference.
type Store struct {
	primary  ports.CredentialStore
	fallback ports.CredentialStore
	memo     *cache.Memo[ports.CredentialRef, string]
}

var _ ports.CredentialStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary credential store is nil")
	errNilFallbackStore = errors.New("fallback credential store is nil")
)

func NewStore(primary ports.CredentialStore, fallback ports.CredentialStore, ttl time.Duration, clock ports.Clock) *Store {
	store, err := NewStoreChecked(primary, fallback, ttl, clock)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(primary ports.CredentialStore, fallback ports.CredentialStore, ttl time.Duration, clock ports.Clock) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{
		primary:  primary,
		fallback: fallback,
		memo:     cache.NewMemo[ports.CredentialRef, string](ttl, clock),
	}, nil
}

func NewKeychainFirstWithFileFallback(defaultDir string, ttl time.Duration, clock ports.Clock) (*Store, error) {
	return NewStoreChecked(keychainstore.NewStore(), filestore.NewStore(defaultDir), ttl, clock)
}

func (s *Store) AccessToken(ctx context.Context, ref ports.CredentialRef) (string, error) {
	if token, ok := s.memo.Get(ref); ok {
		return token, nil
	}

	token, err := s.lookup(ctx, ref)
	if err != nil {
		return "", err
	}

	s.memo.Put(ref, token)
	return token, nil
}

func (s *Store) lookup(ctx context.Context, ref ports.CredentialRef) (string, error) {
	token, err := s.primary.AccessToken(ctx, ref)
	if err == nil {
		return token, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	fallbackToken, fallbackErr := s.fallback.AccessToken(ctx, ref)
	if fallbackErr == nil {
		return fallbackToken, nil
	}

	return "", fmt.Errorf("primary backend lookup failed: %w; fallback backend lookup failed: %w", err, fallbackErr)
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
