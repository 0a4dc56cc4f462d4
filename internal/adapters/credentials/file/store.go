package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/healthline/internal/adapters/credentials"
	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/ports"
)

const credentialsFile = ".credentials.json"

// Store reads <config dir>/.credentials.json, which the assistant writes on
// systems without a keychain.
type Store struct {
	defaultDir string
}

var _ ports.CredentialStore = (*Store)(nil)

func NewStore(defaultDir string) *Store {
	return &Store{defaultDir: filepath.Clean(defaultDir)}
}

func (s *Store) AccessToken(ctx context.Context, ref ports.CredentialRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := s.pathFor(ref)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("credentials file %q: %w", path, domain.ErrCredentialNotFound)
		}
		return "", fmt.Errorf("read credentials file %q: %w", path, err)
	}

	token, err := credentials.ParseAccessToken(data)
	if err != nil {
		return "", fmt.Errorf("credentials file %q: %w", path, err)
	}
	return token, nil
}

func (s *Store) pathFor(ref ports.CredentialRef) (string, error) {
	dir := strings.TrimSpace(ref.ConfigDir)
	if dir == "" {
		dir = s.defaultDir
	}
	if dir == "" || dir == "." {
		return "", errors.New("credentials directory is empty")
	}
	if !filepath.IsAbs(dir) {
		return "", fmt.Errorf("credentials directory %q must be absolute", dir)
	}

	return filepath.Join(filepath.Clean(dir), credentialsFile), nil
}
