package keychain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bnema/healthline/internal/adapters/credentials"
	"github.com/bnema/healthline/internal/ports"
)

// DefaultService is the keychain item the assistant writes for its primary
// config directory.
const DefaultService = "Claude Code-credentials"

var ErrUnavailable = errors.New("security command unavailable")

type runFunc func(ctx context.Context, args ...string) (stdout string, stderr string, err error)

// Store reads generic passwords from the macOS login keychain.
type Store struct {
	run runFunc
}

var _ ports.CredentialStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{run: runSecurityCommand}
}

func (s *Store) AccessToken(ctx context.Context, ref ports.CredentialRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	service := strings.TrimSpace(ref.KeychainKey)
	if service == "" {
		service = DefaultService
	}

	stdout, stderr, err := s.run(ctx, "find-generic-password", "-s", service, "-w")
	if err != nil {
		return "", formatError(service, err, stderr)
	}

	token, err := credentials.ParseAccessToken([]byte(stdout))
	if err != nil {
		return "", fmt.Errorf("keychain item %q: %w", service, err)
	}
	return token, nil
}

func runSecurityCommand(ctx context.Context, args ...string) (string, string, error) {
	path, err := exec.LookPath("security")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", ErrUnavailable
		}
		return "", "", fmt.Errorf("locate security command: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

func formatError(service string, err error, stderr string) error {
	if stderr == "" {
		return fmt.Errorf("keychain lookup %q: %w", service, err)
	}

	return fmt.Errorf("keychain lookup %q: %w: %s", service, err, stderr)
}
