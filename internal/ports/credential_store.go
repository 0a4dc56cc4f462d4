package ports

import "context"

// CredentialRef names where a slot's OAuth credentials live.
type CredentialRef struct {
	KeychainKey string
	ConfigDir   string
}

type CredentialStore interface {
	AccessToken(ctx context.Context, ref CredentialRef) (string, error)
}
