// Package credentials reads the OAuth access token the assistant stored for a
// credential slot.
package credentials

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/bnema/healthline/internal/domain"
)

type oauthCredentials struct {
	ClaudeAiOauth struct {
		AccessToken string `json:"accessToken"`
		ExpiresAt   int64  `json:"expiresAt"`
	} `json:"claudeAiOauth"`
}

// ParseAccessToken accepts either the JSON credentials document or a bare
// token.
func ParseAccessToken(raw []byte) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "", domain.ErrCredentialNotFound
	}

	if !strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}

	var creds oauthCredentials
	if err := json.Unmarshal([]byte(trimmed), &creds); err != nil {
		return "", errors.Join(domain.ErrCredentialNotFound, err)
	}
	if creds.ClaudeAiOauth.AccessToken == "" {
		return "", domain.ErrCredentialNotFound
	}

	return creds.ClaudeAiOauth.AccessToken, nil
}
