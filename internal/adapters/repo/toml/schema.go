package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int                   `toml:"version"`
	Active  string                `toml:"active,omitempty"`
	Slots   map[string]slotSchema `toml:"slots"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
	if s.Slots == nil {
		s.Slots = map[string]slotSchema{}
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported session registry schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type slotSchema struct {
	Email              string `toml:"email,omitempty"`
	ConfigDir          string `toml:"config_dir,omitempty"`
	KeychainKey        string `toml:"keychain_key,omitempty"`
	Status             string `toml:"status,omitempty"`
	DeactivatedAt      string `toml:"deactivated_at,omitempty"`
	DeactivationReason string `toml:"deactivation_reason,omitempty"`
	ReactivatedAt      string `toml:"reactivated_at,omitempty"`
}
