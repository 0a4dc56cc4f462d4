// Package toml stores the session registry, the hand-editable list of
// credential slots, as a TOML file.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/bnema/healthline/internal/atomicfile"
	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/ports"
)

const (
	RegistryPathKey  = "registry.path"
	registryFileName = "slots.toml"
	appConfigDir     = "healthline"
)

type Repository struct {
	registryPath string
	mu           *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.SessionRegistryRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	if !cfg.IsSet(RegistryPathKey) {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config directory: %w", err)
		}
		cfg.SetDefault(RegistryPathKey, filepath.Join(configDir, appConfigDir, registryFileName))
	}

	registryPath := cfg.GetString(RegistryPathKey)
	if registryPath == "" {
		return nil, errors.New("session registry path is empty")
	}
	registryPath, err := normalizeRegistryPath(registryPath)
	if err != nil {
		return nil, err
	}

	return &Repository{registryPath: registryPath, mu: lockForPath(registryPath)}, nil
}

func (r *Repository) Path() string {
	return r.registryPath
}

// Load returns an empty registry when the file does not exist yet.
func (r *Repository) Load(ctx context.Context) (domain.SessionRegistry, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionRegistry{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.SessionRegistry{}, err
	}

	return fromSchema(file), nil
}

func (r *Repository) Save(ctx context.Context, registry domain.SessionRegistry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, slot := range registry.Slots {
		if err := slot.Validate(); err != nil {
			return fmt.Errorf("slot %q: %w", slot.ID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(toSchema(registry))
}

// Update applies fn to the stored registry and saves the result while holding
// the write lock.
func (r *Repository) Update(ctx context.Context, fn func(*domain.SessionRegistry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	registry := fromSchema(file)
	if err := fn(&registry); err != nil {
		return err
	}
	for _, slot := range registry.Slots {
		if err := slot.Validate(); err != nil {
			return fmt.Errorf("slot %q: %w", slot.ID, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(toSchema(registry))
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.registryPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := fileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return fileSchema{}, fmt.Errorf("read session registry: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode session registry: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode session registry: %w", err)
	}

	if err := atomicfile.Write(r.registryPath, data, atomicfile.FileMode); err != nil {
		return fmt.Errorf("write session registry: %w", err)
	}

	return nil
}

func normalizeRegistryPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve session registry path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func toSchema(registry domain.SessionRegistry) fileSchema {
	file := fileSchema{
		Version: currentSchemaVersion,
		Active:  registry.Active,
		Slots:   make(map[string]slotSchema, len(registry.Slots)),
	}

	for _, slot := range registry.Slots {
		file.Slots[slot.ID] = slotSchema{
			Email:              slot.Email,
			ConfigDir:          slot.ConfigDir,
			KeychainKey:        slot.KeychainKey,
			Status:             string(slot.Status),
			DeactivatedAt:      formatTime(slot.DeactivatedAt),
			DeactivationReason: slot.DeactivationReason,
			ReactivatedAt:      formatTime(slot.ReactivatedAt),
		}
	}

	return file
}

func fromSchema(file fileSchema) domain.SessionRegistry {
	ids := make([]string, 0, len(file.Slots))
	for id := range file.Slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	registry := domain.SessionRegistry{Active: file.Active, Slots: make([]domain.RegistrySlot, 0, len(ids))}
	for _, id := range ids {
		entry := file.Slots[id]
		registry.Slots = append(registry.Slots, domain.RegistrySlot{
			ID:                 id,
			Email:              entry.Email,
			ConfigDir:          entry.ConfigDir,
			KeychainKey:        entry.KeychainKey,
			Status:             domain.SlotStatus(entry.Status),
			DeactivatedAt:      parseTime(entry.DeactivatedAt),
			DeactivationReason: entry.DeactivationReason,
			ReactivatedAt:      parseTime(entry.ReactivatedAt),
		})
	}

	return registry
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339)
}
