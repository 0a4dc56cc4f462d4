// Package config resolves healthline settings from defaults, an optional
// TOML file and HEALTHLINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/healthline/internal/billing"
	"github.com/bnema/healthline/internal/broker"
	"github.com/bnema/healthline/internal/freshness"
	"github.com/bnema/healthline/internal/sources"
)

const (
	EnvPrefix = "HEALTHLINE"
	// FileKey names an explicit config file and overrides the default path.
	FileKey = "config"

	appDirName = "healthline"
)

type Config struct {
	HealthDir string
	Deadline  time.Duration
	LogLevel  slog.Level
	// CacheTTL bounds how long a process keeps a parsed cache file.
	CacheTTL time.Duration

	Freshness freshness.Config
	Budget    billing.Budget
	Quota     QuotaConfig
	Sources   SourcesConfig
	Metrics   MetricsConfig
	Intents   IntentsConfig
	Refresh   RefreshConfig
}

type QuotaConfig struct {
	UsageBaseURL   string
	CredentialTTL  time.Duration
	RecommendAfter time.Duration
	RequestTimeout time.Duration
}

type SourcesConfig struct {
	NearCompactionPercent int
	Timeouts              map[string]time.Duration
}

type MetricsConfig struct {
	Enabled  bool
	Endpoint string
	Insecure bool
}

type RefreshConfig struct {
	// Spawn lets renders start background refreshers. When off they only
	// signal intents.
	Spawn bool
}

type IntentsConfig struct {
	// MaxAge is how old a pending intent may get before clean drops it.
	MaxAge time.Duration
}

func (c Config) SessionsDir() string {
	return filepath.Join(c.HealthDir, "sessions")
}

func (c Config) IntentsDir() string {
	return filepath.Join(c.HealthDir, "intents")
}

func (c Config) QuotaCachePath() string {
	return filepath.Join(c.HealthDir, "quota-cache.json")
}

func (c Config) BillingCachePath() string {
	return filepath.Join(c.HealthDir, "billing.json")
}

func setDefaults(v *viper.Viper) {
	def := freshness.DefaultConfig()
	setCategoryDefaults(v, def.Default)
	for _, c := range def.Categories {
		setCategoryDefaults(v, c)
	}

	v.SetDefault("deadline", broker.DefaultBudget)
	v.SetDefault("log.level", "warn")
	v.SetDefault("cache_ttl", 5*time.Second)
	v.SetDefault("refresh.spawn", true)

	v.SetDefault("billing.daily_budget", 0.0)
	v.SetDefault("billing.reset_time", "00:00")

	v.SetDefault("quota.usage_base_url", "https://api.anthropic.com")
	v.SetDefault("quota.credential_ttl", 5*time.Minute)
	v.SetDefault("quota.recommend_after", 15*time.Minute)
	v.SetDefault("quota.request_timeout", 10*time.Second)

	v.SetDefault("sources.near_compaction_percent", sources.DefaultNearCompactionPercent)
	for id, timeout := range sources.DefaultTimeouts() {
		v.SetDefault("sources.timeouts."+id, timeout)
	}

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.endpoint", "")
	v.SetDefault("metrics.insecure", false)

	v.SetDefault("intents.max_age", time.Hour)
}

func setCategoryDefaults(v *viper.Viper, c freshness.Category) {
	prefix := "freshness." + c.Name + "."
	v.SetDefault(prefix+"fresh", c.Fresh)
	v.SetDefault(prefix+"stale", c.Stale)
	v.SetDefault(prefix+"cooldown", c.Cooldown)
}

// Load fills v with defaults, the config file and the environment, then
// decodes the result. A missing config file is not an error.
func Load(v *viper.Viper) (Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v); err != nil {
		return Config{}, err
	}

	healthDir := v.GetString("health_dir")
	if healthDir == "" {
		dir, err := defaultHealthDir()
		if err != nil {
			return Config{}, err
		}
		healthDir = dir
	}
	healthDir, err := normalizeDir(healthDir)
	if err != nil {
		return Config{}, fmt.Errorf("normalize health dir: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		return Config{}, fmt.Errorf("parse log.level: %w", err)
	}

	resetTime := strings.TrimSpace(v.GetString("billing.reset_time"))
	if _, err := time.Parse("15:04", resetTime); err != nil {
		return Config{}, fmt.Errorf("parse billing.reset_time %q: expected HH:MM", resetTime)
	}

	cfg := Config{
		HealthDir: healthDir,
		Deadline:  v.GetDuration("deadline"),
		LogLevel:  level,
		CacheTTL:  v.GetDuration("cache_ttl"),
		Freshness: loadFreshness(v),
		Budget: billing.Budget{
			DailyUSD:  v.GetFloat64("billing.daily_budget"),
			ResetTime: resetTime,
		},
		Quota: QuotaConfig{
			UsageBaseURL:   strings.TrimRight(v.GetString("quota.usage_base_url"), "/"),
			CredentialTTL:  v.GetDuration("quota.credential_ttl"),
			RecommendAfter: v.GetDuration("quota.recommend_after"),
			RequestTimeout: v.GetDuration("quota.request_timeout"),
		},
		Sources: SourcesConfig{
			NearCompactionPercent: v.GetInt("sources.near_compaction_percent"),
			Timeouts:              map[string]time.Duration{},
		},
		Metrics: MetricsConfig{
			Enabled:  v.GetBool("metrics.enabled"),
			Endpoint: v.GetString("metrics.endpoint"),
			Insecure: v.GetBool("metrics.insecure"),
		},
		Intents: IntentsConfig{MaxAge: v.GetDuration("intents.max_age")},
		Refresh: RefreshConfig{Spawn: v.GetBool("refresh.spawn")},
	}
	for id := range sources.DefaultTimeouts() {
		cfg.Sources.Timeouts[id] = v.GetDuration("sources.timeouts." + id)
	}

	if cfg.Deadline <= 0 {
		return Config{}, fmt.Errorf("deadline must be positive")
	}
	if p := cfg.Sources.NearCompactionPercent; p <= 0 || p > 100 {
		return Config{}, fmt.Errorf("sources.near_compaction_percent must be within 1..100, got %d", p)
	}

	return cfg, nil
}

func loadFreshness(v *viper.Viper) freshness.Config {
	def := freshness.DefaultConfig()
	out := freshness.Config{
		Default:    loadCategory(v, freshness.CategoryDefault),
		Categories: make(map[string]freshness.Category, len(def.Categories)),
	}
	for name := range def.Categories {
		out.Categories[name] = loadCategory(v, name)
	}
	return out
}

func loadCategory(v *viper.Viper, name string) freshness.Category {
	prefix := "freshness." + name + "."
	return freshness.Category{
		Name:     name,
		Fresh:    v.GetDuration(prefix + "fresh"),
		Stale:    v.GetDuration(prefix + "stale"),
		Cooldown: v.GetDuration(prefix + "cooldown"),
	}
}

func readConfigFile(v *viper.Viper) error {
	path := v.GetString(FileKey)
	explicit := path != ""
	if !explicit {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(dir, appDirName, "config.toml")
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && (errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func defaultHealthDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appDirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", appDirName), nil
}

func normalizeDir(dir string) (string, error) {
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}
