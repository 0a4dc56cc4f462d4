package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	chaincreds "github.com/bnema/healthline/internal/adapters/credentials/chain"
	"github.com/bnema/healthline/internal/adapters/gitcli"
	otelmetrics "github.com/bnema/healthline/internal/adapters/metrics/otel"
	statusadapter "github.com/bnema/healthline/internal/adapters/render/status"
	tomlrepo "github.com/bnema/healthline/internal/adapters/repo/toml"
	"github.com/bnema/healthline/internal/adapters/spawn"
	"github.com/bnema/healthline/internal/adapters/transcript"
	"github.com/bnema/healthline/internal/adapters/usage"
	"github.com/bnema/healthline/internal/application"
	"github.com/bnema/healthline/internal/billing"
	"github.com/bnema/healthline/internal/broker"
	"github.com/bnema/healthline/internal/config"
	"github.com/bnema/healthline/internal/coord"
	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/freshness"
	"github.com/bnema/healthline/internal/ports"
	"github.com/bnema/healthline/internal/quota"
	"github.com/bnema/healthline/internal/registry"
	"github.com/bnema/healthline/internal/sources"
	"github.com/bnema/healthline/internal/state"
	"github.com/bnema/healthline/internal/version"
)

type app struct {
	cfg            config.Config
	health         *application.HealthService
	quota          *application.QuotaService
	billing        *application.BillingService
	slots          ports.SessionRegistryRepository
	coordinator    *coord.Coordinator
	metrics        ports.MetricsRecorder
	statusRenderer func(*domain.Snapshot, statusadapter.RenderOptions) (string, error)
	lineRenderer   func(*domain.Snapshot) string
	now            func() time.Time
}

func wireApp() (*app, error) {
	v := viper.New()
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	clock := ports.SystemClock{}
	fresh := freshness.New(cfg.Freshness, clock)

	repo, err := tomlrepo.NewRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire session registry: %w", err)
	}

	claudeDir, err := defaultClaudeDir()
	if err != nil {
		return nil, err
	}
	creds, err := chaincreds.NewKeychainFirstWithFileFallback(claudeDir, cfg.Quota.CredentialTTL, clock)
	if err != nil {
		return nil, fmt.Errorf("wire credential store chain: %w", err)
	}

	coordinator := coord.NewCoordinator(cfg.IntentsDir(), clock)
	quotaCache := quota.NewCacheStore(cfg.QuotaCachePath(), cfg.CacheTTL, clock)
	billingCache := billing.NewCacheStore(cfg.BillingCachePath(), cfg.CacheTTL, clock)
	resolver := quota.NewResolver(fresh)
	recommender := quota.NewRecommender(cfg.Quota.RecommendAfter, clock)

	deps := sources.Deps{
		Clock:                 clock,
		Freshness:             fresh,
		Transcripts:           transcript.NewScanner(true),
		Git:                   gitcli.NewInspector(),
		Billing:               billingCache,
		Budget:                cfg.Budget,
		Quota:                 quotaCache,
		Slots:                 repo,
		Resolver:              resolver,
		Recommender:           recommender,
		Coordinator:           coordinator,
		NearCompactionPercent: cfg.Sources.NearCompactionPercent,
		Timeouts:              cfg.Sources.Timeouts,
	}
	if cfg.Refresh.Spawn {
		spawner, err := spawn.NewDetached("")
		if err != nil {
			slog.Debug("wire: background refresh disabled", "error", err)
		} else {
			deps.QuotaGate = coord.NewRefreshGate(coordinator, freshness.CategoryQuotaBroker, spawner, "quota", "refresh", "--background")
			deps.BillingGate = coord.NewRefreshGate(coordinator, freshness.CategoryBillingLocal, spawner, "billing", "refresh", "--background")
		}
	}

	reg := registry.New()
	if err := sources.Register(reg, deps); err != nil {
		return nil, fmt.Errorf("wire data sources: %w", err)
	}

	metrics := wireMetrics(cfg.Metrics)

	httpClient := &http.Client{Timeout: cfg.Quota.RequestTimeout}

	return &app{
		cfg: cfg,
		health: application.NewHealthService(
			broker.New(broker.Options{Registry: reg, Freshness: fresh, Clock: clock, Budget: cfg.Deadline}),
			state.NewStore(cfg.SessionsDir()),
			clock,
			metrics,
		),
		quota: application.NewQuotaService(application.QuotaServiceDeps{
			Slots:       repo,
			Credentials: creds,
			Usage:       usage.NewClient(httpClient, cfg.Quota.UsageBaseURL, "healthline/"+version.Version),
			Cache:       quotaCache,
			Coordinator: coordinator,
			Resolver:    resolver,
			Recommender: recommender,
			Clock:       clock,
		}),
		billing: application.NewBillingService(application.BillingServiceDeps{
			Ledger:       transcript.NewLedger(),
			Cache:        billingCache,
			Budget:       cfg.Budget,
			Slots:        repo,
			Coordinator:  coordinator,
			DefaultRoots: []string{claudeDir},
			Clock:        clock,
		}),
		slots:          repo,
		coordinator:    coordinator,
		metrics:        metrics,
		statusRenderer: statusadapter.Render,
		lineRenderer:   statusadapter.Line,
		now:            time.Now,
	}, nil
}

func wireMetrics(cfg config.MetricsConfig) ports.MetricsRecorder {
	recorder, err := otelmetrics.NewRecorder(context.Background(), otelmetrics.Config{
		Endpoint: cfg.Endpoint,
		Enabled:  cfg.Enabled,
		Insecure: cfg.Insecure,
	}, version.Version)
	if err != nil {
		if !errors.Is(err, otelmetrics.ErrDisabled) {
			slog.Warn("wire: metrics exporter unavailable", "error", err)
		}
		return otelmetrics.NoOpRecorder{}
	}
	return recorder
}

// defaultClaudeDir is the assistant's config dir for sessions that do not
// name one.
func defaultClaudeDir() (string, error) {
	if dir := os.Getenv("CLAUDE_CONFIG_DIR"); dir != "" {
		return filepath.Abs(dir)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".claude"), nil
}

// closeMetrics flushes metrics at the end of a command.
func (a *app) closeMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.metrics.Close(ctx); err != nil {
		slog.Debug("metrics: close", "error", err)
	}
}
