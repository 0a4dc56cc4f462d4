package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/bnema/healthline/internal/ports"
)

const serviceName = "healthline"

var ErrDisabled = errors.New("otel exporter is disabled or endpoint not configured")

var _ ports.MetricsRecorder = (*Recorder)(nil)

// Recorder exports gather timings and per-source outcomes to an OTLP
// collector.
type Recorder struct {
	provider       *sdkmetric.MeterProvider
	gatherDuration metric.Float64Histogram
	gathers        metric.Int64Counter
	outcomes       metric.Int64Counter
}

func NewRecorder(ctx context.Context, cfg Config, version string) (*Recorder, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, ErrDisabled
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)

	return newRecorder(provider)
}

func newRecorder(provider *sdkmetric.MeterProvider) (*Recorder, error) {
	meter := provider.Meter(serviceName)

	gatherDuration, err := meter.Float64Histogram(
		"healthline_gather_duration_seconds",
		metric.WithDescription("Wall time of one gather cycle"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create gather duration histogram: %w", err)
	}

	gathers, err := meter.Int64Counter(
		"healthline_gathers_total",
		metric.WithDescription("Gather cycles run"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create gather counter: %w", err)
	}

	outcomes, err := meter.Int64Counter(
		"healthline_source_outcomes_total",
		metric.WithDescription("Data source results per gather cycle"),
		metric.WithUnit("{source}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create outcome counter: %w", err)
	}

	return &Recorder{
		provider:       provider,
		gatherDuration: gatherDuration,
		gathers:        gathers,
		outcomes:       outcomes,
	}, nil
}

func (r *Recorder) RecordGather(ctx context.Context, m ports.GatherMetrics) {
	changed := metric.WithAttributes(attribute.Bool("changed", m.Changed))
	r.gatherDuration.Record(ctx, m.Duration.Seconds(), changed)
	r.gathers.Add(ctx, 1, changed)

	for source, outcome := range m.Outcomes {
		r.outcomes.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("outcome", string(outcome)),
		))
	}
}

// Close flushes pending metrics and shuts the exporter down.
func (r *Recorder) Close(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}
