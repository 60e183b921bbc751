package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opsarena/mailauth/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type appMetrics struct {
	authFlowCounter    metric.Int64Counter
	authReqDuration    metric.Float64Histogram
	mailCounter        metric.Int64Counter
	rateLimitDecisions metric.Int64Counter
	healthCheckCounter metric.Int64Counter
}

var (
	metricsMu sync.RWMutex
	metrics   *appMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))),
	)
	otel.SetMeterProvider(mp)

	if err := initInstruments(mp); err != nil {
		return nil, err
	}
	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func initInstruments(mp *sdkmetric.MeterProvider) error {
	meter := mp.Meter("mailauth")
	m := &appMetrics{}
	var err error
	if m.authFlowCounter, err = meter.Int64Counter("auth.flow",
		metric.WithDescription("Auth operation outcomes by kind")); err != nil {
		return err
	}
	if m.authReqDuration, err = meter.Float64Histogram("auth.request.duration",
		metric.WithDescription("Auth operation latency in seconds"),
		metric.WithUnit("s")); err != nil {
		return err
	}
	if m.mailCounter, err = meter.Int64Counter("verification.email",
		metric.WithDescription("Verification email dispatch outcomes")); err != nil {
		return err
	}
	if m.rateLimitDecisions, err = meter.Int64Counter("ratelimit.decision",
		metric.WithDescription("HTTP rate limiter decisions by scope")); err != nil {
		return err
	}
	if m.healthCheckCounter, err = meter.Int64Counter("health.check",
		metric.WithDescription("Readiness probe results by dependency")); err != nil {
		return err
	}

	metricsMu.Lock()
	metrics = m
	metricsMu.Unlock()
	return nil
}

func current() *appMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return metrics
}

// RecordAuthFlow counts one auth operation outcome, e.g. ("login",
// "rate_limited").
func RecordAuthFlow(ctx context.Context, operation, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.authFlowCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordAuthRequestDuration(ctx context.Context, operation, outcome string, d time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.authReqDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordVerificationEmail(ctx context.Context, trigger, status string) {
	m := current()
	if m == nil {
		return
	}
	m.mailCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("status", status),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, decision string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("decision", decision),
	))
}

func RecordHealthCheck(ctx context.Context, name string, healthy bool) {
	m := current()
	if m == nil {
		return
	}
	m.healthCheckCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dependency", name),
		attribute.Bool("healthy", healthy),
	))
}
