// Package telemetry sets up OpenTelemetry export for the node host.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/sflowg/randomnode/runtime"
)

// Telemetry holds the providers installed by Setup.
type Telemetry struct {
	// Logger exports through OpenTelemetry; nil unless log export is enabled.
	Logger *slog.Logger

	shutdowns []func(context.Context) error
}

// Setup installs global tracer and meter providers exporting over OTLP/gRPC.
// With telemetry disabled it returns a Telemetry whose Shutdown is a no-op and
// the global no-op providers stay in place.
func Setup(ctx context.Context, cfg runtime.TelemetryConfig, logger *slog.Logger) (*Telemetry, error) {
	t := &Telemetry{}
	if !cfg.Enabled {
		return t, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Setting up telemetry",
		"service_name", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"environment", cfg.Environment)

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		logger.Error("Failed to create OTLP trace exporter", "error", err)
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.shutdowns = append(t.shutdowns, tp.Shutdown)

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		logger.Error("Failed to create OTLP metric exporter", "error", err)
		_ = t.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(cfg.MetricInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	t.shutdowns = append(t.shutdowns, mp.Shutdown)

	if cfg.Logs {
		logExporter, err := otlploggrpc.New(ctx, logOpts...)
		if err != nil {
			logger.Error("Failed to create OTLP log exporter", "error", err)
			_ = t.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create log exporter: %w", err)
		}
		lp := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		t.Logger = otelslog.NewLogger(cfg.ServiceName, otelslog.WithLoggerProvider(lp))
		t.shutdowns = append(t.shutdowns, lp.Shutdown)
	}

	logger.Info("Telemetry setup completed")
	return t, nil
}

// Shutdown flushes and stops every provider, last installed first.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(t.shutdowns) - 1; i >= 0; i-- {
		if err := t.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdowns = nil
	return errors.Join(errs...)
}

// Tee returns a logger writing to local as well as the OpenTelemetry log
// exporter. Without log export it returns local unchanged.
func (t *Telemetry) Tee(local *slog.Logger) *slog.Logger {
	if t.Logger == nil {
		return local
	}
	return slog.New(fanoutHandler{local.Handler(), t.Logger.Handler()})
}

// ShutdownWithTimeout is Shutdown bounded by timeout, for use on process exit.
func (t *Telemetry) ShutdownWithTimeout(timeout time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := t.Shutdown(ctx)
	if err != nil && logger != nil {
		logger.Error("Failed to shutdown telemetry", "error", err)
	}
	return err
}
