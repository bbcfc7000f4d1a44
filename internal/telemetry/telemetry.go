// Package telemetry sets up structured logging and OpenTelemetry metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// RotatingFile returns a size-rotated log file writer.
func RotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // 10 MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// NewLogger builds a slog logger. Logs go to the rotating file at path when
// set, otherwise to fallback. The returned closer releases the file.
func NewLogger(path string, fallback io.Writer, level slog.Level) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: level}
	if path == "" {
		return slog.New(slog.NewTextHandler(fallback, opts)), io.NopCloser(nil)
	}
	file := RotatingFile(path)
	return slog.New(slog.NewJSONHandler(file, opts)), file
}

// InitMetrics installs a global meter provider that exports to the rotating
// file at path every interval. An empty path installs the no-op provider.
// The returned shutdown flushes pending metrics.
func InitMetrics(ctx context.Context, service, path string, interval time.Duration) (metric.MeterProvider, func(context.Context) error, error) {
	if path == "" {
		mp := noop.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return mp, func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(service)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	file := RotatingFile(path)
	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(file),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), file.Close())
	}
	return mp, shutdown, nil
}
