// Package obs provides the ambient logging and telemetry setup shared by
// every brain component: a component-scoped slog.Logger and an otel
// meter/tracer provider pair that defaults to a no-op and upgrades to a
// stdout exporter when BRAIN_OTEL=1 is set.
package obs

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var (
	initOnce    sync.Once
	meterProv   metric.MeterProvider = otel.GetMeterProvider()
	tracerProv  trace.TracerProvider = otel.GetTracerProvider()
	baseLogger                       = slog.Default()
)

// Setup wires a stdout metric/trace exporter when BRAIN_OTEL=1 is set in
// the environment, matching the gate the teacher uses for its optional
// otel hook. It is safe to call more than once; only the first call has
// an effect.
func Setup(ctx context.Context) (shutdown func(context.Context) error) {
	var shutdowns []func(context.Context) error
	initOnce.Do(func() {
		if os.Getenv("BRAIN_OTEL") != "1" {
			return
		}
		metricExp, err := stdoutmetric.New()
		if err == nil {
			mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
			meterProv = mp
			otel.SetMeterProvider(mp)
			shutdowns = append(shutdowns, mp.Shutdown)
		}
		traceExp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err == nil {
			tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp))
			tracerProv = tp
			otel.SetTracerProvider(tp)
			shutdowns = append(shutdowns, tp.Shutdown)
		}
	})
	return func(ctx context.Context) error {
		for _, fn := range shutdowns {
			if err := fn(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Meter returns a named meter from the active provider.
func Meter(name string) metric.Meter {
	return meterProv.Meter(name)
}

// Tracer returns a named tracer from the active provider.
func Tracer(name string) trace.Tracer {
	return tracerProv.Tracer(name)
}

// Logger returns a logger scoped to component, the way the teacher tags
// its per-package loggers with a "component" field.
func Logger(component string) *slog.Logger {
	return baseLogger.With(slog.String("component", component))
}
