// Package telemetry wires the daemon to an OTLP collector. [Setup] installs
// global trace, metric and log providers over one shared gRPC connection, and
// [NewSlogHandler] mirrors slog records into the log provider so the refresh
// engine's structured logs reach the collector next to its fetch spans and
// counters.
//
// Without Setup the global providers stay no-ops.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Config groups all telemetry settings. It maps 1-to-1 with the
// [config.TelemetryConfig] YAML block plus the build version.
type Config struct {
	// OTLPEndpoint is the gRPC host:port of the collector, e.g. "localhost:4317".
	OTLPEndpoint string

	// Insecure disables TLS for local collectors without a certificate.
	Insecure bool

	// ServiceName overrides service.name. Defaults to [DefaultServiceName].
	ServiceName string

	// ServiceVersion is reported as service.version when set.
	ServiceVersion string

	// Headers is sent as gRPC metadata on every export, typically
	// {"Authorization": "Bearer <token>"}.
	Headers map[string]string
}

// DefaultServiceName is the service.name used when none is configured.
const DefaultServiceName = "prayerrelay"

// ShutdownFunc flushes and closes all OTel providers. Call it with a fresh
// context; the daemon's own context is already cancelled by then.
type ShutdownFunc func(context.Context) error

// Setup installs global trace, metric and log providers exporting to
// cfg.OTLPEndpoint over one gRPC connection. The returned [ShutdownFunc] is
// never nil, so callers can defer it even when Setup fails.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.OTLPEndpoint == "" {
		return noopShutdown, errors.New("telemetry: OTLP endpoint is required")
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	conn, err := grpc.NewClient(cfg.OTLPEndpoint, grpc.WithTransportCredentials(transportCredentials(cfg.Insecure)))
	if err != nil {
		return noopShutdown, fmt.Errorf("dialling OTLP collector at %q: %w", cfg.OTLPEndpoint, err)
	}

	// Shutdown runs in reverse order of construction, connection last.
	var stack shutdownStack
	stack.push("OTLP gRPC connection", func(context.Context) error { return conn.Close() })

	traceExp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn), otlptracegrpc.WithHeaders(cfg.Headers))
	if err != nil {
		_ = stack.unwind(ctx)
		return noopShutdown, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp), sdktrace.WithResource(res))
	stack.push("trace provider", tp.Shutdown)

	metricExp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn), otlpmetricgrpc.WithHeaders(cfg.Headers))
	if err != nil {
		_ = stack.unwind(ctx)
		return noopShutdown, fmt.Errorf("creating OTLP metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)), sdkmetric.WithResource(res))
	stack.push("metric provider", mp.Shutdown)

	logExp, err := otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(conn), otlploggrpc.WithHeaders(cfg.Headers))
	if err != nil {
		_ = stack.unwind(ctx)
		return noopShutdown, fmt.Errorf("creating OTLP log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)), sdklog.WithResource(res))
	stack.push("log provider", lp.Shutdown)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	global.SetLoggerProvider(lp)

	return stack.unwind, nil
}

// newResource describes this daemon instance: service name and version plus
// the host name and SDK identity.
func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("building OTel resource: %w", err)
	}
	return res, nil
}

func transportCredentials(insecureConn bool) credentials.TransportCredentials {
	if insecureConn {
		return insecure.NewCredentials()
	}
	return credentials.NewTLS(nil) // system root CAs
}

// shutdownStack collects named shutdown steps.
type shutdownStack []struct {
	name string
	fn   func(context.Context) error
}

func (s *shutdownStack) push(name string, fn func(context.Context) error) {
	*s = append(*s, struct {
		name string
		fn   func(context.Context) error
	}{name, fn})
}

// unwind runs every step, newest first, and joins their errors.
func (s shutdownStack) unwind(ctx context.Context) error {
	var errs []error
	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s shutdown: %w", s[i].name, err))
		}
	}
	return errors.Join(errs...)
}

func noopShutdown(context.Context) error { return nil }
