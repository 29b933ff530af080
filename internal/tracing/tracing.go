// Package tracing wires OpenTelemetry spans around request-tracker and
// plugin-host calls (SPEC_FULL §1 ambient stack, §4.1). Exporting spans
// over the wire is outside this core's scope (spec §6: "the core does not
// define a wire protocol") so only the SDK is used, with no exporter and no
// span processor: spans are created and ended but not retained.
package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/apex-build/corebuild"

var (
	once     sync.Once
	provider *trace.TracerProvider
)

// Init installs a process-wide SDK TracerProvider with no span processor
// registered, so ended spans are dropped. Safe to call multiple times.
func Init() {
	once.Do(func() {
		provider = trace.NewTracerProvider()
		otel.SetTracerProvider(provider)
	})
}

// Tracer returns the build core's named tracer, initializing the provider
// on first use.
func Tracer() oteltrace.Tracer {
	if provider == nil {
		Init()
	}
	return otel.Tracer(tracerName)
}

// Shutdown flushes and releases the tracer provider. Call once at the end
// of a build.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

// StartSpan starts a span named for a request id, matching the naming
// convention "request.<kind>" used across run_request call sites.
func StartSpan(ctx context.Context, kind, requestID string) (context.Context, oteltrace.Span) {
	return Tracer().Start(ctx, "request."+kind, oteltrace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("request.kind", kind),
	))
}
