// Package observability wires up OpenTelemetry tracing the way the
// rest of the ambient stack is env-gated: no endpoint configured means
// spans still flow to a stdout exporter rather than being silently
// dropped, so a developer running the core locally can see them.
package observability

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ontocore/ontocore-server/internal/config"
	"github.com/ontocore/ontocore-server/internal/logger"
)

const TracerName = "ontocore"

var (
	initOnce     sync.Once
	shutdownFunc func(context.Context) error
)

// Init bootstraps a tracer provider once per process. Safe to call
// unconditionally; cfg.OTelEnabled == false leaves tracing a no-op
// provider so Tracer(...) calls elsewhere never need a nil check.
func Init(ctx context.Context, log *logger.Logger, cfg config.Config) func(context.Context) error {
	initOnce.Do(func() {
		if !cfg.OTelEnabled {
			shutdownFunc = func(context.Context) error { return nil }
			return
		}
		res, err := resource.New(ctx)
		if err != nil && log != nil {
			log.Warn("otel resource init failed (continuing)", "error", err)
		}

		exporter, expErr := buildExporter(ctx)
		if expErr != nil && log != nil {
			log.Warn("otel exporter init failed, using stdout", "error", expErr)
		}

		var opts []sdktrace.TracerProviderOption
		if exporter != nil {
			opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
		}
		if res != nil {
			opts = append(opts, sdktrace.WithResource(res))
		}
		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{},
		))
		shutdownFunc = tp.Shutdown
		if log != nil {
			log.Info("otel tracing initialized")
		}
	})
	return shutdownFunc
}

func buildExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if endpoint != "" {
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	}
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
