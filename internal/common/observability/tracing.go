package observability

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"credisense/internal/common/config"
)

// NewTracerProvider builds the tracer provider and installs it globally.
// With the "none" exporter spans are still created and sampled, but never
// leave the process. Callers own Shutdown.
func NewTracerProvider(serviceName, version string, cfg config.TracingConfig, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	ratio := cfg.SampleRatio
	if ratio == 0 {
		ratio = 1
	}

	all := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}

	switch cfg.Exporter {
	case "", config.TracingExporterNone:
	case config.TracingExporterJaeger:
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
		if err != nil {
			return nil, fmt.Errorf("failed to create jaeger exporter: %w", err)
		}
		all = append(all, sdktrace.WithBatcher(exporter))
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q", cfg.Exporter)
	}

	provider := sdktrace.NewTracerProvider(append(all, opts...)...)
	otel.SetTracerProvider(provider)
	return provider, nil
}
