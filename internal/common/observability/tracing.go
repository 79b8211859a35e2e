package observability

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// EnableTracing exports spans to the Jaeger collector at endpoint
// (e.g. http://jaeger:14268/api/traces) and installs the tracer provider
// globally. An empty endpoint leaves tracing disabled.
func (o *Observability) EnableTracing(endpoint string) error {
	if endpoint == "" {
		return nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	if err != nil {
		return fmt.Errorf("create jaeger exporter: %w", err)
	}
	return o.enableTracing(sdktrace.WithBatcher(exporter))
}

func (o *Observability) enableTracing(opts ...sdktrace.TracerProviderOption) error {
	res := resource.NewSchemaless(attribute.String("service.name", o.serviceName))
	provider := sdktrace.NewTracerProvider(append(opts, sdktrace.WithResource(res))...)

	otel.SetTracerProvider(provider)
	o.tracerProvider = provider
	o.tracer = provider.Tracer(o.serviceName)
	return nil
}
