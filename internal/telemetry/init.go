// Package telemetry initializes the OpenTelemetry tracer provider used by
// internal/telemetry/lookuptrace to trace the lookup path only.
package telemetry

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"discofabric/internal/config"
	"discofabric/internal/ring"
)

// InitTracer configures the global tracer provider from an
// observability.yaml tracing section. If tracing is disabled, it installs
// nothing and returns a no-op shutdown func.
func InitTracer(cfg config.TracingConfig, serviceName string, nodeID ring.ID) func(context.Context) error {
	if !cfg.Enabled {
		log.Println("tracing disabled")
		return func(context.Context) error { return nil }
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("discofabric.node.id", nodeID.ToHexString()),
		),
	)
	if err != nil {
		log.Fatalf("telemetry: failed to create resource: %v", err)
	}

	var tp *sdktrace.TracerProvider
	switch cfg.Exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			log.Fatalf("telemetry: failed to initialize stdout exporter: %v", err)
		}
		tp = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
	case "otlp":
		exp, err := otlptracegrpc.New(
			context.Background(),
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		)
		if err != nil {
			log.Fatalf("telemetry: failed to initialize OTLP exporter: %v", err)
		}
		tp = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
	default:
		panic(fmt.Sprintf("telemetry: unsupported exporter %q", cfg.Exporter))
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return tp.Shutdown
}
