package tracing

import (
	"context"
	"sync"

	"github.com/Meesho/BharatMLStack/predict-server/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	tcr "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	once        sync.Once
	initialized = false
	tp          *trace.TracerProvider
)

const samplerArgEnv = "OTEL_TRACES_SAMPLER_ARG"

// Init installs a batching OTLP exporter. Without a collector endpoint it only
// installs the propagator and GetTracer keeps returning noop tracers.
func Init(cfg config.Configs) {
	if initialized {
		log.Warn().Msgf("Tracing already initialized!")
		return
	}
	once.Do(func() {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
		initialized = true

		collectorURL := cfg.OtelExporterOtlpEndpoint
		if collectorURL == "" {
			log.Info().Msg("OTEL_EXPORTER_OTLP_ENDPOINT not set, trace export disabled")
			return
		}
		ctx := context.Background()

		exporter, err := otlptrace.New(ctx,
			otlptracegrpc.NewClient(
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithEndpoint(collectorURL),
			),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create OTLP trace exporter")
		}

		resources, err := resource.New(ctx,
			resource.WithAttributes(
				attribute.String("service.name", cfg.AppName),
				attribute.String("deployment.environment", cfg.AppEnv),
				attribute.String("telemetry.sdk.language", "go"),
			),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create OTLP resource")
		}

		viper.SetDefault(samplerArgEnv, 0.1)
		samplingRatio := viper.GetFloat64(samplerArgEnv)

		tp = trace.NewTracerProvider(
			trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(samplingRatio))),
			trace.WithBatcher(exporter),
			trace.WithResource(resources),
		)
		otel.SetTracerProvider(tp)
		log.Info().
			Str("collectorURL", collectorURL).
			Str("serviceName", cfg.AppName).
			Float64("samplingRatio", samplingRatio).
			Msg("Tracer initialized!")
	})
}

// GetTracer returns a tracer instance. If the tracer provider is not initialized, it returns a noop tracer.
func GetTracer(name string) tcr.Tracer {
	if tp == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return tp.Tracer(name)
}

func ShutdownTracer(ctx context.Context) {
	if tp == nil {
		return
	}
	log.Info().Msg("Tracer shutting down...")
	if err := tp.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Tracer shutdown failed")
		return
	}
	log.Info().Msg("Tracer shutdown complete!!!")
}
