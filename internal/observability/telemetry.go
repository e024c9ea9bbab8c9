package observability

import (
	"context"
	"time"

	"github.com/annel0/soilsim/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// InstrumentationName задаёт имя трассировщика симулятора
const InstrumentationName = "github.com/annel0/soilsim"

// Tracer возвращает трассировщик из глобального TracerProvider.
// Пока провайдер не установлен, спаны ничего не записывают.
func Tracer() oteltrace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// InitTelemetry настраивает OTLP экспортер и устанавливает глобальный TracerProvider.
// Возвращает функцию shutdown, которую нужно вызвать при завершении приложения.
func InitTelemetry(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	// OTLP HTTP экспортер (по умолчанию localhost:4318)
	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp, err := Install(ctx, exp, serviceName)
	if err != nil {
		return nil, err
	}
	logging.Info("📡 OpenTelemetry инициализирован (OTLP → 4318, service=%s)", serviceName)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}
	return shutdown, nil
}

// Install устанавливает глобальный TracerProvider поверх произвольного экспортера
func Install(ctx context.Context, exp trace.SpanExporter, serviceName string) (*trace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}
