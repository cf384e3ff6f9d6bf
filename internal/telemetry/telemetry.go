// Package telemetry holds the pipeline's OpenTelemetry counters. They record
// against the global meter provider, so they cost nothing until the host
// installs an SDK.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/AI-Template-SDK/senso-sov"

type instruments struct {
	modelCalls   metric.Int64Counter
	fallbacks    metric.Int64Counter
	stages       metric.Int64Counter
	syncOutcomes metric.Int64Counter
}

var (
	once sync.Once
	inst instruments
)

func load() *instruments {
	once.Do(func() {
		meter := otel.Meter(instrumentationName)
		inst.modelCalls, _ = meter.Int64Counter("sov.model.calls",
			metric.WithDescription("Model completions by provider and outcome"))
		inst.fallbacks, _ = meter.Int64Counter("sov.stage.fallbacks",
			metric.WithDescription("Recovered failures by stage and kind"))
		inst.stages, _ = meter.Int64Counter("sov.stage.completions",
			metric.WithDescription("Pipeline stages completed"))
		inst.syncOutcomes, _ = meter.Int64Counter("sov.sync.records",
			metric.WithDescription("SOV records touched by competitor sync"))
	})
	return &inst
}

// RecordModelCall counts one completion attempt.
func RecordModelCall(ctx context.Context, provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	add(ctx, load().modelCalls,
		attribute.String("provider", provider),
		attribute.String("outcome", outcome))
}

// RecordFallback counts a recovered stage failure.
func RecordFallback(ctx context.Context, stage, kind string) {
	add(ctx, load().fallbacks,
		attribute.String("stage", stage),
		attribute.String("kind", kind))
}

func RecordStage(ctx context.Context, stage string) {
	add(ctx, load().stages, attribute.String("stage", stage))
}

func RecordSyncOutcome(ctx context.Context, ok bool) {
	add(ctx, load().syncOutcomes, attribute.Bool("ok", ok))
}

func add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}
