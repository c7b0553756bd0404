// Package observe содержит метрики OpenTelemetry для скелетных тел и
// решателя IK. Экземпляр по умолчанию берётся из глобального провайдера;
// тесты создают свой через NewMetrics.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "block-bodies"

// Metrics хранит инструменты метрик. Все поля безопасны для
// конкурентного использования.
type Metrics struct {
	// IKSolves считает вызовы решателя. Атрибуты: limb, kind
	IKSolves metric.Int64Counter

	// IKUnreachable считает решения, в которых цель оказалась вне досягаемости
	IKUnreachable metric.Int64Counter

	// IKSolveDuration - время одного решения в секундах
	IKSolveDuration metric.Float64Histogram

	// BodiesLoaded считает тела, загруженные из файлов. Атрибут: status
	BodiesLoaded metric.Int64Counter

	// PartsSevered считает части, отделённые от тела вместе с поддеревом
	PartsSevered metric.Int64Counter
}

// solveBuckets - границы гистограммы для времени решения (секунды)
var solveBuckets = []float64{
	1e-7, 5e-7, 1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 1e-3,
}

// NewMetrics создает инструменты на указанном провайдере
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.IKSolves, err = m.Int64Counter("blockbodies.ik.solves",
		metric.WithDescription("Total two-bone IK solves by limb and kind."),
	); err != nil {
		return nil, err
	}
	if met.IKUnreachable, err = m.Int64Counter("blockbodies.ik.unreachable",
		metric.WithDescription("IK solves whose target was out of reach."),
	); err != nil {
		return nil, err
	}
	if met.IKSolveDuration, err = m.Float64Histogram("blockbodies.ik.solve.duration",
		metric.WithDescription("Latency of a single two-bone IK solve."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(solveBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BodiesLoaded, err = m.Int64Counter("blockbodies.bodies.loaded",
		metric.WithDescription("Bodies loaded from body files by status."),
	); err != nil {
		return nil, err
	}
	if met.PartsSevered, err = m.Int64Counter("blockbodies.parts.severed",
		metric.WithDescription("Parts detached from bodies, subtrees included."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics возвращает общий экземпляр на глобальном провайдере
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordSolve фиксирует одно решение IK для конечности
func (m *Metrics) RecordSolve(ctx context.Context, limb, kind string, reached bool, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("limb", limb),
		attribute.String("kind", kind),
	)
	m.IKSolves.Add(ctx, 1, attrs)
	m.IKSolveDuration.Record(ctx, elapsed.Seconds(), attrs)
	if !reached {
		m.IKUnreachable.Add(ctx, 1, attrs)
	}
}

// RecordBodyLoad фиксирует попытку загрузки тела из файла
func (m *Metrics) RecordBodyLoad(ctx context.Context, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BodiesLoaded.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordSever фиксирует отделение поддерева из n частей
func (m *Metrics) RecordSever(ctx context.Context, n int) {
	m.PartsSevered.Add(ctx, int64(n))
}
