package xlimit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricNameCheck         = "ratelimit.check"
	metricNameExceeded      = "ratelimit.exceeded"
	metricNameFallback      = "ratelimit.fallback"
	metricNameCheckDuration = "ratelimit.check.duration"

	instrumentationName = "github.com/omeyang/marketguard/pkg/resilience/xlimit"
)

// Metrics 限流指标，nil 时所有记录方法为空操作
type Metrics struct {
	check         metric.Int64Counter
	exceeded      metric.Int64Counter
	fallback      metric.Int64Counter
	checkDuration metric.Float64Histogram
}

// NewMetrics 创建指标，provider 为 nil 时返回 nil
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		return nil, nil
	}
	meter := provider.Meter(instrumentationName)

	check, err := meter.Int64Counter(metricNameCheck,
		metric.WithDescription("限流检查次数"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	exceeded, err := meter.Int64Counter(metricNameExceeded,
		metric.WithDescription("超限拒绝次数"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	fallback, err := meter.Int64Counter(metricNameFallback,
		metric.WithDescription("分布式计数降级次数"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return nil, err
	}
	checkDuration, err := meter.Float64Histogram(metricNameCheckDuration,
		metric.WithDescription("限流检查耗时"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		check:         check,
		exceeded:      exceeded,
		fallback:      fallback,
		checkDuration: checkDuration,
	}, nil
}

// RecordCheck 记录一次已计数的检查，rule 为命中的规则名
func (m *Metrics) RecordCheck(ctx context.Context, rule string, allowed bool, d time.Duration) {
	if m == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	attrs := metric.WithAttributes(
		attribute.String("rule", rule),
		attribute.Bool("allowed", allowed),
	)
	m.check.Add(ctx, 1, attrs)
	if !allowed {
		m.exceeded.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
	}
	m.checkDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordFallback 记录一次降级
func (m *Metrics) RecordFallback(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.fallback.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("reason", reason)))
}
