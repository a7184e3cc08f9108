package xmetrics

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/omeyang/xguard/xmetrics"

	metricOperationTotal    = "xguard.operation.total"
	metricOperationDuration = "xguard.operation.duration"
)

// DefaultDurationBuckets 耗时直方图默认桶边界（秒），覆盖缓存命中的亚毫秒级到回源的秒级。
var DefaultDurationBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	extraKeys      []string
	buckets        []float64
}

// Option 配置 OTelObserver。
type Option func(*otelConfig)

// WithTracerProvider 设置 TracerProvider，默认使用全局 provider。
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.tracerProvider = provider
		}
	}
}

// WithMeterProvider 设置 MeterProvider，默认使用全局 provider。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// WithMetricAttrKeys 让 Result.Attrs 中的这些属性也成为指标维度。
// 只应包含取值有限的属性，缓存 key 这类属性会让指标基数失控。
func WithMetricAttrKeys(keys ...string) Option {
	return func(cfg *otelConfig) {
		cfg.extraKeys = keys
	}
}

// WithDurationBuckets 设置耗时直方图的桶边界（秒），必须非空且严格递增。
func WithDurationBuckets(buckets ...float64) Option {
	return func(cfg *otelConfig) {
		cfg.buckets = buckets
	}
}

// OTelObserver 把每次操作记录为一个 trace span，并累加计数与耗时指标。
//
// 指标维度：component、operation、status（ok/error）、result（Result.Outcome 非空时）
// 以及 WithMetricAttrKeys 指定的属性。
type OTelObserver struct {
	tracer    trace.Tracer
	total     metric.Int64Counter
	duration  metric.Float64Histogram
	extraKeys []string
}

var _ Observer = (*OTelObserver)(nil)

// NewOTelObserver 创建 OTelObserver。
func NewOTelObserver(opts ...Option) (*OTelObserver, error) {
	cfg := &otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		buckets:        DefaultDurationBuckets,
	}
	for _, opt := range opts {
		if opt == nil {
			return nil, ErrNilOption
		}
		opt(cfg)
	}
	if !strictlyIncreasing(cfg.buckets) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBuckets, cfg.buckets)
	}

	meter := cfg.meterProvider.Meter(instrumentationName)
	total, err := meter.Int64Counter(metricOperationTotal,
		metric.WithDescription("Number of xguard operations."),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, metricOperationTotal, err)
	}
	duration, err := meter.Float64Histogram(metricOperationDuration,
		metric.WithDescription("Duration of xguard operations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(cfg.buckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInstrument, metricOperationDuration, err)
	}

	return &OTelObserver{
		tracer:    cfg.tracerProvider.Tracer(instrumentationName),
		total:     total,
		duration:  duration,
		extraKeys: slices.Clone(cfg.extraKeys),
	}, nil
}

// Start 实现 Observer。
func (o *OTelObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	component := cmp.Or(opts.Component, "unknown")
	operation := cmp.Or(opts.Operation, "unknown")

	kind := trace.SpanKindInternal
	if opts.Kind == KindClient {
		kind = trace.SpanKindClient
	}
	attrs := append([]attribute.KeyValue{
		attribute.String("component", component),
		attribute.String("operation", operation),
	}, toOTel(opts.Attrs)...)

	ctx, span := o.tracer.Start(ctx, component+"."+operation,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
	return ctx, &otelSpan{
		o:         o,
		span:      span,
		ctx:       ctx,
		component: component,
		operation: operation,
		start:     time.Now(),
	}
}

type otelSpan struct {
	o         *OTelObserver
	span      trace.Span
	ctx       context.Context
	component string
	operation string
	start     time.Time
	once      sync.Once
}

// End 结束跨度并记录指标，重复调用只生效一次。
func (s *otelSpan) End(result Result) {
	s.once.Do(func() { s.end(result) })
}

func (s *otelSpan) end(result Result) {
	elapsed := time.Since(s.start)

	if result.Outcome != "" {
		s.span.SetAttributes(attribute.String(AttrResult, result.Outcome))
	}
	s.span.SetAttributes(toOTel(result.Attrs)...)
	status := "ok"
	if result.Err != nil {
		status = "error"
		s.span.RecordError(result.Err)
		s.span.SetStatus(codes.Error, result.Err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()

	dims := []attribute.KeyValue{
		attribute.String("component", s.component),
		attribute.String("operation", s.operation),
		attribute.String("status", status),
	}
	if result.Outcome != "" {
		dims = append(dims, attribute.String(AttrResult, result.Outcome))
	}
	for _, a := range result.Attrs {
		if a.Value != nil && slices.Contains(s.o.extraKeys, a.Key) {
			dims = append(dims, toKeyValue(a))
		}
	}

	// 调用方 ctx 可能已取消，指标仍需记录
	ctx := context.WithoutCancel(s.ctx)
	set := metric.WithAttributeSet(attribute.NewSet(dims...))
	s.o.total.Add(ctx, 1, set)
	s.o.duration.Record(ctx, elapsed.Seconds(), set)
}

func strictlyIncreasing(b []float64) bool {
	if len(b) == 0 {
		return false
	}
	for i := 1; i < len(b); i++ {
		if b[i] <= b[i-1] {
			return false
		}
	}
	return true
}

func toOTel(attrs []Attr) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		if a.Key != "" && a.Value != nil {
			out = append(out, toKeyValue(a))
		}
	}
	return out
}

func toKeyValue(a Attr) attribute.KeyValue {
	switch v := a.Value.(type) {
	case string:
		return attribute.String(a.Key, v)
	case bool:
		return attribute.Bool(a.Key, v)
	case int:
		return attribute.Int(a.Key, v)
	case int64:
		return attribute.Int64(a.Key, v)
	case time.Duration:
		return attribute.Int64(a.Key, v.Milliseconds())
	default:
		return attribute.String(a.Key, fmt.Sprint(v))
	}
}
