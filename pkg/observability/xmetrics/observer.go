package xmetrics

import "context"

// Kind 表示跨度类型。
type Kind int

const (
	// KindInternal 进程内操作，如 ID 分配、本地计算。
	KindInternal Kind = iota
	// KindClient 访问外部存储的操作，如缓存查询。
	KindClient
)

// String 返回小写名称。
func (k Kind) String() string {
	if k == KindClient {
		return "client"
	}
	return "internal"
}

// Attr 是一个观测属性。
type Attr struct {
	Key   string
	Value any
}

// SpanOptions 描述一次操作。
type SpanOptions struct {
	Component string // 如 "xcache"
	Operation string // 如 "mutex"
	Kind      Kind
	Attrs     []Attr
}

// Result 是操作的结束状态。
//
// Outcome 是取值有限的业务结果（缓存查询为 hit/null/miss/stale/loaded/absent），
// 会写入跨度属性 result，并作为指标维度。Err 非 nil 时操作记为失败。
type Result struct {
	Outcome string
	Err     error
	Attrs   []Attr
}

// Span 是一次进行中的观测。
type Span interface {
	End(result Result)
}

// Observer 为操作创建 Span。
type Observer interface {
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 不记录任何内容。
type NoopObserver struct{}

// Start 实现 Observer。
func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 不记录任何内容。
type NoopSpan struct{}

// End 实现 Span。
func (NoopSpan) End(Result) {}

// Start 用 observer 开始观测，总是返回非 nil 的 ctx 与 Span。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	retCtx, span := observer.Start(ctx, opts)
	if retCtx == nil {
		retCtx = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return retCtx, span
}

// Tee 把每次观测分发给多个 Observer，nil 被忽略。
func Tee(observers ...Observer) Observer {
	list := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	switch len(list) {
	case 0:
		return NoopObserver{}
	case 1:
		return list[0]
	}
	return tee(list)
}

type tee []Observer

func (t tee) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	spans := make(teeSpan, 0, len(t))
	for _, o := range t {
		var s Span
		ctx, s = Start(ctx, o, opts)
		spans = append(spans, s)
	}
	return ctx, spans
}

type teeSpan []Span

func (t teeSpan) End(result Result) {
	for i := len(t) - 1; i >= 0; i-- {
		t[i].End(result)
	}
}
