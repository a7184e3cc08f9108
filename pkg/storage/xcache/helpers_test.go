package xcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xguard/pkg/observability/xmetrics"
	"github.com/omeyang/xguard/pkg/storage/xstore"
)

type shop struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newTestStore(t *testing.T) (*xstore.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:       mr.Addr(),
		PoolSize:   16,
		MaxRetries: 1,
	})
	store, err := xstore.NewRedis(client)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func newTestClient(t *testing.T, opts ...Option) (*Client[int64, shop], *miniredis.Miniredis) {
	t.Helper()
	store, mr := newTestStore(t)
	base := []Option{WithLogger(nil)}
	c, err := New[int64, shop](store, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, mr
}

// shopLoader 记录回源次数的测试回源函数。
type shopLoader struct {
	calls atomic.Int64
	delay time.Duration
	data  map[int64]shop
	err   error
}

func (l *shopLoader) load(ctx context.Context, id int64) (shop, bool, error) {
	l.calls.Add(1)
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return shop{}, false, ctx.Err()
		}
	}
	if l.err != nil {
		return shop{}, false, l.err
	}
	s, ok := l.data[id]
	return s, ok, nil
}

func newShopLoader(shops ...shop) *shopLoader {
	l := &shopLoader{data: make(map[int64]shop, len(shops))}
	for _, s := range shops {
		l.data[s.ID] = s
	}
	return l
}

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// manualRefresher 保存任务，由测试决定何时执行。
type manualRefresher struct {
	mu     sync.Mutex
	tasks  []func()
	reject error
}

func (r *manualRefresher) Submit(task func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject != nil {
		return r.reject
	}
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *manualRefresher) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *manualRefresher) RunAll() {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

var errRejected = errors.New("queue full")

// recordingObserver 记录每个跨度的结果。
type recordingObserver struct {
	mu    sync.Mutex
	spans []recordedSpan
}

type recordedSpan struct {
	opts   xmetrics.SpanOptions
	result xmetrics.Result
}

type recordingSpan struct {
	o    *recordingObserver
	opts xmetrics.SpanOptions
}

func (o *recordingObserver) Start(ctx context.Context, opts xmetrics.SpanOptions) (context.Context, xmetrics.Span) {
	return ctx, &recordingSpan{o: o, opts: opts}
}

func (s *recordingSpan) End(result xmetrics.Result) {
	s.o.mu.Lock()
	s.o.spans = append(s.o.spans, recordedSpan{opts: s.opts, result: result})
	s.o.mu.Unlock()
}

func (o *recordingObserver) results() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.spans))
	for _, s := range o.spans {
		if s.result.Outcome != "" {
			out = append(out, s.result.Outcome)
		}
	}
	return out
}

// miniredisHandle 为逻辑过期测试提供带断言的读写。
type miniredisHandle struct {
	*miniredis.Miniredis
}

func (m *miniredisHandle) get(t *testing.T, key string) string {
	t.Helper()
	v, err := m.Get(key)
	require.NoError(t, err)
	return v
}

func (m *miniredisHandle) set(t *testing.T, key, value string) {
	t.Helper()
	require.NoError(t, m.Set(key, value))
}
