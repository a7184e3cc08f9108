package xpool

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingRecorder 记录处理顺序；gate 关闭前 handler 阻塞。
type blockingRecorder struct {
	mu      sync.Mutex
	seen    []int
	gate    chan struct{}
	started chan int
}

func newBlockingRecorder() *blockingRecorder {
	return &blockingRecorder{
		gate:    make(chan struct{}),
		started: make(chan int, 64),
	}
}

func (r *blockingRecorder) handle(n int) {
	r.started <- n
	<-r.gate
	r.mu.Lock()
	r.seen = append(r.seen, n)
	r.mu.Unlock()
}

func (r *blockingRecorder) processed() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.seen)
	slices.Sort(out)
	return out
}

func TestNew_Validation(t *testing.T) {
	noop := func(int) {}

	_, err := New[int](1, 1, nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	_, err = New(0, 1, noop)
	assert.ErrorIs(t, err, ErrInvalidWorkers)

	_, err = New(maxWorkers+1, 1, noop)
	assert.ErrorIs(t, err, ErrInvalidWorkers)

	_, err = New(1, 0, noop)
	assert.ErrorIs(t, err, ErrInvalidQueueSize)

	_, err = New(1, maxQueueSize+1, noop)
	assert.ErrorIs(t, err, ErrInvalidQueueSize)

	_, err = New(3, 1, noop, WithMaxWorkers(2))
	assert.ErrorIs(t, err, ErrInvalidWorkers)

	_, err = New(1, 1, noop, WithMaxWorkers(2), WithKeepAlive(0))
	assert.ErrorIs(t, err, ErrInvalidKeepAlive)
}

func TestPool_ProcessesAllTasks(t *testing.T) {
	var processed atomic.Int32
	pool, err := New(2, 10, func(int) { processed.Add(1) })
	require.NoError(t, err)

	for i := range 5 {
		require.NoError(t, pool.Submit(i))
	}
	require.NoError(t, pool.Close())

	assert.Equal(t, int32(5), processed.Load())
	st := pool.Stats()
	assert.Equal(t, int64(5), st.Submitted)
	assert.Equal(t, int64(5), st.Completed)
	assert.Zero(t, st.Workers)
}

func TestPool_Reject_ReturnsErrQueueFull(t *testing.T) {
	rec := newBlockingRecorder()
	pool, err := New(1, 1, rec.handle, WithOverflowPolicy(OverflowReject))
	require.NoError(t, err)
	defer pool.Close()
	defer close(rec.gate)

	require.NoError(t, pool.Submit(0))
	<-rec.started
	require.NoError(t, pool.Submit(1))

	assert.ErrorIs(t, pool.Submit(2), ErrQueueFull)
	assert.Zero(t, pool.Stats().Dropped)
}

func TestPool_DropOldest_DiscardsOldestQueuedTask(t *testing.T) {
	rec := newBlockingRecorder()
	var droppedTask atomic.Value
	pool, err := New(1, 2, rec.handle,
		WithOverflowPolicy(OverflowDropOldest),
		WithOnDrop(func(task any) { droppedTask.Store(task) }),
	)
	require.NoError(t, err)

	require.NoError(t, pool.Submit(0))
	<-rec.started
	require.NoError(t, pool.Submit(1))
	require.NoError(t, pool.Submit(2))

	// 队列已满，1 是最旧的排队任务
	require.NoError(t, pool.Submit(3))

	close(rec.gate)
	require.NoError(t, pool.Close())

	assert.Equal(t, []int{0, 2, 3}, rec.processed())
	assert.Equal(t, 1, droppedTask.Load())
	assert.Equal(t, int64(1), pool.Stats().Dropped)
}

func TestPool_DropNewest_DiscardsSubmittedTask(t *testing.T) {
	rec := newBlockingRecorder()
	pool, err := New(1, 2, rec.handle, WithOverflowPolicy(OverflowDropNewest))
	require.NoError(t, err)

	require.NoError(t, pool.Submit(0))
	<-rec.started
	require.NoError(t, pool.Submit(1))
	require.NoError(t, pool.Submit(2))
	require.NoError(t, pool.Submit(3))

	close(rec.gate)
	require.NoError(t, pool.Close())

	assert.Equal(t, []int{0, 1, 2}, rec.processed())
	assert.Equal(t, int64(1), pool.Stats().Dropped)
}

func TestPool_BurstWorker_StartsWhenQueueFullAndRetiresWhenIdle(t *testing.T) {
	rec := newBlockingRecorder()
	pool, err := New(1, 1, rec.handle,
		WithMaxWorkers(2),
		WithKeepAlive(20*time.Millisecond),
		WithOverflowPolicy(OverflowReject),
	)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, pool.Submit(0)) // 核心 worker
	<-rec.started
	require.NoError(t, pool.Submit(1)) // 入队
	require.NoError(t, pool.Submit(2)) // 临时 worker 直接执行
	<-rec.started

	assert.Equal(t, 2, pool.Stats().Workers)
	assert.ErrorIs(t, pool.Submit(3), ErrQueueFull)

	close(rec.gate)
	assert.Eventually(t, func() bool {
		return pool.Stats().Workers == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{0, 1, 2}, rec.processed())
}

func TestPool_PanicRecovered(t *testing.T) {
	var processed atomic.Int32
	pool, err := New(1, 10, func(n int) {
		if n < 0 {
			panic("boom")
		}
		processed.Add(1)
	})
	require.NoError(t, err)

	require.NoError(t, pool.Submit(-1))
	require.NoError(t, pool.Submit(1))
	require.NoError(t, pool.Close())

	assert.Equal(t, int32(1), processed.Load())
	assert.Equal(t, int64(1), pool.Stats().Panics)
	assert.Equal(t, int64(2), pool.Stats().Completed)
}

func TestPool_SubmitAfterShutdown_ReturnsErrPoolStopped(t *testing.T) {
	pool, err := New(1, 1, func(int) {})
	require.NoError(t, err)
	require.NoError(t, pool.Close())

	assert.ErrorIs(t, pool.Submit(1), ErrPoolStopped)
	// 重复关闭是安全的
	assert.NoError(t, pool.Close())
}

func TestPool_Shutdown_NilContext(t *testing.T) {
	pool, err := New(1, 1, func(int) {})
	require.NoError(t, err)
	defer pool.Close()

	//nolint:staticcheck // 验证 nil context 的防御
	assert.ErrorIs(t, pool.Shutdown(nil), ErrNilContext)
}

func TestPool_Shutdown_TimeoutThenDone(t *testing.T) {
	rec := newBlockingRecorder()
	pool, err := New(1, 1, rec.handle)
	require.NoError(t, err)

	require.NoError(t, pool.Submit(0))
	<-rec.started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)

	close(rec.gate)
	select {
	case <-pool.Done():
	case <-time.After(time.Second):
		t.Fatal("workers did not exit")
	}
}

func TestNewTaskPool_Defaults(t *testing.T) {
	pool, err := NewTaskPool(WithName("refresh"))
	require.NoError(t, err)

	assert.Equal(t, DefaultCoreWorkers, pool.Workers())
	assert.Equal(t, DefaultMaxWorkers, pool.MaxWorkers())
	assert.Equal(t, DefaultQueueSize, pool.QueueSize())

	var ran atomic.Bool
	require.NoError(t, pool.Submit(func() { ran.Store(true) }))
	require.NoError(t, pool.Close())
	assert.True(t, ran.Load())
}

func TestParseOverflowPolicy(t *testing.T) {
	for _, p := range []OverflowPolicy{OverflowDropOldest, OverflowDropNewest, OverflowReject} {
		got, ok := ParseOverflowPolicy(p.String())
		require.True(t, ok)
		assert.Equal(t, p, got)
	}
	_, ok := ParseOverflowPolicy("caller_runs")
	assert.False(t, ok)
}
