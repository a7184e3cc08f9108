package xid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrNilStore 计数器存储为 nil。
	ErrNilStore = errors.New("xid: nil counter store")

	// ErrEmptyPrefix 业务前缀为空。
	ErrEmptyPrefix = errors.New("xid: empty prefix")

	// ErrBeforeEpoch 当前时间早于 epoch。
	ErrBeforeEpoch = errors.New("xid: clock is before epoch")

	// ErrTimeOverflow 距 epoch 的秒数超出 32 位。
	ErrTimeOverflow = errors.New("xid: timestamp overflows 32 bits")

	// ErrSequenceOverflow 当天计数超出 32 位。
	ErrSequenceOverflow = errors.New("xid: daily sequence overflows 32 bits")

	// ErrInvalidConfig 配置参数无效。
	ErrInvalidConfig = errors.New("xid: invalid config")

	// ErrNilContext context 参数为 nil。
	ErrNilContext = errors.New("xid: nil context")

	// ErrOverTimeLimit sonyflake 时间分量溢出，不可恢复。
	ErrOverTimeLimit = errors.New("xid: time component overflow")
)

// DefaultEpoch 是默认纪元：2023-05-20T20:42:17Z。
var DefaultEpoch = time.Unix(1684615337, 0)

const (
	// DefaultKeyPrefix 计数器 key 前缀。
	DefaultKeyPrefix = "icr:"

	// dayLayout 计数器 key 的日期部分，形如 2024:05:01。
	dayLayout = "2006:01:02"

	sequenceBits = 32
)

// IDGenerator 是 ID 生成器的统一接口。
type IDGenerator interface {
	// NextID 为 prefix 生成下一个 ID。
	NextID(ctx context.Context, prefix string) (uint64, error)
}

// Counter 是生成器依赖的原子自增能力，xstore.Store 满足此接口。
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// Components 是 ID 分解后的各组成部分。
type Components struct {
	ID        uint64
	Timestamp int64     // 距 epoch 的秒数
	Time      time.Time // 生成时刻（秒精度）
	Sequence  uint32    // 当天计数
}

// Generator 基于存储计数器的 ID 生成器，并发安全。
type Generator struct {
	counter   Counter
	epoch     time.Time
	keyPrefix string
	now       func() time.Time
	loc       *time.Location
}

var _ IDGenerator = (*Generator)(nil)

// NewGenerator 创建存储计数器生成器。
func NewGenerator(counter Counter, opts ...Option) (*Generator, error) {
	if counter == nil {
		return nil, ErrNilStore
	}

	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.now == nil {
		return nil, fmt.Errorf("%w: nil clock", ErrInvalidConfig)
	}
	if cfg.loc == nil {
		return nil, fmt.Errorf("%w: nil location", ErrInvalidConfig)
	}
	if cfg.epoch.IsZero() {
		return nil, fmt.Errorf("%w: zero epoch", ErrInvalidConfig)
	}

	return &Generator{
		counter:   counter,
		epoch:     cfg.epoch,
		keyPrefix: cfg.keyPrefix,
		now:       cfg.now,
		loc:       cfg.loc,
	}, nil
}

// NextID 生成 prefix 的下一个 ID。
//
// 存储不可用时返回其错误，不会退化为本地计数。
func (g *Generator) NextID(ctx context.Context, prefix string) (uint64, error) {
	if ctx == nil {
		return 0, ErrNilContext
	}
	if prefix == "" {
		return 0, ErrEmptyPrefix
	}

	now := g.now()
	ts := now.Unix() - g.epoch.Unix()
	if ts < 0 {
		return 0, fmt.Errorf("%w: %s < %s", ErrBeforeEpoch, now.UTC().Format(time.RFC3339), g.epoch.UTC().Format(time.RFC3339))
	}
	if ts > math.MaxUint32 {
		return 0, ErrTimeOverflow
	}

	seq, err := g.counter.Incr(ctx, g.CounterKey(prefix, now))
	if err != nil {
		return 0, fmt.Errorf("xid: increment counter: %w", err)
	}
	if seq <= 0 || seq > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d", ErrSequenceOverflow, seq)
	}

	return uint64(ts)<<sequenceBits | uint64(seq), nil
}

// CounterKey 返回 prefix 在 t 所在日期使用的计数器 key。
func (g *Generator) CounterKey(prefix string, t time.Time) string {
	return g.keyPrefix + prefix + ":" + t.In(g.loc).Format(dayLayout)
}

// Epoch 返回生成器的纪元。
func (g *Generator) Epoch() time.Time {
	return g.epoch
}

// Decompose 按 epoch 分解 ID。
func Decompose(id uint64, epoch time.Time) Components {
	ts := int64(id >> sequenceBits)
	return Components{
		ID:        id,
		Timestamp: ts,
		Time:      time.Unix(epoch.Unix()+ts, 0),
		Sequence:  uint32(id),
	}
}
