package xid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/sonyflake/v2"
)

// Sonyflake 是不依赖共享存储的 ID 生成器。
//
// 位布局由 sonyflake 决定（39 位时间 + 8 位序列 + 16 位机器 ID），
// 与 Generator 的布局不同，两者生成的 ID 不可混用比较。
type Sonyflake struct {
	generate func() (int64, error)
}

var _ IDGenerator = (*Sonyflake)(nil)

// SonyflakeOption 配置 Sonyflake。
type SonyflakeOption func(*sonyflakeOptions)

type sonyflakeOptions struct {
	startTime      time.Time
	machineID      func() (uint16, error)
	checkMachineID func(uint16) bool
}

// WithStartTime 设置 sonyflake 的起始时间，默认使用 DefaultEpoch。
func WithStartTime(t time.Time) SonyflakeOption {
	return func(o *sonyflakeOptions) {
		o.startTime = t
	}
}

// WithMachineID 自定义机器 ID 来源，默认 DefaultMachineID。
func WithMachineID(fn func() (uint16, error)) SonyflakeOption {
	return func(o *sonyflakeOptions) {
		o.machineID = fn
	}
}

// WithCheckMachineID 设置机器 ID 校验函数，返回 false 时 NewSonyflake 失败。
func WithCheckMachineID(fn func(uint16) bool) SonyflakeOption {
	return func(o *sonyflakeOptions) {
		o.checkMachineID = fn
	}
}

// NewSonyflake 创建 sonyflake 生成器。
func NewSonyflake(opts ...SonyflakeOption) (*Sonyflake, error) {
	cfg := &sonyflakeOptions{
		startTime: DefaultEpoch,
		machineID: DefaultMachineID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.machineID == nil {
		return nil, fmt.Errorf("%w: nil machine id func", ErrInvalidConfig)
	}

	machineID := cfg.machineID
	settings := sonyflake.Settings{
		StartTime: cfg.startTime,
		MachineID: func() (int, error) {
			id, err := machineID()
			return int(id), err
		},
	}
	if check := cfg.checkMachineID; check != nil {
		settings.CheckMachineID = func(id int) bool {
			return check(uint16(id))
		}
	}

	sf, err := sonyflake.New(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Sonyflake{generate: sf.NextID}, nil
}

// NextID 生成下一个 ID，prefix 仅做非空校验。
func (s *Sonyflake) NextID(ctx context.Context, prefix string) (uint64, error) {
	if ctx == nil {
		return 0, ErrNilContext
	}
	if prefix == "" {
		return 0, ErrEmptyPrefix
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	id, err := s.generate()
	if err != nil {
		if errors.Is(err, sonyflake.ErrOverTimeLimit) {
			return 0, ErrOverTimeLimit
		}
		return 0, fmt.Errorf("xid: sonyflake: %w", err)
	}
	return uint64(id), nil
}
