package xid

import "time"

type options struct {
	epoch     time.Time
	keyPrefix string
	now       func() time.Time
	loc       *time.Location
}

func defaultOptions() *options {
	return &options{
		epoch:     DefaultEpoch,
		keyPrefix: DefaultKeyPrefix,
		now:       time.Now,
		loc:       time.Local,
	}
}

// Option 配置存储计数器生成器。
type Option func(*options)

// WithEpoch 设置纪元。修改已上线系统的纪元会导致新旧 ID 不可比较。
func WithEpoch(t time.Time) Option {
	return func(o *options) {
		o.epoch = t
	}
}

// WithKeyPrefix 设置计数器 key 前缀，默认 "icr:"。
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}

// WithClock 替换时钟，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLocation 设置计数器按哪个时区切换日期，默认 time.Local。
// 同一前缀的所有实例应使用相同时区，否则跨日附近可能写入不同的计数器。
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.loc = loc
	}
}
