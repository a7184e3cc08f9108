package storageopt

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultHealthTimeout 健康检查的默认超时。
const DefaultHealthTimeout = 5 * time.Second

// HealthProbe 为一次探活调用套上超时，并累计探活次数与失败次数。
// 零值可用，此时使用 DefaultHealthTimeout。
type HealthProbe struct {
	Timeout time.Duration

	pings    atomic.Int64
	failures atomic.Int64
}

// Run 在带超时的 ctx 中执行 ping，Timeout 为负时不加超时。
func (p *HealthProbe) Run(ctx context.Context, ping func(context.Context) error) error {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultHealthTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	p.pings.Add(1)
	err := ping(ctx)
	if err != nil {
		p.failures.Add(1)
	}
	return err
}

// Counts 返回累计的探活次数与失败次数。
func (p *HealthProbe) Counts() (pings, failures int64) {
	return p.pings.Load(), p.failures.Load()
}
