package xcache

import "sync/atomic"

// Stats 是客户端的累计计数快照。
type Stats struct {
	Hits     int64 // 命中有效值（含逻辑过期的旧值）
	NullHits int64 // 命中空值标记
	Misses   int64 // 未命中（含无法解码的条目）

	Loads      int64 // 回源次数
	LoadErrors int64 // 回源失败次数（含 panic）
	SlowLoads  int64 // 超过慢回源阈值的次数

	Corrupt     int64 // 无法解码的条目
	StaleReads  int64 // 返回逻辑过期旧值的次数
	LockBusy    int64 // 重建锁已被占用的次数
	WriteErrors int64 // 回源后写回失败的次数

	RefreshSubmitted int64 // 提交成功的后台重建
	RefreshRejected  int64 // 刷新池拒绝的后台重建
	RefreshErrors    int64 // 执行失败的后台重建
}

type counters struct {
	hits, nullHits, misses            atomic.Int64
	loads, loadErrors                 atomic.Int64
	corrupt, staleReads, lockBusy     atomic.Int64
	writeErrors                       atomic.Int64
	refreshSubmitted, refreshRejected atomic.Int64
	refreshErrors                     atomic.Int64
}

// Stats 返回计数快照。
func (c *Client[K, V]) Stats() Stats {
	return Stats{
		Hits:             c.stats.hits.Load(),
		NullHits:         c.stats.nullHits.Load(),
		Misses:           c.stats.misses.Load(),
		Loads:            c.stats.loads.Load(),
		LoadErrors:       c.stats.loadErrors.Load(),
		SlowLoads:        c.slow.Count(),
		Corrupt:          c.stats.corrupt.Load(),
		StaleReads:       c.stats.staleReads.Load(),
		LockBusy:         c.stats.lockBusy.Load(),
		WriteErrors:      c.stats.writeErrors.Load(),
		RefreshSubmitted: c.stats.refreshSubmitted.Load(),
		RefreshRejected:  c.stats.refreshRejected.Load(),
		RefreshErrors:    c.stats.refreshErrors.Load(),
	}
}
