package xmetrics

import "errors"

var (
	// ErrInstrument 创建 OTel 指标仪表失败。
	ErrInstrument = errors.New("xmetrics: create instrument failed")
	// ErrInvalidBuckets 直方图桶边界不是严格递增。
	ErrInvalidBuckets = errors.New("xmetrics: invalid histogram buckets")
	// ErrNilOption 传入了 nil Option。
	ErrNilOption = errors.New("xmetrics: nil option")
)
