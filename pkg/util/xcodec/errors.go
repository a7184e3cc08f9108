package xcodec

import "errors"

var (
	// ErrCorrupt 表示信封数据无法识别或被截断。
	ErrCorrupt = errors.New("xcodec: corrupt entry")

	// ErrTooLarge 表示载荷超过解码上限。
	ErrTooLarge = errors.New("xcodec: payload too large")

	// ErrUnknownCodec 表示编解码器名称未知。
	ErrUnknownCodec = errors.New("xcodec: unknown codec")
)
