package xcodec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Pretty 把载荷渲染为便于阅读的文本，用于排查工具与日志。
// 依次尝试 JSON、msgpack、CBOR，都失败时输出带引号的原始字节。
func Pretty(b []byte) string {
	var out bytes.Buffer
	if json.Valid(b) {
		if err := json.Indent(&out, b, "", "  "); err == nil {
			return out.String()
		}
	}

	var v any
	if err := msgpack.Unmarshal(b, &v); err == nil {
		return render(v)
	}
	if err := cbor.Unmarshal(b, &v); err == nil {
		return render(v)
	}
	return fmt.Sprintf("%q", b)
}

func render(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
