package xcodec

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec 在值与字节序列之间转换。
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// JSON 使用 encoding/json 编解码，零值可用。
type JSON[V any] struct{}

var _ Codec[struct{}] = JSON[struct{}]{}

// Encode 实现 Codec。
func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

// Decode 实现 Codec。
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

// Msgpack 使用 vmihailenco/msgpack/v5 编解码，零值可用。
// 字段名由 `msgpack:"name"` 标签控制，与 JSON 标签相互独立。
type Msgpack[V any] struct{}

var _ Codec[struct{}] = Msgpack[struct{}]{}

// Encode 实现 Codec。
func (Msgpack[V]) Encode(v V) ([]byte, error) { return msgpack.Marshal(v) }

// Decode 实现 Codec。
func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}

// CBOR 使用 fxamacker/cbor/v2 编解码。零值不可用，须通过 NewCBOR 构造。
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR 构造 CBOR 编解码器。
// deterministic 为 true 时使用 RFC 8949 Core Deterministic 编码，
// 否则使用 PreferredUnsortedEncOptions。时间统一编码为 RFC3339Nano。
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	var eo cbor.EncOptions
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, fmt.Errorf("xcodec: cbor enc mode: %w", err)
	}
	dm, err := (cbor.DecOptions{}).DecMode()
	if err != nil {
		return CBOR[V]{}, fmt.Errorf("xcodec: cbor dec mode: %w", err)
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// Encode 实现 Codec。
func (c CBOR[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

// Decode 实现 Codec。
func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}

// Limit 在解码前校验载荷大小，超过 MaxDecode 返回 ErrTooLarge。
// MaxDecode <= 0 时不限制。
type Limit[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

// Encode 实现 Codec。
func (c Limit[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

// Decode 实现 Codec。
func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}

// ByName 按名称返回内置编解码器：json、msgpack、cbor。
func ByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", "json":
		return JSON[V]{}, nil
	case "msgpack":
		return Msgpack[V]{}, nil
	case "cbor":
		return NewCBOR[V](false)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}
