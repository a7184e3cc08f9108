package xcodec

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

const (
	envelopeVersion byte = 1
	envelopeHeader       = 4 + 1 + 8 + 4
)

var envelopeMagic = [...]byte{'X', 'G', 'L', 'E'}

// Envelope 是逻辑过期条目：载荷加上逻辑过期时间。
type Envelope struct {
	Payload  []byte
	ExpireAt time.Time
}

// Expired 判断 now 是否已到达过期时间。
func (e Envelope) Expired(now time.Time) bool {
	return !now.Before(e.ExpireAt)
}

// EncodeEnvelope 按固定格式编码信封，过期时间精度为毫秒。
func EncodeEnvelope(e Envelope) []byte {
	var buf bytes.Buffer
	buf.Grow(envelopeHeader + len(e.Payload))

	buf.Write(envelopeMagic[:])
	buf.WriteByte(envelopeVersion)

	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], uint64(e.ExpireAt.UnixMilli()))
	buf.Write(u8[:])

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])

	buf.Write(e.Payload)
	return buf.Bytes()
}

// DecodeEnvelope 解析信封。格式不符或长度不一致返回 ErrCorrupt。
// 返回的 Payload 引用 b 的底层数组。
func DecodeEnvelope(b []byte) (Envelope, error) {
	if !IsEnvelope(b) || len(b) < envelopeHeader || b[4] != envelopeVersion {
		return Envelope{}, ErrCorrupt
	}

	off := 5
	ms := binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	if ms > math.MaxInt64 {
		return Envelope{}, ErrCorrupt
	}

	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen != len(b)-off {
		return Envelope{}, ErrCorrupt
	}

	return Envelope{
		Payload:  b[off:],
		ExpireAt: time.UnixMilli(int64(ms)),
	}, nil
}

// IsEnvelope 判断 b 是否以信封魔数开头。
func IsEnvelope(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], envelopeMagic[:])
}

// Wrap 编码 v 并包装为在 expireAt 过期的信封字节。
func Wrap[V any](c Codec[V], v V, expireAt time.Time) ([]byte, error) {
	payload, err := c.Encode(v)
	if err != nil {
		return nil, err
	}
	return EncodeEnvelope(Envelope{Payload: payload, ExpireAt: expireAt}), nil
}

// Unwrap 解析信封并解码载荷。
func Unwrap[V any](c Codec[V], b []byte) (V, time.Time, error) {
	var zero V
	env, err := DecodeEnvelope(b)
	if err != nil {
		return zero, time.Time{}, err
	}
	v, err := c.Decode(env.Payload)
	if err != nil {
		return zero, time.Time{}, err
	}
	return v, env.ExpireAt, nil
}
