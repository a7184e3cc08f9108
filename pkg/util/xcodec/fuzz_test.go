package xcodec

import (
	"testing"
	"time"
)

func FuzzDecodeEnvelope(f *testing.F) {
	f.Add(EncodeEnvelope(Envelope{Payload: []byte("x"), ExpireAt: time.UnixMilli(1)}))
	f.Add([]byte("XGLE"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, b []byte) {
		env, err := DecodeEnvelope(b)
		if err != nil {
			return
		}
		// 合法信封重新编码后必须与输入一致
		if string(EncodeEnvelope(env)) != string(b) {
			t.Fatalf("re-encode mismatch")
		}
	})
}
