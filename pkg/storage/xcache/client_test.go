package xcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xguard/pkg/util/xcodec"
)

func TestNew_Validation(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := New[int64, shop](nil)
	assert.ErrorIs(t, err, ErrNilStore)

	cases := map[string]Option{
		"null ttl":       WithNullTTL(0),
		"lock lease":     WithLockLease(-time.Second),
		"retry interval": WithMutexRetry(-time.Millisecond, 3),
		"max retries":    WithMutexRetry(time.Millisecond, -1),
		"clock":          WithClock(nil),
		"slow threshold": WithSlowLoadThreshold(-time.Second),
		"codec mismatch": WithCodec(xcodec.JSON[string]{}),
	}
	for name, opt := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New[int64, shop](store, opt)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestClient_SetAndPassThroughHit(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "shop:1", shop{ID: 1, Name: "tea"}, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("shop:1"))

	loader := newShopLoader()
	got, found, err := c.QueryWithPassThrough(ctx, "shop:", 1, loader.load, time.Minute)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, shop{ID: 1, Name: "tea"}, got)
	assert.Zero(t, loader.calls.Load())
}

func TestClient_Set_Validation(t *testing.T) {
	c, _ := newTestClient(t)

	assert.ErrorIs(t, c.Set(context.Background(), "", shop{}, time.Minute), ErrEmptyKey)
	assert.ErrorIs(t, c.Set(context.Background(), "k", shop{}, -time.Second), ErrInvalidTTL)
	assert.ErrorIs(t, c.SetWithLogicalExpire(context.Background(), "k", shop{}, 0), ErrInvalidTTL)
	//nolint:staticcheck // 验证 nil context 的处理
	assert.ErrorIs(t, c.Set(nil, "k", shop{}, time.Minute), ErrNilContext)
}

func TestClient_SetWithLogicalExpire_RoundTrip(t *testing.T) {
	clock := newStubClock()
	c, mr := newTestClient(t, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.SetWithLogicalExpire(ctx, "shop:1", shop{ID: 1, Name: "tea"}, 30*time.Second))
	assert.Zero(t, mr.TTL("shop:1"), "logical entries carry no store ttl")

	raw, err := mr.Get("shop:1")
	require.NoError(t, err)
	env, err := xcodec.DecodeEnvelope([]byte(raw))
	require.NoError(t, err)
	assert.True(t, env.ExpireAt.Equal(clock.Now().Add(30*time.Second)))
	assert.False(t, env.Expired(clock.Now()))
	assert.JSONEq(t, `{"id":1,"name":"tea"}`, string(env.Payload))
}

func TestClient_Delete(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("shop:1", "x"))
	require.NoError(t, mr.Set("shop:2", "y"))

	require.NoError(t, c.Delete(ctx, "shop:1", "shop:2", "shop:3"))
	assert.False(t, mr.Exists("shop:1"))
	assert.False(t, mr.Exists("shop:2"))
	assert.NoError(t, c.Delete(ctx))
}

func TestClient_Warmup(t *testing.T) {
	clock := newStubClock()
	c, mr := newTestClient(t, WithClock(clock.Now))
	ctx := context.Background()
	loader := newShopLoader(shop{ID: 1, Name: "tea"})

	found, err := c.Warmup(ctx, "shop:", 1, loader.load, time.Minute)
	require.NoError(t, err)
	assert.True(t, found)

	raw, err := mr.Get("shop:1")
	require.NoError(t, err)
	assert.True(t, xcodec.IsEnvelope([]byte(raw)))

	found, err = c.Warmup(ctx, "shop:", 2, loader.load, time.Minute)
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, mr.Exists("shop:2"), "absent entity writes nothing")

	_, err = c.Warmup(ctx, "shop:", 1, loader.load, 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestClient_Close_Idempotent(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	//nolint:staticcheck // 验证 nil context 的处理
	assert.ErrorIs(t, c.Close(nil), ErrNilContext)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "shop:42", Key("shop:", int64(42)))
	assert.Equal(t, "user:alice", Key("user:", "alice"))
}
