package xcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/xguard/pkg/storage/xstore"
	"github.com/omeyang/xguard/pkg/storage/xstore/xstoremock"
)

func TestQueryWithPassThrough_LoadsOnceThenHits(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	loader := newShopLoader(shop{ID: 1, Name: "tea"})

	for range 3 {
		got, found, err := c.QueryWithPassThrough(ctx, "shop:", 1, loader.load, 30*time.Minute)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "tea", got.Name)
	}
	assert.Equal(t, int64(1), loader.calls.Load())
	assert.Equal(t, 30*time.Minute, mr.TTL("shop:1"))

	st := c.Stats()
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, int64(1), st.Loads)
}

func TestQueryWithPassThrough_AbsentWritesNullMarker(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	loader := newShopLoader()

	_, found, err := c.QueryWithPassThrough(ctx, "item:", 42, loader.load, 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, found)

	raw, err := mr.Get("item:42")
	require.NoError(t, err)
	assert.Empty(t, raw)
	assert.Equal(t, 2*time.Minute, mr.TTL("item:42"))

	_, found, err = c.QueryWithPassThrough(ctx, "item:", 42, loader.load, 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(1), loader.calls.Load(), "null marker absorbs the second query")
	assert.Equal(t, int64(1), c.Stats().NullHits)

	mr.FastForward(2*time.Minute + time.Second)
	_, _, err = c.QueryWithPassThrough(ctx, "item:", 42, loader.load, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loader.calls.Load(), "expired null marker reloads")
}

func TestQueryWithPassThrough_CustomNullTTL(t *testing.T) {
	c, mr := newTestClient(t, WithNullTTL(10*time.Second))

	_, _, err := c.QueryWithPassThrough(context.Background(), "item:", 7, newShopLoader().load, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, mr.TTL("item:7"))
}

func TestQueryWithPassThrough_CorruptEntryIsRebuilt(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, mr.Set("shop:1", "{not json"))
	loader := newShopLoader(shop{ID: 1, Name: "tea"})

	got, found, err := c.QueryWithPassThrough(context.Background(), "shop:", 1, loader.load, time.Minute)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "tea", got.Name)
	assert.Equal(t, int64(1), c.Stats().Corrupt)

	raw, err := mr.Get("shop:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"tea"}`, raw)
}

func TestQueryWithPassThrough_LoaderError(t *testing.T) {
	c, mr := newTestClient(t)
	boom := errors.New("db down")
	loader := &shopLoader{err: boom}

	_, found, err := c.QueryWithPassThrough(context.Background(), "shop:", 1, loader.load, time.Minute)
	assert.False(t, found)
	assert.ErrorIs(t, err, ErrLoaderFailed)
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("shop:1"), "failures are not cached")
	assert.Equal(t, int64(1), c.Stats().LoadErrors)
}

func TestQueryWithPassThrough_LoaderPanic(t *testing.T) {
	c, _ := newTestClient(t)
	loader := func(context.Context, int64) (shop, bool, error) { panic("bad row") }

	_, _, err := c.QueryWithPassThrough(context.Background(), "shop:", 1, loader, time.Minute)
	assert.ErrorIs(t, err, ErrLoaderFailed)
	assert.ErrorIs(t, err, ErrLoadPanic)
}

func TestQueryWithPassThrough_Validation(t *testing.T) {
	c, _ := newTestClient(t)

	_, _, err := c.QueryWithPassThrough(context.Background(), "shop:", 1, nil, time.Minute)
	assert.ErrorIs(t, err, ErrNilLoader)

	s, _ := newTestStore(t)
	sc, err := New[string, shop](s, WithLogger(nil))
	require.NoError(t, err)
	byName := func(context.Context, string) (shop, bool, error) { return shop{}, false, nil }
	_, _, err = sc.QueryWithPassThrough(context.Background(), "", "", byName, time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestQueryWithPassThrough_StoreReadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := xstoremock.NewMockStore(ctrl)
	down := errors.New("connection refused")
	store.EXPECT().Get(gomock.Any(), "shop:1").Return("", down)

	c, err := New[int64, shop](store, WithLogger(nil))
	require.NoError(t, err)
	loader := newShopLoader(shop{ID: 1})

	_, _, err = c.QueryWithPassThrough(context.Background(), "shop:", 1, loader.load, time.Minute)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, down)
	assert.Zero(t, loader.calls.Load())
}

func TestQueryWithPassThrough_WriteFailureStillReturnsValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := xstoremock.NewMockStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "shop:1").Return("", xstore.ErrNotFound)
	store.EXPECT().Set(gomock.Any(), "shop:1", gomock.Any(), time.Minute).Return(errors.New("readonly"))

	c, err := New[int64, shop](store, WithLogger(nil))
	require.NoError(t, err)

	got, found, err := c.QueryWithPassThrough(context.Background(), "shop:", 1, newShopLoader(shop{ID: 1, Name: "tea"}).load, time.Minute)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "tea", got.Name)
	assert.Equal(t, int64(1), c.Stats().WriteErrors)
}

func TestQueryWithPassThrough_ObserverResults(t *testing.T) {
	obs := &recordingObserver{}
	c, _ := newTestClient(t, WithObserver(obs))
	ctx := context.Background()
	loader := newShopLoader(shop{ID: 1})

	_, _, _ = c.QueryWithPassThrough(ctx, "shop:", 1, loader.load, time.Minute)
	_, _, _ = c.QueryWithPassThrough(ctx, "shop:", 1, loader.load, time.Minute)
	_, _, _ = c.QueryWithPassThrough(ctx, "shop:", 2, loader.load, time.Minute)
	_, _, _ = c.QueryWithPassThrough(ctx, "shop:", 2, loader.load, time.Minute)

	assert.Equal(t, []string{"loaded", "hit", "absent", "null"}, obs.results())
	assert.Equal(t, "xcache", obs.spans[0].opts.Component)
	assert.Equal(t, "pass_through", obs.spans[0].opts.Operation)
}

func TestQueryWithPassThrough_SlowLoadCounted(t *testing.T) {
	slow := make(chan SlowLoad, 1)
	c, _ := newTestClient(t,
		WithSlowLoadThreshold(5*time.Millisecond),
		WithSlowLoadHook(func(s SlowLoad) { slow <- s }),
	)
	loader := newShopLoader(shop{ID: 1})
	loader.delay = 20 * time.Millisecond

	_, _, err := c.QueryWithPassThrough(context.Background(), "shop:", 1, loader.load, time.Minute)
	require.NoError(t, err)

	select {
	case s := <-slow:
		assert.Equal(t, "shop:1", s.Key)
		assert.GreaterOrEqual(t, s.Duration, 5*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("slow load hook not called")
	}
	assert.Equal(t, int64(1), c.Stats().SlowLoads)
}
