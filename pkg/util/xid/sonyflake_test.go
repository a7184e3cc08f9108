package xid

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/sonyflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedMachine(id uint16) func() (uint16, error) {
	return func() (uint16, error) { return id, nil }
}

func TestNewSonyflake_GeneratesIncreasingIDs(t *testing.T) {
	g, err := NewSonyflake(WithMachineID(fixedMachine(7)))
	require.NoError(t, err)

	var prev uint64
	for range 100 {
		id, err := g.NextID(context.Background(), "order")
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestNewSonyflake_Validation(t *testing.T) {
	_, err := NewSonyflake(WithMachineID(nil))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSonyflake(
		WithMachineID(fixedMachine(7)),
		WithCheckMachineID(func(uint16) bool { return false }),
	)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSonyflake(WithMachineID(func() (uint16, error) { return 0, errors.New("no id") }))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSonyflake_NextID_Errors(t *testing.T) {
	g, err := NewSonyflake(WithMachineID(fixedMachine(1)))
	require.NoError(t, err)

	_, err = g.NextID(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyPrefix)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.NextID(ctx, "order")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSonyflake_NextID_OverTimeLimit(t *testing.T) {
	g := &Sonyflake{generate: func() (int64, error) { return 0, sonyflake.ErrOverTimeLimit }}
	_, err := g.NextID(context.Background(), "order")
	assert.ErrorIs(t, err, ErrOverTimeLimit)

	boom := errors.New("boom")
	g = &Sonyflake{generate: func() (int64, error) { return 0, boom }}
	_, err = g.NextID(context.Background(), "order")
	assert.ErrorIs(t, err, boom)
}
