package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crushlink/crushpay/types"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	link := &types.CrushLink{CrushHandle: "@somebody", Message: "hey"}
	require.NoError(t, s.Create(ctx, link))
	require.NotEmpty(t, link.ID)
	assert.Equal(t, types.StatusPending, link.Status)

	got, err := s.Get(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "@somebody", got.CrushHandle)
	assert.False(t, got.Status.Terminal())

	txHash := "0x1111111111111111111111111111111111111111111111111111111111111111"
	require.NoError(t, s.UpdateStatus(ctx, link.ID, types.StatusRejectedPaid, txHash))

	got, err = s.Get(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRejectedPaid, got.Status)
	assert.Equal(t, txHash, got.PaymentTxHash)
	assert.True(t, got.Status.Terminal())
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.UpdateStatus(ctx, "missing", types.StatusAccepted, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDuplicateCreate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	link := &types.CrushLink{ID: "fixed"}
	require.NoError(t, s.Create(ctx, link))
	assert.Error(t, s.Create(ctx, &types.CrushLink{ID: "fixed"}))
}

func TestMemoryStoreUpdateWithoutHashKeepsExisting(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	link := &types.CrushLink{ID: "l1", PaymentTxHash: "0xdead"}
	require.NoError(t, s.Create(ctx, link))
	require.NoError(t, s.UpdateStatus(ctx, "l1", types.StatusAccepted, ""))

	got, err := s.Get(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "0xdead", got.PaymentTxHash)
}
