package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondbrain/internal/model"
)

func TestTakeConsumesPending(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	p := Pending{Field: FieldTitle, Bucket: model.BucketAdmin, ItemID: "a1"}

	require.NoError(t, s.Await(ctx, 1, p, time.Minute))

	got, err := s.Take(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Take(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p, *got)

	got, err = s.Take(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPendingExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := NewMemoryStore(func() time.Time { return now })

	require.NoError(t, s.Await(ctx, 1, Pending{Field: FieldDetail}, time.Minute))
	now = now.Add(2 * time.Minute)

	got, err := s.Take(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAwaitReplacesAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	require.NoError(t, s.Await(ctx, 1, Pending{Field: FieldTitle, ItemID: "old"}, 0))
	require.NoError(t, s.Await(ctx, 1, Pending{Field: FieldDetail, ItemID: "new"}, 0))
	got, _ := s.Take(ctx, 1)
	require.NotNil(t, got)
	assert.Equal(t, "new", got.ItemID)

	require.NoError(t, s.Await(ctx, 1, Pending{Field: FieldTitle}, 0))
	require.NoError(t, s.Clear(ctx, 1))
	got, _ = s.Take(ctx, 1)
	assert.Nil(t, got)
}
