package undo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"secondbrain/internal/model"
	"secondbrain/internal/recurrence"
	"secondbrain/internal/repository"
	"secondbrain/internal/service/lifecycle"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
func (fixedClock) Today(context.Context, int64) time.Time {
	return recurrence.Date(2024, 3, 15)
}

const owner = int64(5)

func setup(t *testing.T) (*Ledger, *lifecycle.Service, *repository.Memory) {
	t.Helper()
	store := repository.NewMemory()
	ledger := NewLedger(store, store, DefaultLimit, zap.NewNop())
	svc := lifecycle.NewService(store, fixedClock{}, zap.NewNop())
	svc.SetRecorder(ledger)
	return ledger, svc, store
}

func add(t *testing.T, store *repository.Memory, bucket model.Bucket, title string) *model.Item {
	t.Helper()
	it, err := store.Insert(context.Background(), &model.Item{
		Owner: owner, Bucket: bucket, Title: title, Status: model.StatusActive, Priority: model.PriorityNormal,
	})
	require.NoError(t, err)
	return it
}

func TestUndoEmptyLedger(t *testing.T) {
	ledger, _, _ := setup(t)

	res, err := ledger.UndoLast(context.Background(), owner)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Nothing to undo.", res.Message)
}

func TestLedgerKeepsTenAndUndoesNewestFirst(t *testing.T) {
	ctx := context.Background()
	ledger, svc, store := setup(t)

	items := make([]*model.Item, 11)
	for i := range items {
		items[i] = add(t, store, model.BucketAdmin, fmt.Sprintf("task %d", i+1))
	}
	for _, it := range items {
		out, err := svc.TogglePriority(ctx, owner, model.BucketAdmin, it.ID)
		require.NoError(t, err)
		require.True(t, out.OK)
	}

	n, err := store.CountUndo(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	res, err := ledger.UndoLast(ctx, owner)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, items[10].ID, res.Item.ID)
	assert.Equal(t, model.PriorityNormal, res.Item.Priority)

	res, err = ledger.UndoLast(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, items[9].ID, res.Item.ID)

	// 第 1 个动作已被挤出
	for i := 0; i < 8; i++ {
		res, err = ledger.UndoLast(ctx, owner)
		require.NoError(t, err)
		require.True(t, res.Success)
	}
	res, err = ledger.UndoLast(ctx, owner)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, MsgNothing, res.Message)

	first, _ := store.Get(ctx, owner, model.BucketAdmin, items[0].ID)
	assert.Equal(t, model.PriorityHigh, first.Priority)
}

func TestUndoComplete(t *testing.T) {
	ctx := context.Background()
	ledger, svc, store := setup(t)
	it := add(t, store, model.BucketProjects, "Paint fence")

	_, err := svc.SetStatus(ctx, owner, model.BucketProjects, it.ID, model.StatusPaused)
	require.NoError(t, err)
	_, err = svc.Complete(ctx, owner, model.BucketProjects, it.ID)
	require.NoError(t, err)

	res, err := ledger.UndoLast(ctx, owner)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, model.ActionComplete, res.Action)
	assert.Equal(t, model.StatusPaused, res.Item.Status)
	assert.Nil(t, res.Item.CompletedAt)

	res, err = ledger.UndoLast(ctx, owner)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, model.StatusActive, res.Item.Status)
}

func TestUndoDeleteRestoresSameID(t *testing.T) {
	ctx := context.Background()
	ledger, svc, store := setup(t)
	it := add(t, store, model.BucketPeople, "Grandma")
	due := recurrence.Date(2024, 4, 1)
	_, err := svc.SetDate(ctx, owner, model.BucketPeople, it.ID, &due)
	require.NoError(t, err)

	_, err = svc.Delete(ctx, owner, model.BucketPeople, it.ID)
	require.NoError(t, err)

	res, err := ledger.UndoLast(ctx, owner)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, model.BucketPeople, res.Bucket)

	got, err := store.Get(ctx, owner, model.BucketPeople, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grandma", got.Title)
	require.NotNil(t, got.ScheduledDate)
	assert.Equal(t, due, *got.ScheduledDate)

	res, err = ledger.UndoLast(ctx, owner)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, model.ActionDate, res.Action)
	assert.Nil(t, res.Item.ScheduledDate)
}

func TestUndoMoveIsUnsupportedAndConsumed(t *testing.T) {
	ctx := context.Background()
	ledger, svc, store := setup(t)
	it := add(t, store, model.BucketIdeas, "Board game cafe")
	_, err := svc.TogglePriority(ctx, owner, model.BucketIdeas, it.ID)
	require.NoError(t, err)
	_, err = svc.Move(ctx, owner, model.BucketIdeas, it.ID, model.BucketProjects)
	require.NoError(t, err)

	res, err := ledger.UndoLast(ctx, owner)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, MsgMove, res.Message)
	assert.NotEqual(t, MsgNothing, res.Message)

	// priority 条目的目标已随 move 删除
	res, err = ledger.UndoLast(ctx, owner)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, MsgItemMissing, res.Message)

	res, err = ledger.UndoLast(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, MsgNothing, res.Message)
}

func TestLedgersAreIsolatedPerOwner(t *testing.T) {
	ctx := context.Background()
	ledger, svc, store := setup(t)
	it := add(t, store, model.BucketAdmin, "Mine")
	_, err := svc.TogglePriority(ctx, owner, model.BucketAdmin, it.ID)
	require.NoError(t, err)

	res, err := ledger.UndoLast(ctx, owner+1)
	require.NoError(t, err)
	assert.Equal(t, MsgNothing, res.Message)

	n, _ := store.CountUndo(ctx, owner)
	assert.Equal(t, 1, n)
}

// flakyStore 对指定条目的 Update 返回错误
type flakyStore struct {
	*repository.Memory
	failID string
}

func (s *flakyStore) Update(ctx context.Context, it *model.Item) error {
	if it.ID == s.failID {
		return errors.New("connection reset")
	}
	return s.Memory.Update(ctx, it)
}

func TestFailedWriteLeavesNoUndoEntry(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemory()
	a := add(t, store, model.BucketAdmin, "a")
	b := add(t, store, model.BucketAdmin, "b")

	ledger := NewLedger(store, store, DefaultLimit, zap.NewNop())
	svc := lifecycle.NewService(&flakyStore{Memory: store, failID: b.ID}, fixedClock{}, zap.NewNop())
	svc.SetRecorder(ledger)

	out, err := svc.TogglePriority(ctx, owner, model.BucketAdmin, a.ID)
	require.NoError(t, err)
	require.True(t, out.OK)

	_, err = svc.TogglePriority(ctx, owner, model.BucketAdmin, b.ID)
	require.Error(t, err)
	_, err = svc.SetStatus(ctx, owner, model.BucketAdmin, b.ID, model.StatusCompleted)
	require.Error(t, err)

	n, err := store.CountUndo(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := ledger.UndoLast(ctx, owner)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, a.ID, res.Item.ID)
	assert.Equal(t, model.PriorityNormal, res.Item.Priority)

	res, err = ledger.UndoLast(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, MsgNothing, res.Message)
}

func TestUndoRecurringCompleteKeepsSuccessor(t *testing.T) {
	ctx := context.Background()
	ledger, svc, store := setup(t)
	it := add(t, store, model.BucketAdmin, "Water plants")
	weekly := recurrence.WeeklyOn(4)
	_, err := svc.SetRecurrence(ctx, owner, model.BucketAdmin, it.ID, &weekly)
	require.NoError(t, err)

	out, err := svc.Complete(ctx, owner, model.BucketAdmin, it.ID)
	require.NoError(t, err)
	require.NotNil(t, out.Successor)

	res, err := ledger.UndoLast(ctx, owner)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, model.StatusActive, res.Item.Status)
	assert.Contains(t, res.Message, MsgSuccessorKept)

	_, err = store.Get(ctx, owner, model.BucketAdmin, out.Successor.ID)
	assert.NoError(t, err)
}
