package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"secondbrain/internal/model"
	"secondbrain/internal/recurrence"
	"secondbrain/internal/repository"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time                         { return c.now }
func (c fixedClock) Today(context.Context, int64) time.Time { return recurrence.Truncate(c.now) }

type recorded struct {
	action model.ActionType
	itemID string
	before *model.Item
}

type spyRecorder struct{ calls []recorded }

func (r *spyRecorder) Record(_ context.Context, _ int64, action model.ActionType, _ model.Bucket, itemID string, snapshot *model.Item) error {
	r.calls = append(r.calls, recorded{action: action, itemID: itemID, before: snapshot})
	return nil
}

const owner = int64(42)

func setup(t *testing.T) (*Service, *repository.Memory, *spyRecorder) {
	t.Helper()
	store := repository.NewMemory()
	svc := NewService(store, fixedClock{now: time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)}, zap.NewNop())
	spy := &spyRecorder{}
	svc.SetRecorder(spy)
	return svc, store, spy
}

func insert(t *testing.T, store *repository.Memory, it *model.Item) *model.Item {
	t.Helper()
	if it.Owner == 0 {
		it.Owner = owner
	}
	if it.Status == "" {
		it.Status = model.StatusActive
	}
	if it.Priority == "" {
		it.Priority = model.PriorityNormal
	}
	out, err := store.Insert(context.Background(), it)
	require.NoError(t, err)
	return out
}

func TestPausedOnlyForProjects(t *testing.T) {
	ctx := context.Background()
	svc, store, spy := setup(t)
	task := insert(t, store, &model.Item{Bucket: model.BucketAdmin, Title: "Taxes"})

	out, err := svc.SetStatus(ctx, owner, model.BucketAdmin, task.ID, model.StatusPaused)
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, ReasonInvalid, out.Reason)
	assert.Empty(t, spy.calls)

	got, _ := store.Get(ctx, owner, model.BucketAdmin, task.ID)
	assert.Equal(t, model.StatusActive, got.Status)

	proj := insert(t, store, &model.Item{Bucket: model.BucketProjects, Title: "Shed"})
	out, err = svc.SetStatus(ctx, owner, model.BucketProjects, proj.ID, model.StatusPaused)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, model.StatusPaused, out.Item.Status)
}

func TestCompletingRecurringItemTwiceSpawnsOneSuccessor(t *testing.T) {
	ctx := context.Background()
	svc, store, spy := setup(t)
	due := recurrence.Date(2024, 3, 15)
	weekly := recurrence.WeeklyOn(0)
	task := insert(t, store, &model.Item{
		Bucket: model.BucketAdmin, Title: "Take out bins", Detail: "blue and green",
		Priority: model.PriorityHigh, ScheduledDate: &due, Recurrence: &weekly,
	})

	first, err := svc.Complete(ctx, owner, model.BucketAdmin, task.ID)
	require.NoError(t, err)
	require.True(t, first.OK)
	require.NotNil(t, first.Successor)
	require.NotNil(t, first.Item.CompletedAt)

	succ := first.Successor
	assert.NotEqual(t, task.ID, succ.ID)
	assert.Equal(t, recurrence.Date(2024, 3, 18), *succ.ScheduledDate)
	assert.Equal(t, "Take out bins", succ.Title)
	assert.Equal(t, "blue and green", succ.Detail)
	assert.Equal(t, model.PriorityHigh, succ.Priority)
	assert.Equal(t, model.StatusActive, succ.Status)
	assert.True(t, succ.IsRecurring())
	assert.Equal(t, "weekly:0", succ.RecurrencePattern())

	second, err := svc.Complete(ctx, owner, model.BucketAdmin, task.ID)
	require.NoError(t, err)
	assert.True(t, second.OK)
	assert.False(t, second.Changed)
	assert.Nil(t, second.Successor)

	all, _ := store.List(ctx, repository.ItemFilter{Owner: owner, Bucket: model.BucketAdmin})
	assert.Len(t, all, 2)
	require.Len(t, spy.calls, 1)
	assert.Equal(t, model.ActionComplete, spy.calls[0].action)
	assert.Equal(t, model.StatusActive, spy.calls[0].before.Status)
}

func TestSuccessorWithoutDateAnchorsOnToday(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setup(t)
	daily := recurrence.Daily()
	task := insert(t, store, &model.Item{Bucket: model.BucketPeople, Title: "Check on Dad", Recurrence: &daily})

	out, err := svc.Complete(ctx, owner, model.BucketPeople, task.ID)
	require.NoError(t, err)
	require.NotNil(t, out.Successor)
	assert.Equal(t, recurrence.Date(2024, 3, 16), *out.Successor.ScheduledDate)
}

func TestReopeningClearsCompletedAt(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setup(t)
	task := insert(t, store, &model.Item{Bucket: model.BucketAdmin, Title: "Call bank"})

	_, err := svc.Complete(ctx, owner, model.BucketAdmin, task.ID)
	require.NoError(t, err)
	out, err := svc.SetStatus(ctx, owner, model.BucketAdmin, task.ID, model.StatusSomeday)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Nil(t, out.Item.CompletedAt)
}

func TestTransitionsOnMissingItemReportNotFound(t *testing.T) {
	ctx := context.Background()
	svc, store, spy := setup(t)
	other := insert(t, store, &model.Item{Owner: 7, Bucket: model.BucketAdmin, Title: "Not yours"})

	checks := map[string]func() (Outcome, error){
		"status":   func() (Outcome, error) { return svc.SetStatus(ctx, owner, model.BucketAdmin, other.ID, model.StatusSomeday) },
		"priority": func() (Outcome, error) { return svc.TogglePriority(ctx, owner, model.BucketAdmin, other.ID) },
		"date":     func() (Outcome, error) { return svc.SetDate(ctx, owner, model.BucketAdmin, other.ID, nil) },
		"delete":   func() (Outcome, error) { return svc.Delete(ctx, owner, model.BucketAdmin, "missing") },
		"move":     func() (Outcome, error) { return svc.Move(ctx, owner, model.BucketAdmin, other.ID, model.BucketIdeas) },
		"bucket":   func() (Outcome, error) { return svc.Complete(ctx, owner, model.BucketNeedsReview, other.ID) },
	}
	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			out, err := call()
			require.NoError(t, err)
			assert.False(t, out.OK)
			assert.Equal(t, ReasonNotFound, out.Reason)
		})
	}
	assert.Empty(t, spy.calls)

	got, err := store.Get(ctx, 7, model.BucketAdmin, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.Status)
}

func TestSetDateAndRecurrence(t *testing.T) {
	ctx := context.Background()
	svc, store, spy := setup(t)
	idea := insert(t, store, &model.Item{Bucket: model.BucketIdeas, Title: "Podcast"})
	task := insert(t, store, &model.Item{Bucket: model.BucketAdmin, Title: "Dentist"})

	d := time.Date(2024, 4, 2, 15, 30, 0, 0, time.UTC)
	out, err := svc.SetDate(ctx, owner, model.BucketIdeas, idea.ID, &d)
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalid, out.Reason)

	out, err = svc.SetDate(ctx, owner, model.BucketAdmin, task.ID, &d)
	require.NoError(t, err)
	require.True(t, out.OK)
	assert.Equal(t, recurrence.Date(2024, 4, 2), *out.Item.ScheduledDate)

	out, err = svc.SetDate(ctx, owner, model.BucketAdmin, task.ID, &d)
	require.NoError(t, err)
	assert.False(t, out.Changed)

	p := recurrence.MonthlyLast()
	out, err = svc.SetRecurrence(ctx, owner, model.BucketAdmin, task.ID, &p)
	require.NoError(t, err)
	assert.True(t, out.Item.IsRecurring())

	out, err = svc.SetRecurrence(ctx, owner, model.BucketAdmin, task.ID, nil)
	require.NoError(t, err)
	assert.False(t, out.Item.IsRecurring())
	assert.Empty(t, out.Item.RecurrencePattern())

	out, err = svc.SetDate(ctx, owner, model.BucketAdmin, task.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, out.Item.ScheduledDate)

	// 两次 date 变更写入撤销账本，recurrence 不写
	require.Len(t, spy.calls, 2)
	assert.Equal(t, model.ActionDate, spy.calls[0].action)
}

func TestTogglePriorityAndEdits(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setup(t)
	task := insert(t, store, &model.Item{Bucket: model.BucketProjects, Title: "Garage"})

	out, err := svc.TogglePriority(ctx, owner, model.BucketProjects, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityHigh, out.Item.Priority)
	out, _ = svc.TogglePriority(ctx, owner, model.BucketProjects, task.ID)
	assert.Equal(t, model.PriorityNormal, out.Item.Priority)

	out, _ = svc.Rename(ctx, owner, model.BucketProjects, task.ID, "  ")
	assert.Equal(t, ReasonInvalid, out.Reason)
	out, _ = svc.Rename(ctx, owner, model.BucketProjects, task.ID, "Clean garage")
	assert.Equal(t, "Clean garage", out.Item.Title)
	out, _ = svc.Redescribe(ctx, owner, model.BucketProjects, task.ID, "before winter")
	assert.Equal(t, "before winter", out.Item.Detail)
}

func TestMoveRoundTripIsLossy(t *testing.T) {
	ctx := context.Background()
	svc, store, spy := setup(t)
	due := recurrence.Date(2024, 6, 1)
	proj := insert(t, store, &model.Item{
		Bucket: model.BucketProjects, Title: "Kitchen remodel", Detail: "new cabinets",
		NextAction: "Call contractor", ScheduledDate: &due,
	})

	out, err := svc.Move(ctx, owner, model.BucketProjects, proj.ID, model.BucketIdeas)
	require.NoError(t, err)
	require.True(t, out.OK)
	idea := out.Item
	assert.Equal(t, model.BucketIdeas, idea.Bucket)
	assert.NotEqual(t, proj.ID, idea.ID)

	_, err = store.Get(ctx, owner, model.BucketProjects, proj.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	out, err = svc.Move(ctx, owner, model.BucketIdeas, idea.ID, model.BucketProjects)
	require.NoError(t, err)
	back := out.Item
	assert.Equal(t, "Kitchen remodel", back.Title)
	assert.Equal(t, "new cabinets", back.Detail)
	assert.Empty(t, back.NextAction)
	assert.Nil(t, back.ScheduledDate)

	require.Len(t, spy.calls, 2)
	assert.Equal(t, model.ActionMove, spy.calls[0].action)
	assert.Equal(t, "Call contractor", spy.calls[0].before.NextAction)
}

func TestDeleteRecordsSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, store, spy := setup(t)
	person := insert(t, store, &model.Item{Bucket: model.BucketPeople, Title: "Rachel", Detail: "likes tea"})

	out, err := svc.Delete(ctx, owner, model.BucketPeople, person.ID)
	require.NoError(t, err)
	assert.True(t, out.OK)

	_, err = store.Get(ctx, owner, model.BucketPeople, person.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.Len(t, spy.calls, 1)
	assert.Equal(t, "likes tea", spy.calls[0].before.Detail)
}
