package router

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
	"secondbrain/internal/service/intent"
	"secondbrain/internal/service/lifecycle"
	"secondbrain/internal/service/undo"
	"secondbrain/internal/session"
)

const owner = int64(7)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time                         { return c.now }
func (c fixedClock) Today(context.Context, int64) time.Time { return recurrence.Truncate(c.now) }

// stubIntents 预设每种意图的结果并记录调用次数
type stubIntents struct {
	classification intent.Classification
	completion     intent.Completion
	deletion       intent.Deletion
	status         intent.StatusChange
	calls          map[string]int
}

func newStub() *stubIntents {
	return &stubIntents{
		classification: intent.Classification{Bucket: model.BucketNeedsReview},
		calls:          map[string]int{},
	}
}

func (s *stubIntents) Classify(_ context.Context, text string, _ int64) intent.Classification {
	s.calls["classify"]++
	c := s.classification
	if c.Title == "" {
		c.Title = text
	}
	return c
}

func (s *stubIntents) DetectCompletion(context.Context, string) intent.Completion {
	s.calls["completion"]++
	return s.completion
}

func (s *stubIntents) DetectDeletion(context.Context, string) intent.Deletion {
	s.calls["deletion"]++
	return s.deletion
}

func (s *stubIntents) DetectStatusChange(context.Context, string) intent.StatusChange {
	s.calls["status"]++
	return s.status
}

type fixture struct {
	d        *Dispatcher
	store    *repository.Memory
	intents  *stubIntents
	sessions *session.MemoryStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemory()
	log := zap.NewNop()
	life := lifecycle.NewService(store, fixedClock{now: time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)}, log)
	ledger := undo.NewLedger(store, store, undo.DefaultLimit, log)
	life.SetRecorder(ledger)
	stub := newStub()
	sessions := session.NewMemoryStore(nil)
	return &fixture{
		d:        NewDispatcher(store, store, life, ledger, stub, sessions, log),
		store:    store,
		intents:  stub,
		sessions: sessions,
	}
}

func (f *fixture) insert(t *testing.T, bucket model.Bucket, title string) *model.Item {
	t.Helper()
	it, err := f.store.Insert(context.Background(), &model.Item{
		Owner:    owner,
		Bucket:   bucket,
		Title:    title,
		Status:   model.StatusActive,
		Priority: model.PriorityNormal,
	})
	require.NoError(t, err)
	return it
}

func (f *fixture) item(t *testing.T, it *model.Item) *model.Item {
	t.Helper()
	got, err := f.store.Get(context.Background(), owner, it.Bucket, it.ID)
	require.NoError(t, err)
	return got
}

func (f *fixture) count(t *testing.T, bucket model.Bucket) int {
	t.Helper()
	items, err := f.store.List(context.Background(), repository.ItemFilter{Owner: owner, Bucket: bucket})
	require.NoError(t, err)
	return len(items)
}

func TestDeletionBeatsCompletion(t *testing.T) {
	f := setup(t)
	it := f.insert(t, model.BucketAdmin, "Call Rachel")
	f.intents.deletion = intent.Deletion{IsDeletion: true, TaskHint: "call rachel"}
	f.intents.completion = intent.Completion{IsCompletion: true, TaskHint: "call rachel"}

	r, err := f.d.Handle(context.Background(), owner, "forget about calling Rachel, I did it", model.SourceTelegram)
	require.NoError(t, err)

	assert.Equal(t, RouteDelete, r.Route)
	require.NotNil(t, r.Confirm)
	assert.Equal(t, it.ID, r.Confirm.ID)
	assert.Equal(t, model.StatusActive, f.item(t, it).Status)
	assert.Zero(t, f.intents.calls["completion"])
}

func TestDonePrefixCompletesWithoutOracle(t *testing.T) {
	f := setup(t)
	it := f.insert(t, model.BucketPeople, "Rachel")

	r, err := f.d.Handle(context.Background(), owner, "DONE: rachel", model.SourceTelegram)
	require.NoError(t, err)

	assert.Equal(t, RouteDone, r.Route)
	assert.True(t, r.OK)
	assert.Equal(t, model.StatusCompleted, f.item(t, it).Status)
	assert.Empty(t, f.intents.calls)
}

func TestDonePrefixWithoutMatchBecomesCapture(t *testing.T) {
	f := setup(t)
	f.intents.classification = intent.Classification{Bucket: model.BucketAdmin, Confidence: 0.9}

	r, err := f.d.Handle(context.Background(), owner, "done: buy milk", model.SourceTelegram)
	require.NoError(t, err)

	assert.Equal(t, RouteCapture, r.Route)
	require.NotNil(t, r.Item)
	assert.Equal(t, model.BucketAdmin, r.Item.Bucket)
	require.NotNil(t, r.Inbox)
	assert.True(t, r.Inbox.Processed)
	assert.Equal(t, r.Item.ID, r.Inbox.TargetID)
	assert.Equal(t, r.Inbox.ID, r.Item.InboxEntryID)
}

func TestCompletionScopeSkipsIdeas(t *testing.T) {
	f := setup(t)
	idea := f.insert(t, model.BucketIdeas, "Podcast about maps")
	f.intents.completion = intent.Completion{IsCompletion: true, TaskHint: "podcast"}

	r, err := f.d.Handle(context.Background(), owner, "recorded the podcast", model.SourceTelegram)
	require.NoError(t, err)

	assert.Equal(t, RouteCapture, r.Route)
	assert.Equal(t, model.StatusActive, f.item(t, idea).Status)
	assert.Equal(t, 1, f.intents.calls["classify"])
}

func TestCompletionPicksFirstCreatedMatch(t *testing.T) {
	f := setup(t)
	first := f.insert(t, model.BucketAdmin, "Pay rent")
	second := f.insert(t, model.BucketAdmin, "Pay rent for storage")
	f.intents.completion = intent.Completion{IsCompletion: true, TaskHint: "pay rent"}

	r, err := f.d.Handle(context.Background(), owner, "paid rent", model.SourceTelegram)
	require.NoError(t, err)

	assert.Equal(t, RouteComplete, r.Route)
	assert.Equal(t, model.StatusCompleted, f.item(t, first).Status)
	assert.Equal(t, model.StatusActive, f.item(t, second).Status)
}

func TestStatusChangeApplied(t *testing.T) {
	f := setup(t)
	p := f.insert(t, model.BucketProjects, "Kitchen remodel")
	f.intents.status = intent.StatusChange{IsStatusChange: true, TaskHint: "kitchen", NewStatus: model.StatusPaused, BucketHint: model.BucketProjects}

	r, err := f.d.Handle(context.Background(), owner, "put the kitchen on hold", model.SourceTelegram)
	require.NoError(t, err)

	assert.Equal(t, RouteStatus, r.Route)
	assert.True(t, r.OK)
	assert.Equal(t, model.StatusPaused, f.item(t, p).Status)
	assert.Zero(t, f.intents.calls["completion"])
}

func TestStatusChangeReopensCompleted(t *testing.T) {
	f := setup(t)
	p := f.insert(t, model.BucketProjects, "Blog")
	_, err := f.d.life.Complete(context.Background(), owner, p.Bucket, p.ID)
	require.NoError(t, err)
	f.intents.status = intent.StatusChange{IsStatusChange: true, TaskHint: "blog", NewStatus: model.StatusActive}

	r, err := f.d.Handle(context.Background(), owner, "restart the blog", model.SourceTelegram)
	require.NoError(t, err)

	assert.Equal(t, RouteStatus, r.Route)
	got := f.item(t, p)
	assert.Equal(t, model.StatusActive, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestRecurringCompletionSpawnsSuccessor(t *testing.T) {
	f := setup(t)
	due := recurrence.Date(2024, 3, 15)
	weekly := recurrence.WeeklyOn(4)
	_, err := f.store.Insert(context.Background(), &model.Item{
		Owner: owner, Bucket: model.BucketAdmin, Title: "Water plants",
		Status: model.StatusActive, Priority: model.PriorityNormal,
		ScheduledDate: &due, Recurrence: &weekly,
	})
	require.NoError(t, err)

	r, err := f.d.Handle(context.Background(), owner, "done: water plants", model.SourceTelegram)
	require.NoError(t, err)

	require.NotNil(t, r.Successor)
	assert.Equal(t, recurrence.Date(2024, 3, 22), *r.Successor.ScheduledDate)
	assert.Equal(t, 2, f.count(t, model.BucketAdmin))
}

func TestPendingEditTakesPriority(t *testing.T) {
	f := setup(t)
	it := f.insert(t, model.BucketAdmin, "Old title")
	f.intents.deletion = intent.Deletion{IsDeletion: true, TaskHint: "old title"}

	r, err := f.d.Press(context.Background(), owner, Callback{Action: ActionEditTitle, Bucket: it.Bucket, ItemID: it.ID})
	require.NoError(t, err)
	require.NotNil(t, r.Awaiting)

	r, err = f.d.Handle(context.Background(), owner, "Delete the old title and call it this", model.SourceTelegram)
	require.NoError(t, err)
	assert.Equal(t, RouteEdit, r.Route)
	assert.Equal(t, "Delete the old title and call it this", f.item(t, it).Title)
	assert.Empty(t, f.intents.calls)

	// 会话已被消费，下一条消息正常路由
	f.intents.deletion = intent.Deletion{}
	r, err = f.d.Handle(context.Background(), owner, "something else", model.SourceTelegram)
	require.NoError(t, err)
	assert.Equal(t, RouteCapture, r.Route)
	assert.Equal(t, 1, f.intents.calls["classify"])
}

func TestNeedsReviewFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	r, err := f.d.Handle(ctx, owner, "hmm something about sheds", model.SourceShortcut)
	require.NoError(t, err)
	assert.Nil(t, r.Item)
	require.NotNil(t, r.Inbox)
	assert.False(t, r.Inbox.Processed)
	assert.Equal(t, model.SourceShortcut, r.Inbox.Source)

	entry, n, err := f.d.NextReview(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1, n)
	assert.Equal(t, r.Inbox.ID, entry.ID)

	r, err = f.d.Reclassify(ctx, owner, entry.ID, model.BucketIdeas)
	require.NoError(t, err)
	assert.True(t, r.OK)
	require.NotNil(t, r.Item)
	assert.Equal(t, model.BucketIdeas, r.Item.Bucket)
	assert.Equal(t, 1.0, r.Inbox.Confidence)
	assert.True(t, r.Inbox.Processed)

	entry, n, err = f.d.NextReview(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Zero(t, n)
}

func TestReclassifyReplacesOldTarget(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.intents.classification = intent.Classification{Bucket: model.BucketAdmin, Confidence: 0.8, Title: "Shed"}

	r, err := f.d.Handle(ctx, owner, "build a shed", model.SourceTelegram)
	require.NoError(t, err)
	require.NotNil(t, r.Item)

	cb, err := ParseCallback("fix:" + r.Inbox.ID + ":projects")
	require.NoError(t, err)
	r, err = f.d.Press(ctx, owner, cb)
	require.NoError(t, err)

	assert.True(t, r.OK)
	assert.Zero(t, f.count(t, model.BucketAdmin))
	assert.Equal(t, 1, f.count(t, model.BucketProjects))
	assert.Equal(t, "Shed", r.Item.Title)
	assert.Equal(t, model.BucketProjects, r.Inbox.TargetBucket)
}

func TestCancelCaptureRemovesItemAndEntry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.intents.classification = intent.Classification{Bucket: model.BucketPeople, Confidence: 0.9}

	r, err := f.d.Handle(ctx, owner, "Rachel from the conference", model.SourceTelegram)
	require.NoError(t, err)

	r, err = f.d.CancelCapture(ctx, owner, r.Inbox.ID)
	require.NoError(t, err)
	assert.True(t, r.OK)
	assert.Zero(t, f.count(t, model.BucketPeople))

	_, err = f.store.GetEntry(ctx, owner, r.Inbox.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConfirmDeleteThenUndo(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	it := f.insert(t, model.BucketIdeas, "Podcast")

	r, err := f.d.Press(ctx, owner, Callback{Action: ActionConfirmDelete, Bucket: it.Bucket, ItemID: it.ID})
	require.NoError(t, err)
	assert.True(t, r.OK)
	assert.Zero(t, f.count(t, model.BucketIdeas))

	r, err = f.d.Press(ctx, owner, Callback{Action: ActionUndo})
	require.NoError(t, err)
	assert.True(t, r.OK)
	assert.Equal(t, it.ID, f.item(t, it).ID)

	r, err = f.d.Undo(ctx, owner)
	require.NoError(t, err)
	assert.False(t, r.OK)
	assert.Equal(t, undo.MsgNothing, r.Message)
}

func TestPressUnknownItem(t *testing.T) {
	f := setup(t)
	r, err := f.d.Press(context.Background(), owner, Callback{Action: ActionDone, Bucket: model.BucketAdmin, ItemID: "missing"})
	require.NoError(t, err)
	assert.False(t, r.OK)
}

func TestEmptyMessageIgnored(t *testing.T) {
	f := setup(t)
	r, err := f.d.Handle(context.Background(), owner, "   ", model.SourceTelegram)
	require.NoError(t, err)
	assert.False(t, r.OK)
	assert.Empty(t, f.intents.calls)
}
