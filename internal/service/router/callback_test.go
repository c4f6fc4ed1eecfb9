package router

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secondbrain/internal/model"
	"secondbrain/internal/recurrence"
)

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data  string
		check func(t *testing.T, cb Callback)
	}{
		{"fix:abc:person", func(t *testing.T, cb Callback) {
			assert.Equal(t, "abc", cb.InboxID)
			assert.Equal(t, model.BucketPeople, cb.Bucket)
		}},
		{"cancel:abc", func(t *testing.T, cb Callback) { assert.Equal(t, "abc", cb.InboxID) }},
		{"moveto:admin:i1:ideas", func(t *testing.T, cb Callback) {
			assert.Equal(t, model.BucketAdmin, cb.Bucket)
			assert.Equal(t, "i1", cb.ItemID)
			assert.Equal(t, model.BucketIdeas, cb.Dest)
		}},
		{"status:projects:i1:paused", func(t *testing.T, cb Callback) { assert.Equal(t, model.StatusPaused, cb.Status) }},
		{"date:admin:i1:2024-04-01", func(t *testing.T, cb Callback) {
			require.NotNil(t, cb.Date)
			assert.Equal(t, recurrence.Date(2024, 4, 1), *cb.Date)
		}},
		{"date:admin:i1:none", func(t *testing.T, cb Callback) { assert.Nil(t, cb.Date) }},
		{"recur:people:i1:monthly:first_mon", func(t *testing.T, cb Callback) {
			require.NotNil(t, cb.Pattern)
			assert.Equal(t, recurrence.MonthlyFirstWeekday(0), *cb.Pattern)
		}},
		{"recur:admin:i1:none", func(t *testing.T, cb Callback) { assert.Nil(t, cb.Pattern) }},
		{"undo", func(t *testing.T, cb Callback) { assert.Equal(t, ActionUndo, cb.Action) }},
		{"cancel_del", func(t *testing.T, cb Callback) { assert.Equal(t, ActionCancelDelete, cb.Action) }},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			cb, err := ParseCallback(tt.data)
			require.NoError(t, err)
			tt.check(t, cb)
			assert.Equal(t, tt.data, normalize(tt.data, cb))
		})
	}
}

// normalize fix 的 person 会规范成 people
func normalize(data string, cb Callback) string {
	if cb.Action == ActionFix {
		return "fix:" + cb.InboxID + ":person"
	}
	return cb.String()
}

func TestParseCallbackRejects(t *testing.T) {
	for _, data := range []string{
		"",
		"explode:admin:1",
		"done:admin",
		"done:needs_review:1",
		"done:admin:",
		"status:admin:1:frozen",
		"date:admin:1:tomorrow",
		"recur:admin:1:hourly",
		"moveto:admin:1:inbox",
		"undo:extra",
	} {
		_, err := ParseCallback(data)
		assert.ErrorIs(t, err, ErrBadCallback, data)
	}
}

func TestCallbackUUIDFitsTelegramLimit(t *testing.T) {
	id := uuid.NewString()
	monthly := recurrence.MonthlyFirstWeekday(0)
	day := recurrence.Date(2024, 4, 1)

	for _, cb := range []Callback{
		{Action: ActionRecur, Bucket: model.BucketProjects, ItemID: id, Pattern: &monthly},
		{Action: ActionMove, Bucket: model.BucketProjects, ItemID: id, Dest: model.BucketProjects},
		{Action: ActionStatus, Bucket: model.BucketProjects, ItemID: id, Status: model.StatusCompleted},
		{Action: ActionDate, Bucket: model.BucketProjects, ItemID: id, Date: &day},
		{Action: ActionConfirmDelete, Bucket: model.BucketProjects, ItemID: id},
		{Action: ActionEditDetail, Bucket: model.BucketProjects, ItemID: id},
	} {
		data := cb.String()
		assert.LessOrEqual(t, len(data), MaxCallbackBytes, data)
		assert.NotContains(t, data, id)

		got, err := ParseCallback(data)
		require.NoError(t, err, data)
		assert.Equal(t, id, got.ItemID)
		assert.Equal(t, cb.Action, got.Action)
	}

	fix, err := ParseCallback(Callback{Action: ActionFix, InboxID: id, Bucket: model.BucketIdeas}.String())
	require.NoError(t, err)
	assert.Equal(t, id, fix.InboxID)
}
