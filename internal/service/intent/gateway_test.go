package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"secondbrain/internal/model"
	"secondbrain/internal/recurrence"
	"secondbrain/internal/service/oracle"
)

// stubOracle 按 contract 返回预设回复
type stubOracle struct {
	replies map[string]string
	errs    map[string]error
	seen    []oracle.Request
}

func (s *stubOracle) Complete(_ context.Context, req oracle.Request) (string, error) {
	s.seen = append(s.seen, req)
	if err := s.errs[req.Contract]; err != nil {
		return "", err
	}
	return s.replies[req.Contract], nil
}

type fixedDay struct{}

func (fixedDay) Today(context.Context, int64) time.Time { return recurrence.Date(2024, 3, 15) }

func gateway(o oracle.Client) *Gateway {
	return NewGateway(o, fixedDay{}, zap.NewNop())
}

func TestClassifyLowConfidenceGoesToReview(t *testing.T) {
	o := &stubOracle{replies: map[string]string{
		ContractClassify: `{"category":"projects","confidence":0.55,"title":"Maybe a shed","summary":"shed thoughts","next_action":"measure"}`,
	}}
	c := gateway(o).Classify(context.Background(), "thinking about a shed maybe", 1)

	assert.Equal(t, model.BucketNeedsReview, c.Bucket)
	assert.InDelta(t, 0.55, c.Confidence, 1e-9)
	assert.Equal(t, "Maybe a shed", c.Title)
	assert.Empty(t, c.NextAction)
}

func TestClassifyParsesFields(t *testing.T) {
	o := &stubOracle{replies: map[string]string{
		ContractClassify: "```json\n{\"category\":\"projects\",\"confidence\":0.92,\"title\":\"Garden shed\",\"summary\":\"Build from kit\",\"next_action\":\"Order lumber\",\"due_date\":\"2024-04-01\"}\n```",
	}}
	c := gateway(o).Classify(context.Background(), "build the garden shed by april", 1)

	assert.Equal(t, model.BucketProjects, c.Bucket)
	assert.Equal(t, "Garden shed", c.Title)
	assert.Equal(t, "Order lumber", c.NextAction)
	require.NotNil(t, c.ScheduledDate)
	assert.Equal(t, recurrence.Date(2024, 4, 1), *c.ScheduledDate)
	assert.False(t, c.Forced)
	assert.Contains(t, string(c.Raw), "Garden shed")

	require.Len(t, o.seen, 1)
	assert.Contains(t, o.seen[0].System, "Today is 2024-03-15")
}

func TestClassifyRepairsSloppyJSON(t *testing.T) {
	o := &stubOracle{replies: map[string]string{
		ContractClassify: `{"category": "ideas", "confidence": 0.8, "title": "Podcast about maps",}`,
	}}
	c := gateway(o).Classify(context.Background(), "podcast idea about maps", 1)

	assert.Equal(t, model.BucketIdeas, c.Bucket)
	assert.Equal(t, "Podcast about maps", c.Title)
}

func TestClassifyFallbackOnOracleFailure(t *testing.T) {
	for name, o := range map[string]*stubOracle{
		"transport": {errs: map[string]error{ContractClassify: errors.New("connection refused")}},
		"garbage":   {replies: map[string]string{ContractClassify: "I think this is about a person"}},
		"breaker":   {errs: map[string]error{ContractClassify: oracle.ErrUnavailable}},
	} {
		t.Run(name, func(t *testing.T) {
			c := gateway(o).Classify(context.Background(), "call the plumber", 1)
			assert.Equal(t, model.BucketNeedsReview, c.Bucket)
			assert.Zero(t, c.Confidence)
			assert.Equal(t, "call the plumber", c.Title)
			assert.Equal(t, "call the plumber", c.Detail)
			assert.NotEmpty(t, c.Raw)
		})
	}
}

func TestClassifyPrefixOverridesOracle(t *testing.T) {
	o := &stubOracle{replies: map[string]string{
		ContractClassify: `{"category":"admin","confidence":0.3,"title":"Rachel","summary":"Met at the conference"}`,
	}}
	c := gateway(o).Classify(context.Background(), "Person: Rachel met at the conference", 1)

	assert.Equal(t, model.BucketPeople, c.Bucket)
	assert.Equal(t, 1.0, c.Confidence)
	assert.True(t, c.Forced)
	assert.Equal(t, "Rachel", c.Title)
	require.Len(t, o.seen, 1)
	assert.Equal(t, "Rachel met at the conference", o.seen[0].User)
}

func TestClassifyPrefixSurvivesOracleFailure(t *testing.T) {
	o := &stubOracle{errs: map[string]error{ContractClassify: errors.New("timeout")}}
	c := gateway(o).Classify(context.Background(), "idea: a bot that waters plants", 1)

	assert.Equal(t, model.BucketIdeas, c.Bucket)
	assert.Equal(t, 1.0, c.Confidence)
	assert.Equal(t, "a bot that waters plants", c.Title)
}

func TestSplitPrefix(t *testing.T) {
	b, body, ok := SplitPrefix("  PROJECT:  Kitchen ")
	assert.True(t, ok)
	assert.Equal(t, model.BucketProjects, b)
	assert.Equal(t, "Kitchen", body)

	_, body, ok = SplitPrefix("projects are fun")
	assert.False(t, ok)
	assert.Equal(t, "projects are fun", body)
}

func TestDetectCompletion(t *testing.T) {
	o := &stubOracle{replies: map[string]string{ContractCompletion: `{"is_completion": true, "task_hint": "Call Rachel"}`}}
	got := gateway(o).DetectCompletion(context.Background(), "I called Rachel")
	assert.Equal(t, Completion{IsCompletion: true, TaskHint: "Call Rachel"}, got)

	o.replies[ContractCompletion] = `{"is_completion": true, "task_hint": null}`
	got = gateway(o).DetectCompletion(context.Background(), "I did it")
	assert.False(t, got.IsCompletion)

	o.errs = map[string]error{ContractCompletion: errors.New("boom")}
	got = gateway(o).DetectCompletion(context.Background(), "I called Rachel")
	assert.Equal(t, Completion{}, got)
}

func TestDetectDeletion(t *testing.T) {
	o := &stubOracle{replies: map[string]string{ContractDeletion: `{"is_deletion": true, "task_hint": "podcast", "bucket_hint": "idea"}`}}
	got := gateway(o).DetectDeletion(context.Background(), "remove the podcast idea")
	assert.True(t, got.IsDeletion)
	assert.Equal(t, model.BucketIdeas, got.BucketHint)

	o.replies[ContractDeletion] = `not json at all`
	got = gateway(o).DetectDeletion(context.Background(), "remove the podcast idea")
	assert.Equal(t, Deletion{}, got)
}

func TestDetectStatusChange(t *testing.T) {
	o := &stubOracle{replies: map[string]string{
		ContractStatusChange: `{"is_status_change": true, "task_hint": "kitchen remodel", "new_status": "on hold", "bucket_hint": "projects"}`,
	}}
	got := gateway(o).DetectStatusChange(context.Background(), "put the kitchen remodel on hold")
	assert.True(t, got.IsStatusChange)
	assert.Equal(t, model.StatusPaused, got.NewStatus)
	assert.Equal(t, model.BucketProjects, got.BucketHint)

	o.replies[ContractStatusChange] = `{"is_status_change": true, "task_hint": "kitchen", "new_status": "frozen"}`
	got = gateway(o).DetectStatusChange(context.Background(), "freeze the kitchen")
	assert.False(t, got.IsStatusChange)
}

func TestNilOracleFallsBack(t *testing.T) {
	g := gateway(nil)
	ctx := context.Background()

	assert.Equal(t, model.BucketNeedsReview, g.Classify(ctx, "anything", 1).Bucket)
	assert.False(t, g.DetectCompletion(ctx, "I did it").IsCompletion)
	assert.False(t, g.DetectDeletion(ctx, "delete it").IsDeletion)
	assert.False(t, g.DetectStatusChange(ctx, "pause it").IsStatusChange)
}

func TestShortenLongMessages(t *testing.T) {
	long := strings.Repeat("word ", 40)
	out := shorten(long, 60)
	assert.LessOrEqual(t, len([]rune(out)), 61)
	assert.True(t, strings.HasSuffix(out, "…"))
}
