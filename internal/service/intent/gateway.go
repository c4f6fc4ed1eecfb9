package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"

	"secondbrain/internal/model"
	"secondbrain/internal/service/oracle"
	"secondbrain/pkg/logger"
)

// DefaultThreshold 低于该置信度一律进入 needs_review
const DefaultThreshold = 0.6

const (
	ContractClassify     = "classify"
	ContractCompletion   = "completion"
	ContractDeletion     = "deletion"
	ContractStatusChange = "status_change"
)

type Classification struct {
	Bucket          model.Bucket
	Confidence      float64
	Title           string
	Detail          string
	NextAction      string
	ScheduledDate   *time.Time
	PossibleBuckets []model.Bucket
	Reason          string
	// Forced 由显式前缀决定类别
	Forced bool
	// Raw 模型原始 JSON，写入 inbox 审计
	Raw json.RawMessage
}

type Completion struct {
	IsCompletion bool
	TaskHint     string
}

type Deletion struct {
	IsDeletion bool
	TaskHint   string
	BucketHint model.Bucket
}

type StatusChange struct {
	IsStatusChange bool
	TaskHint       string
	NewStatus      model.Status
	BucketHint     model.Bucket
}

type Clock interface {
	Today(ctx context.Context, owner int64) time.Time
}

// Gateway 四个只读的意图查询。每个查询失败时返回各自的“无匹配”形状，不返回 error。
type Gateway struct {
	oracle    oracle.Client
	clock     Clock
	threshold float64
	logger    *zap.Logger
}

func NewGateway(o oracle.Client, clock Clock, logger *zap.Logger) *Gateway {
	return &Gateway{oracle: o, clock: clock, threshold: DefaultThreshold, logger: logger}
}

var prefixes = map[string]model.Bucket{
	"person:":  model.BucketPeople,
	"project:": model.BucketProjects,
	"idea:":    model.BucketIdeas,
	"admin:":   model.BucketAdmin,
}

// SplitPrefix 识别 person:/project:/idea:/admin: 前缀，返回去掉前缀的正文
func SplitPrefix(text string) (model.Bucket, string, bool) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	for p, b := range prefixes {
		if strings.HasPrefix(lower, p) {
			return b, strings.TrimSpace(trimmed[len(p):]), true
		}
	}
	return "", trimmed, false
}

type classifyWire struct {
	Category           string   `json:"category"`
	Confidence         float64  `json:"confidence"`
	Title              string   `json:"title"`
	Summary            string   `json:"summary"`
	NextAction         string   `json:"next_action"`
	DueDate            string   `json:"due_date"`
	FollowUp           string   `json:"follow_up"`
	FollowUpDate       string   `json:"follow_up_date"`
	PossibleCategories []string `json:"possible_categories"`
	Reason             string   `json:"reason"`
}

// Classify 新记录分类。置信度低于阈值时强制 needs_review；显式前缀强制类别且置信度为 1。
func (g *Gateway) Classify(ctx context.Context, text string, owner int64) Classification {
	forced, body, hasPrefix := SplitPrefix(text)
	today := g.clock.Today(ctx, owner)

	res := g.ask(ctx, ContractClassify, strings.ReplaceAll(classifyPrompt, "{{today}}", today.Format("2006-01-02")), body, 0.3, 500)
	wire := decode[classifyWire](ContractClassify, res)

	fallback := classifyWire{
		Category: string(model.BucketNeedsReview),
		Title:    shorten(body, 60),
		Summary:  body,
		Reason:   "classification unavailable",
	}
	w := wire.Or(fallback, logger.WithTrace(ctx, g.logger))

	c := Classification{
		Confidence: clamp(w.Confidence),
		Title:      strings.TrimSpace(w.Title),
		Detail:     strings.TrimSpace(w.Summary),
		NextAction: strings.TrimSpace(w.NextAction),
		Reason:     w.Reason,
		Raw:        rawJSON(wire, res),
	}
	if c.Title == "" {
		c.Title = shorten(body, 60)
	}
	if c.Detail == "" && wire.Err != nil {
		c.Detail = body
	}
	if fu := strings.TrimSpace(w.FollowUp); fu != "" && !strings.EqualFold(fu, "null") {
		c.Detail = strings.TrimSpace(c.Detail + "\nFollow up: " + fu)
	}
	for _, raw := range []string{w.DueDate, w.FollowUpDate} {
		if d, err := time.Parse("2006-01-02", strings.TrimSpace(raw)); err == nil {
			c.ScheduledDate = &d
			break
		}
	}
	for _, p := range w.PossibleCategories {
		if b, ok := model.ParseBucket(p); ok && b.Storable() {
			c.PossibleBuckets = append(c.PossibleBuckets, b)
		}
	}

	switch b, ok := model.ParseBucket(w.Category); {
	case hasPrefix:
		c.Bucket, c.Confidence, c.Forced = forced, 1.0, true
	case !ok || !b.Storable() || c.Confidence < g.threshold:
		c.Bucket = model.BucketNeedsReview
	default:
		c.Bucket = b
	}
	if wire.Err != nil && !hasPrefix {
		c.Confidence = 0
	}
	if c.Bucket != model.BucketProjects {
		c.NextAction = ""
	}
	return c
}

// WithBucket 人工指定类别，置信度固定为 1
func (c Classification) WithBucket(b model.Bucket) Classification {
	c.Bucket, c.Confidence, c.Forced = b, 1.0, true
	if b != model.BucketProjects {
		c.NextAction = ""
	}
	return c
}

type completionWire struct {
	IsCompletion bool   `json:"is_completion"`
	TaskHint     string `json:"task_hint"`
}

// DetectCompletion 只有 is_completion 且带 task_hint 才算命中
func (g *Gateway) DetectCompletion(ctx context.Context, text string) Completion {
	res := g.ask(ctx, ContractCompletion, completionPrompt, text, 0.1, 100)
	w := decode[completionWire](ContractCompletion, res).Or(completionWire{}, logger.WithTrace(ctx, g.logger))

	hint := cleanHint(w.TaskHint)
	return Completion{IsCompletion: w.IsCompletion && hint != "", TaskHint: hint}
}

type deletionWire struct {
	IsDeletion bool   `json:"is_deletion"`
	TaskHint   string `json:"task_hint"`
	BucketHint string `json:"bucket_hint"`
}

func (g *Gateway) DetectDeletion(ctx context.Context, text string) Deletion {
	res := g.ask(ctx, ContractDeletion, deletionPrompt, text, 0.1, 100)
	w := decode[deletionWire](ContractDeletion, res).Or(deletionWire{}, logger.WithTrace(ctx, g.logger))

	hint := cleanHint(w.TaskHint)
	return Deletion{IsDeletion: w.IsDeletion && hint != "", TaskHint: hint, BucketHint: bucketHint(w.BucketHint)}
}

type statusWire struct {
	IsStatusChange bool   `json:"is_status_change"`
	TaskHint       string `json:"task_hint"`
	NewStatus      string `json:"new_status"`
	BucketHint     string `json:"bucket_hint"`
}

var statusSynonyms = map[string]model.Status{
	"done":        model.StatusCompleted,
	"complete":    model.StatusCompleted,
	"finished":    model.StatusCompleted,
	"archived":    model.StatusCompleted,
	"on hold":     model.StatusPaused,
	"on_hold":     model.StatusPaused,
	"pause":       model.StatusPaused,
	"later":       model.StatusSomeday,
	"resume":      model.StatusActive,
	"reopen":      model.StatusActive,
	"pending":     model.StatusActive,
	"captured":    model.StatusActive,
	"in_progress": model.StatusActive,
}

func (g *Gateway) DetectStatusChange(ctx context.Context, text string) StatusChange {
	res := g.ask(ctx, ContractStatusChange, statusChangePrompt, text, 0.1, 120)
	w := decode[statusWire](ContractStatusChange, res).Or(statusWire{}, logger.WithTrace(ctx, g.logger))

	hint := cleanHint(w.TaskHint)
	status, ok := model.ParseStatus(w.NewStatus)
	if !ok {
		status, ok = statusSynonyms[strings.ToLower(strings.TrimSpace(w.NewStatus))]
	}
	return StatusChange{
		IsStatusChange: w.IsStatusChange && hint != "" && ok,
		TaskHint:       hint,
		NewStatus:      status,
		BucketHint:     bucketHint(w.BucketHint),
	}
}

// ask 调用 oracle 并把传输层错误装进 Result
func (g *Gateway) ask(ctx context.Context, contract, system, text string, temperature float64, maxTokens int) Result[string] {
	if g.oracle == nil {
		return failed[string](contract, CauseUnavailable, oracle.ErrUnavailable)
	}
	out, err := g.oracle.Complete(ctx, oracle.Request{
		Contract:    contract,
		System:      system,
		User:        text,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return transportFailure[string](contract, err)
	}
	return succeed(out)
}

// decode 先直接解析，失败后用 jsonrepair 修复再解析一次
func decode[T any](contract string, res Result[string]) Result[T] {
	if res.Err != nil {
		return Result[T]{Err: res.Err}
	}
	text := stripFences(res.Value)

	var v T
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return succeed(v)
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return failed[T](contract, CauseMalformed, err)
	}
	var fixed T
	if err := json.Unmarshal([]byte(repaired), &fixed); err != nil {
		return failed[T](contract, CauseMalformed, fmt.Errorf("after repair: %w", err))
	}
	return succeed(fixed)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func rawJSON(wire Result[classifyWire], res Result[string]) json.RawMessage {
	if wire.Err == nil {
		if b, err := json.Marshal(wire.Value); err == nil {
			return b
		}
	}
	payload := map[string]string{}
	if wire.Err != nil {
		payload["error"] = wire.Err.Error()
	}
	if res.Err == nil {
		payload["raw"] = res.Value
	}
	b, _ := json.Marshal(payload)
	return b
}

func cleanHint(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return ""
	}
	return s
}

func bucketHint(s string) model.Bucket {
	if b, ok := model.ParseBucket(s); ok && b.Storable() {
		return b
	}
	return ""
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
