package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

const (
	HeaderName    = "X-Trace-ID"
	requestHeader = "X-Request-ID"
)

type ctxKey struct{}

func NewID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// FromHeader 依次读取 X-Trace-ID、X-Request-ID，都没有时生成新的
func FromHeader(h http.Header) string {
	if id := h.Get(HeaderName); id != "" {
		return id
	}
	if id := h.Get(requestHeader); id != "" {
		return id
	}
	return NewID()
}

// Ensure ctx 中没有 trace_id 时补一个（MQ 消费等非 HTTP 入口）
func Ensure(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = NewID()
	}
	return WithContext(ctx, traceID)
}
