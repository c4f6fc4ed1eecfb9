package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"secondbrain/pkg/circuitbreaker"
	"secondbrain/pkg/logger"
	"secondbrain/pkg/metrics"
	"secondbrain/pkg/trace"
)

var (
	ErrUnavailable = errors.New("oracle unavailable")
	ErrEmpty       = errors.New("oracle returned no content")
)

// Request 一次单轮问答：system 提示 + 用户原文
type Request struct {
	Contract    string // 指标与日志标签：classify, completion, deletion, status_change
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Client 返回模型输出的原始文本，不做 JSON 解析
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Breaker circuitbreaker.Config
}

// HTTPClient OpenAI 兼容的 chat/completions 客户端，带超时与熔断
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewHTTPClient(cfg Config, log *zap.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker = circuitbreaker.DefaultConfig()
	}
	return &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cb:         circuitbreaker.New(cfg.Breaker),
		logger:     log,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	var content string
	log := logger.WithTrace(ctx, c.logger)

	err := c.cb.Execute(func() error {
		start := time.Now()
		status := "success"
		defer func() {
			metrics.RecordOracleCallLatency(req.Contract, status, time.Since(start))
		}()

		body, err := json.Marshal(chatRequest{
			Model: c.cfg.Model,
			Messages: []chatMessage{
				{Role: "system", Content: req.System},
				{Role: "user", Content: req.User},
			},
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			status = "encode"
			return err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			status = "request"
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
		if traceID := trace.FromContext(ctx); traceID != "" {
			httpReq.Header.Set(trace.HeaderName, traceID)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			status = "error"
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			status = fmt.Sprintf("%d", resp.StatusCode)
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("oracle status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		}

		var decoded chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			status = "decode"
			return fmt.Errorf("decode oracle response: %w", err)
		}
		if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
			status = "empty"
			return ErrEmpty
		}
		content = strings.TrimSpace(decoded.Choices[0].Message.Content)
		return nil
	})

	if errors.Is(err, circuitbreaker.ErrOpen) {
		log.Warn("Oracle circuit open, skipping call", zap.String("contract", req.Contract))
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		log.Warn("Oracle call failed", zap.String("contract", req.Contract), zap.Error(err))
		return "", err
	}
	return content, nil
}
