package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"secondbrain/pkg/logger"
	"secondbrain/pkg/metrics"
	"secondbrain/pkg/otel"
	"secondbrain/pkg/trace"
	"secondbrain/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// RetryPolicy 可重试错误最多重投 MaxRetries 次，之后进死信队列
type RetryPolicy struct {
	Counter    *util.RetryCounter
	MaxRetries int64
	DLQ        *Publisher
}

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	retry      RetryPolicy
	conn       *amqp091.Connection
	logger     *zap.Logger
}

// NewConsumer creates a consumer for a specific routing key.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := declareTopology(ch); err != nil {
		return fail(err)
	}
	if err := declareDLQ(ch, routingKey); err != nil {
		return fail(fmt.Errorf("failed to declare DLQ queue: %w", err))
	}

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return fail(fmt.Errorf("failed to declare queue: %w", err))
	}
	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		return fail(fmt.Errorf("failed to bind queue: %w", err))
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fail(fmt.Errorf("failed to set qos: %w", err))
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		retry:      RetryPolicy{MaxRetries: 3},
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) SetRetryPolicy(p RetryPolicy) {
	c.retry = p
}

// IsConnected readyz 用
func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming 阻塞消费直到 ctx 取消或连接关闭，应在 goroutine 中调用
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"",
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.process(ctx, msg)
		}
	}
}

// process 保证每条消息都会被 ack、重新入队或转入死信
func (c *Consumer) process(parent context.Context, msg amqp091.Delivery) {
	traceID, _ := msg.Headers[trace.HeaderName].(string)
	ctx, span := otel.MQConsumeSpan(trace.Ensure(parent, traceID), c.routingKey, c.queue.Name, msg.Headers)
	defer span.End()
	log := logger.WithTrace(ctx, c.logger).With(
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
		zap.String("message_id", msg.MessageId),
	)

	start := time.Now()
	defer func() {
		metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			c.deadLetter(ctx, log, msg, "panic", fmt.Sprint(r))
		}
	}()

	err := c.handler(ctx, msg.Body)
	if err != nil {
		span.RecordError(err)
	}
	v, kind := decide(err, c.attempt(ctx, msg), c.retry.MaxRetries)
	switch v {
	case verdictAck:
		if err := msg.Ack(false); err != nil {
			log.Error("Failed to ack message", zap.Error(err))
			return
		}
		c.forget(ctx, msg)
		log.Debug("Message processed successfully")
	case verdictRequeue:
		log.Warn("Handler failed, requeueing", zap.Error(err), zap.String("error_type", kind))
		if err := msg.Nack(false, true); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
	case verdictDeadLetter:
		log.Error("Handler failed, dead-lettering", zap.Error(err), zap.String("error_type", kind))
		c.deadLetter(ctx, log, msg, kind, err.Error())
	}
}

// attempt 当前是第几次投递；没有计数器时只区分首投与重投
func (c *Consumer) attempt(ctx context.Context, msg amqp091.Delivery) int64 {
	if c.retry.Counter == nil || msg.MessageId == "" {
		if msg.Redelivered {
			return c.retry.MaxRetries + 1
		}
		return 1
	}
	n, err := c.retry.Counter.IncrementAndGet(ctx, util.FormatRetryKey(c.queue.Name, msg.MessageId))
	if err != nil {
		c.logger.Warn("Retry counter unavailable", zap.Error(err))
		return 1
	}
	return n
}

// forget 成功后清掉重试计数
func (c *Consumer) forget(ctx context.Context, msg amqp091.Delivery) {
	if c.retry.Counter == nil || msg.MessageId == "" {
		return
	}
	if err := c.retry.Counter.Reset(ctx, util.FormatRetryKey(c.queue.Name, msg.MessageId)); err != nil {
		c.logger.Debug("Failed to reset retry counter", zap.Error(err))
	}
}

func (c *Consumer) deadLetter(ctx context.Context, log *zap.Logger, msg amqp091.Delivery, kind, reason string) {
	if c.retry.DLQ != nil {
		if err := c.retry.DLQ.PublishToDLQ(ctx, c.routingKey, msg.Body, kind, reason); err != nil {
			log.Error("Failed to publish to DLQ, requeueing", zap.Error(err))
			_ = msg.Nack(false, true)
			return
		}
	}
	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack dead-lettered message", zap.Error(err))
	}
}

type verdict int

const (
	verdictAck verdict = iota
	verdictRequeue
	verdictDeadLetter
)

func decide(err error, attempt, maxRetries int64) (verdict, string) {
	if err == nil {
		return verdictAck, ""
	}
	retryable, kind := util.IsRetryableError(err)
	if util.ShouldRetry(attempt, maxRetries, retryable) {
		return verdictRequeue, kind
	}
	return verdictDeadLetter, kind
}
