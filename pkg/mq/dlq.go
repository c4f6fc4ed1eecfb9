package mq

import (
	"context"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// dlqName 每个 routing key 一个死信队列
func dlqName(routingKey string) string {
	return routingKey + ".dlq"
}

// declareDLQ 声明并绑定 routing key 的死信队列
func declareDLQ(ch *amqp091.Channel, routingKey string) error {
	q, err := ch.QueueDeclare(dlqName(routingKey), true, false, false, false, nil)
	if err != nil {
		return err
	}
	return ch.QueueBind(q.Name, routingKey, DLQExchangeName, false, nil)
}

// deadLetterHeaders 失败原因写在消息头，body 原样保留以便人工重放
func deadLetterHeaders(source, errorType, originalError string, at time.Time) amqp091.Table {
	return amqp091.Table{
		"x-original-error": originalError,
		"x-error-type":     errorType,
		"x-failed-at":      source,
		"x-failed-time":    at.UTC().Format(time.RFC3339),
	}
}

// PublishToDLQ 原样转发失败消息
func (p *Publisher) PublishToDLQ(ctx context.Context, routingKey string, payload []byte, errorType, originalError string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx, DLQExchangeName, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Headers:      deadLetterHeaders(p.source, errorType, originalError, time.Now()),
	})
}
