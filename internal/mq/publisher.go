package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeActivityRequest MessageType = "activity.request"
	MessageTypeActivityResult  MessageType = "activity.result"
)

// Статусы результата activity.
const (
	ResultStatusSucceeded = "SUCCEEDED"
	ResultStatusFailed    = "FAILED"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// ActivityRequestPayload — запрос на выполнение remote activity.
type ActivityRequestPayload struct {
	// RequestID — идентификатор запроса, по нему матчится результат.
	RequestID uuid.UUID `json:"request_id"`

	// Activity — имя activity.
	Activity string `json:"activity"`

	// Args — позиционные аргументы (результат transform).
	Args []any `json:"args"`

	// TimeoutSeconds — таймаут одной попытки на стороне worker.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// ReplyTo — очередь, в которую worker публикует результат.
	ReplyTo string `json:"reply_to"`
}

// ActivityResultPayload — результат выполнения remote activity.
type ActivityResultPayload struct {
	// RequestID — идентификатор исходного запроса.
	RequestID uuid.UUID `json:"request_id"`

	// Activity — имя activity.
	Activity string `json:"activity"`

	// Status — SUCCEEDED или FAILED.
	Status string `json:"status"`

	// Result — результат выполнения (для SUCCEEDED).
	Result any `json:"result,omitempty"`

	// Error — текст ошибки (для FAILED).
	Error string `json:"error,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey string, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange), // exchange
			routingKey,       // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishActivityRequest публикует запрос в task queue.
// Потребитель: Worker, поллящий эту очередь.
func (p *Publisher) PublishActivityRequest(ctx context.Context, taskQueue string, payload ActivityRequestPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeActivityRequest,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeActivities, taskQueue, msg)
}

// PublishActivityResult публикует результат в reply queue.
// Потребитель: Caller на стороне executor.
//
// Reply queues не привязаны к exchange — публикуем в default exchange,
// где routing key совпадает с именем очереди.
func (p *Publisher) PublishActivityResult(ctx context.Context, replyTo string, payload ActivityResultPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeActivityResult,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, Exchange(""), replyTo, msg)
}
