package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrRejectDelivery — сигнальная ошибка обработчика: сообщение
// неисправимо (битый payload, неизвестный тип) и должно уйти в DLQ,
// а не возвращаться в очередь.
var ErrRejectDelivery = errors.New("reject delivery")

// restreamDelay — пауза перед повторной настройкой потребления,
// когда поток доставок оборвался без разрыва соединения
// (channel-level ошибка брокера).
const restreamDelay = 3 * time.Second

// Handler — обработчик одного сообщения из очереди.
//
// Обработчик не подтверждает доставку сам — судьбу сообщения решает
// consumer по возвращённой ошибке:
//
//	nil                 → ack
//	ErrRejectDelivery   → nack без requeue (DLQ)
//	любая другая ошибка → nack с requeue
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Message — распарсенный конверт сообщения.
	Message Message

	// Raw — сырое AMQP сообщение. Подтверждением владеет consumer.
	Raw amqp.Delivery
}

// Consumer потребляет сообщения из одной очереди и переживает
// разрывы соединения: после reconnect поток доставок открывается заново.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество сообщений в обработке одновременно.
	Prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start запускает цикл потребления. Блокирует до отмены контекста.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := c.openStream()
		if err != nil {
			c.logger.Error("failed to open delivery stream", "queue", c.queue, "error", err)
			if err := c.awaitRecovery(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consumer started", "queue", c.queue)

		if err := c.drain(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("delivery stream interrupted", "queue", c.queue, "error", err)
			if err := c.awaitRecovery(ctx); err != nil {
				return err
			}
		}
	}
}

// awaitRecovery ждёт повода открыть поток заново: reconnect соединения
// или, если умер только канал, просто паузу.
func (c *Consumer) awaitRecovery(ctx context.Context) error {
	timer := time.NewTimer(restreamDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("reconnected, reopening delivery stream", "queue", c.queue)
		return nil
	case <-timer.C:
		return nil
	}
}

// openStream ставит prefetch и начинает потребление очереди.
func (c *Consumer) openStream() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag (auto-generated)
		false,   // auto-ack (подтверждение — через settle)
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// drain обрабатывает доставки, пока поток не оборвётся.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery разбирает конверт, вызывает обработчик и подтверждает
// доставку. Ровно одно подтверждение на доставку, в одном месте:
// двойной ack/nack одного delivery tag — это ошибка канала 406,
// которая убила бы consumer целиком.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message",
			"queue", c.queue,
			"error", err,
			"body", string(raw.Body),
		)
		c.settle(raw, fmt.Errorf("%w: unmarshal envelope: %v", ErrRejectDelivery, err))
		return
	}

	c.logger.Debug("received message",
		"queue", c.queue,
		"message_id", msg.ID,
		"type", msg.Type,
	)

	err := c.handler(ctx, &Delivery{Message: msg, Raw: raw})
	if err != nil {
		c.logger.Error("handler failed",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
	}
	c.settle(raw, err)
}

// settle подтверждает или отклоняет доставку по исходу обработки.
func (c *Consumer) settle(raw amqp.Delivery, err error) {
	var settleErr error
	switch {
	case err == nil:
		settleErr = raw.Ack(false)
	case errors.Is(err, ErrRejectDelivery):
		// Неисправимое сообщение — в DLQ
		settleErr = raw.Nack(false, false)
	default:
		// Временный сбой — вернуть в очередь для повторной доставки
		settleErr = raw.Nack(false, true)
	}
	if settleErr != nil {
		c.logger.Error("failed to settle delivery",
			"queue", c.queue,
			"delivery_tag", raw.DeliveryTag,
			"error", settleErr,
		)
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload парсит payload конверта в типизированную структуру.
// Payload после json.Unmarshal конверта — это map, поэтому
// перемаршаливание.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
