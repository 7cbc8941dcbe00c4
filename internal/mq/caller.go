package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Ошибки вызова remote activities.
var (
	// ErrCallTimeout — результат не пришёл за отведённый таймаут.
	ErrCallTimeout = errors.New("activity call timeout")

	// ErrCallerClosed — Caller остановлен.
	ErrCallerClosed = errors.New("caller closed")
)

// Caller — примитив синхронного вызова remote activity через task queue.
//
// Публикует ActivityRequest в очередь сервиса и ждёт ActivityResult
// на собственной эксклюзивной reply queue, матча ответы по RequestID.
// Один Caller обслуживает любое число конкурентных вызовов.
type Caller struct {
	conn      *Connection
	publisher *Publisher
	logger    *slog.Logger

	// replyQueue — эксклюзивная очередь для результатов этого процесса.
	replyQueue string

	mu      sync.Mutex
	pending map[uuid.UUID]chan ActivityResultPayload
	closed  bool

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewCaller создаёт Caller и объявляет его reply queue.
func NewCaller(conn *Connection, logger *slog.Logger) (*Caller, error) {
	replyQueue := "cascade.replies." + uuid.New().String()

	err := conn.WithChannel(context.Background(), func(ch *amqp.Channel) error {
		// auto-delete + exclusive: очередь живёт, пока жив процесс
		_, err := ch.QueueDeclare(replyQueue, false, true, true, false, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("declare reply queue: %w", err)
	}

	return &Caller{
		conn:       conn,
		publisher:  NewPublisher(conn, logger),
		logger:     logger,
		replyQueue: replyQueue,
		pending:    make(map[uuid.UUID]chan ActivityResultPayload),
	}, nil
}

// Start запускает consumer на reply queue.
func (c *Caller) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	consumer := NewConsumer(c.conn, c.logger, ConsumerConfig{
		Queue:    c.replyQueue,
		Handler:  c.handleResult,
		Prefetch: 10,
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("reply consumer error", "error", err)
		}
	}()

	return nil
}

// Stop останавливает Caller и будит всех ожидающих.
func (c *Caller) Stop() {
	c.mu.Lock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
}

// ReplyQueue возвращает имя reply queue.
func (c *Caller) ReplyQueue() string {
	return c.replyQueue
}

// Call публикует запрос в taskQueue и ждёт результат не дольше timeout.
//
// Одна попытка — retry поверх Call выполняет вызывающая сторона
// согласно RetryPolicy дескриптора.
func (c *Caller) Call(ctx context.Context, taskQueue, activity string, args []any, timeout time.Duration) (ActivityResultPayload, error) {
	requestID := uuid.New()
	resultCh := make(chan ActivityResultPayload, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ActivityResultPayload{}, ErrCallerClosed
	}
	c.pending[requestID] = resultCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
	}()

	payload := ActivityRequestPayload{
		RequestID:      requestID,
		Activity:       activity,
		Args:           args,
		TimeoutSeconds: int(timeout.Seconds()),
		ReplyTo:        c.replyQueue,
	}

	if err := c.publisher.PublishActivityRequest(ctx, taskQueue, payload); err != nil {
		return ActivityResultPayload{}, fmt.Errorf("publish request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ActivityResultPayload{}, ctx.Err()

	case <-timer.C:
		return ActivityResultPayload{}, fmt.Errorf("%w: %s after %s", ErrCallTimeout, activity, timeout)

	case result, ok := <-resultCh:
		if !ok {
			return ActivityResultPayload{}, ErrCallerClosed
		}
		return result, nil
	}
}

// handleResult матчит пришедший результат с ожидающим вызовом.
func (c *Caller) handleResult(ctx context.Context, delivery *Delivery) error {
	payload, err := ParsePayload[ActivityResultPayload](&delivery.Message)
	if err != nil {
		c.logger.Error("failed to parse activity.result payload", "error", err)
		// Некорректный результат ретраить бессмысленно
		return nil
	}

	c.mu.Lock()
	resultCh, exists := c.pending[payload.RequestID]
	c.mu.Unlock()

	if !exists {
		// Вызов уже завершился по таймауту — поздний результат просто дропаем
		c.logger.Debug("late activity result dropped",
			"request_id", payload.RequestID,
			"activity", payload.Activity,
		)
		return nil
	}

	select {
	case resultCh <- payload:
	default:
	}

	return nil
}
