package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Cascade/internal/activity"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/telemetry"
)

// Значения конфигурации по умолчанию.
const (
	defaultPrefetch       = 5
	defaultRequestTimeout = domain.DefaultTimeout
)

// Worker поллит свою task queue и выполняет activities.
//
// Worker — stateless компонент:
//   - получает activity.request из очереди (event-driven)
//   - выполняет activity из реестра с таймаутом запроса
//   - публикует activity.result в reply queue отправителя
//
// Workers масштабируются горизонтально: несколько экземпляров
// одного сервиса потребляют из одной очереди.
type Worker struct {
	serviceName string
	taskQueue   string
	identity    string
	version     string

	registry  *activity.Registry
	publisher *mq.Publisher
	conn      *mq.Connection
	consumer  *mq.Consumer

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	// ServiceName — логическое имя сервиса (для metadata endpoint).
	ServiceName string

	// TaskQueue — очередь, которую поллит этот worker.
	TaskQueue string

	// Identity — идентификатор процесса worker (host + pid обычно).
	Identity string

	// Version — версия сервиса.
	Version string

	// Registry — реестр activities (опционально; если nil — пустой).
	Registry *activity.Registry

	// MQ
	Conn      *mq.Connection
	Publisher *mq.Publisher

	// Prefetch — количество сообщений в обработке одновременно (default: 5).
	Prefetch int

	// Logger
	Logger *slog.Logger
}

// New создаёт Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = activity.NewRegistry()
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	w := &Worker{
		serviceName: cfg.ServiceName,
		taskQueue:   cfg.TaskQueue,
		identity:    cfg.Identity,
		version:     cfg.Version,
		registry:    registry,
		publisher:   cfg.Publisher,
		conn:        cfg.Conn,
		logger:      logger,
	}
	w.consumer = mq.NewConsumer(cfg.Conn, logger, mq.ConsumerConfig{
		Queue:    cfg.TaskQueue,
		Handler:  w.handleRequest,
		Prefetch: prefetch,
	})
	return w
}

// Start объявляет task queue и запускает потребление.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	if err := mq.DeclareTaskQueue(ctx, w.conn, w.taskQueue); err != nil {
		return fmt.Errorf("declare task queue: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("consumer stopped", "queue", w.taskQueue, "error", err)
		}
	}()

	w.logger.Info("worker started",
		"service", w.serviceName,
		"queue", w.taskQueue,
		"activities", w.registry.Names(),
	)
	return nil
}

// Stop останавливает worker и ждёт завершения in-flight activities.
func (w *Worker) Stop() {
	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.wg.Wait()
	w.logger.Info("worker stopped", "service", w.serviceName)
}

// handleRequest обрабатывает один activity.request.
func (w *Worker) handleRequest(ctx context.Context, delivery *mq.Delivery) error {
	request, err := mq.ParsePayload[mq.ActivityRequestPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse activity.request payload", "error", err)
		// Битый запрос неисправим: пусть consumer отправит его в DLQ
		return fmt.Errorf("%w: parse activity.request: %v", mq.ErrRejectDelivery, err)
	}

	log := w.logger.With(
		"request_id", request.RequestID,
		"activity", request.Activity,
	)

	result := w.execute(ctx, request)
	if result.Status == mq.ResultStatusSucceeded {
		telemetry.ActivityExecutions.WithLabelValues(request.Activity, "succeeded").Inc()
		log.Info("activity succeeded")
	} else {
		telemetry.ActivityExecutions.WithLabelValues(request.Activity, "failed").Inc()
		log.Warn("activity failed", "error", result.Error)
	}

	if request.ReplyTo == "" {
		// Fire-and-forget запрос — результат никому не нужен
		return nil
	}
	if err := w.publisher.PublishActivityResult(ctx, request.ReplyTo, result); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}

// execute выполняет activity с таймаутом запроса.
func (w *Worker) execute(ctx context.Context, request mq.ActivityRequestPayload) mq.ActivityResultPayload {
	result := mq.ActivityResultPayload{
		RequestID: request.RequestID,
		Activity:  request.Activity,
	}

	act, err := w.registry.Get(request.Activity)
	if err != nil {
		result.Status = mq.ResultStatusFailed
		result.Error = err.Error()
		return result
	}

	timeout := defaultRequestTimeout
	if request.TimeoutSeconds > 0 {
		timeout = time.Duration(request.TimeoutSeconds) * time.Second
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	value, err := act.Execute(execCtx, request.Args)
	if err != nil {
		result.Status = mq.ResultStatusFailed
		result.Error = err.Error()
		return result
	}

	result.Status = mq.ResultStatusSucceeded
	result.Result = value
	return result
}

// Metadata возвращает самоописание worker для discovery.
func (w *Worker) Metadata() Metadata {
	health := "healthy"
	if !w.conn.IsConnected() {
		health = "degraded"
	}
	return Metadata{
		ServiceName:    w.serviceName,
		TaskQueue:      w.taskQueue,
		WorkerIdentity: w.identity,
		Health:         health,
		Version:        w.version,
		Activities:     w.registry.Metadata(),
	}
}
