package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Cascade/internal/activity"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
)

// ErrActivityFailed — remote worker вернул терминальный провал activity.
var ErrActivityFailed = errors.New("activity failed")

// Invoker выполняет одну activity с её таймаутом и retry-политикой.
//
// Retry живёт здесь, не в executor: executor реагирует только на
// финальный успех или провал вызова.
type Invoker interface {
	Invoke(ctx context.Context, desc domain.ActivityDescriptor, args []any) (any, error)
}

// LocalInvoker выполняет activities in-process через реестр.
type LocalInvoker struct {
	registry *activity.Registry
	log      *slog.Logger
}

// NewLocalInvoker создаёт invoker для local activities.
func NewLocalInvoker(registry *activity.Registry, log *slog.Logger) *LocalInvoker {
	return &LocalInvoker{registry: registry, log: log}
}

// Invoke выполняет activity с retry согласно дескриптору.
func (l *LocalInvoker) Invoke(ctx context.Context, desc domain.ActivityDescriptor, args []any) (any, error) {
	act, err := l.registry.Get(desc.Name)
	if err != nil {
		return nil, err
	}

	return invokeWithRetry(ctx, l.log, desc, func(ctx context.Context) (any, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, desc.Timeout)
		defer cancel()
		return act.Execute(attemptCtx, args)
	})
}

// RemoteInvoker отправляет activities в task queue через Caller.
type RemoteInvoker struct {
	caller *mq.Caller
	log    *slog.Logger
}

// NewRemoteInvoker создаёт invoker для remote activities.
func NewRemoteInvoker(caller *mq.Caller, log *slog.Logger) *RemoteInvoker {
	return &RemoteInvoker{caller: caller, log: log}
}

// Invoke публикует запрос в очередь дескриптора и ждёт результат,
// повторяя попытки согласно retry-политике.
func (r *RemoteInvoker) Invoke(ctx context.Context, desc domain.ActivityDescriptor, args []any) (any, error) {
	return invokeWithRetry(ctx, r.log, desc, func(ctx context.Context) (any, error) {
		result, err := r.caller.Call(ctx, desc.TaskQueue, desc.Name, args, desc.Timeout)
		if err != nil {
			return nil, err
		}
		if result.Status != mq.ResultStatusSucceeded {
			return nil, fmt.Errorf("%w: %s", ErrActivityFailed, result.Error)
		}
		return result.Result, nil
	})
}

// invokeWithRetry выполняет fn с exponential backoff по политике дескриптора.
func invokeWithRetry(ctx context.Context, log *slog.Logger, desc domain.ActivityDescriptor,
	fn func(ctx context.Context) (any, error),
) (any, error) {
	policy := desc.Retry.Normalize()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.BackoffFor(attempt)
		log.Warn("activity attempt failed, retrying",
			slog.String("activity", desc.Name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", policy.MaxAttempts),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", policy.MaxAttempts, lastErr)
}

// retryable отличает transient ошибки от тех, которые повтор не исправит.
func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, activity.ErrInvalidArgs):
		// Несовпадение формы данных — повтор получит те же аргументы
		return false
	case errors.Is(err, mq.ErrCallerClosed):
		return false
	default:
		return true
	}
}
