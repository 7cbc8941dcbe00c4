package activity

import (
	"context"
	"errors"

	"github.com/shaiso/Cascade/internal/domain"
)

// Ошибки activities.
var (
	// ErrActivityNotFound — activity не найдена в реестре.
	ErrActivityNotFound = errors.New("activity not found")

	// ErrInvalidArgs — activity получила аргументы неожиданной формы.
	ErrInvalidArgs = errors.New("invalid activity args")

	// ErrActivityCancelled — выполнение отменено (таймаут или shutdown).
	ErrActivityCancelled = errors.New("activity cancelled")
)

// Activity — одна именованная вызываемая единица работы.
//
// Activity получает позиционный список аргументов (результат transform)
// и возвращает структурированный результат. Executor видит activity
// только как имя с таймаутом и retry-политикой — реализация может
// ходить в сеть, в векторное хранилище и т.д.
type Activity interface {
	// Name возвращает имя activity.
	Name() string

	// Metadata возвращает самоописание для discovery endpoint.
	Metadata() domain.ActivityMetadata

	// Execute выполняет activity.
	// Реализация обязана проверять ctx.Done() на долгих операциях.
	Execute(ctx context.Context, args []any) (any, error)
}
