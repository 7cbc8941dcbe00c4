package domain

import "time"

// ExecutionKind — способ выполнения activity.
type ExecutionKind string

const (
	// ExecutionLocal — activity выполняется in-process, прямым вызовом функции.
	ExecutionLocal ExecutionKind = "local"

	// ExecutionRemote — activity отправляется в именованную task queue,
	// которую поллит пул удалённых workers.
	ExecutionRemote ExecutionKind = "remote"
)

// Значения по умолчанию для retry/timeout (см. деривацию в config).
const (
	DefaultTimeout         = 5 * time.Minute
	DefaultInitialInterval = time.Second
	DefaultMaxInterval     = 30 * time.Second
	DefaultMaxAttempts     = 3
)

// RetryPolicy — политика повторных попыток для одной activity.
//
// Повторы выполняет invoker (хост оркестрации), не PipelineExecutor:
// executor реагирует только на финальный успех или провал.
type RetryPolicy struct {
	// InitialInterval — начальная задержка между попытками.
	InitialInterval time.Duration `json:"initial_interval"`

	// MaxInterval — максимальная задержка (потолок exponential backoff).
	MaxInterval time.Duration `json:"max_interval"`

	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts"`
}

// DefaultRetryPolicy возвращает политику по умолчанию: 1s → 30s, 3 попытки.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		MaxAttempts:     DefaultMaxAttempts,
	}
}

// Normalize заполняет нулевые поля значениями по умолчанию.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultInitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = DefaultMaxInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	return p
}

// BackoffFor возвращает задержку перед попыткой attempt (начиная с 1).
// Exponential: InitialInterval * 2^(attempt-1), не выше MaxInterval.
func (p RetryPolicy) BackoffFor(attempt int) time.Duration {
	delay := p.InitialInterval
	if delay <= 0 {
		delay = DefaultInitialInterval
	}
	maxDelay := p.MaxInterval
	if maxDelay <= 0 {
		maxDelay = DefaultMaxInterval
	}

	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// ActivityDescriptor — описание одной вызываемой единицы работы.
//
// Каждая activity, на которую ссылается любой шаг pipeline, обязана
// резолвиться ровно в один дескриптор. Отсутствие дескриптора — ошибка
// конфигурации, а не повод для retry.
//
// Дескрипторы создаются при загрузке статической конфигурации или при
// discovery и неизменяемы на время выполнения pipeline run.
type ActivityDescriptor struct {
	// Name — уникальное имя activity (например, "search_documents_activity").
	Name string `json:"name"`

	// Kind — local или remote.
	Kind ExecutionKind `json:"kind"`

	// TaskQueue — имя очереди для remote activities.
	// Для local не используется.
	TaskQueue string `json:"task_queue,omitempty"`

	// Timeout — таймаут одной попытки выполнения.
	Timeout time.Duration `json:"timeout"`

	// Retry — политика повторных попыток.
	Retry RetryPolicy `json:"retry"`
}

// IsRemote возвращает true для remote activities.
func (d *ActivityDescriptor) IsRemote() bool {
	return d.Kind == ExecutionRemote
}

// ParameterSpec — описание параметра activity в каталоге метаданных.
type ParameterSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// ReturnSpec — описание возвращаемого значения activity.
type ReturnSpec struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ActivityMetadata — самоописание activity, которое worker публикует
// на своём metadata endpoint (GET /metadata).
type ActivityMetadata struct {
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	TimeoutSeconds int             `json:"timeout_seconds"`
	RetryAttempts  int             `json:"retry_attempts"`
	Parameters     []ParameterSpec `json:"parameters,omitempty"`
	Returns        *ReturnSpec     `json:"returns,omitempty"`
}
