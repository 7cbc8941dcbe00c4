package transform

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry — реестр transforms по имени.
//
// Потокобезопасен. Инициализируется один раз при старте процесса
// и дальше используется только на чтение.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]Fn
	logger     *slog.Logger
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		transforms: make(map[string]Fn),
		logger:     logger,
	}
}

// DefaultRegistry создаёт реестр со всеми встроенными transforms.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)

	r.Register(NamePassthrough, Passthrough)
	r.Register(NameQueryWithCollection, QueryWithCollection)
	r.Register(NameDocuments, Documents)
	r.Register(NameChunkedWithCollection, ChunkedDocsWithCollection)

	return r
}

// Register регистрирует transform.
// Если transform с таким именем уже существует, он будет перезаписан.
func (r *Registry) Register(name string, fn Fn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms[name] = fn
}

// Get возвращает transform по имени.
//
// Неизвестное (или пустое) имя резолвится в passthrough — осознанно
// мягкий fallback ради удобства авторов pipelines. Для явной статической
// конфигурации неизвестные имена отсекаются раньше, при загрузке.
func (r *Registry) Get(name string) Fn {
	if name == "" {
		return Passthrough
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, exists := r.transforms[name]
	if !exists {
		r.logger.Warn("unknown transform, falling back to passthrough", "transform", name)
		return Passthrough
	}

	return fn
}

// Has проверяет, зарегистрирован ли transform.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.transforms[name]
	return exists
}

// Names возвращает отсортированный список зарегистрированных transforms.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
