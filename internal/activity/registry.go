package activity

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Cascade/internal/domain"
)

// Registry — реестр activities по имени.
//
// Executor и worker резолвят activities через map lookup —
// никакой рефлексии в момент вызова. Потокобезопасен.
type Registry struct {
	mu         sync.RWMutex
	activities map[string]Activity
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		activities: make(map[string]Activity),
	}
}

// Register регистрирует activity.
// Если activity с таким именем уже существует, она будет перезаписана.
func (r *Registry) Register(a Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities[a.Name()] = a
}

// Get возвращает activity по имени.
// Возвращает ErrActivityNotFound, если activity не найдена.
func (r *Registry) Get(name string) (Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.activities[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, name)
	}
	return a, nil
}

// Has проверяет, зарегистрирована ли activity.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.activities[name]
	return exists
}

// Names возвращает отсортированный список зарегистрированных activities.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.activities))
	for name := range r.activities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metadata возвращает метаданные всех зарегистрированных activities
// в стабильном порядке.
func (r *Registry) Metadata() []domain.ActivityMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.activities))
	for name := range r.activities {
		names = append(names, name)
	}
	sort.Strings(names)

	metas := make([]domain.ActivityMetadata, 0, len(names))
	for _, name := range names {
		metas = append(metas, r.activities[name].Metadata())
	}
	return metas
}
