package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shaiso/Cascade/internal/domain"
)

// Ошибки конфигурации. Все они оборачивают ErrConfiguration:
// отсутствие дескриптора или pipeline — ошибка конфигурации,
// а не повод для retry.
var (
	// ErrConfiguration — корень таксономии ошибок конфигурации.
	ErrConfiguration = errors.New("configuration error")

	// ErrPipelineNotFound — pipeline с таким именем не сконфигурирован.
	ErrPipelineNotFound = fmt.Errorf("%w: pipeline not found", ErrConfiguration)

	// ErrActivityNotFound — activity не резолвится в дескриптор.
	ErrActivityNotFound = fmt.Errorf("%w: activity not found", ErrConfiguration)

	// ErrUnknownTransform — шаг ссылается на незарегистрированный transform.
	// Возникает только при строгой валидации статической конфигурации.
	ErrUnknownTransform = fmt.Errorf("%w: unknown transform", ErrConfiguration)

	// ErrEmptyPipeline — pipeline без шагов.
	ErrEmptyPipeline = fmt.Errorf("%w: pipeline has no steps", ErrConfiguration)
)

// Источник снимка конфигурации.
const (
	SourceStatic    = "static"
	SourceDiscovery = "discovery"
)

// Snapshot — неизменяемый снимок конфигурации: таблица дескрипторов
// activities и таблица определений pipelines.
//
// Снимок создаётся целиком (загрузкой статического файла или деривацией
// из каталога discovery) и после этого не мутируется. Горячая замена —
// через Store, атомарной подменой указателя.
type Snapshot struct {
	// Source — откуда снимок: static или discovery.
	Source string

	// DefaultCollection — коллекция по умолчанию для transforms.
	DefaultCollection string

	activities map[string]domain.ActivityDescriptor
	pipelines  map[string]domain.PipelineDefinition
}

// NewSnapshot создаёт снимок из готовых таблиц.
func NewSnapshot(source, defaultCollection string,
	activities map[string]domain.ActivityDescriptor,
	pipelines map[string]domain.PipelineDefinition,
) *Snapshot {
	if activities == nil {
		activities = make(map[string]domain.ActivityDescriptor)
	}
	if pipelines == nil {
		pipelines = make(map[string]domain.PipelineDefinition)
	}
	return &Snapshot{
		Source:            source,
		DefaultCollection: defaultCollection,
		activities:        activities,
		pipelines:         pipelines,
	}
}

// GetActivityDescriptor возвращает дескриптор activity по имени.
func (s *Snapshot) GetActivityDescriptor(name string) (domain.ActivityDescriptor, error) {
	d, ok := s.activities[name]
	if !ok {
		return domain.ActivityDescriptor{}, fmt.Errorf("%w: %s", ErrActivityNotFound, name)
	}
	return d, nil
}

// GetPipelineDefinition возвращает определение pipeline по имени.
func (s *Snapshot) GetPipelineDefinition(name string) (domain.PipelineDefinition, error) {
	p, ok := s.pipelines[name]
	if !ok {
		return domain.PipelineDefinition{}, fmt.Errorf("%w: %s", ErrPipelineNotFound, name)
	}
	return p, nil
}

// ActivityNames возвращает отсортированные имена известных activities.
func (s *Snapshot) ActivityNames() []string {
	names := make([]string, 0, len(s.activities))
	for name := range s.activities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PipelineNames возвращает отсортированные имена известных pipelines.
func (s *Snapshot) PipelineNames() []string {
	names := make([]string, 0, len(s.pipelines))
	for name := range s.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pipelines возвращает все определения pipelines в стабильном порядке.
func (s *Snapshot) Pipelines() []domain.PipelineDefinition {
	defs := make([]domain.PipelineDefinition, 0, len(s.pipelines))
	for _, name := range s.PipelineNames() {
		defs = append(defs, s.pipelines[name])
	}
	return defs
}
