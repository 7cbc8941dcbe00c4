package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/transform"
)

// Document — корень статического конфигурационного документа.
type Document struct {
	// DefaultCollection — коллекция по умолчанию для transforms.
	DefaultCollection string `yaml:"default_collection"`

	// Services — удалённые сервисы с их task queues и activities.
	Services map[string]ServiceDoc `yaml:"services"`

	// LocalActivities — activities, выполняемые in-process.
	LocalActivities map[string]ActivityDoc `yaml:"local_activities"`

	// Pipelines — определения pipelines.
	Pipelines map[string]PipelineDoc `yaml:"pipelines"`
}

// ServiceDoc — один удалённый сервис в конфигурации.
type ServiceDoc struct {
	TaskQueue  string                 `yaml:"task_queue"`
	Activities map[string]ActivityDoc `yaml:"activities"`
}

// ActivityDoc — переопределения timeout/retry для одной activity.
// Нулевые поля означают значение по умолчанию.
type ActivityDoc struct {
	TimeoutMinutes              int `yaml:"timeout_minutes"`
	RetryAttempts               int `yaml:"retry_attempts"`
	RetryInitialIntervalSeconds int `yaml:"retry_initial_interval_seconds"`
	RetryMaximumIntervalSeconds int `yaml:"retry_maximum_interval_seconds"`
}

// PipelineDoc — одно определение pipeline в конфигурации.
type PipelineDoc struct {
	Name  string    `yaml:"name"`
	Steps []StepDoc `yaml:"steps"`
}

// StepDoc — один шаг pipeline в конфигурации.
type StepDoc struct {
	Activity  string `yaml:"activity"`
	Type      string `yaml:"type"` // local | remote
	Service   string `yaml:"service,omitempty"`
	Transform string `yaml:"input_transform,omitempty"`
}

// LoadStatic читает и валидирует статическую конфигурацию из YAML-файла.
//
// Валидация строгая и происходит при загрузке, не при первом
// использовании: каждый шаг каждого pipeline обязан резолвиться в
// дескриптор activity и в зарегистрированный transform. Пустое имя
// transform допустимо (passthrough).
func LoadStatic(path string, transforms *transform.Registry) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrConfiguration, path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrConfiguration, path, err)
	}

	return FromDocument(&doc, transforms)
}

// FromDocument строит валидированный снимок из разобранного документа.
func FromDocument(doc *Document, transforms *transform.Registry) (*Snapshot, error) {
	activities := make(map[string]domain.ActivityDescriptor)

	for serviceName, svc := range doc.Services {
		if svc.TaskQueue == "" {
			return nil, fmt.Errorf("%w: service %q has no task_queue", ErrConfiguration, serviceName)
		}
		for name, a := range svc.Activities {
			activities[name] = descriptorFromDoc(name, domain.ExecutionRemote, svc.TaskQueue, a)
		}
	}
	for name, a := range doc.LocalActivities {
		activities[name] = descriptorFromDoc(name, domain.ExecutionLocal, "", a)
	}

	pipelines := make(map[string]domain.PipelineDefinition)
	for key, p := range doc.Pipelines {
		name := p.Name
		if name == "" {
			name = key
		}
		def, err := pipelineFromDoc(name, p, activities, transforms)
		if err != nil {
			return nil, err
		}
		pipelines[name] = def
	}

	return NewSnapshot(SourceStatic, doc.DefaultCollection, activities, pipelines), nil
}

// pipelineFromDoc валидирует и собирает одно определение pipeline.
func pipelineFromDoc(name string, doc PipelineDoc,
	activities map[string]domain.ActivityDescriptor,
	transforms *transform.Registry,
) (domain.PipelineDefinition, error) {
	if len(doc.Steps) == 0 {
		return domain.PipelineDefinition{}, fmt.Errorf("%w: %s", ErrEmptyPipeline, name)
	}

	steps := make([]domain.Step, 0, len(doc.Steps))
	for i, step := range doc.Steps {
		if step.Activity == "" {
			return domain.PipelineDefinition{}, fmt.Errorf(
				"%w: pipeline %s step %d has no activity", ErrConfiguration, name, i)
		}
		if _, ok := activities[step.Activity]; !ok {
			return domain.PipelineDefinition{}, fmt.Errorf(
				"%w: %s (pipeline %s step %d)", ErrActivityNotFound, step.Activity, name, i)
		}
		if step.Transform != "" && !transforms.Has(step.Transform) {
			return domain.PipelineDefinition{}, fmt.Errorf(
				"%w: %s (pipeline %s step %d)", ErrUnknownTransform, step.Transform, name, i)
		}
		steps = append(steps, domain.Step{
			Activity:  step.Activity,
			Transform: step.Transform,
		})
	}

	return domain.PipelineDefinition{Name: name, Steps: steps}, nil
}

// descriptorFromDoc строит дескриптор, подставляя значения по умолчанию
// вместо нулевых полей.
func descriptorFromDoc(name string, kind domain.ExecutionKind, queue string, doc ActivityDoc) domain.ActivityDescriptor {
	timeout := domain.DefaultTimeout
	if doc.TimeoutMinutes > 0 {
		timeout = time.Duration(doc.TimeoutMinutes) * time.Minute
	}

	retry := domain.RetryPolicy{
		MaxAttempts:     doc.RetryAttempts,
		InitialInterval: time.Duration(doc.RetryInitialIntervalSeconds) * time.Second,
		MaxInterval:     time.Duration(doc.RetryMaximumIntervalSeconds) * time.Second,
	}.Normalize()

	return domain.ActivityDescriptor{
		Name:      name,
		Kind:      kind,
		TaskQueue: queue,
		Timeout:   timeout,
		Retry:     retry,
	}
}
