package config

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/transform"
)

// FromCatalog выводит снимок конфигурации из каталога discovery.
//
// Каждая обнаруженная activity получает remote-дескриптор с task queue
// сервиса-владельца и timeout/retry из его метаданных. Pipelines
// выводятся эвристикой по подстрокам имён activities и помечаются
// Inferred — деривация best-effort: если подходящих activities нет,
// pipeline просто не появляется, это не ошибка.
func FromCatalog(log *slog.Logger, catalog *domain.ServiceCatalog, defaultCollection string) *Snapshot {
	activities := make(map[string]domain.ActivityDescriptor)

	for _, svc := range sortedServices(catalog) {
		for name, meta := range svc.Activities {
			activities[name] = descriptorFromMetadata(name, svc.TaskQueue, meta)
		}
	}

	pipelines := make(map[string]domain.PipelineDefinition)
	for _, def := range inferPipelines(activities) {
		pipelines[def.Name] = def
		log.Info("pipeline inferred from discovered activities",
			slog.String("pipeline", def.Name),
			slog.Int("steps", len(def.Steps)),
		)
	}

	return NewSnapshot(SourceDiscovery, defaultCollection, activities, pipelines)
}

// descriptorFromMetadata строит remote-дескриптор из самоописания activity.
func descriptorFromMetadata(name, queue string, meta domain.ActivityMetadata) domain.ActivityDescriptor {
	timeout := domain.DefaultTimeout
	if meta.TimeoutSeconds > 0 {
		timeout = time.Duration(meta.TimeoutSeconds) * time.Second
	}
	retry := domain.RetryPolicy{MaxAttempts: meta.RetryAttempts}.Normalize()

	return domain.ActivityDescriptor{
		Name:      name,
		Kind:      domain.ExecutionRemote,
		TaskQueue: queue,
		Timeout:   timeout,
		Retry:     retry,
	}
}

// inferPipelines строит известные формы pipelines из имён activities.
//
// document_processing: activity с подстрокой "chunk" + activity с
// подстрокой "embed" или "index". document_retrieval: activity с
// подстрокой "search". Сопоставление по подстрокам хрупкое, поэтому
// результат всегда помечен Inferred.
func inferPipelines(activities map[string]domain.ActivityDescriptor) []domain.PipelineDefinition {
	names := make([]string, 0, len(activities))
	for name := range activities {
		names = append(names, name)
	}
	sort.Strings(names)

	chunk := firstMatching(names, "chunk")
	embed := firstMatching(names, "embed", "index")
	search := firstMatching(names, "search")

	var defs []domain.PipelineDefinition

	if chunk != "" && embed != "" {
		defs = append(defs, domain.PipelineDefinition{
			Name: domain.PipelineDocumentProcessing,
			Steps: []domain.Step{
				{Activity: chunk, Transform: transform.NameDocuments},
				{Activity: embed, Transform: transform.NameChunkedWithCollection},
			},
			Inferred: true,
		})
	}
	if search != "" {
		defs = append(defs, domain.PipelineDefinition{
			Name: domain.PipelineDocumentRetrieval,
			Steps: []domain.Step{
				{Activity: search, Transform: transform.NameQueryWithCollection},
			},
			Inferred: true,
		})
	}
	return defs
}

// firstMatching возвращает первое имя, содержащее любую из подстрок.
func firstMatching(names []string, substrings ...string) string {
	for _, name := range names {
		for _, sub := range substrings {
			if strings.Contains(name, sub) {
				return name
			}
		}
	}
	return ""
}

// sortedServices возвращает сервисы каталога в стабильном порядке имён.
func sortedServices(catalog *domain.ServiceCatalog) []domain.ServiceInfo {
	names := make([]string, 0, len(catalog.Services))
	for name := range catalog.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	services := make([]domain.ServiceInfo, 0, len(names))
	for _, name := range names {
		services = append(services, catalog.Services[name])
	}
	return services
}
