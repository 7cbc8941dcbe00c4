package scheduler

import (
	"context"
	"log/slog"

	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/discovery"
	"github.com/shaiso/Cascade/internal/pipeline"
)

// DiscoveryRefreshJob строит job, который перестраивает каталог
// discovery и, когда конфигурация выведена из discovery, атомарно
// заменяет снимок.
//
// Статический снимок job не трогает: конфигурацию, объявленную
// оператором явно, нельзя вытеснить выведенной. Пустой каталог тоже
// не заменяет непустой снимок — окно, в котором все workers
// недоступны, не повод забыть все pipelines. Ошибка refresh оставляет
// текущий снимок нетронутым.
func DiscoveryRefreshJob(svc *discovery.Service, store *config.Store, logger *slog.Logger) JobFunc {
	return func(ctx context.Context) error {
		catalog, err := svc.Refresh(ctx)
		if err != nil {
			return err
		}

		current, curErr := store.Current()
		if curErr == nil && current.Source == config.SourceStatic {
			return nil
		}
		if curErr == nil && len(catalog.Services) == 0 {
			logger.Warn("discovery returned an empty catalog, keeping current configuration")
			return nil
		}

		defaultCollection := ""
		if curErr == nil {
			defaultCollection = current.DefaultCollection
		}
		store.Swap(config.FromCatalog(logger, catalog, defaultCollection))
		return nil
	}
}

// PipelineJob строит job, запускающий pipeline с фиксированным входом.
func PipelineJob(executor *pipeline.Executor, pipelineName string, input any) JobFunc {
	return func(ctx context.Context) error {
		_, err := executor.Execute(ctx, pipelineName, input)
		return err
	}
}
