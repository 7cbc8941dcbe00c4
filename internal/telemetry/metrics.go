package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики pipeline executor.
var (
	// RunsStarted — количество запущенных pipeline runs.
	RunsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_pipeline_runs_started_total",
		Help: "Total pipeline runs started",
	}, []string{"pipeline"})

	// RunsCompleted — количество успешно завершённых runs.
	RunsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_pipeline_runs_completed_total",
		Help: "Total pipeline runs completed successfully",
	}, []string{"pipeline"})

	// RunsFailed — количество упавших runs с разбивкой по виду ошибки.
	RunsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_pipeline_runs_failed_total",
		Help: "Total pipeline runs failed",
	}, []string{"pipeline", "error_kind"})

	// StepDuration — гистограмма длительности шагов.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cascade_pipeline_step_duration_seconds",
		Help:    "Duration of individual pipeline steps",
		Buckets: prometheus.DefBuckets,
	}, []string{"pipeline", "activity"})
)

// Метрики discovery.
var (
	// DiscoveryRefreshes — количество полных проходов discovery.
	DiscoveryRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cascade_discovery_refreshes_total",
		Help: "Total full discovery passes",
	})

	// DiscoveryCacheHits — количество чтений каталога из кэша.
	DiscoveryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cascade_discovery_cache_hits_total",
		Help: "Total catalog reads served from cache",
	})

	// DiscoveredServices — количество сервисов в последнем каталоге.
	DiscoveredServices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cascade_discovery_services",
		Help: "Services present in the latest catalog",
	})
)

// Метрики worker.
var (
	// ActivityExecutions — выполненные activities с разбивкой по статусу.
	ActivityExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_worker_activity_executions_total",
		Help: "Total activity executions by the worker",
	}, []string{"activity", "status"})
)
