package domain

import "time"

// ServiceInfo — один обнаруженный сервис в каталоге.
type ServiceInfo struct {
	// Name — логическое имя сервиса (например, "embedding-service").
	Name string `json:"name"`

	// TaskQueue — очередь, которую поллят workers этого сервиса.
	TaskQueue string `json:"task_queue"`

	// Endpoint — базовый URL metadata endpoint (host:port), с которого
	// сервис был обнаружен.
	Endpoint string `json:"endpoint,omitempty"`

	// WorkerIdentity — идентификатор worker-процесса, ответившего на metadata.
	WorkerIdentity string `json:"worker_identity,omitempty"`

	// Health — "healthy" или "degraded" по самоотчёту сервиса.
	Health string `json:"health,omitempty"`

	// Version — версия сервиса по самоотчёту.
	Version string `json:"version,omitempty"`

	// Activities — каталог activities сервиса (имя → метаданные).
	Activities map[string]ActivityMetadata `json:"activities"`

	// QueueStatus — Active, если TaskQueue имеет живых pollers по данным
	// control plane; иначе Inactive.
	QueueStatus ServiceStatus `json:"queue_status"`
}

// ServiceCatalog — результат discovery: имя сервиса → ServiceInfo.
//
// Каталог никогда не мутируется частично: после прохода discovery он
// заменяется целиком. Читатели всегда видят либо старый, либо новый снимок.
type ServiceCatalog struct {
	// Services — обнаруженные сервисы.
	Services map[string]ServiceInfo `json:"services"`

	// BuiltAt — время завершения прохода discovery.
	BuiltAt time.Time `json:"built_at"`
}

// NewServiceCatalog создаёт пустой каталог.
func NewServiceCatalog() *ServiceCatalog {
	return &ServiceCatalog{
		Services: make(map[string]ServiceInfo),
		BuiltAt:  time.Now(),
	}
}

// ActiveQueues возвращает имена task queues сервисов со статусом Active.
func (c *ServiceCatalog) ActiveQueues() []string {
	queues := make([]string, 0, len(c.Services))
	for _, svc := range c.Services {
		if svc.QueueStatus == ServiceStatusActive && svc.TaskQueue != "" {
			queues = append(queues, svc.TaskQueue)
		}
	}
	return queues
}

// FindActivity ищет activity по имени во всех сервисах.
// Возвращает сервис-владельца и метаданные.
func (c *ServiceCatalog) FindActivity(name string) (ServiceInfo, ActivityMetadata, bool) {
	for _, svc := range c.Services {
		if meta, ok := svc.Activities[name]; ok {
			return svc, meta, true
		}
	}
	return ServiceInfo{}, ActivityMetadata{}, false
}
