package domain

// Step — один шаг pipeline: какая activity и какой transform готовит её аргументы.
type Step struct {
	// Activity — имя activity (ключ в таблице дескрипторов).
	Activity string `json:"activity" yaml:"activity"`

	// Transform — имя transform из реестра.
	// Пустое или неизвестное имя резолвится в passthrough.
	Transform string `json:"input_transform,omitempty" yaml:"input_transform,omitempty"`
}

// PipelineDefinition — именованная упорядоченная последовательность шагов.
//
// Порядок шагов семантически значим: шаг N+1 получает на вход сырой
// результат шага N. Параллельного fan-out внутри одного pipeline нет.
type PipelineDefinition struct {
	// Name — уникальное имя pipeline (например, "document_processing").
	Name string `json:"name" yaml:"name"`

	// Steps — шаги в порядке выполнения. Непустой список.
	Steps []Step `json:"steps" yaml:"steps"`

	// Inferred — true, если pipeline выведен эвристикой discovery,
	// а не задан явной конфигурацией. Операторам важно отличать
	// угаданную топологию от объявленной.
	Inferred bool `json:"inferred,omitempty" yaml:"-"`
}

// Известные имена pipelines, которые умеет выводить discovery.
const (
	PipelineDocumentProcessing = "document_processing"
	PipelineDocumentRetrieval  = "document_retrieval"
)

// Имена встроенных activities.
const (
	ActivityChunkDocuments  = "chunk_documents"
	ActivityEmbedAndIndex   = "embed_and_index"
	ActivitySearchDocuments = "search_documents"
	ActivityHealthCheck     = "health_check"
)
