package transform

import (
	"errors"

	"github.com/shaiso/Cascade/internal/domain"
)

// Ошибки трансформаций.
var (
	// ErrTransform — transform получил данные, которые не может нормализовать.
	// Не ретраится: повтор не исправит несовпадение формы данных.
	ErrTransform = errors.New("transform failed")
)

// Fn — чистая функция нормализации входа шага.
//
// Принимает:
//   - data — сырой результат предыдущего шага (или исходный вход pipeline
//     для первого шага)
//   - step — определение текущего шага
//   - original — исходный вход pipeline (некоторым transforms нужны его поля,
//     например collection)
//   - defaultCollection — коллекция по умолчанию из конфигурации executor
//
// Возвращает позиционный список аргументов для activity.
type Fn func(data any, step domain.Step, original any, defaultCollection string) ([]any, error)

// Имена встроенных transforms.
const (
	NamePassthrough           = "passthrough"
	NameQueryWithCollection   = "query_with_collection"
	NameDocuments             = "documents"
	NameChunkedWithCollection = "chunked_docs_with_collection"
)

// defaultTopK — количество результатов поиска по умолчанию.
const defaultTopK = 10
