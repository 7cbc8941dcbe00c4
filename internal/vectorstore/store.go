package vectorstore

import (
	"context"
	"errors"
)

// Ошибки хранилища.
var (
	// ErrDimensionMismatch — вектор не совпадает по размерности с коллекцией.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyCollection — не указано имя коллекции.
	ErrEmptyCollection = errors.New("collection name is empty")
)

// Point — одна запись в векторном хранилище.
type Point struct {
	// ID — идентификатор точки (обычно "{document_id}:{index}").
	ID string `json:"id"`

	// Vector — embedding.
	Vector []float64 `json:"vector"`

	// Payload — произвольные атрибуты (текст фрагмента, document_id и т.д.).
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredPoint — точка с оценкой релевантности из поиска.
type ScoredPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Store — векторное хранилище с точки зрения pipeline.
//
// Для executor это внешний коллаборатор: upsert точек и поиск
// по вектору, больше ничего.
type Store interface {
	// EnsureCollection создаёт коллекцию с указанной размерностью,
	// если её ещё нет.
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	// Upsert записывает точки в коллекцию.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search возвращает topK ближайших точек к вектору.
	Search(ctx context.Context, collection string, vector []float64, topK int) ([]ScoredPoint, error)
}
