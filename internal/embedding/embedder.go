package embedding

import "context"

// Embedder превращает текст в числовой вектор.
//
// Для pipeline это внешний коллаборатор: модель embedding — деталь
// реализации конкретного Embedder.
type Embedder interface {
	// Name возвращает имя реализации.
	Name() string

	// Dimension возвращает размерность векторов.
	Dimension() int

	// Embed вычисляет embedding одного текста.
	Embed(ctx context.Context, text string) ([]float64, error)
}
