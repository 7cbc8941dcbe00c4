package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Hashing — детерминированный feature-hashing embedder.
//
// Не требует модели и сети: каждый токен хэшируется в один из
// dimension бакетов, вектор нормализуется. Качество ниже, чем у
// нейросетевых моделей, но для тестов и локальной разработки
// достаточно, а результат стабилен между запусками.
type Hashing struct {
	dimension int
}

// NewHashing создаёт hashing embedder.
func NewHashing(dimension int) *Hashing {
	if dimension <= 0 {
		dimension = 256
	}
	return &Hashing{dimension: dimension}
}

// Name возвращает имя реализации.
func (h *Hashing) Name() string { return "hashing" }

// Dimension возвращает размерность векторов.
func (h *Hashing) Dimension() int { return h.dimension }

// Embed вычисляет нормализованный bag-of-words вектор текста.
func (h *Hashing) Embed(_ context.Context, text string) ([]float64, error) {
	vector := make([]float64, h.dimension)

	for _, token := range tokenize(text) {
		hasher := fnv.New32a()
		hasher.Write([]byte(token))
		bucket := int(hasher.Sum32()) % h.dimension
		if bucket < 0 {
			bucket += h.dimension
		}
		vector[bucket]++
	}

	// L2-нормализация
	var norm float64
	for _, v := range vector {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vector {
			vector[i] /= norm
		}
	}

	return vector, nil
}

// tokenize разбивает текст на нижнерегистровые токены.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
