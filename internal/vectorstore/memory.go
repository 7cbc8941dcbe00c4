package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory — in-memory хранилище с косинусной близостью.
//
// Используется в тестах и для локальной разработки без Qdrant.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimension int
	points    map[string]Point
}

// NewMemory создаёт пустое in-memory хранилище.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]*memoryCollection),
	}
}

// EnsureCollection создаёт коллекцию, если её ещё нет.
func (m *Memory) EnsureCollection(_ context.Context, collection string, dimension int) error {
	if collection == "" {
		return ErrEmptyCollection
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.collections[collection]; !exists {
		m.collections[collection] = &memoryCollection{
			dimension: dimension,
			points:    make(map[string]Point),
		}
	}
	return nil
}

// Upsert записывает точки, перезаписывая существующие ID.
func (m *Memory) Upsert(ctx context.Context, collection string, points []Point) error {
	if collection == "" {
		return ErrEmptyCollection
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coll, exists := m.collections[collection]
	if !exists {
		dim := 0
		if len(points) > 0 {
			dim = len(points[0].Vector)
		}
		coll = &memoryCollection{dimension: dim, points: make(map[string]Point)}
		m.collections[collection] = coll
	}

	for _, p := range points {
		if coll.dimension > 0 && len(p.Vector) != coll.dimension {
			return ErrDimensionMismatch
		}
		coll.points[p.ID] = p
	}
	return nil
}

// Search возвращает topK точек по косинусной близости.
func (m *Memory) Search(_ context.Context, collection string, vector []float64, topK int) ([]ScoredPoint, error) {
	if topK <= 0 {
		topK = 5
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, exists := m.collections[collection]
	if !exists {
		return nil, nil
	}

	scored := make([]ScoredPoint, 0, len(coll.points))
	for _, p := range coll.points {
		scored = append(scored, ScoredPoint{
			ID:      p.ID,
			Score:   cosine(vector, p.Vector),
			Payload: p.Payload,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Count возвращает количество точек в коллекции.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, exists := m.collections[collection]
	if !exists {
		return 0
	}
	return len(coll.points)
}

// cosine вычисляет косинусную близость двух векторов.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
