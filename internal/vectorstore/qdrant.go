package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Qdrant — минимальный REST-клиент к Qdrant.
//
// Косинусная дистанция, коллекция создаётся при необходимости.
type Qdrant struct {
	url    string
	apiKey string
	client *http.Client
}

// QdrantConfig — конфигурация клиента Qdrant.
type QdrantConfig struct {
	// URL — базовый адрес (например, "http://localhost:6333").
	URL string

	// APIKey — опциональный API key.
	APIKey string

	// Timeout — таймаут HTTP-запросов (default: 15s).
	Timeout time.Duration
}

// NewQdrant создаёт клиент Qdrant.
func NewQdrant(cfg QdrantConfig) *Qdrant {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Qdrant{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// EnsureCollection создаёт коллекцию с косинусной дистанцией.
// Qdrant отвечает 200, если коллекция уже существует с той же схемой.
func (q *Qdrant) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	if collection == "" {
		return ErrEmptyCollection
	}
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension: %d", dimension)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", collection), body, nil)
}

// Upsert записывает точки в коллекцию.
func (q *Qdrant) Upsert(ctx context.Context, collection string, points []Point) error {
	if collection == "" {
		return ErrEmptyCollection
	}
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]map[string]any, len(points))
	for i, p := range points {
		qdrantPoints[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}

	body := map[string]any{"points": qdrantPoints}
	path := fmt.Sprintf("/collections/%s/points?wait=true", collection)
	return q.do(ctx, http.MethodPut, path, body, nil)
}

// Search возвращает topK ближайших точек.
func (q *Qdrant) Search(ctx context.Context, collection string, vector []float64, topK int) ([]ScoredPoint, error) {
	if topK <= 0 {
		topK = 5
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	path := fmt.Sprintf("/collections/%s/points/search", collection)
	if err := q.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	results := make([]ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, ScoredPoint{
			ID:      fmt.Sprint(r.ID),
			Score:   r.Score,
			Payload: r.Payload,
		})
	}
	return results, nil
}

// do выполняет HTTP-запрос к Qdrant и декодирует ответ в out (если задан).
func (q *Qdrant) do(ctx context.Context, method, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.url+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
