package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAI — клиент OpenAI-совместимого embeddings API.
//
// Работает с любым сервером, реализующим POST /embeddings
// (OpenAI, Ollama, LocalAI и т.д.).
type OpenAI struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
}

// OpenAIConfig — конфигурация OpenAI-совместимого embedder.
type OpenAIConfig struct {
	// BaseURL — базовый адрес API (например, "https://api.openai.com/v1").
	BaseURL string

	// APIKey — ключ API (может быть пустым для локальных серверов).
	APIKey string

	// Model — имя модели (например, "text-embedding-3-small").
	Model string

	// Dimension — ожидаемая размерность векторов.
	Dimension int

	// Timeout — таймаут HTTP-запросов (default: 30s).
	Timeout time.Duration
}

// NewOpenAI создаёт OpenAI-совместимый embedder.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = 1536
	}
	return &OpenAI{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: dimension,
		client:    &http.Client{Timeout: timeout},
	}
}

// Name возвращает имя реализации.
func (o *OpenAI) Name() string { return "openai" }

// Dimension возвращает размерность векторов.
func (o *OpenAI) Dimension() int { return o.dimension }

// Embed вычисляет embedding через HTTP API.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	reqBody := map[string]any{
		"model": o.model,
		"input": text,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embeddings request: status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embeddings response has no data")
	}

	return parsed.Data[0].Embedding, nil
}
