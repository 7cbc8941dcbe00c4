package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api, CLI не импортирует internal/api) ---

// PipelineResponse — определение pipeline из API.
type PipelineResponse struct {
	Name     string         `json:"name"`
	Steps    []StepResponse `json:"steps"`
	Inferred bool           `json:"inferred,omitempty"`
}

// StepResponse — шаг pipeline из API.
type StepResponse struct {
	Activity  string `json:"activity"`
	Transform string `json:"input_transform,omitempty"`
}

// RunResponse — pipeline run из API.
type RunResponse struct {
	ID          string              `json:"id"`
	Pipeline    string              `json:"pipeline"`
	Status      string              `json:"status"`
	Input       any                 `json:"input,omitempty"`
	Trace       []StepTraceResponse `json:"trace,omitempty"`
	FinalResult any                 `json:"final_result,omitempty"`
	Error       string              `json:"error,omitempty"`
	StartedAt   string              `json:"started_at"`
	FinishedAt  string              `json:"finished_at,omitempty"`
}

// StepTraceResponse — запись trace из API.
type StepTraceResponse struct {
	StepIndex int    `json:"step_index"`
	Activity  string `json:"activity"`
	Status    string `json:"status"`
	Summary   string `json:"summary,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ServiceResponse — сервис из каталога discovery.
type ServiceResponse struct {
	Name        string         `json:"name"`
	TaskQueue   string         `json:"task_queue"`
	Endpoint    string         `json:"endpoint,omitempty"`
	Health      string         `json:"health,omitempty"`
	Version     string         `json:"version,omitempty"`
	Activities  map[string]any `json:"activities"`
	QueueStatus string         `json:"queue_status"`
}

// CatalogResponse — каталог сервисов из API.
type CatalogResponse struct {
	Services map[string]ServiceResponse `json:"services"`
	BuiltAt  string                     `json:"built_at"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Pipeline string
	Status   string
	Limit    int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details,omitempty"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Cascade API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute, // синхронный запуск pipeline может быть долгим
		},
	}
}

// ListPipelines возвращает сконфигурированные pipelines.
func (c *Client) ListPipelines() ([]PipelineResponse, error) {
	var pipelines []PipelineResponse
	err := c.list("/api/v1/pipelines", nil, &pipelines)
	return pipelines, err
}

// ExecutePipeline запускает pipeline и ждёт результат.
func (c *Client) ExecutePipeline(name string, input any) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/pipelines/"+url.PathEscape(name)+"/runs", input, &run)
	return &run, err
}

// ListRuns возвращает историю runs.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	query := url.Values{}
	if opts.Pipeline != "" {
		query.Set("pipeline", opts.Pipeline)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", query, &runs)
	return runs, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+url.PathEscape(id), &run)
	return &run, err
}

// ListServices возвращает каталог discovery.
func (c *Client) ListServices() (*CatalogResponse, error) {
	var catalog CatalogResponse
	err := c.get("/api/v1/services", &catalog)
	return &catalog, err
}

// RefreshDiscovery принудительно перестраивает каталог.
func (c *Client) RefreshDiscovery() (map[string]any, error) {
	var result map[string]any
	err := c.post("/api/v1/discovery/refresh", nil, &result)
	return result, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, out any) error {
	return c.do(http.MethodGet, path, nil, out, false)
}

func (c *Client) post(path string, body, out any) error {
	return c.do(http.MethodPost, path, body, out, false)
}

func (c *Client) list(path string, query url.Values, out any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(http.MethodGet, path, nil, out, true)
}

func (c *Client) do(method, path string, body, out any, isList bool) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr errorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			if len(apiErr.Error.Details) > 0 {
				return fmt.Errorf("%s: %s (%s)", apiErr.Error.Code, apiErr.Error.Message, apiErr.Error.Details)
			}
			return fmt.Errorf("%s: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}

	if isList {
		var wrapper listResponse
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return json.Unmarshal(wrapper.Data, out)
	}

	var wrapper dataResponse
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(wrapper.Data, out)
}
