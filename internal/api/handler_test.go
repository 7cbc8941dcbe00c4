package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/discovery"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/pipeline"
	"github.com/shaiso/Cascade/internal/transform"
)

// fakeInvoker отвечает на все вызовы через fn.
type fakeInvoker struct {
	fn func(desc domain.ActivityDescriptor, args []any) (any, error)
}

func (f *fakeInvoker) Invoke(_ context.Context, desc domain.ActivityDescriptor, args []any) (any, error) {
	if f.fn == nil {
		return map[string]any{"status": "success"}, nil
	}
	return f.fn(desc, args)
}

func testSnapshot() *config.Snapshot {
	activities := map[string]domain.ActivityDescriptor{
		"search_documents": {
			Name:      "search_documents",
			Kind:      domain.ExecutionRemote,
			TaskQueue: "embedding-task-queue",
			Timeout:   time.Minute,
			Retry:     domain.RetryPolicy{}.Normalize(),
		},
	}
	pipelines := map[string]domain.PipelineDefinition{
		"document_retrieval": {
			Name: "document_retrieval",
			Steps: []domain.Step{
				{Activity: "search_documents", Transform: transform.NameQueryWithCollection},
			},
		},
	}
	return config.NewSnapshot(config.SourceStatic, "docs", activities, pipelines)
}

func newTestMux(store *config.Store, remote pipeline.Invoker, disc *discovery.Service) *http.ServeMux {
	executor := pipeline.NewExecutor(
		store,
		transform.DefaultRegistry(slog.Default()),
		&fakeInvoker{},
		remote,
		slog.Default(),
	)
	handler := NewHandler(HandlerConfig{
		Executor:  executor,
		Store:     store,
		Discovery: disc,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// --- Pipelines Tests ---

func TestListPipelines(t *testing.T) {
	mux := newTestMux(config.NewStore(testSnapshot()), &fakeInvoker{}, nil)

	rec := doRequest(t, mux, http.MethodGet, "/api/v1/pipelines", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var response struct {
		Data  []domain.PipelineDefinition `json:"data"`
		Total int                         `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if response.Total != 1 || response.Data[0].Name != "document_retrieval" {
		t.Errorf("response = %+v", response)
	}
}

func TestListPipelines_NoConfiguration(t *testing.T) {
	mux := newTestMux(config.NewStore(nil), &fakeInvoker{}, nil)

	rec := doRequest(t, mux, http.MethodGet, "/api/v1/pipelines", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestExecutePipeline_Success(t *testing.T) {
	searchResult := map[string]any{
		"retrieved_documents": []any{map[string]any{"id": "doc1:0", "text": "hit"}},
		"count":               1,
	}
	remote := &fakeInvoker{fn: func(_ domain.ActivityDescriptor, args []any) (any, error) {
		if len(args) != 3 || args[0] != "machine learning" {
			return nil, errors.New("unexpected args")
		}
		return searchResult, nil
	}}
	mux := newTestMux(config.NewStore(testSnapshot()), remote, nil)

	rec := doRequest(t, mux, http.MethodPost, "/api/v1/pipelines/document_retrieval/runs",
		`{"query": "machine learning", "collection": "docs"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var response struct {
		Data domain.PipelineRun `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if response.Data.Status != domain.RunStatusCompleted {
		t.Errorf("run status = %s, want %s", response.Data.Status, domain.RunStatusCompleted)
	}
	if len(response.Data.Trace) != 1 {
		t.Errorf("trace = %+v", response.Data.Trace)
	}
}

func TestExecutePipeline_UnknownPipelineIs404(t *testing.T) {
	mux := newTestMux(config.NewStore(testSnapshot()), &fakeInvoker{}, nil)

	rec := doRequest(t, mux, http.MethodPost, "/api/v1/pipelines/no_such_pipeline/runs", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}

	var response ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if response.Error.Code != ErrCodePipelineFailed {
		t.Errorf("code = %s, want %s", response.Error.Code, ErrCodePipelineFailed)
	}
}

func TestExecutePipeline_RuntimeFailureIs422(t *testing.T) {
	remote := &fakeInvoker{fn: func(_ domain.ActivityDescriptor, _ []any) (any, error) {
		return nil, errors.New("worker unreachable")
	}}
	mux := newTestMux(config.NewStore(testSnapshot()), remote, nil)

	rec := doRequest(t, mux, http.MethodPost, "/api/v1/pipelines/document_retrieval/runs",
		`{"query": "q"}`)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
	}

	var response ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if response.Error.Code != ErrCodePipelineFailed {
		t.Errorf("code = %s", response.Error.Code)
	}
	// Структурированная диагностика провала — в details
	details, ok := response.Error.Details.(map[string]any)
	if !ok {
		t.Fatalf("details = %T", response.Error.Details)
	}
	if details["error_kind"] != string(domain.ErrorKindActivityExecution) {
		t.Errorf("error_kind = %v", details["error_kind"])
	}
	if details["failed_at_step"] != float64(0) {
		t.Errorf("failed_at_step = %v", details["failed_at_step"])
	}
}

func TestExecutePipeline_InvalidJSONBody(t *testing.T) {
	mux := newTestMux(config.NewStore(testSnapshot()), &fakeInvoker{}, nil)

	rec := doRequest(t, mux, http.MethodPost, "/api/v1/pipelines/document_retrieval/runs", `{broken`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestExecutePipeline_EmptyBodyIsNullInput(t *testing.T) {
	remote := &fakeInvoker{fn: func(_ domain.ActivityDescriptor, args []any) (any, error) {
		// query_with_collection от nil входа: пустой запрос + defaults
		if len(args) != 3 || args[0] != "" || args[1] != "docs" {
			return nil, errors.New("unexpected args")
		}
		return map[string]any{"count": 0}, nil
	}}
	mux := newTestMux(config.NewStore(testSnapshot()), remote, nil)

	rec := doRequest(t, mux, http.MethodPost, "/api/v1/pipelines/document_retrieval/runs", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

// --- Runs Tests ---

func TestRunsEndpointsWithoutRepository(t *testing.T) {
	mux := newTestMux(config.NewStore(testSnapshot()), &fakeInvoker{}, nil)

	for _, path := range []string{
		"/api/v1/runs",
		"/api/v1/runs/1b4e28ba-2fa1-11d2-883f-0016d3cca427",
	} {
		rec := doRequest(t, mux, http.MethodGet, path, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s: status = %d, want 503", path, rec.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	mux := newTestMux(config.NewStore(nil), &fakeInvoker{}, nil)

	rec := doRequest(t, mux, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// --- Services Tests ---

func TestListServices_WithoutDiscovery(t *testing.T) {
	mux := newTestMux(config.NewStore(testSnapshot()), &fakeInvoker{}, nil)

	rec := doRequest(t, mux, http.MethodGet, "/api/v1/services", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

// staticControlPlane считает активной любую очередь из таблицы.
type staticControlPlane struct {
	queues map[string]int
}

func (s *staticControlPlane) DescribeQueue(_ context.Context, queue string) (mq.QueueInfo, error) {
	consumers, ok := s.queues[queue]
	if !ok {
		return mq.QueueInfo{}, errors.New("queue does not exist")
	}
	return mq.QueueInfo{Name: queue, Consumers: consumers}, nil
}

func TestRefreshDiscovery_SwapsConfiguration(t *testing.T) {
	workerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service_name": "embedding-service",
			"task_queue":   "embedding-task-queue",
			"health":       "healthy",
			"activities": []map[string]any{
				{"name": "chunk_documents"},
				{"name": "embed_and_index"},
				{"name": "search_documents"},
			},
		})
	}))
	defer workerSrv.Close()

	disc := discovery.NewService(
		&staticControlPlane{queues: map[string]int{"embedding-task-queue": 1}},
		[]string{strings.TrimPrefix(workerSrv.URL, "http://")},
		slog.Default(),
		discovery.Options{},
	)

	store := config.NewStore(nil)
	mux := newTestMux(store, &fakeInvoker{}, disc)

	rec := doRequest(t, mux, http.MethodPost, "/api/v1/discovery/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var response struct {
		Data struct {
			Services  int      `json:"services"`
			Pipelines []string `json:"pipelines"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if response.Data.Services != 1 {
		t.Errorf("services = %d, want 1", response.Data.Services)
	}
	if len(response.Data.Pipelines) != 2 {
		t.Errorf("pipelines = %v, want inferred processing and retrieval", response.Data.Pipelines)
	}

	// Снимок конфигурации заменён дериватом из каталога
	snap, err := store.Current()
	if err != nil {
		t.Fatalf("store must hold a snapshot after refresh: %v", err)
	}
	if snap.Source != config.SourceDiscovery {
		t.Errorf("Source = %s, want %s", snap.Source, config.SourceDiscovery)
	}
	if _, err := snap.GetPipelineDefinition(domain.PipelineDocumentProcessing); err != nil {
		t.Errorf("document_processing must be inferred: %v", err)
	}
}
