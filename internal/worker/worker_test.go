package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/activity"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
)

// echoActivity возвращает свои аргументы.
type echoActivity struct{}

func (echoActivity) Name() string { return "echo" }

func (echoActivity) Metadata() domain.ActivityMetadata {
	return domain.ActivityMetadata{Name: "echo", TimeoutSeconds: 60, RetryAttempts: 2}
}

func (echoActivity) Execute(_ context.Context, args []any) (any, error) {
	return args, nil
}

// brokenActivity всегда падает.
type brokenActivity struct{}

func (brokenActivity) Name() string { return "broken" }

func (brokenActivity) Metadata() domain.ActivityMetadata {
	return domain.ActivityMetadata{Name: "broken"}
}

func (brokenActivity) Execute(context.Context, []any) (any, error) {
	return nil, errors.New("activity exploded")
}

func newTestWorker() *Worker {
	registry := activity.NewRegistry()
	registry.Register(echoActivity{})
	registry.Register(brokenActivity{})

	return New(Config{
		ServiceName: "test-service",
		TaskQueue:   "test-task-queue",
		Identity:    "test@1",
		Version:     "test",
		Registry:    registry,
		Conn:        &mq.Connection{},
	})
}

// --- handleRequest Tests ---

func TestHandleRequest_MalformedPayloadRejected(t *testing.T) {
	w := newTestWorker()

	// args должен быть списком — такой payload не парсится
	delivery := &mq.Delivery{
		Message: mq.Message{
			ID:      "msg-1",
			Payload: map[string]any{"args": 42},
		},
	}

	err := w.handleRequest(context.Background(), delivery)
	if !errors.Is(err, mq.ErrRejectDelivery) {
		t.Fatalf("err = %v, want ErrRejectDelivery", err)
	}
}

// --- execute Tests ---

func TestExecute_Succeeded(t *testing.T) {
	w := newTestWorker()

	request := mq.ActivityRequestPayload{
		RequestID: uuid.New(),
		Activity:  "echo",
		Args:      []any{"a", "b"},
	}

	result := w.execute(context.Background(), request)

	if result.Status != mq.ResultStatusSucceeded {
		t.Errorf("Status = %s, want %s", result.Status, mq.ResultStatusSucceeded)
	}
	if result.RequestID != request.RequestID {
		t.Error("result must carry the request id")
	}
	args, ok := result.Result.([]any)
	if !ok || len(args) != 2 || args[0] != "a" {
		t.Errorf("Result = %v", result.Result)
	}
}

func TestExecute_Failed(t *testing.T) {
	w := newTestWorker()

	result := w.execute(context.Background(), mq.ActivityRequestPayload{
		RequestID: uuid.New(),
		Activity:  "broken",
	})

	if result.Status != mq.ResultStatusFailed {
		t.Errorf("Status = %s, want %s", result.Status, mq.ResultStatusFailed)
	}
	if result.Error != "activity exploded" {
		t.Errorf("Error = %q", result.Error)
	}
	if result.Result != nil {
		t.Error("failed result must not carry a value")
	}
}

func TestExecute_UnknownActivity(t *testing.T) {
	w := newTestWorker()

	result := w.execute(context.Background(), mq.ActivityRequestPayload{
		RequestID: uuid.New(),
		Activity:  "no_such_activity",
	})

	if result.Status != mq.ResultStatusFailed {
		t.Errorf("Status = %s, want %s", result.Status, mq.ResultStatusFailed)
	}
	if result.Error == "" {
		t.Error("error message must name the missing activity")
	}
}

// --- Metadata Tests ---

func TestMetadata_DescribesWorker(t *testing.T) {
	w := newTestWorker()

	meta := w.Metadata()

	if meta.ServiceName != "test-service" || meta.TaskQueue != "test-task-queue" {
		t.Errorf("metadata = %+v", meta)
	}
	// Соединение с брокером не установлено
	if meta.Health != "degraded" {
		t.Errorf("Health = %s, want degraded", meta.Health)
	}
	if len(meta.Activities) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(meta.Activities))
	}
}

func TestMetadataServer_ServesMetadata(t *testing.T) {
	w := newTestWorker()

	mux := http.NewServeMux()
	NewMetadataServer(w, w.logger).RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/metadata", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}

	var meta Metadata
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if meta.ServiceName != "test-service" {
		t.Errorf("service_name = %s", meta.ServiceName)
	}

	names := make(map[string]bool, len(meta.Activities))
	for _, a := range meta.Activities {
		names[a.Name] = true
	}
	if !names["echo"] || !names["broken"] {
		t.Errorf("activities = %v", meta.Activities)
	}
}

func TestMetadataServer_Health(t *testing.T) {
	w := newTestWorker()

	mux := http.NewServeMux()
	NewMetadataServer(w, w.logger).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %s", body["status"])
	}
}
