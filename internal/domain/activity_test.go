package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// --- RetryPolicy Tests ---

func TestRetryPolicy_NormalizeFillsZeroFields(t *testing.T) {
	got := RetryPolicy{}.Normalize()

	if got.InitialInterval != DefaultInitialInterval {
		t.Errorf("InitialInterval = %v, want %v", got.InitialInterval, DefaultInitialInterval)
	}
	if got.MaxInterval != DefaultMaxInterval {
		t.Errorf("MaxInterval = %v, want %v", got.MaxInterval, DefaultMaxInterval)
	}
	if got.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", got.MaxAttempts, DefaultMaxAttempts)
	}
}

func TestRetryPolicy_NormalizeKeepsExplicitValues(t *testing.T) {
	policy := RetryPolicy{
		InitialInterval: 2 * time.Second,
		MaxInterval:     time.Minute,
		MaxAttempts:     7,
	}
	if got := policy.Normalize(); got != policy {
		t.Errorf("Normalize() = %+v, want unchanged %+v", got, policy)
	}
}

func TestRetryPolicy_BackoffForDoublesUpToCap(t *testing.T) {
	policy := RetryPolicy{
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
		MaxAttempts:     10,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // 16s срезается потолком
		{6, 10 * time.Second},
	}

	for _, tc := range cases {
		if got := policy.BackoffFor(tc.attempt); got != tc.want {
			t.Errorf("BackoffFor(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

// --- PipelineRun Tests ---

func TestPipelineRun_Lifecycle(t *testing.T) {
	run := NewPipelineRun("document_processing", map[string]any{"collection": "docs"})

	if run.Status != RunStatusRunning {
		t.Errorf("Status = %s, want %s", run.Status, RunStatusRunning)
	}
	if run.ID == uuid.Nil {
		t.Error("run must get an ID")
	}
	if run.Duration() != 0 {
		t.Error("unfinished run has no duration")
	}

	run.AppendStep(StepResult{StepIndex: 0, Activity: "chunk_documents", Status: StepStatusCompleted})
	run.MarkCompleted(map[string]any{"status": "success"})

	if run.Status != RunStatusCompleted {
		t.Errorf("Status = %s, want %s", run.Status, RunStatusCompleted)
	}
	if run.FinishedAt == nil {
		t.Error("FinishedAt must be set")
	}
	if run.StepsCompleted() != 1 {
		t.Errorf("StepsCompleted = %d, want 1", run.StepsCompleted())
	}
}

func TestPipelineRun_MarkFailed(t *testing.T) {
	run := NewPipelineRun("document_retrieval", nil)
	run.MarkFailed("search exploded")

	if run.Status != RunStatusFailed {
		t.Errorf("Status = %s, want %s", run.Status, RunStatusFailed)
	}
	if run.Error != "search exploded" {
		t.Errorf("Error = %q", run.Error)
	}
	if run.FinishedAt == nil {
		t.Error("FinishedAt must be set")
	}
}

// --- ServiceCatalog Tests ---

func TestServiceCatalog_ActiveQueues(t *testing.T) {
	catalog := NewServiceCatalog()
	catalog.Services["a"] = ServiceInfo{Name: "a", TaskQueue: "a-queue", QueueStatus: ServiceStatusActive}
	catalog.Services["b"] = ServiceInfo{Name: "b", TaskQueue: "b-queue", QueueStatus: ServiceStatusInactive}
	catalog.Services["c"] = ServiceInfo{Name: "c", QueueStatus: ServiceStatusActive}

	queues := catalog.ActiveQueues()
	if len(queues) != 1 || queues[0] != "a-queue" {
		t.Errorf("ActiveQueues() = %v, want [a-queue]", queues)
	}
}

func TestServiceCatalog_FindActivity(t *testing.T) {
	catalog := NewServiceCatalog()
	catalog.Services["embedding-service"] = ServiceInfo{
		Name:      "embedding-service",
		TaskQueue: "embedding-task-queue",
		Activities: map[string]ActivityMetadata{
			"embed_and_index": {Name: "embed_and_index"},
		},
	}

	svc, meta, ok := catalog.FindActivity("embed_and_index")
	if !ok {
		t.Fatal("activity must be found")
	}
	if svc.Name != "embedding-service" || meta.Name != "embed_and_index" {
		t.Errorf("got %s / %s", svc.Name, meta.Name)
	}

	if _, _, ok := catalog.FindActivity("absent"); ok {
		t.Error("absent activity must not be found")
	}
}
