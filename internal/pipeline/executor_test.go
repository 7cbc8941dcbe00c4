package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Cascade/internal/activity"
	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/transform"
)

// fakeInvoker записывает вызовы и отвечает через fn (или успехом).
type fakeInvoker struct {
	mu    sync.Mutex
	calls []invocation
	fn    func(desc domain.ActivityDescriptor, args []any) (any, error)
}

type invocation struct {
	activity string
	args     []any
}

func (f *fakeInvoker) Invoke(_ context.Context, desc domain.ActivityDescriptor, args []any) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, invocation{activity: desc.Name, args: args})
	f.mu.Unlock()

	if f.fn != nil {
		return f.fn(desc, args)
	}
	return map[string]any{"status": "success"}, nil
}

func (f *fakeInvoker) invocations() []invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]invocation(nil), f.calls...)
}

// testSnapshot — конфигурация с двухшаговым document_processing
// и одношаговым document_retrieval.
func testSnapshot() *config.Snapshot {
	activities := map[string]domain.ActivityDescriptor{
		"chunk_documents": {
			Name:    "chunk_documents",
			Kind:    domain.ExecutionLocal,
			Timeout: time.Minute,
			Retry:   domain.RetryPolicy{}.Normalize(),
		},
		"embed_and_index": {
			Name:      "embed_and_index",
			Kind:      domain.ExecutionRemote,
			TaskQueue: "embedding-task-queue",
			Timeout:   time.Minute,
			Retry:     domain.RetryPolicy{}.Normalize(),
		},
		"search_documents": {
			Name:      "search_documents",
			Kind:      domain.ExecutionRemote,
			TaskQueue: "embedding-task-queue",
			Timeout:   time.Minute,
			Retry:     domain.RetryPolicy{}.Normalize(),
		},
	}
	pipelines := map[string]domain.PipelineDefinition{
		"document_processing": {
			Name: "document_processing",
			Steps: []domain.Step{
				{Activity: "chunk_documents", Transform: transform.NameDocuments},
				{Activity: "embed_and_index", Transform: transform.NameChunkedWithCollection},
			},
		},
		"document_retrieval": {
			Name: "document_retrieval",
			Steps: []domain.Step{
				{Activity: "search_documents", Transform: transform.NameQueryWithCollection},
			},
		},
	}
	return config.NewSnapshot(config.SourceStatic, "test", activities, pipelines)
}

func newTestExecutor(snap *config.Snapshot, local, remote Invoker) *Executor {
	return NewExecutor(
		config.NewStore(snap),
		transform.DefaultRegistry(slog.Default()),
		local,
		remote,
		slog.Default(),
	)
}

// --- Executor Tests ---

func TestExecutor_DocumentProcessingFlow(t *testing.T) {
	chunks := []any{
		map[string]any{"document_id": "doc1", "chunk_id": "doc1:0", "text": "Paragraph one."},
		map[string]any{"document_id": "doc1", "chunk_id": "doc1:1", "text": "Paragraph two."},
	}
	indexSummary := map[string]any{"status": "success", "indexed_count": 2, "collection": "test"}

	local := &fakeInvoker{fn: func(_ domain.ActivityDescriptor, _ []any) (any, error) {
		return chunks, nil
	}}
	remote := &fakeInvoker{fn: func(_ domain.ActivityDescriptor, _ []any) (any, error) {
		return indexSummary, nil
	}}
	executor := newTestExecutor(testSnapshot(), local, remote)

	input := map[string]any{
		"documents":  []any{map[string]any{"id": "doc1", "text": "Paragraph one.\n\nParagraph two."}},
		"collection": "test",
	}

	run, err := executor.Execute(context.Background(), "document_processing", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.Status != domain.RunStatusCompleted {
		t.Errorf("Status = %s, want %s", run.Status, domain.RunStatusCompleted)
	}
	if !reflect.DeepEqual(run.FinalResult, indexSummary) {
		t.Errorf("FinalResult = %v, want indexing summary", run.FinalResult)
	}
	if run.FinishedAt == nil {
		t.Error("FinishedAt must be set for a terminal run")
	}

	// Шаг индексации получает [chunks, collection] из результата chunking
	remoteCalls := remote.invocations()
	if len(remoteCalls) != 1 {
		t.Fatalf("expected 1 remote invocation, got %d", len(remoteCalls))
	}
	wantArgs := []any{chunks, "test"}
	if !reflect.DeepEqual(remoteCalls[0].args, wantArgs) {
		t.Errorf("remote args = %v, want %v", remoteCalls[0].args, wantArgs)
	}

	// Trace: оба шага завершены, в порядке выполнения
	if len(run.Trace) != 2 {
		t.Fatalf("expected 2 trace entries, got %d", len(run.Trace))
	}
	for i, want := range []string{"chunk_documents", "embed_and_index"} {
		entry := run.Trace[i]
		if entry.Activity != want || entry.Status != domain.StepStatusCompleted || entry.StepIndex != i {
			t.Errorf("trace[%d] = %+v, want completed %s at index %d", i, entry, want, i)
		}
	}
}

func TestExecutor_StepsRunStrictlySequentially(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	// Первый шаг медленный: при нарушении порядка второй завершился бы раньше
	local := &fakeInvoker{fn: func(desc domain.ActivityDescriptor, _ []any) (any, error) {
		time.Sleep(50 * time.Millisecond)
		record(desc.Name)
		return []any{}, nil
	}}
	remote := &fakeInvoker{fn: func(desc domain.ActivityDescriptor, _ []any) (any, error) {
		record(desc.Name)
		return map[string]any{}, nil
	}}
	executor := newTestExecutor(testSnapshot(), local, remote)

	if _, err := executor.Execute(context.Background(), "document_processing", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"chunk_documents", "embed_and_index"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("execution order = %v, want %v", order, want)
	}
}

func TestExecutor_UnknownPipeline(t *testing.T) {
	local := &fakeInvoker{}
	remote := &fakeInvoker{}
	executor := newTestExecutor(testSnapshot(), local, remote)

	run, err := executor.Execute(context.Background(), "no_such_pipeline", nil)
	if err == nil {
		t.Fatal("expected error")
	}

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %T", err)
	}
	if failure.Kind != domain.ErrorKindConfiguration {
		t.Errorf("Kind = %s, want %s", failure.Kind, domain.ErrorKindConfiguration)
	}
	if failure.FailedAtStep != -1 {
		t.Errorf("FailedAtStep = %d, want -1", failure.FailedAtStep)
	}
	if run.Status != domain.RunStatusFailed {
		t.Errorf("Status = %s, want %s", run.Status, domain.RunStatusFailed)
	}
	if len(local.invocations())+len(remote.invocations()) != 0 {
		t.Error("no activity may be invoked for an unresolvable pipeline")
	}
}

func TestExecutor_MissingDescriptorFailsBeforeAnyInvocation(t *testing.T) {
	// document_processing ссылается на embed_and_index, которого нет в снимке
	snap := testSnapshot()
	broken := config.NewSnapshot(config.SourceStatic, "test",
		map[string]domain.ActivityDescriptor{
			"chunk_documents": {Name: "chunk_documents", Kind: domain.ExecutionLocal},
		},
		map[string]domain.PipelineDefinition{
			"document_processing": mustPipeline(t, snap, "document_processing"),
		},
	)

	local := &fakeInvoker{}
	remote := &fakeInvoker{}
	executor := newTestExecutor(broken, local, remote)

	_, err := executor.Execute(context.Background(), "document_processing", nil)

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %T", err)
	}
	if failure.Kind != domain.ErrorKindConfiguration {
		t.Errorf("Kind = %s, want %s", failure.Kind, domain.ErrorKindConfiguration)
	}
	if !strings.Contains(failure.Message, "embed_and_index") {
		t.Errorf("message must name the missing activity, got %q", failure.Message)
	}
	// Дескрипторы резолвятся до первого вызова: первый шаг валиден,
	// но выполняться не должен
	if len(local.invocations()) != 0 {
		t.Error("resolvable first step must not run when a later step cannot resolve")
	}
}

func TestExecutor_ActivityFailureProducesPartialTrace(t *testing.T) {
	local := &fakeInvoker{fn: func(_ domain.ActivityDescriptor, _ []any) (any, error) {
		return []any{map[string]any{"chunk_id": "a:0", "text": "t"}}, nil
	}}
	remote := &fakeInvoker{fn: func(_ domain.ActivityDescriptor, _ []any) (any, error) {
		return nil, fmt.Errorf("after 2 attempts: %w", context.DeadlineExceeded)
	}}
	executor := newTestExecutor(testSnapshot(), local, remote)

	run, err := executor.Execute(context.Background(), "document_processing", nil)

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %T", err)
	}
	if failure.Kind != domain.ErrorKindActivityExecution {
		t.Errorf("Kind = %s, want %s", failure.Kind, domain.ErrorKindActivityExecution)
	}
	if failure.FailedAtStep != 1 || failure.Activity != "embed_and_index" {
		t.Errorf("failed at %d (%s), want 1 (embed_and_index)", failure.FailedAtStep, failure.Activity)
	}

	// Trace содержит ровно завершившиеся до провала шаги
	if len(failure.Trace) != 1 {
		t.Fatalf("expected 1 completed trace entry, got %d", len(failure.Trace))
	}
	if failure.Trace[0].Activity != "chunk_documents" || failure.Trace[0].Status != domain.StepStatusCompleted {
		t.Errorf("trace[0] = %+v", failure.Trace[0])
	}

	// Упавший шаг — отдельной записью
	if failure.FailedStep == nil {
		t.Fatal("FailedStep must be set for a runtime failure")
	}
	if failure.FailedStep.Status != domain.StepStatusFailed || failure.FailedStep.StepIndex != 1 {
		t.Errorf("FailedStep = %+v", failure.FailedStep)
	}

	if run.Status != domain.RunStatusFailed {
		t.Errorf("Status = %s, want %s", run.Status, domain.RunStatusFailed)
	}
	if run.FinalResult != nil {
		t.Error("failed run must not carry a final result")
	}
}

func TestExecutor_TransformFailure(t *testing.T) {
	local := &fakeInvoker{}
	remote := &fakeInvoker{}
	executor := newTestExecutor(testSnapshot(), local, remote)

	// 42 не нормализуется query_with_collection
	_, err := executor.Execute(context.Background(), "document_retrieval", 42)

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %T", err)
	}
	if failure.Kind != domain.ErrorKindTransform {
		t.Errorf("Kind = %s, want %s", failure.Kind, domain.ErrorKindTransform)
	}
	if failure.FailedAtStep != 0 {
		t.Errorf("FailedAtStep = %d, want 0", failure.FailedAtStep)
	}
	if len(remote.invocations()) != 0 {
		t.Error("activity must not be invoked when its transform fails")
	}
}

func TestExecutor_RetrievalArgsNormalized(t *testing.T) {
	local := &fakeInvoker{}
	remote := &fakeInvoker{fn: func(_ domain.ActivityDescriptor, _ []any) (any, error) {
		return map[string]any{"retrieved_documents": []any{}, "count": 0}, nil
	}}
	executor := newTestExecutor(testSnapshot(), local, remote)

	input := map[string]any{"query": "machine learning", "collection": "docs"}
	if _, err := executor.Execute(context.Background(), "document_retrieval", input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := remote.invocations()
	if len(calls) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(calls))
	}
	want := []any{"machine learning", "docs", 10}
	if !reflect.DeepEqual(calls[0].args, want) {
		t.Errorf("args = %v, want %v", calls[0].args, want)
	}
}

func TestExecutor_MidRunSwapDoesNotChangeCollection(t *testing.T) {
	store := config.NewStore(testSnapshot())
	chunks := []any{map[string]any{"chunk_id": "doc1:0", "text": "t"}}

	// Первый шаг подменяет снимок на версию с другой default collection
	local := &fakeInvoker{fn: func(_ domain.ActivityDescriptor, _ []any) (any, error) {
		swapped := testSnapshot()
		swapped.DefaultCollection = "other"
		store.Swap(swapped)
		return chunks, nil
	}}
	remote := &fakeInvoker{fn: func(_ domain.ActivityDescriptor, _ []any) (any, error) {
		return map[string]any{"status": "success"}, nil
	}}
	executor := NewExecutor(
		store,
		transform.DefaultRegistry(slog.Default()),
		local,
		remote,
		slog.Default(),
	)

	// Вход без collection: transform второго шага берёт default collection
	input := map[string]any{
		"documents": []any{map[string]any{"id": "doc1", "text": "Paragraph one."}},
	}
	if _, err := executor.Execute(context.Background(), "document_processing", input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Run работает со снимком, взятым при резолве, а не с подменённым
	calls := remote.invocations()
	if len(calls) != 1 {
		t.Fatalf("expected 1 remote invocation, got %d", len(calls))
	}
	want := []any{chunks, "test"}
	if !reflect.DeepEqual(calls[0].args, want) {
		t.Errorf("remote args = %v, want %v", calls[0].args, want)
	}
}

func TestExecutor_EmptyStore(t *testing.T) {
	executor := NewExecutor(
		config.NewStore(nil),
		transform.DefaultRegistry(slog.Default()),
		&fakeInvoker{},
		&fakeInvoker{},
		slog.Default(),
	)

	_, err := executor.Execute(context.Background(), "document_processing", nil)

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *Failure, got %T", err)
	}
	if failure.Kind != domain.ErrorKindConfiguration {
		t.Errorf("Kind = %s, want %s", failure.Kind, domain.ErrorKindConfiguration)
	}
}

// --- classify Tests ---

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"configuration", fmt.Errorf("wrap: %w", config.ErrActivityNotFound), domain.ErrorKindConfiguration},
		{"missing local activity", fmt.Errorf("wrap: %w", activity.ErrActivityNotFound), domain.ErrorKindConfiguration},
		{"transform", fmt.Errorf("wrap: %w", transform.ErrTransform), domain.ErrorKindTransform},
		{"anything else", errors.New("boom"), domain.ErrorKindActivityExecution},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify(tc.err); got != tc.want {
				t.Errorf("classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

// --- summarize Tests ---

func TestSummarize(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "nil"},
		{"short", `"short"`},
		{strings.Repeat("x", 100), "string(100 chars)"},
		{[]any{1, 2, 3}, "list(3 items)"},
		{map[string]any{"b": 1, "a": 2}, "map{a, b}"},
		{42, "int"},
	}

	for _, tc := range cases {
		if got := summarize(tc.in); got != tc.want {
			t.Errorf("summarize(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func mustPipeline(t *testing.T, snap *config.Snapshot, name string) domain.PipelineDefinition {
	t.Helper()
	def, err := snap.GetPipelineDefinition(name)
	if err != nil {
		t.Fatalf("pipeline %s: %v", name, err)
	}
	return def
}
