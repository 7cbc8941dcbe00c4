package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shaiso/Cascade/internal/activity"
	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/telemetry"
	"github.com/shaiso/Cascade/internal/transform"
)

// Executor выполняет pipelines: шаг за шагом, строго последовательно.
//
// Внутри одного run параллелизма нет: шаг N+1 получает сырой результат
// шага N. Разные runs выполняются конкурентно; общее состояние между
// ними — только read-mostly снимок конфигурации и реестр transforms.
type Executor struct {
	store      *config.Store
	transforms *transform.Registry
	local      Invoker
	remote     Invoker
	log        *slog.Logger
}

// NewExecutor создаёт executor.
func NewExecutor(store *config.Store, transforms *transform.Registry, local, remote Invoker, log *slog.Logger) *Executor {
	return &Executor{
		store:      store,
		transforms: transforms,
		local:      local,
		remote:     remote,
		log:        log,
	}
}

// resolvedStep — шаг с заранее разрешёнными дескриптором и transform.
type resolvedStep struct {
	step      domain.Step
	desc      domain.ActivityDescriptor
	transform transform.Fn
}

// Execute выполняет pipeline от начала до конца.
//
// Резолв всех дескрипторов происходит до первого вызова: отсутствие
// конфигурации — ошибка деплоя, и падать надо до того, как хоть одна
// activity успела выполниться. При провале возвращается run в статусе
// FAILED и ошибка *Failure с частичным trace.
func (e *Executor) Execute(ctx context.Context, pipelineName string, input any) (*domain.PipelineRun, error) {
	run := domain.NewPipelineRun(pipelineName, input)
	log := e.log.With(
		slog.String("run_id", run.ID.String()),
		slog.String("pipeline", pipelineName),
	)

	telemetry.RunsStarted.WithLabelValues(pipelineName).Inc()
	log.Info("pipeline run started")

	steps, defaultCollection, err := e.resolve(pipelineName)
	if err != nil {
		return run, e.fail(run, log, &Failure{
			Pipeline:     pipelineName,
			FailedAtStep: -1,
			Kind:         domain.ErrorKindConfiguration,
			Message:      err.Error(),
		})
	}

	currentData := input
	for i, rs := range steps {
		stepLog := log.With(
			slog.Int("step", i),
			slog.String("activity", rs.desc.Name),
		)

		args, err := rs.transform(currentData, rs.step, input, defaultCollection)
		if err != nil {
			return run, e.fail(run, log, &Failure{
				Pipeline:     pipelineName,
				FailedAtStep: i,
				Activity:     rs.desc.Name,
				Kind:         domain.ErrorKindTransform,
				Message:      err.Error(),
				FailedStep:   failedStep(i, rs.desc.Name, err, 0),
				Trace:        run.Trace,
			})
		}

		invoker := e.local
		if rs.desc.IsRemote() {
			invoker = e.remote
		}

		started := time.Now()
		result, err := invoker.Invoke(ctx, rs.desc, args)
		elapsed := time.Since(started)
		telemetry.StepDuration.WithLabelValues(pipelineName, rs.desc.Name).Observe(elapsed.Seconds())

		if err != nil {
			return run, e.fail(run, log, &Failure{
				Pipeline:     pipelineName,
				FailedAtStep: i,
				Activity:     rs.desc.Name,
				Kind:         classify(err),
				Message:      err.Error(),
				FailedStep:   failedStep(i, rs.desc.Name, err, elapsed),
				Trace:        run.Trace,
			})
		}

		run.AppendStep(domain.StepResult{
			StepIndex: i,
			Activity:  rs.desc.Name,
			Status:    domain.StepStatusCompleted,
			Summary:   summarize(result),
			Duration:  elapsed,
		})
		stepLog.Info("step completed", slog.Duration("duration", elapsed))

		currentData = result
	}

	run.MarkCompleted(currentData)
	telemetry.RunsCompleted.WithLabelValues(pipelineName).Inc()
	log.Info("pipeline run completed",
		slog.Int("steps", len(run.Trace)),
		slog.Duration("duration", run.Duration()),
	)
	return run, nil
}

// resolve разрешает определение pipeline и дескрипторы всех его шагов.
// Любой промах — ошибка конфигурации до единого вызова activity.
//
// Возвращает и default collection того же снимка: run от начала до
// конца работает с одним снимком, даже если его подменили посреди
// выполнения.
func (e *Executor) resolve(pipelineName string) ([]resolvedStep, string, error) {
	snap, err := e.store.Current()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	def, err := snap.GetPipelineDefinition(pipelineName)
	if err != nil {
		return nil, "", err
	}

	steps := make([]resolvedStep, 0, len(def.Steps))
	for _, step := range def.Steps {
		desc, err := snap.GetActivityDescriptor(step.Activity)
		if err != nil {
			return nil, "", err
		}
		steps = append(steps, resolvedStep{
			step:      step,
			desc:      desc,
			transform: e.transforms.Get(step.Transform),
		})
	}
	return steps, snap.DefaultCollection, nil
}

// fail переводит run в FAILED и возвращает failure как error.
func (e *Executor) fail(run *domain.PipelineRun, log *slog.Logger, f *Failure) error {
	run.MarkFailed(f.Error())
	telemetry.RunsFailed.WithLabelValues(f.Pipeline, string(f.Kind)).Inc()
	log.Error("pipeline run failed",
		slog.String("error_kind", string(f.Kind)),
		slog.Int("failed_at_step", f.FailedAtStep),
		slog.String("error", f.Message),
	)
	return f
}

// classify определяет вид ошибки по её цепочке.
func classify(err error) domain.ErrorKind {
	switch {
	case errors.Is(err, config.ErrConfiguration), errors.Is(err, activity.ErrActivityNotFound):
		return domain.ErrorKindConfiguration
	case errors.Is(err, transform.ErrTransform):
		return domain.ErrorKindTransform
	default:
		return domain.ErrorKindActivityExecution
	}
}

// failedStep строит trace-запись для упавшего шага.
func failedStep(index int, activityName string, err error, elapsed time.Duration) *domain.StepResult {
	return &domain.StepResult{
		StepIndex: index,
		Activity:  activityName,
		Status:    domain.StepStatusFailed,
		Error:     err.Error(),
		Duration:  elapsed,
	}
}

// summarize строит короткое описание результата шага для trace.
// Сам результат в trace не кладётся: он может быть большим.
func summarize(result any) string {
	switch v := result.(type) {
	case nil:
		return "nil"
	case string:
		if len(v) > 64 {
			return fmt.Sprintf("string(%d chars)", len(v))
		}
		return fmt.Sprintf("%q", v)
	case []any:
		return fmt.Sprintf("list(%d items)", len(v))
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "map{" + strings.Join(keys, ", ") + "}"
	default:
		return fmt.Sprintf("%T", result)
	}
}
