package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepResult — одна запись в trace выполнения pipeline.
type StepResult struct {
	// StepIndex — позиция шага в PipelineDefinition.Steps (с нуля).
	StepIndex int `json:"step_index"`

	// Activity — имя выполненной activity.
	Activity string `json:"activity"`

	// Status — COMPLETED или FAILED.
	Status StepStatus `json:"status"`

	// Summary — краткое описание результата (для диагностики, не сам результат).
	Summary string `json:"summary,omitempty"`

	// Error — текст ошибки для упавшего шага.
	Error string `json:"error,omitempty"`

	// Duration — продолжительность выполнения шага.
	Duration time.Duration `json:"duration"`
}

// PipelineRun — экземпляр выполнения pipeline.
//
// Создаётся при вызове Execute, мутируется шаг за шагом и становится
// терминальным (COMPLETED/FAILED), когда цикл шагов закончился или упал.
// Executor владеет run на время выполнения; durability обеспечивает repo.
type PipelineRun struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Pipeline — имя выполняемого pipeline.
	Pipeline string `json:"pipeline"`

	// Status — текущий статус.
	Status RunStatus `json:"status"`

	// Input — исходный вход pipeline (как его передал клиент).
	Input any `json:"input,omitempty"`

	// Trace — записи о выполненных шагах в порядке выполнения.
	Trace []StepResult `json:"trace,omitempty"`

	// FinalResult — результат последнего шага (только для COMPLETED).
	FinalResult any `json:"final_result,omitempty"`

	// Error — текст ошибки для FAILED.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения. Nil, пока run выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewPipelineRun создаёт run в статусе RUNNING.
func NewPipelineRun(pipeline string, input any) *PipelineRun {
	return &PipelineRun{
		ID:        uuid.New(),
		Pipeline:  pipeline,
		Status:    RunStatusRunning,
		Input:     input,
		StartedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *PipelineRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StepsCompleted возвращает количество успешно завершённых шагов.
func (r *PipelineRun) StepsCompleted() int {
	n := 0
	for _, s := range r.Trace {
		if s.Status == StepStatusCompleted {
			n++
		}
	}
	return n
}

// AppendStep добавляет запись в trace.
func (r *PipelineRun) AppendStep(result StepResult) {
	r.Trace = append(r.Trace, result)
}

// MarkCompleted переводит run в COMPLETED с финальным результатом.
func (r *PipelineRun) MarkCompleted(finalResult any) {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.FinalResult = finalResult
	r.FinishedAt = &now
}

// MarkFailed переводит run в FAILED с ошибкой.
func (r *PipelineRun) MarkFailed(errMsg string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.Error = errMsg
	r.FinishedAt = &now
}
