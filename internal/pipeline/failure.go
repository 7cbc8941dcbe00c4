package pipeline

import (
	"fmt"

	"github.com/shaiso/Cascade/internal/domain"
)

// Failure — структурированное описание провала pipeline run.
//
// Возвращается вызывающей стороне вместо голого стека, чтобы CLI/HTTP
// слой мог отрисовать осмысленную диагностику. Trace содержит ровно те
// шаги, которые успели завершиться до упавшего.
type Failure struct {
	// Pipeline — имя pipeline.
	Pipeline string `json:"pipeline"`

	// FailedAtStep — индекс упавшего шага (-1, если до шагов не дошло).
	FailedAtStep int `json:"failed_at_step"`

	// Activity — имя activity упавшего шага (пустое для ошибок резолва pipeline).
	Activity string `json:"activity,omitempty"`

	// Kind — вид ошибки.
	Kind domain.ErrorKind `json:"error_kind"`

	// Message — человекочитаемое описание.
	Message string `json:"message"`

	// FailedStep — запись об упавшем шаге (nil для ошибок конфигурации).
	FailedStep *domain.StepResult `json:"failed_step,omitempty"`

	// Trace — шаги, завершившиеся до провала.
	Trace []domain.StepResult `json:"step_trace,omitempty"`
}

// Error реализует error.
func (f *Failure) Error() string {
	if f.Activity == "" {
		return fmt.Sprintf("pipeline %s: %s: %s", f.Pipeline, f.Kind, f.Message)
	}
	return fmt.Sprintf("pipeline %s step %d (%s): %s: %s",
		f.Pipeline, f.FailedAtStep, f.Activity, f.Kind, f.Message)
}
