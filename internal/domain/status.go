package domain

// RunStatus — статус выполнения pipeline run.
//
// Жизненный цикл:
//
//	RUNNING → COMPLETED
//	        ↘ FAILED
type RunStatus string

const (
	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusCompleted — все шаги завершились успешно.
	RunStatusCompleted RunStatus = "COMPLETED"

	// RunStatusFailed — run прерван ошибкой шага или конфигурации.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// StepStatus — статус одного шага в trace.
type StepStatus string

const (
	// StepStatusCompleted — шаг завершён успешно.
	StepStatusCompleted StepStatus = "COMPLETED"

	// StepStatusFailed — шаг завершился ошибкой (после исчерпания retry).
	StepStatusFailed StepStatus = "FAILED"
)

// ServiceStatus — статус сервиса с точки зрения control plane.
//
// Inactive-сервисы всё равно возвращаются из discovery: каталог activities
// у них есть, просто сейчас нет живых pollers. Это позволяет отличить
// "никогда не разворачивался" от "развёрнут, но временно лежит".
type ServiceStatus string

const (
	// ServiceStatusActive — task queue сервиса имеет хотя бы одного live poller.
	ServiceStatusActive ServiceStatus = "ACTIVE"

	// ServiceStatusInactive — сервис ответил на metadata, но очередь пуста от workers.
	ServiceStatusInactive ServiceStatus = "INACTIVE"
)
