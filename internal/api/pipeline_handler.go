package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shaiso/Cascade/internal/pipeline"
)

// ListPipelines возвращает определения всех сконфигурированных pipelines.
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Current()
	if err != nil {
		Unavailable(w, "no configuration loaded")
		return
	}

	defs := snap.Pipelines()
	List(w, defs, len(defs))
}

// ExecutePipeline запускает pipeline синхронно и возвращает результат run.
//
// Тело запроса — произвольный JSON: его форма интерпретируется только
// transform первого шага. Пустое тело эквивалентно null.
func (h *Handler) ExecutePipeline(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var input any
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 10<<20))
	if err != nil {
		BadRequest(w, "read body: "+err.Error())
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &input); err != nil {
			BadRequest(w, "body must be valid JSON: "+err.Error())
			return
		}
	}

	run, execErr := h.executor.Execute(r.Context(), name, input)
	h.persist(r.Context(), run)

	if execErr == nil {
		Success(w, run)
		return
	}

	var failure *pipeline.Failure
	if errors.As(execErr, &failure) {
		// Провал резолва (неизвестный pipeline или activity) — 404,
		// провал выполнения — 422 со структурированной диагностикой.
		status := http.StatusUnprocessableEntity
		if failure.FailedAtStep < 0 {
			status = http.StatusNotFound
		}
		Error(w, status, ErrCodePipelineFailed, failure.Message, failure)
		return
	}

	InternalError(w, h.logger, execErr)
}
