package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/repo"
)

// persist сохраняет терминальный run, если репозиторий подключён.
// Ошибка сохранения не ломает ответ клиенту: run уже выполнился.
func (h *Handler) persist(ctx context.Context, run *domain.PipelineRun) {
	if h.runs == nil || run == nil {
		return
	}
	if err := h.runs.Create(ctx, run); err != nil {
		h.logger.Error("failed to persist run", "run_id", run.ID, "error", err)
		return
	}
	if run.Status.IsTerminal() {
		if err := h.runs.Finish(ctx, run); err != nil {
			h.logger.Error("failed to persist run result", "run_id", run.ID, "error", err)
		}
	}
}

// GetRun возвращает run по ID.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		Unavailable(w, "run history is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}
	Success(w, run)
}

// ListRuns возвращает историю runs с фильтрацией по pipeline и статусу.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		Unavailable(w, "run history is not configured")
		return
	}

	filter := repo.RunFilter{
		Pipeline: r.URL.Query().Get("pipeline"),
		Status:   domain.RunStatus(r.URL.Query().Get("status")),
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	List(w, runs, len(runs))
}

// Healthz — liveness probe gateway.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// queryInt читает целочисленный query-параметр.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
