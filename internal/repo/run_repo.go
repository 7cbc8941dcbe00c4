package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Cascade/internal/domain"
)

// RunRepo — репозиторий pipeline runs.
//
// Durability runs — забота gateway, не executor: executor отдаёт
// готовый run, репозиторий его сохраняет. Trace хранится как JSONB
// рядом с run, отдельной таблицы шагов нет.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create сохраняет новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.PipelineRun) error {
	inputJSON, err := json.Marshal(run.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}

	query := `
		INSERT INTO pipeline_runs (id, pipeline, status, input, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.Pipeline,
		run.Status,
		inputJSON,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish записывает терминальное состояние run: статус, trace,
// финальный результат и ошибку.
func (r *RunRepo) Finish(ctx context.Context, run *domain.PipelineRun) error {
	traceJSON, err := json.Marshal(run.Trace)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	resultJSON, err := json.Marshal(run.FinalResult)
	if err != nil {
		return fmt.Errorf("marshal final result: %w", err)
	}

	query := `
		UPDATE pipeline_runs
		SET status = $2, trace = $3, final_result = $4, error = $5, finished_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		traceJSON,
		resultJSON,
		nullString(run.Error),
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PipelineRun, error) {
	query := `
		SELECT id, pipeline, status, input, trace, final_result, error, started_at, finished_at
		FROM pipeline_runs
		WHERE id = $1
	`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// List возвращает runs с фильтрацией, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.PipelineRun, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `
		SELECT id, pipeline, status, input, trace, final_result, error, started_at, finished_at
		FROM pipeline_runs
		WHERE ($1::text IS NULL OR pipeline = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Pipeline),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	Pipeline string
	Status   domain.RunStatus
	Limit    int
	Offset   int
}

// scanRun сканирует одну строку в PipelineRun.
func scanRun(row pgx.Row) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var inputJSON, traceJSON, resultJSON []byte
	var runError *string

	err := row.Scan(
		&run.ID,
		&run.Pipeline,
		&run.Status,
		&inputJSON,
		&traceJSON,
		&resultJSON,
		&runError,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &run.Input); err != nil {
			return nil, fmt.Errorf("unmarshal input: %w", err)
		}
	}
	if traceJSON != nil {
		if err := json.Unmarshal(traceJSON, &run.Trace); err != nil {
			return nil, fmt.Errorf("unmarshal trace: %w", err)
		}
	}
	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &run.FinalResult); err != nil {
			return nil, fmt.Errorf("unmarshal final result: %w", err)
		}
	}
	if runError != nil {
		run.Error = *runError
	}
	return &run, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
