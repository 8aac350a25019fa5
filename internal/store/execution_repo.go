package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// ExecutionRepo — репозиторий executions.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

const executionColumns = `id, workflow_id, trigger_kind, status, node_outputs, attempt, error, started_at, finished_at, created_at`

// Save сохраняет execution (upsert: воркер перезаписывает снимок
// после каждого батча).
func (r *ExecutionRepo) Save(ctx context.Context, exec *domain.Execution) error {
	outputs, err := json.Marshal(exec.NodeOutputs)
	if err != nil {
		return fmt.Errorf("marshal node outputs: %w", err)
	}

	var execErr []byte
	if exec.Error != nil {
		if execErr, err = json.Marshal(exec.Error); err != nil {
			return fmt.Errorf("marshal execution error: %w", err)
		}
	}

	query := `
		INSERT INTO executions (id, workflow_id, trigger_kind, status, node_outputs, attempt, error, started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			node_outputs = EXCLUDED.node_outputs,
			attempt = EXCLUDED.attempt,
			error = EXCLUDED.error,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at
	`
	_, err = r.pool.Exec(ctx, query,
		exec.ID, exec.WorkflowID, string(exec.TriggerKind), string(exec.Status),
		outputs, exec.Attempt, execErr, exec.StartedAt, exec.FinishedAt, exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save execution: %w", err)
	}
	return nil
}

// GetByID возвращает execution по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	exec, err := scanExecution(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution by id: %w", err)
	}
	return exec, nil
}

// ListFilter — фильтр списка executions.
type ListFilter struct {
	// WorkflowID — только executions этого workflow (uuid.Nil — все).
	WorkflowID uuid.UUID

	// Status — только executions в этом статусе (пустой — все).
	Status domain.ExecutionStatus

	// Limit — максимум записей (<= 0 — 100).
	Limit int
}

// List возвращает executions по фильтру, новые первыми.
func (r *ExecutionRepo) List(ctx context.Context, filter ListFilter) ([]*domain.Execution, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + executionColumns + ` FROM executions WHERE TRUE`
	args := []any{}

	if filter.WorkflowID != uuid.Nil {
		args = append(args, filter.WorkflowID)
		query += fmt.Sprintf(" AND workflow_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

// ListPending возвращает PENDING executions, старые первыми —
// для recover после рестарта процесса.
func (r *ExecutionRepo) ListPending(ctx context.Context, limit int) ([]*domain.Execution, error) {
	out, err := r.List(ctx, ListFilter{Status: domain.StatusPending, Limit: limit})
	if err != nil {
		return nil, err
	}
	// List отдаёт новые первыми; recover честнее в порядке создания.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// RequestCancel взводит флаг отмены execution.
func (r *ExecutionRepo) RequestCancel(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE executions SET cancel_requested = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelRequested проверяет флаг отмены.
func (r *ExecutionRepo) CancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	var requested bool
	err := r.pool.QueryRow(ctx,
		`SELECT cancel_requested FROM executions WHERE id = $1`, id).Scan(&requested)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get cancel flag: %w", err)
	}
	return requested, nil
}

func scanExecution(row pgx.Row) (*domain.Execution, error) {
	var exec domain.Execution
	var outputs, execErr []byte

	if err := row.Scan(
		&exec.ID, &exec.WorkflowID, &exec.TriggerKind, &exec.Status,
		&outputs, &exec.Attempt, &execErr, &exec.StartedAt, &exec.FinishedAt, &exec.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(outputs, &exec.NodeOutputs); err != nil {
		return nil, fmt.Errorf("unmarshal node outputs: %w", err)
	}
	if len(execErr) > 0 {
		exec.Error = &domain.ExecutionError{}
		if err := json.Unmarshal(execErr, exec.Error); err != nil {
			return nil, fmt.Errorf("unmarshal execution error: %w", err)
		}
	}
	return &exec, nil
}
