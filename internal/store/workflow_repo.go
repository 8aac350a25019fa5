package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// WorkflowRepo — репозиторий workflows.
//
// Граф (nodes, connections) и конфигурация триггера хранятся как JSONB:
// определение workflow — неделимый документ, движок всегда читает его
// целиком.
type WorkflowRepo struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepo создаёт WorkflowRepo.
func NewWorkflowRepo(pool *pgxpool.Pool) *WorkflowRepo {
	return &WorkflowRepo{pool: pool}
}

const workflowColumns = `id, name, is_active, nodes, connections, trigger, created_at, updated_at`

// Create создаёт workflow.
func (r *WorkflowRepo) Create(ctx context.Context, wf *domain.Workflow) error {
	nodes, connections, trigger, err := marshalDefinition(wf)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (id, name, is_active, nodes, connections, trigger, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		wf.ID, wf.Name, wf.IsActive, nodes, connections, trigger, wf.CreatedAt, wf.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// GetByID возвращает workflow по ID.
func (r *WorkflowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id), "get workflow by id")
}

// GetByWebhookPath возвращает активный workflow с указанным webhook path.
func (r *WorkflowRepo) GetByWebhookPath(ctx context.Context, path string) (*domain.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE is_active AND trigger->>'kind' = 'webhook' AND trigger->>'webhook_path' = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, path), "get workflow by webhook path")
}

// List возвращает все workflows.
func (r *WorkflowRepo) List(ctx context.Context) ([]*domain.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// ListActiveByTriggerKind возвращает активные workflows с указанным
// видом триггера (cron-планировщик синхронизирует по ним расписание).
func (r *WorkflowRepo) ListActiveByTriggerKind(ctx context.Context, kind domain.TriggerKind) ([]*domain.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE is_active AND trigger->>'kind' = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list workflows by trigger kind: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// Update обновляет workflow целиком.
func (r *WorkflowRepo) Update(ctx context.Context, wf *domain.Workflow) error {
	nodes, connections, trigger, err := marshalDefinition(wf)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflows
		SET name = $2, is_active = $3, nodes = $4, connections = $5, trigger = $6, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		wf.ID, wf.Name, wf.IsActive, nodes, connections, trigger,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive включает или выключает workflow.
func (r *WorkflowRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE workflows SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set workflow active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет workflow (каскадно удалит его executions).
func (r *WorkflowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Scan helpers ---

func (r *WorkflowRepo) scanOne(row pgx.Row, op string) (*domain.Workflow, error) {
	wf, err := scanWorkflow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return wf, nil
}

func (r *WorkflowRepo) scanAll(rows pgx.Rows) ([]*domain.Workflow, error) {
	var out []*domain.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

func scanWorkflow(row pgx.Row) (*domain.Workflow, error) {
	var wf domain.Workflow
	var nodes, connections, trigger []byte

	if err := row.Scan(
		&wf.ID, &wf.Name, &wf.IsActive, &nodes, &connections, &trigger,
		&wf.CreatedAt, &wf.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodes, &wf.Nodes); err != nil {
		return nil, fmt.Errorf("unmarshal nodes: %w", err)
	}
	if err := json.Unmarshal(connections, &wf.Connections); err != nil {
		return nil, fmt.Errorf("unmarshal connections: %w", err)
	}
	if err := json.Unmarshal(trigger, &wf.Trigger); err != nil {
		return nil, fmt.Errorf("unmarshal trigger: %w", err)
	}
	return &wf, nil
}

func marshalDefinition(wf *domain.Workflow) (nodes, connections, trigger []byte, err error) {
	if nodes, err = json.Marshal(wf.Nodes); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal nodes: %w", err)
	}
	if connections, err = json.Marshal(wf.Connections); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal connections: %w", err)
	}
	if trigger, err = json.Marshal(wf.Trigger); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal trigger: %w", err)
	}
	return nodes, connections, trigger, nil
}
