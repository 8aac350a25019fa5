package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Store объединяет репозитории и реализует engine.Store.
type Store struct {
	Workflows  *WorkflowRepo
	Executions *ExecutionRepo
}

// New создаёт Store поверх пула соединений.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Workflows:  NewWorkflowRepo(pool),
		Executions: NewExecutionRepo(pool),
	}
}

// Workflow реализует engine.Store.
func (s *Store) Workflow(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	return s.Workflows.GetByID(ctx, id)
}

// Execution реализует engine.Store.
func (s *Store) Execution(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	return s.Executions.GetByID(ctx, id)
}

// SaveExecution реализует engine.Store.
func (s *Store) SaveExecution(ctx context.Context, exec *domain.Execution) error {
	return s.Executions.Save(ctx, exec)
}

// ListPendingExecutions реализует engine.Store.
func (s *Store) ListPendingExecutions(ctx context.Context, limit int) ([]*domain.Execution, error) {
	return s.Executions.ListPending(ctx, limit)
}

// RequestCancel реализует engine.Store.
func (s *Store) RequestCancel(ctx context.Context, id uuid.UUID) error {
	return s.Executions.RequestCancel(ctx, id)
}

// CancelRequested реализует engine.Store.
func (s *Store) CancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.Executions.CancelRequested(ctx, id)
}
