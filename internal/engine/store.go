package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Store — хранилище workflow и executions, от которого зависит движок.
//
// Продакшен-реализация — пакет store (PostgreSQL/pgx); тесты используют
// in-memory двойник. Движок не владеет схемой хранения: он читает
// workflow, сохраняет снимки execution после каждого батча и проверяет
// флаг отмены.
type Store interface {
	// Workflow возвращает workflow по ID.
	Workflow(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)

	// Execution возвращает execution по ID.
	Execution(ctx context.Context, id uuid.UUID) (*domain.Execution, error)

	// SaveExecution сохраняет execution (insert или update).
	SaveExecution(ctx context.Context, exec *domain.Execution) error

	// ListPendingExecutions возвращает PENDING executions workflow'ов —
	// для повторной постановки в очередь после рестарта процесса.
	ListPendingExecutions(ctx context.Context, limit int) ([]*domain.Execution, error)

	// RequestCancel взводит флаг отмены execution.
	RequestCancel(ctx context.Context, id uuid.UUID) error

	// CancelRequested проверяет флаг отмены (для отмены из другого
	// процесса).
	CancelRequested(ctx context.Context, id uuid.UUID) (bool, error)
}
