package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/store"
)

// Engine — часть движка, нужная API-слою.
type Engine interface {
	TriggerWorkflow(ctx context.Context, workflowID uuid.UUID, kind domain.TriggerKind, payload domain.Item) (*domain.Execution, error)
	CancelExecution(ctx context.Context, id uuid.UUID) error
	Status() engine.Status
}

// Workflows — операции хранилища workflow, нужные API-слою.
// Реализуется store.WorkflowRepo.
type Workflows interface {
	Create(ctx context.Context, wf *domain.Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
	GetByWebhookPath(ctx context.Context, path string) (*domain.Workflow, error)
	List(ctx context.Context) ([]*domain.Workflow, error)
	Update(ctx context.Context, wf *domain.Workflow) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Executions — операции хранилища executions, нужные API-слою.
// Реализуется store.ExecutionRepo.
type Executions interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error)
	List(ctx context.Context, filter store.ListFilter) ([]*domain.Execution, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine     Engine
	workflows  Workflows
	executions Executions
	registry   *nodes.Registry
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Engine     Engine
	Workflows  Workflows
	Executions Executions
	Registry   *nodes.Registry
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		engine:     cfg.Engine,
		workflows:  cfg.Workflows,
		executions: cfg.Executions,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
	}
}
