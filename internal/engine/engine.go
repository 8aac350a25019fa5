package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/queue"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

// Engine — фасад ядра выполнения workflow.
//
// Объединяет dispatch (TriggerWorkflow), пул воркеров
// (StartWorker/StopWorker) и отмену запусков (CancelExecution).
// API-слой, cron-планировщик и CLI работают только через Engine.
type Engine struct {
	cfg      Config
	store    Store
	registry *nodes.Registry
	queue    queue.Queue
	pool     *Pool
	cancels  *cancelRegistry
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// Params — зависимости движка.
type Params struct {
	// Config — конфигурация (нулевые поля — значения по умолчанию).
	Config Config

	// Store — хранилище workflow и executions. Обязательно.
	Store Store

	// Registry — реестр типов узлов. Nil — встроенный каталог.
	Registry *nodes.Registry

	// Queue — очередь запусков. Nil — in-memory очередь
	// с ёмкостью Config.QueueCapacity.
	Queue queue.Queue

	// Logger — логгер. Nil — slog.Default().
	Logger *slog.Logger

	// Metrics — метрики Prometheus (опционально).
	Metrics *telemetry.Metrics
}

// New создаёт движок.
func New(p Params) (*Engine, error) {
	cfg := p.Config.withDefaults()

	if p.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}

	registry := p.Registry
	if registry == nil {
		registry = nodes.NewRegistry()
		registry.RegisterDefaults()
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	q := p.Queue
	if q == nil {
		q = queue.NewMemory(cfg.QueueCapacity)
	}

	cancels := newCancelRegistry()

	return &Engine{
		cfg:      cfg,
		store:    p.Store,
		registry: registry,
		queue:    q,
		pool:     newPool(cfg, q, p.Store, registry, cancels, logger, p.Metrics),
		cancels:  cancels,
		logger:   logger,
		metrics:  p.Metrics,
	}, nil
}

// Registry возвращает реестр типов узлов.
func (e *Engine) Registry() *nodes.Registry {
	return e.registry
}

// TriggerWorkflow создаёт execution для workflow и ставит его в очередь.
//
// Вид триггера сверяется с конфигурацией workflow: webhook-запуск
// webhook-workflow, cron-запуск cron-workflow; ручной запуск разрешён
// для любого workflow. Граф валидируется до постановки в очередь —
// структурно некорректный workflow не порождает запусков.
func (e *Engine) TriggerWorkflow(ctx context.Context, workflowID uuid.UUID, kind domain.TriggerKind, payload domain.Item) (*domain.Execution, error) {
	wf, err := e.store.Workflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !wf.IsActive {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrWorkflowInactive)
	}
	if !wf.Trigger.Matches(kind) {
		return nil, fmt.Errorf("workflow %s expects %s trigger: %w", workflowID, wf.Trigger.Kind, ErrTriggerMismatch)
	}

	g, err := graph.Build(wf, e.registry)
	if err != nil {
		return nil, err
	}

	exec := domain.NewExecution(wf.ID, kind)
	exec.SeedTrigger(g.Start.ID(), nodes.PortMain, payload)

	if err := e.store.SaveExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("save execution: %w", err)
	}

	item := domain.QueueItem{
		ExecutionID: exec.ID,
		WorkflowID:  wf.ID,
		Attempt:     1,
		EnqueuedAt:  time.Now(),
	}
	if err := e.queue.Enqueue(ctx, item); err != nil {
		exec.MarkFailed(&domain.ExecutionError{
			Code:    domain.ErrCodeDispatch,
			Message: err.Error(),
		})
		if saveErr := e.store.SaveExecution(ctx, exec); saveErr != nil {
			e.logger.Error("failed to persist dispatch failure", "error", saveErr)
		}
		return nil, fmt.Errorf("enqueue execution: %w", err)
	}

	e.metrics.SetQueueDepth(e.queue.Depth())
	e.logger.Info("execution dispatched",
		"execution_id", exec.ID,
		"workflow_id", wf.ID,
		"trigger_kind", kind,
	)
	return exec, nil
}

// StartWorker запускает пул воркеров.
func (e *Engine) StartWorker(ctx context.Context) error {
	return e.pool.Start(ctx)
}

// StopWorker останавливает пул воркеров (graceful drain).
func (e *Engine) StopWorker() {
	e.pool.Stop()
}

// WorkersRunning возвращает true, если пул воркеров запущен.
func (e *Engine) WorkersRunning() bool {
	return e.pool.IsRunning()
}

// CancelExecution запрашивает отмену execution.
//
// PENDING execution отменяется сразу; RUNNING — кооперативно:
// воркер замечает отмену на границе батчей, уже записанные
// NodeOutputs сохраняются. Отмена завершённого execution — ошибка.
func (e *Engine) CancelExecution(ctx context.Context, id uuid.UUID) error {
	exec, err := e.store.Execution(ctx, id)
	if err != nil {
		return err
	}
	if exec.IsFinished() {
		return fmt.Errorf("execution %s is %s: %w", id, exec.Status, ErrExecutionFinished)
	}

	e.cancels.Cancel(id)
	if err := e.store.RequestCancel(ctx, id); err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}

	if exec.Status == domain.StatusPending {
		exec.MarkCancelled()
		if err := e.store.SaveExecution(ctx, exec); err != nil {
			return fmt.Errorf("save cancelled execution: %w", err)
		}
		e.metrics.ExecutionFinished(string(exec.Status))
	}

	e.logger.Info("execution cancel requested", "execution_id", id, "status", exec.Status)
	return nil
}

// Status — снимок состояния движка для /api/v1/status.
type Status struct {
	WorkersRunning bool `json:"workers_running"`
	Workers        int  `json:"workers"`
	QueueDepth     int  `json:"queue_depth"`
	NodeTypes      int  `json:"node_types"`
}

// Status возвращает текущее состояние движка.
func (e *Engine) Status() Status {
	return Status{
		WorkersRunning: e.pool.IsRunning(),
		Workers:        e.cfg.Workers,
		QueueDepth:     e.queue.Depth(),
		NodeTypes:      e.registry.Count(),
	}
}

// Close останавливает воркеров и закрывает очередь.
func (e *Engine) Close() error {
	e.pool.Stop()
	return e.queue.Close()
}
