package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/queue"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

// Pool — пул воркеров, потребляющих запуски из очереди.
//
// Каждый воркер обрабатывает запуск целиком (все батчи графа);
// параллелизм внутри батча обеспечивает runner. Stop выполняет
// graceful drain: воркеры прерывают текущие запуски, runner
// возвращает их в PENDING, и после рестарта они выполняются заново
// с trigger payload (recover).
type Pool struct {
	cfg      Config
	queue    queue.Queue
	store    Store
	registry *nodes.Registry
	runner   *runner
	logger   *slog.Logger
	metrics  *telemetry.Metrics

	mu         sync.Mutex
	running    bool
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// newPool создаёт пул воркеров. Конфигурация приходит уже
// с заполненными значениями по умолчанию (Engine.New).
func newPool(cfg Config, q queue.Queue, store Store, registry *nodes.Registry, cancels *cancelRegistry, logger *slog.Logger, metrics *telemetry.Metrics) *Pool {
	return &Pool{
		cfg:      cfg,
		queue:    q,
		store:    store,
		registry: registry,
		logger:   logger,
		metrics:  metrics,
		runner: &runner{
			cfg:      cfg,
			store:    store,
			registry: registry,
			executor: NewExecutor(cfg, logger, metrics),
			cancels:  cancels,
			logger:   logger,
			metrics:  metrics,
		},
	}
}

// Start запускает воркеров и восстановление PENDING executions.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPoolRunning
	}
	p.running = true

	ctx, cancel := context.WithCancel(ctx)
	p.cancelFunc = cancel

	p.logger.Info("starting worker pool", "workers", p.cfg.Workers)

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.workerLoop(ctx, id)
		}(i)
	}

	// Подхватываем запуски, оставшиеся PENDING после прошлого процесса.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.recover(ctx)
	}()

	return nil
}

// Stop останавливает пул: воркеры прерывают текущие запуски
// (runner возвращает их в PENDING) и завершаются.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancelFunc
	p.mu.Unlock()

	p.logger.Info("stopping worker pool...")
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// IsRunning возвращает true, если пул запущен.
func (p *Pool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// workerLoop — цикл одного воркера.
func (p *Pool) workerLoop(ctx context.Context, id int) {
	logger := p.logger.With("worker", id)

	for {
		item, err := p.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, queue.ErrClosed) {
				logger.Error("dequeue failed", "error", err)
			}
			return
		}

		p.metrics.SetQueueDepth(p.queue.Depth())
		p.process(ctx, item, logger)
	}
}

// process обрабатывает один элемент очереди.
func (p *Pool) process(ctx context.Context, item domain.QueueItem, logger *slog.Logger) {
	p.metrics.WorkerStarted()
	defer p.metrics.WorkerFinished()

	logger = telemetry.WithExecutionID(logger, item.ExecutionID.String())

	exec, err := p.store.Execution(ctx, item.ExecutionID)
	if err != nil {
		logger.Error("failed to load execution", "error", err)
		return
	}

	// Устаревший элемент (дубликат после recover, отменённый запуск).
	if exec.Status != domain.StatusPending {
		logger.Debug("skipping stale queue item", "status", exec.Status)
		return
	}

	if cancelled, err := p.runner.isCancelled(ctx, exec); err == nil && cancelled {
		exec.MarkCancelled()
		p.runner.finish(ctx, exec, logger)
		return
	}

	wf, err := p.store.Workflow(ctx, exec.WorkflowID)
	if err != nil {
		logger.Error("failed to load workflow", "error", err)
		exec.MarkFailed(&domain.ExecutionError{
			Code:    domain.ErrCodeDispatch,
			Message: "workflow not found: " + err.Error(),
		})
		p.runner.finish(ctx, exec, logger)
		return
	}

	exec.MarkRunning()
	if err := p.store.SaveExecution(ctx, exec); err != nil {
		logger.Error("failed to claim execution", "error", err)
		return
	}

	runErr := p.runner.run(ctx, exec, wf)
	if runErr == nil || errors.Is(runErr, errDrained) {
		return
	}

	var failure *runFailure
	if !errors.As(runErr, &failure) {
		logger.Error("run failed", "error", runErr)
		return
	}

	// Терминальный FAILED сохраняется один раз — после решения
	// о run-level retry: при повторе наблюдатели видят PENDING,
	// а не промежуточный FAILED.
	if failure.retryable && exec.Attempt <= p.cfg.RunRetries {
		p.requeue(exec, failure, logger)
		return
	}
	p.runner.finish(ctx, exec, logger)
}

// requeue ставит неудавшийся запуск в очередь заново: статус обратно
// в PENDING, результаты узлов очищаются до trigger payload, доставка
// откладывается пропорционально номеру попытки.
func (p *Pool) requeue(exec *domain.Execution, failure *runFailure, logger *slog.Logger) {
	failedErr := exec.Error
	exec.ResetForRetry(failure.triggerID)

	ctx := context.Background()
	if err := p.store.SaveExecution(ctx, exec); err != nil {
		logger.Error("failed to reset execution for retry", "error", err)
		return
	}

	item := domain.QueueItem{
		ExecutionID: exec.ID,
		WorkflowID:  exec.WorkflowID,
		Attempt:     exec.Attempt + 1,
		NextRunAt:   time.Now().Add(p.cfg.RunRetryDelay * time.Duration(exec.Attempt)),
		EnqueuedAt:  time.Now(),
	}
	if err := p.queue.Enqueue(ctx, item); err != nil {
		logger.Error("failed to requeue execution", "error", err)
		// Очередь недоступна: возвращаем терминальную ошибку.
		exec.MarkFailed(failedErr)
		p.runner.finish(ctx, exec, logger)
		return
	}

	logger.Info("execution requeued", "attempt", exec.Attempt, "next_run_at", item.NextRunAt)
}

// recover ставит в очередь executions, оставшиеся PENDING
// (после рестарта процесса или graceful drain).
func (p *Pool) recover(ctx context.Context) {
	pending, err := p.store.ListPendingExecutions(ctx, 1000)
	if err != nil {
		p.logger.Error("failed to list pending executions", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	p.logger.Info("recovering pending executions", "count", len(pending))
	for _, exec := range pending {
		item := domain.QueueItem{
			ExecutionID: exec.ID,
			WorkflowID:  exec.WorkflowID,
			Attempt:     exec.Attempt + 1,
			EnqueuedAt:  time.Now(),
		}
		if err := p.queue.Enqueue(ctx, item); err != nil {
			p.logger.Error("failed to recover execution",
				"execution_id", exec.ID, "error", err)
		}
	}
}
