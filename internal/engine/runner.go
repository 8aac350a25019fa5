package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

// errDrained — запуск прерван остановкой пула; execution возвращён
// в PENDING и будет выполнен заново с trigger payload.
var errDrained = errors.New("execution drained by shutdown")

// runFailure — терминальная ошибка запуска, записанная в execution.
type runFailure struct {
	execErr *domain.ExecutionError

	// triggerID — trigger-узел графа: нужен пулу для сброса execution
	// при run-level retry.
	triggerID string

	// retryable — допускается ли run-level retry (повторная постановка
	// всего запуска в очередь).
	retryable bool
}

func (f *runFailure) Error() string {
	return fmt.Sprintf("execution failed at node %s: %s", f.execErr.NodeID, f.execErr.Message)
}

// runner выполняет один execution от начала до терминального статуса.
//
// Жизненный цикл запуска:
//
//	build graph → [батч: visit → render → execute → record]* → SUCCEEDED
//	                │
//	                ├─ ошибка узла после retry → FAILED (+ run-level retry)
//	                ├─ превышен лимит цикла    → FAILED (фатально)
//	                ├─ запрошена отмена        → CANCELLED
//	                └─ остановка пула          → PENDING (drain)
//
// Снимок NodeOutputs сохраняется после каждого батча.
type runner struct {
	cfg      Config
	store    Store
	registry *nodes.Registry
	executor *Executor
	cancels  *cancelRegistry
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// run выполняет execution. Возвращает nil, если execution доведён
// до терминального статуса и сохранён; errDrained при остановке пула;
// *runFailure при терминальной ошибке — execution уже переведён
// в FAILED, но ещё не сохранён: пул решает, ставить ли запуск
// в очередь повторно, и только при отказе от retry сохраняет FAILED.
func (r *runner) run(ctx context.Context, exec *domain.Execution, wf *domain.Workflow) error {
	logger := telemetry.WithExecutionID(
		telemetry.WithWorkflowID(r.logger, wf.ID.String()), exec.ID.String())

	g, err := graph.Build(wf, r.registry)
	if err != nil {
		// Структурно некорректный workflow: фатально, без retry.
		logger.Error("workflow graph is invalid", "error", err)
		exec.MarkFailed(&domain.ExecutionError{
			Code:    domain.ErrCodeDispatch,
			Message: err.Error(),
		})
		r.finish(ctx, exec, logger)
		return nil
	}

	triggerID := g.Start.ID()
	if _, ok := exec.NodeOutputs[triggerID]; !ok {
		exec.SeedTrigger(triggerID, nodes.PortMain, nil)
	}

	p := graph.NewProgress(g, r.cfg.MaxLoopIterations, exec.NodeOutputs)
	env := processEnv()

	for {
		// Отмена проверяется на границах батчей: выполняющийся батч
		// дорабатывает до конца, его результаты сохраняются.
		if cancelled, err := r.isCancelled(ctx, exec); err == nil && cancelled {
			exec.NodeOutputs = p.Outputs()
			exec.MarkCancelled()
			r.finish(ctx, exec, logger)
			return nil
		}

		if ctx.Err() != nil {
			return r.drain(exec, triggerID, logger)
		}

		batch := p.NextBatch()
		if len(batch) == 0 {
			exec.NodeOutputs = p.Outputs()
			exec.MarkSucceeded()
			r.finish(ctx, exec, logger)
			return nil
		}

		if err := r.runBatch(ctx, exec, p, batch, env, logger); err != nil {
			if errors.Is(err, context.Canceled) {
				return r.drain(exec, triggerID, logger)
			}
			return err
		}

		exec.NodeOutputs = p.Outputs()
		if err := r.store.SaveExecution(ctx, exec); err != nil {
			logger.Error("failed to persist execution snapshot", "error", err)
		}
	}
}

// batchResult — результат выполнения одного узла батча.
type batchResult struct {
	node   *graph.Node
	result *nodes.Result
	err    error
}

// runBatch выполняет все узлы батча (параллельно) и фиксирует
// результаты в порядке батча. Терминальный статус при ошибке
// выставляется здесь, но сохраняет его пул — после решения
// о run-level retry.
func (r *runner) runBatch(ctx context.Context, exec *domain.Execution, p *graph.Progress, batch []*graph.Node, env map[string]string, logger *slog.Logger) error {
	snapshot := p.Outputs()
	results := make([]batchResult, len(batch))

	var loopNode *graph.Node
	var loopErr error

	var wg sync.WaitGroup
	for i, n := range batch {
		iteration, err := p.Visit(n)
		if err != nil {
			// Превышен предел итераций цикла: фатально, остаток
			// батча не запускается.
			loopNode, loopErr = n, err
			break
		}

		if n.Spec.Disabled {
			results[i] = batchResult{node: n, result: passThrough(n, p)}
			continue
		}

		req, err := r.buildRequest(n, p, iteration, snapshot, env)
		if err != nil {
			results[i] = batchResult{node: n, err: &nodes.Error{NodeID: n.ID(), Message: err.Error()}}
			continue
		}

		wg.Add(1)
		go func(i int, n *graph.Node) {
			defer wg.Done()
			result, err := r.executor.Run(ctx, n, req)
			results[i] = batchResult{node: n, result: result, err: err}
		}(i, n)
	}
	// Барьер батча: уже запущенные узлы дорабатывают в любом случае.
	wg.Wait()

	if loopNode != nil {
		exec.NodeOutputs = snapshot
		exec.MarkFailed(&domain.ExecutionError{
			NodeID:  loopNode.ID(),
			Code:    domain.ErrCodeLoopLimit,
			Message: loopErr.Error(),
		})
		return &runFailure{execErr: exec.Error, triggerID: p.TriggerID(), retryable: false}
	}

	var failed *batchResult
	for i := range results {
		br := &results[i]
		if br.node != nil && br.err != nil {
			failed = br
			break
		}
	}

	if failed == nil {
		for i := range results {
			if br := &results[i]; br.node != nil {
				p.Record(br.node, br.result)
			}
		}
		return nil
	}

	if errors.Is(failed.err, context.Canceled) {
		return context.Canceled
	}

	logger.Error("node failed after retries",
		"node_id", failed.node.ID(),
		"error", failed.err,
	)

	// Выходы успешных соседей упавшего батча отбрасываются:
	// в записи остаётся снимок до батча.
	exec.NodeOutputs = snapshot
	exec.MarkFailed(&domain.ExecutionError{
		NodeID:  failed.node.ID(),
		Code:    errorCode(failed.err),
		Message: failed.err.Error(),
	})
	return &runFailure{execErr: exec.Error, triggerID: p.TriggerID(), retryable: true}
}

// buildRequest собирает Request узла: входы с активных рёбер
// и параметры с подставленными шаблонами.
func (r *runner) buildRequest(n *graph.Node, p *graph.Progress, iteration int, snapshot map[string]domain.PortOutputs, env map[string]string) (*nodes.Request, error) {
	data := &graph.TemplateData{
		Trigger: snapshot[p.TriggerID()][nodes.PortMain],
		Nodes:   snapshot,
		Env:     env,
	}

	params, err := graph.RenderParameters(n.Spec.Parameters, data)
	if err != nil {
		return nil, err
	}

	return &nodes.Request{
		NodeID:     n.ID(),
		Inputs:     p.InputsFor(n),
		Parameters: params,
		Iteration:  iteration,
	}, nil
}

// passThrough — результат выключенного узла: вход проходит насквозь
// на все объявленные выходные порты, узел не выполняется.
func passThrough(n *graph.Node, p *graph.Progress) *nodes.Result {
	inputs := p.InputsFor(n)
	var item domain.Item
	for _, items := range inputs {
		if len(items) > 0 {
			item = items[0]
			break
		}
	}
	if item == nil {
		item = make(domain.Item)
	}

	outputs := make(domain.PortOutputs, len(n.Desc.Outputs))
	for _, port := range n.Desc.Outputs {
		outputs[port] = graph.CloneItem(item)
	}
	return &nodes.Result{Outputs: outputs}
}

// drain возвращает execution в PENDING как свежий повторный запуск:
// сохраняется только trigger payload.
func (r *runner) drain(exec *domain.Execution, triggerID string, logger *slog.Logger) error {
	exec.ResetForRetry(triggerID)

	// Остановка процесса: сохраняем с независимым контекстом.
	if err := r.store.SaveExecution(context.Background(), exec); err != nil {
		logger.Error("failed to release execution", "error", err)
	}
	logger.Info("execution released to pending", "attempt", exec.Attempt)
	return errDrained
}

// finish сохраняет терминальный execution и обновляет метрики.
func (r *runner) finish(ctx context.Context, exec *domain.Execution, logger *slog.Logger) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := r.store.SaveExecution(ctx, exec); err != nil {
		logger.Error("failed to persist execution", "error", err)
	}

	r.cancels.Forget(exec.ID)
	r.metrics.ExecutionFinished(string(exec.Status))

	logger.Info("execution finished",
		"status", exec.Status,
		"attempt", exec.Attempt,
		"duration", exec.Duration(),
	)
}

// isCancelled проверяет отмену: сперва локальный реестр, затем
// флаг в хранилище (отмена из другого процесса).
func (r *runner) isCancelled(ctx context.Context, exec *domain.Execution) (bool, error) {
	if r.cancels.IsCancelled(exec.ID) {
		return true, nil
	}
	return r.store.CancelRequested(ctx, exec.ID)
}

// errorCode отображает ошибку узла в код ошибки execution.
func errorCode(err error) domain.ErrorCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrCodeTimeout
	}
	return domain.ErrCodeNodeFailed
}

// processEnv возвращает переменные окружения процесса для шаблонов.
func processEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
