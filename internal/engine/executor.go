package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

// Executor выполняет один узел с таймаутом и retry.
//
// Политика:
//   - каждая попытка получает ctx с таймаутом NodeTimeout;
//   - попытка получает собственную глубокую копию входов — мутации
//     неудачной попытки не протекают в следующую;
//   - retryable-ошибки (*nodes.Error с Retryable, таймаут, прочие
//     инфраструктурные) повторяются до MaxRetries попыток суммарно
//     с экспоненциальным backoff;
//   - non-retryable ошибка прекращает попытки немедленно.
type Executor struct {
	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewExecutor создаёт executor узлов.
func NewExecutor(cfg Config, logger *slog.Logger, metrics *telemetry.Metrics) *Executor {
	return &Executor{cfg: cfg.withDefaults(), logger: logger, metrics: metrics}
}

// Run выполняет узел, возвращая результат последней попытки.
//
// Возвращаемая ошибка — всегда *nodes.Error с заполненным NodeID.
func (e *Executor) Run(ctx context.Context, n *graph.Node, req *nodes.Request) (*nodes.Result, error) {
	logger := telemetry.WithNodeID(e.logger, n.ID())

	var lastErr *nodes.Error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			e.metrics.NodeRetried()
			delay := e.cfg.backoff(attempt)
			logger.Debug("retrying node", "attempt", attempt, "delay", delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &nodes.Error{NodeID: n.ID(), Message: "execution interrupted", Err: ctx.Err()}
			}
		}

		result, err := e.attempt(ctx, n, req)
		if err == nil {
			if verr := validateResult(n, result); verr != nil {
				return nil, verr
			}
			return result, nil
		}

		lastErr = classify(n, err)
		if !lastErr.Retryable {
			break
		}
		logger.Warn("node attempt failed", "attempt", attempt, "error", lastErr)
	}

	return nil, lastErr
}

// attempt выполняет одну попытку с таймаутом и изолированными входами.
func (e *Executor) attempt(ctx context.Context, n *graph.Node, req *nodes.Request) (*nodes.Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.NodeTimeout)
	defer cancel()

	attemptReq := &nodes.Request{
		NodeID:     req.NodeID,
		Inputs:     cloneInputs(req.Inputs),
		Parameters: graph.CloneValue(req.Parameters).(map[string]any),
		Iteration:  req.Iteration,
	}

	start := time.Now()
	result, err := n.Cap.Execute(attemptCtx, attemptReq)

	if err == nil && attemptCtx.Err() != nil {
		// Узел проигнорировал отмену контекста и вернул результат
		// после дедлайна: считаем попытку неуспешной.
		err = attemptCtx.Err()
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	e.metrics.NodeExecuted(n.Desc.Type, outcome, time.Since(start).Seconds())

	return result, err
}

// classify приводит ошибку попытки к *nodes.Error с политикой retry.
func classify(n *graph.Node, err error) *nodes.Error {
	var nodeErr *nodes.Error
	if errors.As(err, &nodeErr) {
		nodeErr.NodeID = n.ID()
		return nodeErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &nodes.Error{
			NodeID:    n.ID(),
			Message:   "node execution timed out",
			Retryable: true,
			Err:       err,
		}
	}

	// Неизвестная ошибка: считаем инфраструктурной и повторяем.
	return &nodes.Error{
		NodeID:    n.ID(),
		Message:   err.Error(),
		Retryable: true,
		Err:       err,
	}
}

// validateResult проверяет контракт результата узла.
func validateResult(n *graph.Node, result *nodes.Result) *nodes.Error {
	if result == nil {
		return &nodes.Error{NodeID: n.ID(), Message: "node returned nil result"}
	}
	for port := range result.Outputs {
		if !n.Desc.HasOutput(port) {
			return &nodes.Error{
				NodeID:  n.ID(),
				Message: fmt.Sprintf("node produced output on undeclared port %q", port),
			}
		}
	}
	if result.SelectedPort != "" && !n.Desc.HasOutput(result.SelectedPort) {
		return &nodes.Error{
			NodeID:  n.ID(),
			Message: fmt.Sprintf("node selected undeclared port %q", result.SelectedPort),
		}
	}
	if n.Desc.Kind == nodes.KindConditional && result.SelectedPort == "" {
		return &nodes.Error{NodeID: n.ID(), Message: "conditional node did not select a port"}
	}
	return nil
}

// cloneInputs возвращает глубокую копию входов узла.
func cloneInputs(inputs map[string][]domain.Item) map[string][]domain.Item {
	if inputs == nil {
		return nil
	}
	out := make(map[string][]domain.Item, len(inputs))
	for port, items := range inputs {
		out[port] = graph.CloneItems(items)
	}
	return out
}
