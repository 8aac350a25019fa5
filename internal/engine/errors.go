package engine

import "errors"

// Ошибки движка.
var (
	// ErrWorkflowInactive — workflow выключен и не принимает запуски.
	ErrWorkflowInactive = errors.New("workflow is not active")

	// ErrTriggerMismatch — вид триггера не совпадает с конфигурацией
	// workflow (ручной запуск разрешён всегда).
	ErrTriggerMismatch = errors.New("trigger kind does not match workflow trigger")

	// ErrPoolStopped — пул воркеров остановлен, запуск не принят.
	ErrPoolStopped = errors.New("worker pool is stopped")

	// ErrPoolRunning — пул воркеров уже запущен.
	ErrPoolRunning = errors.New("worker pool is already running")

	// ErrExecutionFinished — операция над уже завершённым execution.
	ErrExecutionFinished = errors.New("execution already finished")
)
