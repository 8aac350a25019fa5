package domain

// ExecutionStatus — статус выполнения execution.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type ExecutionStatus string

const (
	// StatusPending — execution создан и поставлен в очередь,
	// но ещё не взят воркером.
	StatusPending ExecutionStatus = "PENDING"

	// StatusRunning — execution обрабатывается воркером.
	StatusRunning ExecutionStatus = "RUNNING"

	// StatusSucceeded — все достижимые узлы выполнены успешно.
	StatusSucceeded ExecutionStatus = "SUCCEEDED"

	// StatusFailed — выполнение завершилось ошибкой (после всех retry).
	StatusFailed ExecutionStatus = "FAILED"

	// StatusCancelled — выполнение отменено пользователем.
	StatusCancelled ExecutionStatus = "CANCELLED"
)

// IsValid проверяет, что статус известен.
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ErrorCode — код ошибки, записанный в терминальный execution.
type ErrorCode string

const (
	// ErrCodeNodeFailed — узел завершился ошибкой после всех retry.
	ErrCodeNodeFailed ErrorCode = "NODE_FAILED"

	// ErrCodeTimeout — узел не уложился в таймаут (после всех retry).
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeLoopLimit — loop-controller превысил предел итераций.
	ErrCodeLoopLimit ErrorCode = "LOOP_LIMIT_EXCEEDED"

	// ErrCodeDispatch — ошибка на этапе dispatch (до начала выполнения).
	ErrCodeDispatch ErrorCode = "DISPATCH_FAILED"
)
