package domain

import (
	"time"

	"github.com/google/uuid"
)

// Item — единица данных, передаваемая между узлами.
// Произвольный JSON-объект (ключ → значение).
type Item = map[string]any

// PortOutputs — результаты узла по выходным портам: порт → item.
// Узел производит ровно один item на каждый активированный выходной порт.
type PortOutputs = map[string]Item

// Execution — один запуск workflow.
//
// Execution создаётся Trigger Dispatcher'ом когда:
//   - Приходит HTTP-запрос на /webhook/{workflowId}
//   - Cron-планировщик синтезирует запуск по расписанию
//   - Пользователь запускает workflow вручную (API/CLI)
//
// Мутируется исключительно воркером, который его обрабатывает;
// после терминального статуса — архивная запись.
type Execution struct {
	// ID — глобально уникальный идентификатор execution.
	ID uuid.UUID `json:"id"`

	// WorkflowID — ссылка на запущенный workflow.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// TriggerKind — как был запущен execution.
	TriggerKind TriggerKind `json:"trigger_kind"`

	// Status — текущий статус выполнения.
	Status ExecutionStatus `json:"status"`

	// NodeOutputs — результаты узлов: nodeID → порт → item.
	// Append-only в течение запуска. Для trigger-узла заполняется
	// payload'ом при dispatch.
	NodeOutputs map[string]PortOutputs `json:"node_outputs,omitempty"`

	// Attempt — номер run-level попытки (начиная с 1).
	// Увеличивается при повторной постановке в очередь после ошибки.
	Attempt int `json:"attempt"`

	// Error — причина неудачи для StatusFailed.
	Error *ExecutionError `json:"error,omitempty"`

	// StartedAt — время перехода в RUNNING. Nil, если ещё не начался.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения. Nil, если ещё выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания execution.
	CreatedAt time.Time `json:"created_at"`
}

// ExecutionError — причина терминальной ошибки execution.
type ExecutionError struct {
	// NodeID — узел, вызвавший ошибку (пустой для run-level ошибок
	// без конкретного узла).
	NodeID string `json:"node_id,omitempty"`

	// Code — код ошибки.
	Code ErrorCode `json:"code"`

	// Message — текст ошибки.
	Message string `json:"message"`
}

// NewExecution создаёт PENDING execution для workflow.
func NewExecution(workflowID uuid.UUID, kind TriggerKind) *Execution {
	return &Execution{
		ID:          uuid.New(),
		WorkflowID:  workflowID,
		TriggerKind: kind,
		Status:      StatusPending,
		NodeOutputs: make(map[string]PortOutputs),
		Attempt:     0,
		CreatedAt:   time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если execution ещё не завершён.
func (e *Execution) Duration() time.Duration {
	if e.StartedAt == nil || e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(*e.StartedAt)
}

// IsFinished возвращает true, если execution завершён (в любом статусе).
func (e *Execution) IsFinished() bool {
	return e.Status.IsTerminal()
}

// MarkRunning переводит execution в RUNNING и увеличивает Attempt.
func (e *Execution) MarkRunning() {
	now := time.Now()
	e.Status = StatusRunning
	if e.StartedAt == nil {
		e.StartedAt = &now
	}
	e.Attempt++
}

// MarkSucceeded переводит execution в SUCCEEDED.
func (e *Execution) MarkSucceeded() {
	now := time.Now()
	e.Status = StatusSucceeded
	e.FinishedAt = &now
}

// MarkFailed переводит execution в FAILED с причиной.
func (e *Execution) MarkFailed(execErr *ExecutionError) {
	now := time.Now()
	e.Status = StatusFailed
	e.FinishedAt = &now
	e.Error = execErr
}

// MarkCancelled переводит execution в CANCELLED.
// Уже записанные NodeOutputs сохраняются.
func (e *Execution) MarkCancelled() {
	now := time.Now()
	e.Status = StatusCancelled
	e.FinishedAt = &now
}

// ResetForRetry подготавливает execution к run-level retry:
// статус обратно в PENDING, результаты узлов очищаются — кроме
// trigger-узла, чей payload засеян при dispatch.
func (e *Execution) ResetForRetry(triggerNodeID string) {
	e.Status = StatusPending
	e.Error = nil
	e.StartedAt = nil
	e.FinishedAt = nil

	seed := e.NodeOutputs[triggerNodeID]
	e.NodeOutputs = make(map[string]PortOutputs)
	if seed != nil {
		e.NodeOutputs[triggerNodeID] = seed
	}
}

// SeedTrigger записывает payload триггера как результат trigger-узла.
func (e *Execution) SeedTrigger(triggerNodeID, port string, payload Item) {
	if payload == nil {
		payload = make(Item)
	}
	e.NodeOutputs[triggerNodeID] = PortOutputs{port: payload}
}

// QueueItem — элемент очереди выполнения.
//
// Ссылается на execution по ID: воркер загружает актуальное состояние
// из хранилища при claim. Пока элемент в очереди, им владеет
// исключительно очередь; после claim — ровно один воркер.
type QueueItem struct {
	// ExecutionID — ссылка на execution.
	ExecutionID uuid.UUID `json:"execution_id"`

	// WorkflowID — ссылка на workflow (избавляет от лишнего чтения БД).
	WorkflowID uuid.UUID `json:"workflow_id"`

	// Attempt — номер run-level попытки, для которой элемент поставлен.
	Attempt int `json:"attempt"`

	// NextRunAt — не обрабатывать раньше этого времени (retry backoff).
	// Zero — обрабатывать немедленно.
	NextRunAt time.Time `json:"next_run_at,omitempty"`

	// EnqueuedAt — время постановки в очередь.
	EnqueuedAt time.Time `json:"enqueued_at"`
}
