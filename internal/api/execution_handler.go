package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/queue"
	"github.com/shaiso/Nodeflow/internal/store"
)

// ListExecutions возвращает список executions.
// GET /api/v1/executions?workflow_id=&status=&limit=
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	var filter store.ListFilter

	if raw := r.URL.Query().Get("workflow_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			BadRequest(w, "invalid workflow_id")
			return
		}
		filter.WorkflowID = id
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.ExecutionStatus(raw)
		if !status.IsValid() {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	executions, err := h.executions.List(r.Context(), filter)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	result := make([]ExecutionResponse, len(executions))
	for i, exec := range executions {
		result[i] = ExecutionFromDomain(exec)
	}

	List(w, result, len(result))
}

// GetExecution возвращает execution по ID.
// GET /api/v1/executions/{id}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	exec, err := h.executions.GetByID(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "execution not found") {
		return
	}

	Success(w, ExecutionFromDomain(exec))
}

// CancelExecution запрашивает отмену execution.
// POST /api/v1/executions/{id}/cancel
func (h *Handler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	if err := h.engine.CancelExecution(r.Context(), id); err != nil {
		if errors.Is(err, engine.ErrExecutionFinished) {
			InvalidState(w, err.Error())
			return
		}
		HandleStoreError(w, h.logger, err, "execution not found")
		return
	}

	NoContent(w)
}

// RunWorkflow запускает workflow вручную.
// POST /api/v1/workflows/{id}/run
func (h *Handler) RunWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	var req RunWorkflowRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	exec, err := h.engine.TriggerWorkflow(r.Context(), id, domain.TriggerManual, req.Payload)
	if h.handleDispatchError(w, err) {
		return
	}

	Created(w, ExecutionFromDomain(exec))
}

// GetStatus возвращает состояние движка.
// GET /api/v1/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	Success(w, h.engine.Status())
}

// ListNodeTypes возвращает каталог зарегистрированных типов узлов.
// GET /api/v1/node-types
func (h *Handler) ListNodeTypes(w http.ResponseWriter, r *http.Request) {
	types := h.registry.Types()
	List(w, types, len(types))
}

// handleDispatchError преобразует ошибку dispatch в HTTP ответ.
func (h *Handler) handleDispatchError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}

	var verr *graph.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		NotFound(w, "workflow not found")
	case errors.Is(err, engine.ErrWorkflowInactive),
		errors.Is(err, engine.ErrTriggerMismatch):
		Conflict(w, err.Error())
	case errors.As(err, &verr):
		ValidationFailed(w, verr)
	case errors.Is(err, queue.ErrFull):
		Error(w, http.StatusServiceUnavailable, ErrCodeInternalError, "execution queue is full")
	default:
		InternalError(w, h.logger, err)
	}
	return true
}
