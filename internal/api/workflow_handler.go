package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/trigger"
)

// ListWorkflows возвращает список всех workflows.
// GET /api/v1/workflows
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.workflows.List(r.Context())
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	result := make([]WorkflowResponse, len(workflows))
	for i, wf := range workflows {
		result[i] = WorkflowFromDomain(wf)
	}

	List(w, result, len(result))
}

// CreateWorkflow создаёт новый workflow.
// POST /api/v1/workflows
//
// Определение валидируется целиком: ответ 422 содержит ВСЕ
// найденные нарушения графа, а не только первое.
func (h *Handler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	cfg, err := h.triggerFromRequest(req.Trigger)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	now := time.Now()
	wf := &domain.Workflow{
		ID:          uuid.New(),
		Name:        req.Name,
		IsActive:    false,
		Nodes:       req.Nodes,
		Connections: req.Connections,
		Trigger:     cfg,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if h.rejectInvalid(w, wf) {
		return
	}

	if err := h.workflows.Create(r.Context(), wf); err != nil {
		HandleStoreError(w, h.logger, err, "")
		return
	}

	Created(w, WorkflowFromDomain(wf))
}

// GetWorkflow возвращает workflow по ID.
// GET /api/v1/workflows/{id}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "workflow not found") {
		return
	}

	Success(w, WorkflowFromDomain(wf))
}

// UpdateWorkflow обновляет workflow.
// PUT /api/v1/workflows/{id}
func (h *Handler) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	var req UpdateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "workflow not found") {
		return
	}

	if req.Name != nil {
		wf.Name = *req.Name
	}
	if req.Nodes != nil {
		wf.Nodes = *req.Nodes
	}
	if req.Connections != nil {
		wf.Connections = *req.Connections
	}
	if req.Trigger != nil {
		cfg, err := h.triggerFromRequest(*req.Trigger)
		if err != nil {
			InternalError(w, h.logger, err)
			return
		}
		// Пустой секрет в запросе сохраняет текущий.
		if req.Trigger.WebhookSecret == "" {
			cfg.WebhookSecretHash = wf.Trigger.WebhookSecretHash
		}
		wf.Trigger = cfg
	}

	if h.rejectInvalid(w, wf) {
		return
	}

	if err := h.workflows.Update(r.Context(), wf); err != nil {
		HandleStoreError(w, h.logger, err, "workflow not found")
		return
	}

	Success(w, WorkflowFromDomain(wf))
}

// SetWorkflowActive включает или выключает workflow.
// PUT /api/v1/workflows/{id}/active
func (h *Handler) SetWorkflowActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.IsActive {
		// Активировать можно только структурно корректный workflow.
		wf, err := h.workflows.GetByID(r.Context(), id)
		if HandleStoreError(w, h.logger, err, "workflow not found") {
			return
		}
		if h.rejectInvalid(w, wf) {
			return
		}
	}

	if err := h.workflows.SetActive(r.Context(), id, req.IsActive); err != nil {
		HandleStoreError(w, h.logger, err, "workflow not found")
		return
	}

	NoContent(w)
}

// DeleteWorkflow удаляет workflow вместе с его executions.
// DELETE /api/v1/workflows/{id}
func (h *Handler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow id")
		return
	}

	if err := h.workflows.Delete(r.Context(), id); err != nil {
		HandleStoreError(w, h.logger, err, "workflow not found")
		return
	}

	NoContent(w)
}

// ValidateWorkflow валидирует определение workflow без сохранения.
// POST /api/v1/workflows/validate
func (h *Handler) ValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	wf := &domain.Workflow{
		ID:          uuid.New(),
		Name:        req.Name,
		Nodes:       req.Nodes,
		Connections: req.Connections,
		Trigger: domain.TriggerConfig{
			Kind:        req.Trigger.Kind,
			WebhookPath: req.Trigger.WebhookPath,
			CronExpr:    req.Trigger.CronExpr,
		},
	}

	if verr := h.validateDefinition(wf); verr != nil {
		ValidationFailed(w, verr)
		return
	}
	Success(w, map[string]bool{"valid": true})
}

// --- Validation helpers ---

// triggerFromRequest строит TriggerConfig, хэшируя секрет webhook.
func (h *Handler) triggerFromRequest(req TriggerRequest) (domain.TriggerConfig, error) {
	cfg := domain.TriggerConfig{
		Kind:        req.Kind,
		WebhookPath: req.WebhookPath,
		CronExpr:    req.CronExpr,
	}
	if req.WebhookSecret != "" {
		hash, err := trigger.HashSecret(req.WebhookSecret)
		if err != nil {
			return domain.TriggerConfig{}, err
		}
		cfg.WebhookSecretHash = hash
	}
	return cfg, nil
}

// validateDefinition собирает все нарушения определения workflow:
// конфигурацию триггера и структуру графа.
func (h *Handler) validateDefinition(wf *domain.Workflow) *graph.ValidationError {
	verr := &graph.ValidationError{}

	if !wf.Trigger.Kind.IsValid() {
		verr.Violations = append(verr.Violations, graph.Violation{
			Field:   "trigger",
			Message: "unknown trigger kind " + string(wf.Trigger.Kind),
		})
	}
	if wf.Trigger.Kind == domain.TriggerCron {
		if err := trigger.ValidateCronExpr(wf.Trigger.CronExpr); err != nil {
			verr.Violations = append(verr.Violations, graph.Violation{
				Field:   "trigger",
				Message: err.Error(),
			})
		}
	}

	if _, err := graph.Build(wf, h.registry); err != nil {
		var gerr *graph.ValidationError
		if errors.As(err, &gerr) {
			verr.Violations = append(verr.Violations, gerr.Violations...)
		} else {
			verr.Violations = append(verr.Violations, graph.Violation{
				Field:   "nodes",
				Message: err.Error(),
			})
		}
	}

	if len(verr.Violations) == 0 {
		return nil
	}
	return verr
}

// rejectInvalid отвечает 422 со списком нарушений, если определение
// некорректно.
func (h *Handler) rejectInvalid(w http.ResponseWriter, wf *domain.Workflow) bool {
	if verr := h.validateDefinition(wf); verr != nil {
		ValidationFailed(w, verr)
		return true
	}
	return false
}
