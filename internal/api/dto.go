package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Workflow DTOs

// TriggerRequest — конфигурация триггера в запросах.
// Секрет webhook принимается открытым текстом и хэшируется перед
// сохранением; наружу хэш не отдаётся.
type TriggerRequest struct {
	Kind          domain.TriggerKind `json:"kind"`
	WebhookPath   string             `json:"webhook_path,omitempty"`
	WebhookSecret string             `json:"webhook_secret,omitempty"`
	CronExpr      string             `json:"cron_expr,omitempty"`
}

// CreateWorkflowRequest — запрос на создание workflow.
type CreateWorkflowRequest struct {
	Name        string              `json:"name"`
	Nodes       []domain.NodeSpec   `json:"nodes"`
	Connections []domain.Connection `json:"connections"`
	Trigger     TriggerRequest      `json:"trigger"`
}

// UpdateWorkflowRequest — запрос на обновление workflow.
// Nil-поля не изменяются.
type UpdateWorkflowRequest struct {
	Name        *string              `json:"name,omitempty"`
	Nodes       *[]domain.NodeSpec   `json:"nodes,omitempty"`
	Connections *[]domain.Connection `json:"connections,omitempty"`
	Trigger     *TriggerRequest      `json:"trigger,omitempty"`
}

// SetActiveRequest — запрос на активацию/деактивацию workflow.
type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// TriggerResponse — конфигурация триггера в ответах (без секрета).
type TriggerResponse struct {
	Kind        domain.TriggerKind `json:"kind"`
	WebhookPath string             `json:"webhook_path,omitempty"`
	HasSecret   bool               `json:"has_secret,omitempty"`
	CronExpr    string             `json:"cron_expr,omitempty"`
}

// WorkflowResponse — ответ с workflow.
type WorkflowResponse struct {
	ID          uuid.UUID           `json:"id"`
	Name        string              `json:"name"`
	IsActive    bool                `json:"is_active"`
	Nodes       []domain.NodeSpec   `json:"nodes"`
	Connections []domain.Connection `json:"connections"`
	Trigger     TriggerResponse     `json:"trigger"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// WorkflowFromDomain конвертирует domain.Workflow в WorkflowResponse.
func WorkflowFromDomain(wf *domain.Workflow) WorkflowResponse {
	return WorkflowResponse{
		ID:          wf.ID,
		Name:        wf.Name,
		IsActive:    wf.IsActive,
		Nodes:       wf.Nodes,
		Connections: wf.Connections,
		Trigger: TriggerResponse{
			Kind:        wf.Trigger.Kind,
			WebhookPath: wf.Trigger.WebhookPath,
			HasSecret:   wf.Trigger.WebhookSecretHash != "",
			CronExpr:    wf.Trigger.CronExpr,
		},
		CreatedAt: wf.CreatedAt,
		UpdatedAt: wf.UpdatedAt,
	}
}

// Execution DTOs

// RunWorkflowRequest — запрос на ручной запуск workflow.
type RunWorkflowRequest struct {
	Payload domain.Item `json:"payload,omitempty"`
}

// ExecutionErrorDetail — причина неудачи execution.
type ExecutionErrorDetail struct {
	NodeID  string `json:"node_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExecutionResponse — ответ с execution.
type ExecutionResponse struct {
	ID          uuid.UUID                     `json:"id"`
	WorkflowID  uuid.UUID                     `json:"workflow_id"`
	TriggerKind domain.TriggerKind            `json:"trigger_kind"`
	Status      domain.ExecutionStatus        `json:"status"`
	NodeOutputs map[string]domain.PortOutputs `json:"node_outputs,omitempty"`
	Attempt     int                           `json:"attempt"`
	Error       *ExecutionErrorDetail         `json:"error,omitempty"`
	StartedAt   *time.Time                    `json:"started_at,omitempty"`
	FinishedAt  *time.Time                    `json:"finished_at,omitempty"`
	CreatedAt   time.Time                     `json:"created_at"`
}

// ExecutionFromDomain конвертирует domain.Execution в ExecutionResponse.
func ExecutionFromDomain(exec *domain.Execution) ExecutionResponse {
	resp := ExecutionResponse{
		ID:          exec.ID,
		WorkflowID:  exec.WorkflowID,
		TriggerKind: exec.TriggerKind,
		Status:      exec.Status,
		NodeOutputs: exec.NodeOutputs,
		Attempt:     exec.Attempt,
		StartedAt:   exec.StartedAt,
		FinishedAt:  exec.FinishedAt,
		CreatedAt:   exec.CreatedAt,
	}
	if exec.Error != nil {
		resp.Error = &ExecutionErrorDetail{
			NodeID:  exec.Error.NodeID,
			Code:    string(exec.Error.Code),
			Message: exec.Error.Message,
		}
	}
	return resp
}

// WebhookResponse — ответ webhook-запуска.
type WebhookResponse struct {
	ExecutionID uuid.UUID              `json:"execution_id"`
	Status      domain.ExecutionStatus `json:"status"`
}
