package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TriggerResponse — конфигурация триггера из API.
type TriggerResponse struct {
	Kind        string `json:"kind"`
	WebhookPath string `json:"webhook_path,omitempty"`
	HasSecret   bool   `json:"has_secret,omitempty"`
	CronExpr    string `json:"cron_expr,omitempty"`
}

// WorkflowResponse — workflow из API.
type WorkflowResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	IsActive    bool             `json:"is_active"`
	Nodes       []map[string]any `json:"nodes"`
	Connections []map[string]any `json:"connections"`
	Trigger     TriggerResponse  `json:"trigger"`
	CreatedAt   string           `json:"created_at"`
	UpdatedAt   string           `json:"updated_at"`
}

// ExecutionErrorResponse — ошибка execution из API.
type ExecutionErrorResponse struct {
	NodeID  string `json:"node_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExecutionResponse — execution из API.
type ExecutionResponse struct {
	ID          string                    `json:"id"`
	WorkflowID  string                    `json:"workflow_id"`
	TriggerKind string                    `json:"trigger_kind"`
	Status      string                    `json:"status"`
	NodeOutputs map[string]map[string]any `json:"node_outputs,omitempty"`
	Attempt     int                       `json:"attempt"`
	Error       *ExecutionErrorResponse   `json:"error,omitempty"`
	StartedAt   string                    `json:"started_at,omitempty"`
	FinishedAt  string                    `json:"finished_at,omitempty"`
	CreatedAt   string                    `json:"created_at"`
}

// StatusResponse — состояние движка из API.
type StatusResponse struct {
	WorkersRunning bool `json:"workers_running"`
	Workers        int  `json:"workers"`
	QueueDepth     int  `json:"queue_depth"`
	NodeTypes      int  `json:"node_types"`
}

// ListExecutionsOpts — параметры фильтрации executions.
type ListExecutionsOpts struct {
	WorkflowID string
	Status     string
	Limit      int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		Violations []struct {
			NodeID  string `json:"node_id,omitempty"`
			Field   string `json:"field,omitempty"`
			Message string `json:"message"`
		} `json:"violations,omitempty"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Nodeflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Workflows ---

// ListWorkflows возвращает все workflows.
func (c *Client) ListWorkflows() ([]WorkflowResponse, error) {
	var workflows []WorkflowResponse
	err := c.list("/api/v1/workflows", nil, &workflows)
	return workflows, err
}

// CreateWorkflow создаёт workflow из JSON-определения.
func (c *Client) CreateWorkflow(definition json.RawMessage) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.post("/api/v1/workflows", definition, &wf)
	return &wf, err
}

// ValidateWorkflow валидирует JSON-определение без сохранения.
func (c *Client) ValidateWorkflow(definition json.RawMessage) error {
	return c.post("/api/v1/workflows/validate", definition, nil)
}

// GetWorkflow возвращает workflow по ID.
func (c *Client) GetWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.get("/api/v1/workflows/"+id, &wf)
	return &wf, err
}

// UpdateWorkflow обновляет workflow из JSON-определения.
func (c *Client) UpdateWorkflow(id string, definition json.RawMessage) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.put("/api/v1/workflows/"+id, definition, &wf)
	return &wf, err
}

// SetWorkflowActive включает или выключает workflow.
func (c *Client) SetWorkflowActive(id string, active bool) error {
	body := map[string]bool{"is_active": active}
	return c.put("/api/v1/workflows/"+id+"/active", body, nil)
}

// DeleteWorkflow удаляет workflow.
func (c *Client) DeleteWorkflow(id string) error {
	return c.delete("/api/v1/workflows/" + id)
}

// RunWorkflow запускает workflow вручную.
func (c *Client) RunWorkflow(id string, payload map[string]any) (*ExecutionResponse, error) {
	body := map[string]any{"payload": payload}
	var exec ExecutionResponse
	err := c.post("/api/v1/workflows/"+id+"/run", body, &exec)
	return &exec, err
}

// --- Executions ---

// ListExecutions возвращает список executions с фильтрацией.
func (c *Client) ListExecutions(opts ListExecutionsOpts) ([]ExecutionResponse, error) {
	params := url.Values{}
	if opts.WorkflowID != "" {
		params.Set("workflow_id", opts.WorkflowID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var executions []ExecutionResponse
	err := c.list("/api/v1/executions", params, &executions)
	return executions, err
}

// GetExecution возвращает execution по ID.
func (c *Client) GetExecution(id string) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.get("/api/v1/executions/"+id, &exec)
	return &exec, err
}

// CancelExecution запрашивает отмену execution.
func (c *Client) CancelExecution(id string) error {
	return c.post("/api/v1/executions/"+id+"/cancel", nil, nil)
}

// --- Service ---

// GetStatus возвращает состояние движка.
func (c *Client) GetStatus() (*StatusResponse, error) {
	var status StatusResponse
	err := c.get("/api/v1/status", &status)
	return &status, err
}

// ListNodeTypes возвращает каталог типов узлов.
func (c *Client) ListNodeTypes() ([]string, error) {
	var types []string
	err := c.list("/api/v1/node-types", nil, &types)
	return types, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(lr.Data) == 0 || string(lr.Data) == "null" {
		return nil
	}
	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		switch b := body.(type) {
		case json.RawMessage:
			bodyReader = bytes.NewReader(b)
		default:
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request: %w", err)
			}
			bodyReader = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	if len(er.Error.Violations) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "%s: %s", er.Error.Code, er.Error.Message)
		for _, v := range er.Error.Violations {
			b.WriteString("\n  - ")
			if v.NodeID != "" {
				b.WriteString("node " + v.NodeID + ": ")
			}
			b.WriteString(v.Message)
		}
		return fmt.Errorf("%s", b.String())
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
