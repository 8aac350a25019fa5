package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// HTTPRequest — узел "http.request": выполняет HTTP-запрос.
//
// Parameters:
//   - method (string): HTTP-метод (GET, POST, PUT, DELETE). Default: GET
//   - url (string): URL запроса (обязательно)
//   - headers (map): HTTP-заголовки
//   - body (any): тело запроса (сериализуется в JSON)
//
// Output (main):
//   - status_code (int): HTTP-код ответа
//   - headers (map[string]string): заголовки ответа
//   - body (any): тело ответа (JSON или строка)
//
// Сетевые ошибки и ответы 5xx/429 — retryable, остальные 4xx — нет.
type HTTPRequest struct {
	// Client — HTTP-клиент. Nil — http.DefaultClient.
	// Таймаут навешивает executor через ctx, свой не задаём.
	Client *http.Client
}

// Describe возвращает декларацию типа.
func (n *HTTPRequest) Describe() Descriptor {
	return Descriptor{
		Type:    "http.request",
		Kind:    KindAction,
		Inputs:  []string{PortMain},
		Outputs: []string{PortMain},
	}
}

// Execute выполняет HTTP-запрос.
func (n *HTTPRequest) Execute(ctx context.Context, req *Request) (*Result, error) {
	method := ParamString(req.Parameters, "method")
	if method == "" {
		method = http.MethodGet
	}

	url := ParamString(req.Parameters, "url")
	if url == "" {
		return nil, Errorf("url is required")
	}

	var bodyReader io.Reader
	if body, ok := req.Parameters["body"]; ok && body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, Errorf("marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, Errorf("create request: %v", err)
	}

	for key, val := range ParamStringMap(req.Parameters, "headers") {
		httpReq.Header.Set(key, val)
	}
	if bodyReader != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		// Сетевая ошибка — повторяемая.
		return nil, Retryablef("http request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Retryablef("read response: %v", err)
	}

	if resp.StatusCode >= 400 {
		nodeErr := &Error{
			Message:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
			Retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
		return nil, nodeErr
	}

	return &Result{
		Outputs: domain.PortOutputs{PortMain: buildHTTPOutput(resp, respBody)},
	}, nil
}

// buildHTTPOutput формирует item из HTTP-ответа.
func buildHTTPOutput(resp *http.Response, body []byte) domain.Item {
	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	// Пробуем распарсить body как JSON, иначе оставляем строкой.
	var parsedBody any
	if err := json.Unmarshal(body, &parsedBody); err != nil {
		parsedBody = string(body)
	}

	return domain.Item{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        parsedBody,
	}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
