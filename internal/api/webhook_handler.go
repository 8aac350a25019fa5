package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/store"
	"github.com/shaiso/Nodeflow/internal/trigger"
)

// webhookSecretHeader — заголовок с секретом webhook.
const webhookSecretHeader = "X-Webhook-Secret"

// HandleWebhook запускает workflow входящим HTTP-запросом.
// POST /webhook/{path}
//
// Сегмент пути — webhook path workflow или его ID. Тело запроса
// (JSON-объект) становится payload'ом триггера; query-параметры
// добавляются под ключом "query".
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	pathOrID := r.PathValue("path")
	if pathOrID == "" {
		BadRequest(w, "webhook path is required")
		return
	}

	wf, err := trigger.ResolveWebhook(r.Context(), h.workflows, pathOrID)
	if errors.Is(err, store.ErrNotFound) {
		NotFound(w, "webhook not found")
		return
	}
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	if err := trigger.AuthorizeWebhook(wf, r.Header.Get(webhookSecretHeader)); err != nil {
		Unauthorized(w, "invalid webhook secret")
		return
	}

	payload, err := webhookPayload(r)
	if err != nil {
		BadRequest(w, "request body must be a JSON object")
		return
	}

	exec, err := h.engine.TriggerWorkflow(r.Context(), wf.ID, domain.TriggerWebhook, payload)
	if h.handleDispatchError(w, err) {
		return
	}

	Success(w, WebhookResponse{ExecutionID: exec.ID, Status: exec.Status})
}

// webhookPayload собирает payload триггера из тела и query-параметров.
func webhookPayload(r *http.Request) (domain.Item, error) {
	payload := make(domain.Item)

	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return nil, err
		}
	}

	if query := r.URL.Query(); len(query) > 0 {
		params := make(map[string]any, len(query))
		for key, values := range query {
			params[key] = values[0]
		}
		payload["query"] = params
	}

	return payload, nil
}
