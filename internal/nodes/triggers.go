package nodes

import (
	"context"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Trigger-узлы не выполняются воркером в обычном цикле: Dispatcher
// засевает их результат payload'ом при создании execution, и
// планировщик сразу считает trigger-узел посещённым. Execute
// реализован для полноты контракта (и синтетических запусков в тестах):
// возвращает payload из параметров как item порта main.

// triggerResult — общая реализация Execute для триггеров.
func triggerResult(req *Request) (*Result, error) {
	payload := ParamMap(req.Parameters, "payload")
	if payload == nil {
		payload = make(domain.Item)
	}
	return &Result{Outputs: domain.PortOutputs{PortMain: payload}}, nil
}

// WebhookTrigger — триггер входящим HTTP-запросом.
//
// Payload — тело запроса POST /webhook/{workflowId}.
type WebhookTrigger struct{}

// Describe возвращает декларацию типа.
func (t *WebhookTrigger) Describe() Descriptor {
	return Descriptor{
		Type:    "trigger.webhook",
		Kind:    KindTrigger,
		Outputs: []string{PortMain},
	}
}

// Execute возвращает payload как item порта main.
func (t *WebhookTrigger) Execute(_ context.Context, req *Request) (*Result, error) {
	return triggerResult(req)
}

// CronTrigger — триггер по cron-расписанию.
//
// Payload — {"fired_at": RFC3339} от планировщика.
type CronTrigger struct{}

// Describe возвращает декларацию типа.
func (t *CronTrigger) Describe() Descriptor {
	return Descriptor{
		Type:    "trigger.cron",
		Kind:    KindTrigger,
		Outputs: []string{PortMain},
	}
}

// Execute возвращает payload как item порта main.
func (t *CronTrigger) Execute(_ context.Context, req *Request) (*Result, error) {
	return triggerResult(req)
}

// ManualTrigger — ручной запуск через API/CLI.
type ManualTrigger struct{}

// Describe возвращает декларацию типа.
func (t *ManualTrigger) Describe() Descriptor {
	return Descriptor{
		Type:    "trigger.manual",
		Kind:    KindTrigger,
		Outputs: []string{PortMain},
	}
}

// Execute возвращает payload как item порта main.
func (t *ManualTrigger) Execute(_ context.Context, req *Request) (*Result, error) {
	return triggerResult(req)
}
