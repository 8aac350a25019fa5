package domain

import (
	"time"

	"github.com/google/uuid"
)

// Workflow — определение рабочего процесса.
//
// Workflow — это граф из узлов (nodes) и соединений (connections).
// Узлы делятся на trigger (запускают выполнение) и action
// (преобразуют данные, могут ветвиться и зацикливаться).
//
// После публикации определение считается неизменяемым для движка:
// выполнение (Execution) всегда работает с той версией графа,
// которая была загружена при dispatch.
type Workflow struct {
	// ID — уникальный идентификатор workflow.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя (например, "sync-orders").
	Name string `json:"name"`

	// IsActive — флаг активности. Неактивные workflows не запускаются
	// ни по webhook, ни по cron, ни вручную.
	IsActive bool `json:"is_active"`

	// Nodes — узлы графа. ID узлов уникальны в рамках workflow.
	Nodes []NodeSpec `json:"nodes"`

	// Connections — направленные рёбра между портами узлов.
	Connections []Connection `json:"connections"`

	// Trigger — конфигурация триггера (webhook path, cron expression).
	Trigger TriggerConfig `json:"trigger"`

	// CreatedAt — время создания workflow.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// NodeSpec — определение узла в workflow.
type NodeSpec struct {
	// ID — уникальный идентификатор узла в рамках workflow.
	// Используется в connections и для ссылок на результаты.
	ID string `json:"id"`

	// Type — тип узла, разрешается через nodes.Registry
	// (например, "http.request", "logic.if", "trigger.webhook").
	Type string `json:"type"`

	// Name — человекочитаемое имя узла.
	Name string `json:"name,omitempty"`

	// Parameters — параметры узла. Значения могут содержать
	// Go-шаблоны для подстановки данных предыдущих узлов:
	// {{ .Trigger.x }}, {{ .Nodes.B.main.x }}.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Disabled — выключенный узел не выполняется: его входные данные
	// проходят насквозь на все выходные порты.
	Disabled bool `json:"disabled,omitempty"`

	// MaxIterations — предел итераций для loop-controller узлов.
	// 0 — использовать значение по умолчанию движка (1000).
	MaxIterations int `json:"max_iterations,omitempty"`
}

// Connection — направленное ребро между портами двух узлов.
//
// Данные, произведённые FromNode на порту FromPort, становятся
// входом ToNode на порту ToPort.
type Connection struct {
	// FromNode — ID узла-источника.
	FromNode string `json:"from_node"`

	// FromPort — выходной порт источника (обычно "main";
	// у условных узлов — "true"/"false", у loop — "loop"/"done").
	FromPort string `json:"from_port"`

	// ToNode — ID узла-приёмника.
	ToNode string `json:"to_node"`

	// ToPort — входной порт приёмника.
	ToPort string `json:"to_port"`
}

// TriggerKind — вид триггера, запускающего workflow.
type TriggerKind string

const (
	// TriggerWebhook — запуск входящим HTTP-запросом на /webhook/{workflowId}.
	TriggerWebhook TriggerKind = "webhook"

	// TriggerCron — запуск по cron-расписанию.
	TriggerCron TriggerKind = "cron"

	// TriggerManual — запуск пользователем через API/CLI.
	TriggerManual TriggerKind = "manual"
)

// IsValid проверяет, что вид триггера известен.
func (k TriggerKind) IsValid() bool {
	switch k {
	case TriggerWebhook, TriggerCron, TriggerManual:
		return true
	default:
		return false
	}
}

// TriggerConfig — конфигурация триггера workflow.
type TriggerConfig struct {
	// Kind — вид триггера.
	Kind TriggerKind `json:"kind"`

	// WebhookPath — путь webhook. Пустой — используется ID workflow.
	WebhookPath string `json:"webhook_path,omitempty"`

	// WebhookSecretHash — bcrypt-хэш секрета webhook.
	// Пустой — webhook без аутентификации.
	WebhookSecretHash string `json:"webhook_secret_hash,omitempty"`

	// CronExpr — cron-выражение для TriggerCron.
	// Формат: "минуты часы дни месяцы дни_недели".
	CronExpr string `json:"cron_expr,omitempty"`
}

// NodeByID возвращает узел по ID или nil.
func (w *Workflow) NodeByID(id string) *NodeSpec {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// Matches проверяет, соответствует ли вид триггера конфигурации workflow.
// Manual-запуск разрешён для любого workflow.
func (t *TriggerConfig) Matches(kind TriggerKind) bool {
	if kind == TriggerManual {
		return true
	}
	return t.Kind == kind
}
