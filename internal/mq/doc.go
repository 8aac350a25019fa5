// Package mq — интеграция с RabbitMQ: соединение с автоматическим
// переподключением, декларация топологии и очередь запусков поверх
// брокера (реализация queue.Queue для multi-process режима).
//
// Топология:
//
//	nodeflow.executions (direct)
//	├── executions.pending [routing: pending]   — потребители: воркеры
//	└── executions.delayed [routing: delayed]   — TTL, DLX -> pending
//
//	nodeflow.dlq (direct)
//	└── dlq.executions [routing: executions]    — ручной разбор
package mq
