// Package api — HTTP-слой: webhook-приём, CRUD workflow,
// просмотр и отмена executions, статус движка.
package api
