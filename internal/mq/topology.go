package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Имена обменников.
const (
	ExchangeExecutions = "nodeflow.executions"
	ExchangeDLQ        = "nodeflow.dlq"
)

// Имена очередей.
const (
	// QueuePending — запуски, ожидающие воркера.
	QueuePending = "executions.pending"

	// QueueDelayed — отложенные запуски: per-message TTL,
	// по истечении dead-letter в executions.pending.
	QueueDelayed = "executions.delayed"

	// QueueDLQ — запуски, отвергнутые воркерами.
	QueueDLQ = "dlq.executions"
)

// Routing keys.
const (
	RoutingPending = "pending"
	RoutingDelayed = "delayed"
	RoutingDLQ     = "executions"
)

// SetupTopology декларирует обменники, очереди и привязки.
// Идемпотентна: безопасно вызывать при каждом старте процесса.
func SetupTopology(conn *Connection) error {
	ch := conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	for _, name := range []string{ExchangeExecutions, ExchangeDLQ} {
		err := ch.ExchangeDeclare(name, "direct", true, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}

	queues := []struct {
		name string
		args amqp.Table
	}{
		{QueuePending, amqp.Table{
			"x-dead-letter-exchange":    ExchangeDLQ,
			"x-dead-letter-routing-key": RoutingDLQ,
		}},
		// Отложенные запуски возвращаются в pending по истечении TTL.
		{QueueDelayed, amqp.Table{
			"x-dead-letter-exchange":    ExchangeExecutions,
			"x-dead-letter-routing-key": RoutingPending,
		}},
		{QueueDLQ, nil},
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	bindings := []struct {
		queue, key, exchange string
	}{
		{QueuePending, RoutingPending, ExchangeExecutions},
		{QueueDelayed, RoutingDelayed, ExchangeExecutions},
		{QueueDLQ, RoutingDLQ, ExchangeDLQ},
	}
	for _, b := range bindings {
		if err := ch.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
