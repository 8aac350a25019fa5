package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/queue"
)

// RunQueue — реализация queue.Queue поверх RabbitMQ.
//
// Позволяет выносить воркеры в отдельные процессы: dispatcher публикует
// QueueItem в executions.pending, воркеры любого процесса потребляют.
// Отложенные элементы публикуются в executions.delayed с per-message
// TTL и возвращаются в pending через dead-letter exchange.
//
// Доставка подтверждается при выдаче из Dequeue: прерванные запуски
// движок сам возвращает в статус PENDING и ставит в очередь заново,
// поэтому redelivery на уровне брокера не требуется.
type RunQueue struct {
	conn   *Connection
	logger *slog.Logger

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
	closed     bool
	done       chan struct{}
}

// NewRunQueue создаёт очередь запусков и декларирует топологию.
func NewRunQueue(conn *Connection, logger *slog.Logger) (*RunQueue, error) {
	if err := SetupTopology(conn); err != nil {
		return nil, err
	}
	return &RunQueue{
		conn:   conn,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Enqueue реализует queue.Queue.
func (q *RunQueue) Enqueue(ctx context.Context, item domain.QueueItem) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return queue.ErrClosed
	}

	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal queue item: %w", err)
	}

	routingKey := RoutingPending
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    item.ExecutionID.String(),
		Timestamp:    time.Now(),
		Body:         body,
	}

	if delay := time.Until(item.NextRunAt); delay > 0 {
		routingKey = RoutingDelayed
		pub.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}

	ch := q.conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	if err := ch.PublishWithContext(ctx, ExchangeExecutions, routingKey, false, false, pub); err != nil {
		return fmt.Errorf("publish to %s/%s: %w", ExchangeExecutions, routingKey, err)
	}

	q.logger.Debug("execution enqueued",
		"execution_id", item.ExecutionID,
		"attempt", item.Attempt,
		"routing_key", routingKey,
	)
	return nil
}

// Dequeue реализует queue.Queue.
func (q *RunQueue) Dequeue(ctx context.Context) (domain.QueueItem, error) {
	for {
		deliveries, err := q.consumeChannel()
		if err != nil {
			// Ждём переподключения.
			select {
			case <-ctx.Done():
				return domain.QueueItem{}, ctx.Err()
			case <-q.done:
				return domain.QueueItem{}, queue.ErrClosed
			case <-q.conn.ReconnectNotify():
				continue
			}
		}

		select {
		case <-ctx.Done():
			return domain.QueueItem{}, ctx.Err()
		case <-q.done:
			return domain.QueueItem{}, queue.ErrClosed
		case raw, ok := <-deliveries:
			if !ok {
				q.resetConsume()
				continue
			}

			var item domain.QueueItem
			if err := json.Unmarshal(raw.Body, &item); err != nil {
				q.logger.Error("malformed queue item", "error", err, "body", string(raw.Body))
				raw.Nack(false, false) // в DLQ
				continue
			}

			raw.Ack(false)
			return item, nil
		}
	}
}

// consumeChannel лениво настраивает потребление из executions.pending.
func (q *RunQueue) consumeChannel() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.deliveries != nil {
		return q.deliveries, nil
	}

	ch := q.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(QueuePending, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", QueuePending, err)
	}

	q.deliveries = deliveries
	return deliveries, nil
}

// resetConsume сбрасывает consume-канал после разрыва соединения.
func (q *RunQueue) resetConsume() {
	q.mu.Lock()
	q.deliveries = nil
	q.mu.Unlock()
}

// Depth реализует queue.Queue: количество готовых сообщений в pending.
func (q *RunQueue) Depth() int {
	ch := q.conn.Channel()
	if ch == nil {
		return 0
	}
	state, err := ch.QueueDeclarePassive(QueuePending, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    ExchangeDLQ,
		"x-dead-letter-routing-key": RoutingDLQ,
	})
	if err != nil {
		return 0
	}
	return state.Messages
}

// Close реализует queue.Queue. Соединением владеет вызывающий:
// закрывается только потребление.
func (q *RunQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}
