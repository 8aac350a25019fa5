package queue

import (
	"context"
	"sync"
	"time"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Memory — очередь в памяти процесса поверх буферизованного канала.
//
// Используется в single-process режиме (без RabbitMQ) и в тестах.
// Отложенные элементы (NextRunAt в будущем) доставляются таймером;
// если к моменту срабатывания очередь заполнена, доставка повторяется
// с шагом в секунду.
type Memory struct {
	items chan domain.QueueItem

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	timers map[*time.Timer]struct{}
}

// NewMemory создаёт очередь с указанной ёмкостью.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 256
	}
	return &Memory{
		items:  make(chan domain.QueueItem, capacity),
		done:   make(chan struct{}),
		timers: make(map[*time.Timer]struct{}),
	}
}

// Enqueue реализует Queue.
func (m *Memory) Enqueue(_ context.Context, item domain.QueueItem) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	if delay := time.Until(item.NextRunAt); delay > 0 {
		m.scheduleLocked(item, delay)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	select {
	case m.items <- item:
		return nil
	default:
		return ErrFull
	}
}

// scheduleLocked откладывает доставку элемента. Вызывается под m.mu.
func (m *Memory) scheduleLocked(item domain.QueueItem, delay time.Duration) {
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		delete(m.timers, timer)
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}

		select {
		case m.items <- item:
		case <-m.done:
		default:
			// Очередь заполнена: пробуем позже.
			m.mu.Lock()
			if !m.closed {
				m.scheduleLocked(item, time.Second)
			}
			m.mu.Unlock()
		}
	})
	m.timers[timer] = struct{}{}
}

// Dequeue реализует Queue.
func (m *Memory) Dequeue(ctx context.Context) (domain.QueueItem, error) {
	select {
	case item := <-m.items:
		return item, nil
	case <-m.done:
		// Дочитываем уже поставленные элементы и при закрытии.
		select {
		case item := <-m.items:
			return item, nil
		default:
			return domain.QueueItem{}, ErrClosed
		}
	case <-ctx.Done():
		return domain.QueueItem{}, ctx.Err()
	}
}

// Depth реализует Queue.
func (m *Memory) Depth() int {
	return len(m.items)
}

// Close реализует Queue.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)

	for timer := range m.timers {
		timer.Stop()
	}
	m.timers = nil

	return nil
}
