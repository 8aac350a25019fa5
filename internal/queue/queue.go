package queue

import (
	"context"
	"errors"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Ошибки очереди.
var (
	// ErrFull — очередь заполнена, элемент не принят.
	// Вызывающий получает отказ сразу, без блокировки.
	ErrFull = errors.New("queue is full")

	// ErrClosed — очередь закрыта.
	ErrClosed = errors.New("queue is closed")
)

// Queue — очередь запусков между dispatcher'ом и пулом воркеров.
//
// Элемент несёт только идентификаторы (domain.QueueItem): воркер
// загружает актуальное состояние запуска из хранилища. Это позволяет
// одинаково работать поверх памяти одного процесса (Memory) и поверх
// RabbitMQ (mq.RunQueue) без изменения контракта.
//
// Гарантия доставки: каждый элемент получает ровно один потребитель.
type Queue interface {
	// Enqueue ставит запуск в очередь. Если NextRunAt элемента
	// в будущем, доставка откладывается до этого момента.
	// Возвращает ErrFull при заполненной очереди.
	Enqueue(ctx context.Context, item domain.QueueItem) error

	// Dequeue блокируется до появления элемента, отмены ctx
	// или закрытия очереди (ErrClosed).
	Dequeue(ctx context.Context) (domain.QueueItem, error)

	// Depth возвращает текущее количество элементов, готовых
	// к выдаче (без отложенных).
	Depth() int

	// Close закрывает очередь: новые Enqueue и ожидающие Dequeue
	// получают ErrClosed.
	Close() error
}
