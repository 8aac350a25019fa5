// Package queue — контракт очереди запусков и её in-memory реализация.
//
// Очередь разделяет приём запусков (dispatcher) и их выполнение
// (пул воркеров). Реализация поверх RabbitMQ живёт в пакете mq
// и удовлетворяет тому же интерфейсу.
package queue
