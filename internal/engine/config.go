package engine

import (
	"runtime"
	"time"
)

// Значения конфигурации по умолчанию.
const (
	defaultNodeTimeout       = 30 * time.Second
	defaultMaxRetries        = 3
	defaultBackoffBase       = time.Second
	defaultBackoffFactor     = 2.0
	defaultBackoffMax        = 30 * time.Second
	defaultMaxLoopIterations = 1000
	defaultRunRetries        = 1
	defaultRunRetryDelay     = 5 * time.Second
	defaultQueueCapacity     = 256
)

// Config — конфигурация движка. Нулевые значения заменяются
// значениями по умолчанию.
type Config struct {
	// NodeTimeout — таймаут одной попытки выполнения узла (default: 30s).
	NodeTimeout time.Duration

	// MaxRetries — максимальное общее число попыток узла, включая
	// первую (default: 3).
	MaxRetries int

	// BackoffBase — задержка перед второй попыткой узла (default: 1s).
	BackoffBase time.Duration

	// BackoffFactor — множитель экспоненциального backoff (default: 2).
	BackoffFactor float64

	// BackoffMax — потолок задержки между попытками (default: 30s).
	BackoffMax time.Duration

	// MaxLoopIterations — предел итераций loop-controller, если узел
	// не задаёт собственный (default: 1000).
	MaxLoopIterations int

	// RunRetries — количество повторных постановок запуска в очередь
	// после run-level ошибки (default: 1). Отрицательное значение
	// отключает run-level retry и сохраняется как есть.
	RunRetries int

	// RunRetryDelay — базовая задержка перед повторной постановкой,
	// умножается на номер попытки (default: 5s).
	RunRetryDelay time.Duration

	// Workers — размер пула воркеров (default: GOMAXPROCS).
	Workers int

	// QueueCapacity — ёмкость in-memory очереди (default: 256).
	// Не используется при работе поверх RabbitMQ.
	QueueCapacity int
}

// withDefaults возвращает конфигурацию с заполненными значениями
// по умолчанию. Идемпотентна: повторное применение ничего не меняет.
func (c Config) withDefaults() Config {
	if c.NodeTimeout <= 0 {
		c.NodeTimeout = defaultNodeTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = defaultBackoffFactor
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = defaultBackoffMax
	}
	if c.MaxLoopIterations <= 0 {
		c.MaxLoopIterations = defaultMaxLoopIterations
	}
	if c.RunRetries == 0 {
		c.RunRetries = defaultRunRetries
	}
	if c.RunRetryDelay <= 0 {
		c.RunRetryDelay = defaultRunRetryDelay
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = defaultQueueCapacity
	}
	return c
}

// backoff возвращает задержку перед попыткой attempt (вторая и далее).
func (c Config) backoff(attempt int) time.Duration {
	delay := c.BackoffBase
	for i := 2; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.BackoffFactor)
		if delay >= c.BackoffMax {
			return c.BackoffMax
		}
	}
	return min(delay, c.BackoffMax)
}
