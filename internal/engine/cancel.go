package engine

import (
	"sync"

	"github.com/google/uuid"
)

// cancelRegistry — запрошенные отмены executions в пределах процесса.
//
// Дублирует флаг отмены в хранилище: локальный реестр позволяет
// воркеру того же процесса увидеть отмену без чтения БД, флаг
// в хранилище доносит отмену до воркеров других процессов.
type cancelRegistry struct {
	mu  sync.Mutex
	ids map[uuid.UUID]struct{}
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{ids: make(map[uuid.UUID]struct{})}
}

// Cancel помечает execution отменённым.
func (c *cancelRegistry) Cancel(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[id] = struct{}{}
}

// IsCancelled проверяет, запрошена ли отмена.
func (c *cancelRegistry) IsCancelled(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ids[id]
	return ok
}

// Forget убирает завершённый execution из реестра.
func (c *cancelRegistry) Forget(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ids, id)
}
