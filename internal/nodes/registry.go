package nodes

import (
	"fmt"
	"sort"
)

// Registry — реестр типов узлов.
//
// Заполняется один раз при старте процесса (RegisterDefaults + свои
// типы) и после этого только читается — движок получает готовый
// экземпляр по ссылке, глобального состояния нет.
type Registry struct {
	caps map[string]Capability
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// Register добавляет тип узла в реестр.
// Возвращает ошибку при повторной регистрации типа.
func (r *Registry) Register(cap Capability) error {
	desc := cap.Describe()
	if desc.Type == "" {
		return fmt.Errorf("%w: empty type", ErrInvalidDescriptor)
	}
	if len(desc.Outputs) == 0 {
		return fmt.Errorf("%w: %s declares no output ports", ErrInvalidDescriptor, desc.Type)
	}
	if _, exists := r.caps[desc.Type]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, desc.Type)
	}
	r.caps[desc.Type] = cap
	return nil
}

// MustRegister — Register с panic при ошибке.
// Для статической регистрации встроенных узлов при старте.
func (r *Registry) MustRegister(cap Capability) {
	if err := r.Register(cap); err != nil {
		panic(err)
	}
}

// Resolve возвращает capability для типа узла.
func (r *Registry) Resolve(nodeType string) (Capability, error) {
	cap, ok := r.caps[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregistered, nodeType)
	}
	return cap, nil
}

// Count возвращает количество зарегистрированных типов.
func (r *Registry) Count() int {
	return len(r.caps)
}

// Types возвращает отсортированный список зарегистрированных типов.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.caps))
	for t := range r.caps {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// RegisterDefaults регистрирует встроенные типы узлов.
//
// Триггеры: trigger.webhook, trigger.cron, trigger.manual.
// Действия: http.request, data.set, data.transform, core.delay.
// Управление: logic.if, loop.counter.
func (r *Registry) RegisterDefaults() {
	r.MustRegister(&WebhookTrigger{})
	r.MustRegister(&CronTrigger{})
	r.MustRegister(&ManualTrigger{})
	r.MustRegister(&HTTPRequest{})
	r.MustRegister(&DataSet{})
	r.MustRegister(&DataTransform{})
	r.MustRegister(&Delay{})
	r.MustRegister(&If{})
	r.MustRegister(&LoopCounter{})
}
