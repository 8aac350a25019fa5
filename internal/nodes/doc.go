// Package nodes определяет контракт исполняемых узлов и встроенный каталог.
//
// Включает:
//   - node.go     — интерфейс Capability, Descriptor (вариант + порты), Request/Result
//   - registry.go — реестр типов узлов (immutable после инициализации)
//   - triggers.go — trigger.webhook, trigger.cron, trigger.manual
//   - http.go     — http.request
//   - set.go      — data.set (шаблонное формирование данных)
//   - delay.go    — core.delay
//   - condition.go— logic.if (выбор порта true/false)
//   - loop.go     — loop.counter (голова цикла)
//
// Конкретные интеграции (Slack, GitHub и т.д.) сюда не входят —
// они регистрируются снаружи через Registry.Register.
package nodes
