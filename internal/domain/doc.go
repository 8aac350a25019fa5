// Package domain содержит основные модели данных Nodeflow.
//
// Здесь определены:
//   - Workflow, NodeSpec, Connection — определение графа автоматизации
//   - TriggerConfig — как workflow запускается (webhook, cron, manual)
//   - Execution — один запуск workflow и его результаты
//   - QueueItem — элемент очереди выполнения
//
// Пакет не зависит от других internal-пакетов — это "словарь" системы,
// который используют все остальные компоненты.
package domain
