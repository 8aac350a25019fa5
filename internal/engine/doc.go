// Package engine — ядро выполнения workflow: dispatch запусков,
// пул воркеров, пошаговое выполнение графа с retry и отменой.
//
// Поток данных:
//
//	TriggerWorkflow → queue → Pool.workerLoop → runner.run
//	                                             ├── graph.Progress (батчи)
//	                                             └── Executor (узел: timeout + retry)
package engine
