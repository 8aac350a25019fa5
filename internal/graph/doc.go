// Package graph — модель графа workflow, его валидация и планировщик
// обхода.
//
// Build компилирует domain.Workflow в неизменяемый Graph, собирая ВСЕ
// структурные нарушения в ValidationError: дубликаты и пустые ID,
// незарегистрированные типы, висячие соединения, необъявленные порты,
// несколько или ноль trigger-узлов, недостижимые узлы и циклы без
// loop-controller (компоненты сильной связности ищутся алгоритмом
// Тарьяна).
//
// Progress — состояние обхода одного запуска: батчи готовых узлов,
// активация и пропуск рёбер по выбранным портам условных узлов,
// повторные заходы в тела циклов с пределом итераций.
package graph
