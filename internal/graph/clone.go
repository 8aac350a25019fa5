package graph

import "github.com/shaiso/Nodeflow/internal/domain"

// Глубокое структурное копирование данных запуска.
//
// Узлы получают копии входов и не могут мутировать контекст выполнения
// через разделяемые ссылки. Копирование структурное, без JSON
// round-trip: сохраняет типы значений и не тратит аллокации на
// сериализацию.

// CloneValue возвращает глубокую копию значения.
//
// Копируются map[string]any и []any на любую глубину; остальные
// значения (скаляры, time.Time и т.п.) возвращаются как есть.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return v
	}
}

// CloneItem возвращает глубокую копию item.
func CloneItem(item domain.Item) domain.Item {
	if item == nil {
		return nil
	}
	return CloneValue(map[string]any(item)).(map[string]any)
}

// CloneItems возвращает глубокую копию среза items.
func CloneItems(items []domain.Item) []domain.Item {
	if items == nil {
		return nil
	}
	out := make([]domain.Item, len(items))
	for i, item := range items {
		out[i] = CloneItem(item)
	}
	return out
}

// ClonePortOutputs возвращает глубокую копию выходов узла.
func ClonePortOutputs(po domain.PortOutputs) domain.PortOutputs {
	if po == nil {
		return nil
	}
	out := make(domain.PortOutputs, len(po))
	for port, item := range po {
		out[port] = CloneItem(item)
	}
	return out
}

// CloneNodeOutputs возвращает глубокую копию выходов всех узлов.
func CloneNodeOutputs(no map[string]domain.PortOutputs) map[string]domain.PortOutputs {
	if no == nil {
		return nil
	}
	out := make(map[string]domain.PortOutputs, len(no))
	for id, po := range no {
		out[id] = ClonePortOutputs(po)
	}
	return out
}
