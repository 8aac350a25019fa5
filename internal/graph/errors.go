package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки выполнения графа.
var (
	// ErrLoopLimitExceeded — loop-controller превысил предел итераций.
	// Фатальная run-level ошибка, run-level retry не выполняется.
	ErrLoopLimitExceeded = errors.New("loop iteration limit exceeded")

	// ErrNodeNotFound — узел не найден в графе.
	ErrNodeNotFound = errors.New("node not found in graph")
)

// Violation — одно структурное нарушение в определении workflow.
type Violation struct {
	// NodeID — узел, к которому относится нарушение (может быть пустым).
	NodeID string

	// Field — поле определения, вызвавшее нарушение
	// ("nodes", "connections", "trigger").
	Field string

	// Message — описание нарушения.
	Message string
}

// String возвращает человекочитаемое описание нарушения.
func (v Violation) String() string {
	if v.NodeID != "" {
		return fmt.Sprintf("node %s: %s", v.NodeID, v.Message)
	}
	return v.Message
}

// ValidationError — результат валидации графа со ВСЕМИ найденными
// нарушениями, а не только первым: автор workflow исправляет всё
// за один проход.
type ValidationError struct {
	Violations []Violation
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return "invalid workflow graph: " + e.Violations[0].String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "invalid workflow graph (%d violations):", len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("\n  - ")
		b.WriteString(v.String())
	}
	return b.String()
}

// add добавляет нарушение.
func (e *ValidationError) add(nodeID, field, format string, args ...any) {
	e.Violations = append(e.Violations, Violation{
		NodeID:  nodeID,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// errOrNil возвращает ошибку, если нарушения есть.
func (e *ValidationError) errOrNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}
