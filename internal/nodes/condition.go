package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Порты условного узла.
const (
	PortTrue  = "true"
	PortFalse = "false"
)

// If — узел "logic.if": сравнивает два значения и выбирает порт.
//
// Результат содержит SelectedPort ("true" или "false") — планировщик
// активирует только рёбра выбранного порта, рёбра второго порта
// считаются пропущенными для этого запуска.
//
// Parameters:
//   - left (any): левое значение (обычно шаблон)
//   - operator (string): eq, ne, gt, gte, lt, lte, contains, empty
//   - right (any): правое значение (не нужно для empty)
//
// Входной item проходит насквозь на выбранный порт.
type If struct{}

// Describe возвращает декларацию типа.
func (n *If) Describe() Descriptor {
	return Descriptor{
		Type:    "logic.if",
		Kind:    KindConditional,
		Inputs:  []string{PortMain},
		Outputs: []string{PortTrue, PortFalse},
	}
}

// Execute вычисляет условие и выбирает порт.
func (n *If) Execute(_ context.Context, req *Request) (*Result, error) {
	operator := ParamString(req.Parameters, "operator")
	if operator == "" {
		return nil, fmt.Errorf("%w: operator is required", ErrInvalidParameters)
	}

	matched, err := evaluate(req.Parameters["left"], operator, req.Parameters["right"])
	if err != nil {
		return nil, err
	}

	port := PortFalse
	if matched {
		port = PortTrue
	}

	out := req.FirstInput()
	if out == nil {
		out = make(domain.Item)
	}

	return &Result{
		Outputs:      domain.PortOutputs{port: out},
		SelectedPort: port,
	}, nil
}

// evaluate вычисляет условие left <operator> right.
func evaluate(left any, operator string, right any) (bool, error) {
	switch operator {
	case "eq":
		return equalValues(left, right), nil
	case "ne":
		return !equalValues(left, right), nil
	case "gt", "gte", "lt", "lte":
		return compareNumbers(left, operator, right)
	case "contains":
		ls, lok := left.(string)
		rs, rok := right.(string)
		if !lok || !rok {
			return false, fmt.Errorf("%w: contains requires string operands", ErrInvalidParameters)
		}
		return strings.Contains(ls, rs), nil
	case "empty":
		return isEmpty(left), nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidParameters, operator)
	}
}

// equalValues сравнивает значения с числовой нормализацией
// (JSON даёт числа как float64, шаблоны — как строки).
func equalValues(left, right any) bool {
	if lf, lok := toFloat(left); lok {
		if rf, rok := toFloat(right); rok {
			return lf == rf
		}
	}
	return fmt.Sprint(left) == fmt.Sprint(right)
}

// compareNumbers сравнивает числовые значения.
func compareNumbers(left any, operator string, right any) (bool, error) {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if !lok || !rok {
		return false, fmt.Errorf("%w: %s requires numeric operands", ErrInvalidParameters, operator)
	}

	switch operator {
	case "gt":
		return lf > rf, nil
	case "gte":
		return lf >= rf, nil
	case "lt":
		return lf < rf, nil
	default:
		return lf <= rf, nil
	}
}

// toFloat приводит значение к float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// isEmpty проверяет, пустое ли значение.
func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
