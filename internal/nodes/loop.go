package nodes

import (
	"context"
	"fmt"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Порты loop-узла.
const (
	PortLoop = "loop"
	PortDone = "done"
)

// LoopCounter — узел "loop.counter": голова цикла с фиксированным
// числом итераций.
//
// Единственный встроенный loop-controller: планировщик разрешает
// повторное посещение и передаёт номер итерации в Request.Iteration.
// Пока Iteration <= count, выбирается порт "loop" (тело цикла);
// после — порт "done". Тело цикла должно замыкаться ребром обратно
// на этот узел.
//
// Parameters:
//   - count (number): количество итераций тела (обязательно, > 0)
//
// Output (loop/done): входной item + index — номер текущей итерации.
type LoopCounter struct{}

// Describe возвращает декларацию типа.
func (n *LoopCounter) Describe() Descriptor {
	return Descriptor{
		Type:    "loop.counter",
		Kind:    KindLoop,
		Inputs:  []string{PortMain},
		Outputs: []string{PortLoop, PortDone},
	}
}

// Execute выбирает порт по номеру итерации.
func (n *LoopCounter) Execute(_ context.Context, req *Request) (*Result, error) {
	count := ParamInt(req.Parameters, "count")
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be > 0", ErrInvalidParameters)
	}

	out := req.FirstInput()
	if out == nil {
		out = make(domain.Item)
	}
	out["index"] = req.Iteration

	port := PortDone
	if req.Iteration <= count {
		port = PortLoop
	}

	return &Result{
		Outputs:      domain.PortOutputs{port: out},
		SelectedPort: port,
	}, nil
}
