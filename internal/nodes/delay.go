package nodes

import (
	"context"
	"time"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Delay — узел "core.delay": ожидает указанное время.
//
// Вход проходит насквозь. Поддерживает отмену через context —
// таймаут узла прерывает ожидание.
//
// Parameters:
//   - duration_ms (number): длительность задержки в миллисекундах (default: 1000)
type Delay struct{}

// Describe возвращает декларацию типа.
func (n *Delay) Describe() Descriptor {
	return Descriptor{
		Type:    "core.delay",
		Kind:    KindAction,
		Inputs:  []string{PortMain},
		Outputs: []string{PortMain},
	}
}

// Execute выполняет задержку.
func (n *Delay) Execute(ctx context.Context, req *Request) (*Result, error) {
	durationMs := ParamInt(req.Parameters, "duration_ms")
	if durationMs <= 0 {
		durationMs = 1000
	}

	select {
	case <-time.After(time.Duration(durationMs) * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	out := req.FirstInput()
	if out == nil {
		out = make(domain.Item)
	}
	out["delayed_ms"] = durationMs

	return &Result{Outputs: domain.PortOutputs{PortMain: out}}, nil
}
