package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/Nodeflow/internal/domain"
)

func TestLoopCounterPortSelection(t *testing.T) {
	node := &LoopCounter{}

	tests := []struct {
		iteration int
		want      string
	}{
		{1, PortLoop},
		{2, PortLoop},
		{3, PortLoop},
		{4, PortDone},
	}

	for _, tt := range tests {
		req := &Request{
			NodeID:     "loop",
			Inputs:     map[string][]domain.Item{PortMain: {{"x": 1}}},
			Parameters: map[string]any{"count": float64(3)},
			Iteration:  tt.iteration,
		}
		result, err := node.Execute(context.Background(), req)
		if err != nil {
			t.Fatalf("iteration %d: %v", tt.iteration, err)
		}
		if result.SelectedPort != tt.want {
			t.Errorf("iteration %d: port = %s, want %s", tt.iteration, result.SelectedPort, tt.want)
		}

		out := result.Outputs[tt.want]
		if out["index"] != tt.iteration {
			t.Errorf("iteration %d: index = %v", tt.iteration, out["index"])
		}
		if out["x"] != 1 {
			t.Errorf("iteration %d: input not passed through", tt.iteration)
		}
	}
}

func TestLoopCounterRequiresCount(t *testing.T) {
	node := &LoopCounter{}

	for _, params := range []map[string]any{
		nil,
		{"count": float64(0)},
		{"count": float64(-1)},
	} {
		req := &Request{NodeID: "loop", Parameters: params, Iteration: 1}
		if _, err := node.Execute(context.Background(), req); !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("params %v: err = %v, want ErrInvalidParameters", params, err)
		}
	}
}
