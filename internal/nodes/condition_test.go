package nodes

import (
	"context"
	"testing"

	"github.com/shaiso/Nodeflow/internal/domain"
)

func runIf(t *testing.T, params map[string]any, input domain.Item) *Result {
	t.Helper()

	node := &If{}
	req := &Request{
		NodeID:     "cond",
		Inputs:     map[string][]domain.Item{PortMain: {input}},
		Parameters: params,
	}
	result, err := node.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	return result
}

func TestIfOperators(t *testing.T) {
	tests := []struct {
		name     string
		left     any
		operator string
		right    any
		want     string
	}{
		{"eq numbers", float64(5), "eq", 5, PortTrue},
		{"eq number vs string", float64(5), "eq", "5", PortTrue},
		{"eq strings", "a", "eq", "b", PortFalse},
		{"ne", "a", "ne", "b", PortTrue},
		{"gt", float64(3), "gt", 2, PortTrue},
		{"gte equal", float64(2), "gte", 2, PortTrue},
		{"lt false", float64(3), "lt", 2, PortFalse},
		{"lte", float64(2), "lte", 2, PortTrue},
		{"gt string operand", "10", "gt", 2, PortTrue},
		{"contains", "hello world", "contains", "world", PortTrue},
		{"contains false", "hello", "contains", "xyz", PortFalse},
		{"empty nil", nil, "empty", nil, PortTrue},
		{"empty string", "", "empty", nil, PortTrue},
		{"empty non-empty", "x", "empty", nil, PortFalse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runIf(t, map[string]any{
				"left":     tt.left,
				"operator": tt.operator,
				"right":    tt.right,
			}, domain.Item{"x": 1})

			if result.SelectedPort != tt.want {
				t.Errorf("selected port = %s, want %s", result.SelectedPort, tt.want)
			}
			if _, ok := result.Outputs[tt.want]; !ok {
				t.Errorf("no output on selected port %s", tt.want)
			}
		})
	}
}

func TestIfPassesInputThrough(t *testing.T) {
	input := domain.Item{"x": 42}
	result := runIf(t, map[string]any{
		"left": float64(1), "operator": "eq", "right": float64(1),
	}, input)

	out := result.Outputs[PortTrue]
	if out["x"] != 42 {
		t.Errorf("output x = %v, want input passed through", out["x"])
	}
}

func TestIfInvalidParameters(t *testing.T) {
	node := &If{}
	tests := []struct {
		name   string
		params map[string]any
	}{
		{"missing operator", map[string]any{"left": 1, "right": 1}},
		{"unknown operator", map[string]any{"left": 1, "operator": "like", "right": 1}},
		{"gt non-numeric", map[string]any{"left": "abc", "operator": "gt", "right": 1}},
		{"contains non-string", map[string]any{"left": 1, "operator": "contains", "right": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{NodeID: "cond", Parameters: tt.params}
			if _, err := node.Execute(context.Background(), req); err == nil {
				t.Error("expected error")
			}
		})
	}
}
