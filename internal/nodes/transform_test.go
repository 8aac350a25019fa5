package nodes

import (
	"context"
	"testing"

	"github.com/shaiso/Nodeflow/internal/domain"
)

func runTransform(t *testing.T, params map[string]any, input domain.Item) domain.Item {
	t.Helper()

	node := &DataTransform{}
	req := &Request{
		NodeID:     "reshape",
		Inputs:     map[string][]domain.Item{PortMain: {input}},
		Parameters: params,
	}
	result, err := node.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	return result.Outputs[PortMain]
}

func TestDataTransformPick(t *testing.T) {
	out := runTransform(t,
		map[string]any{"pick": []any{"a", "c", "missing"}},
		domain.Item{"a": 1, "b": 2, "c": 3},
	)

	if len(out) != 2 {
		t.Fatalf("output = %v, want only picked fields", out)
	}
	if out["a"] != 1 || out["c"] != 3 {
		t.Errorf("output = %v", out)
	}
}

func TestDataTransformRenameDrop(t *testing.T) {
	out := runTransform(t,
		map[string]any{
			"rename": map[string]any{"a": "id"},
			"drop":   []any{"b"},
		},
		domain.Item{"a": 1, "b": 2, "c": 3},
	)

	if out["id"] != 1 {
		t.Errorf("renamed field id = %v, want 1", out["id"])
	}
	if _, ok := out["a"]; ok {
		t.Error("old field name kept after rename")
	}
	if _, ok := out["b"]; ok {
		t.Error("dropped field kept")
	}
	if out["c"] != 3 {
		t.Errorf("untouched field c = %v, want 3", out["c"])
	}
}

func TestDataTransformNoOps(t *testing.T) {
	out := runTransform(t, nil, domain.Item{"a": 1})
	if out["a"] != 1 {
		t.Errorf("output = %v, want input copied as-is", out)
	}
}
