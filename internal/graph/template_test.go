package graph

import (
	"testing"

	"github.com/shaiso/Nodeflow/internal/domain"
)

func TestRenderParameters(t *testing.T) {
	data := &TemplateData{
		Trigger: domain.Item{"user": "alice", "amount": 42},
		Nodes: map[string]domain.PortOutputs{
			"fetch": {"main": domain.Item{"status_code": 200}},
		},
		Env: map[string]string{"API_HOST": "api.internal"},
	}

	params := map[string]any{
		"plain":  "no templates here",
		"user":   "{{ .Trigger.user }}",
		"status": "{{ .Nodes.fetch.main.status_code }}",
		"url":    "https://{{ .Env.API_HOST }}/v1",
		"upper":  "{{ upper .Trigger.user }}",
		"number": 7,
		"nested": map[string]any{
			"inner": "{{ .Trigger.amount }}",
		},
	}

	got, err := RenderParameters(params, data)
	if err != nil {
		t.Fatalf("RenderParameters: %v", err)
	}

	want := map[string]string{
		"plain":  "no templates here",
		"user":   "alice",
		"status": "200",
		"url":    "https://api.internal/v1",
		"upper":  "ALICE",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, ожидали %q", k, got[k], v)
		}
	}
	if got["number"] != 7 {
		t.Errorf("number = %v, нешаблонные значения не должны меняться", got["number"])
	}
	if inner := got["nested"].(map[string]any)["inner"]; inner != "42" {
		t.Errorf("nested.inner = %v", inner)
	}

	// Исходная map не мутируется.
	if params["user"] != "{{ .Trigger.user }}" {
		t.Error("RenderParameters мутировал исходные параметры")
	}
}

func TestRenderParametersMissingKey(t *testing.T) {
	got, err := RenderParameters(
		map[string]any{"v": "{{ .Trigger.missing }}"},
		&TemplateData{Trigger: domain.Item{}},
	)
	if err != nil {
		t.Fatalf("RenderParameters: %v", err)
	}
	if got["v"] != "" {
		t.Errorf("v = %q, отсутствующий ключ должен давать пустую строку", got["v"])
	}
}

func TestRenderParametersInvalidTemplate(t *testing.T) {
	_, err := RenderParameters(
		map[string]any{"v": "{{ .Broken"},
		&TemplateData{},
	)
	if err == nil {
		t.Fatal("ожидали ошибку парсинга шаблона")
	}
}
