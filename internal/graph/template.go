package graph

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// TemplateData — контекст подстановки значений в параметры узла.
//
// Выражения в параметрах:
//   - {{ .Trigger.<key> }}        — данные события, запустившего workflow
//   - {{ .Nodes.<id>.<port>.<key> }} — выход уже выполненного узла
//   - {{ .Env.<name> }}           — переменная окружения процесса
type TemplateData struct {
	// Trigger — item, засеянный dispatcher'ом на выход trigger-узла.
	Trigger domain.Item

	// Nodes — выходы выполненных узлов по ID и порту.
	Nodes map[string]domain.PortOutputs

	// Env — переменные окружения, доступные шаблонам.
	Env map[string]string
}

// templateFuncs — функции, доступные в выражениях параметров.
var templateFuncs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
	"default": func(def, v any) any {
		if v == nil || v == "" {
			return def
		}
		return v
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
}

// RenderParameters возвращает копию параметров узла с вычисленными
// шаблонными выражениями. Строки без "{{" проходят без изменений;
// нестроковые значения копируются как есть, вложенные map и срезы
// обходятся рекурсивно.
//
// Исходная map не мутируется: узел каждой итерации цикла получает
// свежий рендер.
func RenderParameters(params map[string]any, data *TemplateData) (map[string]any, error) {
	if params == nil {
		return nil, nil
	}
	out, err := renderValue(params, data)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

// renderValue рекурсивно рендерит значение параметра.
func renderValue(v any, data *TemplateData) (any, error) {
	switch val := v.(type) {
	case string:
		if !strings.Contains(val, "{{") {
			return val, nil
		}
		return renderString(val, data)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", k, err)
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

// renderString вычисляет одно шаблонное выражение.
func renderString(s string, data *TemplateData) (string, error) {
	tmpl, err := template.New("param").
		Funcs(templateFuncs).
		Option("missingkey=zero").
		Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid template %q: %w", s, err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("template %q: %w", s, err)
	}

	// missingkey=zero печатает "<no value>" для отсутствующих ключей
	// map[string]any: нормализуем в пустую строку.
	return strings.ReplaceAll(b.String(), "<no value>", ""), nil
}
