package nodes

import (
	"context"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// DataSet — узел "data.set": формирует item из параметров.
//
// Параметр values (map) становится выходным item'ом; значения обычно
// содержат шаблоны ({{ .Nodes.A.main.x }}), которые движок подставляет
// до вызова Execute. При keep_input=true поля входного item'а
// копируются в выход, values перекрывают совпадающие ключи.
//
// Parameters:
//   - values (map): поля выходного item (обязательно, может быть пустым)
//   - keep_input (bool): сохранить поля входного item. Default: false
type DataSet struct{}

// Describe возвращает декларацию типа.
func (n *DataSet) Describe() Descriptor {
	return Descriptor{
		Type:    "data.set",
		Kind:    KindAction,
		Inputs:  []string{PortMain},
		Outputs: []string{PortMain},
	}
}

// Execute формирует выходной item.
func (n *DataSet) Execute(_ context.Context, req *Request) (*Result, error) {
	out := make(domain.Item)

	if ParamBool(req.Parameters, "keep_input", false) {
		for k, v := range req.FirstInput() {
			out[k] = v
		}
	}

	for k, v := range ParamMap(req.Parameters, "values") {
		out[k] = v
	}

	return &Result{Outputs: domain.PortOutputs{PortMain: out}}, nil
}
