package nodes

import (
	"context"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// DataTransform — узел "data.transform": перестраивает входной item.
//
// Операции применяются в порядке pick → rename → drop:
//   - pick оставляет только перечисленные поля (пустой список — все)
//   - rename переименовывает поля (старое имя → новое)
//   - drop удаляет перечисленные поля
//
// В отличие от data.set, не добавляет новых значений — только
// перестраивает то, что пришло на вход.
//
// Parameters:
//   - pick ([]string): поля, которые нужно оставить
//   - rename (map): переименования, старое имя → новое
//   - drop ([]string): поля, которые нужно удалить
type DataTransform struct{}

// Describe возвращает декларацию типа.
func (n *DataTransform) Describe() Descriptor {
	return Descriptor{
		Type:    "data.transform",
		Kind:    KindAction,
		Inputs:  []string{PortMain},
		Outputs: []string{PortMain},
	}
}

// Execute перестраивает входной item.
func (n *DataTransform) Execute(_ context.Context, req *Request) (*Result, error) {
	in := req.FirstInput()
	out := make(domain.Item, len(in))

	pick := ParamStringSlice(req.Parameters, "pick")
	if len(pick) > 0 {
		for _, key := range pick {
			if v, ok := in[key]; ok {
				out[key] = v
			}
		}
	} else {
		for k, v := range in {
			out[k] = v
		}
	}

	for oldKey, newKey := range ParamStringMap(req.Parameters, "rename") {
		if v, ok := out[oldKey]; ok {
			delete(out, oldKey)
			out[newKey] = v
		}
	}

	for _, key := range ParamStringSlice(req.Parameters, "drop") {
		delete(out, key)
	}

	return &Result{Outputs: domain.PortOutputs{PortMain: out}}, nil
}
