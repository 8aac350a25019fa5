package graph

import (
	"fmt"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/nodes"
)

// edgeState — состояние ребра в рамках одного запуска.
type edgeState uint8

const (
	// edgeUnknown — источник ещё не выполнен, решение не принято.
	edgeUnknown edgeState = iota

	// edgeActive — источник выполнен, данные по ребру переданы.
	edgeActive

	// edgeSkipped — ребро исключено из запуска (невыбранный порт
	// условного узла либо пропущенная ветка).
	edgeSkipped
)

// Progress — изменяемое состояние обхода графа в рамках одного запуска.
//
// Планировщик работает батчами: NextBatch возвращает все узлы, готовые
// к выполнению, движок выполняет их (возможно, параллельно) и фиксирует
// результаты через Record. Узел готов, когда ни одно его входящее
// не-обратное ребро не находится в состоянии Unknown и хотя бы одно
// входящее ребро активно.
//
// Не потокобезопасен: владелец — один runner запуска, результаты
// батча фиксируются последовательно.
type Progress struct {
	g       *Graph
	edges   map[*Edge]edgeState
	visited map[*Node]bool
	skipped map[*Node]bool
	outputs map[string]domain.PortOutputs
	iters   map[*Node]int
	maxIter int
}

// NewProgress создаёт состояние обхода, засеянное уже имеющимися
// выходами узлов (как минимум — выходом trigger-узла).
func NewProgress(g *Graph, maxIterations int, seed map[string]domain.PortOutputs) *Progress {
	p := &Progress{
		g:       g,
		edges:   make(map[*Edge]edgeState),
		visited: make(map[*Node]bool),
		skipped: make(map[*Node]bool),
		outputs: CloneNodeOutputs(seed),
		iters:   make(map[*Node]int),
		maxIter: maxIterations,
	}
	if p.outputs == nil {
		p.outputs = make(map[string]domain.PortOutputs)
	}

	for id := range p.outputs {
		n := g.Nodes[id]
		if n == nil {
			continue
		}
		p.visited[n] = true
		for _, es := range n.Out {
			for _, e := range es {
				p.activate(e)
			}
		}
	}

	return p
}

// NextBatch возвращает все узлы, готовые к выполнению, в порядке
// определения узлов workflow. Пустой батч означает, что запуск
// завершён: активных путей больше нет.
func (p *Progress) NextBatch() []*Node {
	var batch []*Node
	for i := range p.g.Workflow.Nodes {
		n := p.g.Nodes[p.g.Workflow.Nodes[i].ID]
		if n != nil && p.runnable(n) {
			batch = append(batch, n)
		}
	}
	return batch
}

// Done возвращает true, когда готовых узлов больше нет.
func (p *Progress) Done() bool {
	return len(p.NextBatch()) == 0
}

// Visit фиксирует начало выполнения узла и возвращает номер его
// итерации (для узлов вне циклов — всегда 1).
//
// Для loop-controller инкрементирует счётчик итераций и проверяет
// предел: по умолчанию из конфигурации движка, с per-node override
// через NodeSpec.MaxIterations. Превышение — ErrLoopLimitExceeded.
func (p *Progress) Visit(n *Node) (int, error) {
	if n.IsLoopHead() {
		p.iters[n]++
		limit := p.maxIter
		if n.Spec.MaxIterations > 0 {
			limit = n.Spec.MaxIterations
		}
		if limit > 0 && p.iters[n] > limit {
			return p.iters[n], fmt.Errorf("node %s: %w (limit %d)", n.ID(), ErrLoopLimitExceeded, limit)
		}
		return p.iters[n], nil
	}
	if n.loopHead != nil {
		if it := p.iters[n.loopHead]; it > 0 {
			return it, nil
		}
	}
	return 1, nil
}

// Record фиксирует результат выполнения узла: сохраняет выходы
// и разрешает состояния исходящих рёбер.
//
// Для условных узлов (Result.SelectedPort непуст) активируются только
// рёбра выбранного порта; рёбра остальных портов помечаются
// пропущенными, и пропуск распространяется вниз по графу до фикспоинта.
// Loop-controller — исключение: пока цикл продолжается, рёбра
// невыбранных портов остаются неразрешёнными.
func (p *Progress) Record(n *Node, result *nodes.Result) {
	p.visited[n] = true
	p.outputs[n.ID()] = ClonePortOutputs(result.Outputs)

	selected := result.SelectedPort

	// Цикл продолжается, если выбранный порт ведёт внутрь тела.
	continues := false
	if selected != "" && n.IsLoopHead() {
		for _, e := range n.Out[selected] {
			if e.To.scc == n.scc {
				continues = true
			}
		}
	}

	for _, port := range n.Desc.Outputs {
		switch {
		case selected == "" || port == selected:
			for _, e := range n.Out[port] {
				p.activate(e)
			}
		case continues:
			// Порт выхода из цикла решится на следующей итерации.
		default:
			for _, e := range n.Out[port] {
				p.skip(e)
			}
		}
	}
}

// InputsFor собирает входы узла с активных входящих рёбер,
// сгруппированные по входным портам. Каждый item — глубокая копия:
// узел не может мутировать выходы предшественников.
func (p *Progress) InputsFor(n *Node) map[string][]domain.Item {
	inputs := make(map[string][]domain.Item)
	for _, e := range n.In {
		if p.edges[e] != edgeActive {
			continue
		}
		if item, ok := p.outputs[e.From.ID()][e.FromPort]; ok {
			inputs[e.ToPort] = append(inputs[e.ToPort], CloneItem(item))
		}
	}
	return inputs
}

// TriggerID возвращает ID trigger-узла графа.
func (p *Progress) TriggerID() string {
	return p.g.Start.ID()
}

// Outputs возвращает глубокую копию накопленных выходов всех узлов
// (снимок для персистентности).
func (p *Progress) Outputs() map[string]domain.PortOutputs {
	return CloneNodeOutputs(p.outputs)
}

// Visited возвращает true, если узел выполнен в текущем запуске.
func (p *Progress) Visited(id string) bool {
	n := p.g.Nodes[id]
	return n != nil && p.visited[n]
}

// Skipped возвращает true, если узел пропущен в текущем запуске.
func (p *Progress) Skipped(id string) bool {
	n := p.g.Nodes[id]
	return n != nil && p.skipped[n]
}

// Iteration возвращает текущий номер итерации loop-controller узла.
func (p *Progress) Iteration(id string) int {
	n := p.g.Nodes[id]
	if n == nil {
		return 0
	}
	return p.iters[n]
}

// runnable проверяет готовность узла к выполнению.
func (p *Progress) runnable(n *Node) bool {
	if p.visited[n] || p.skipped[n] {
		return false
	}
	active := false
	for _, e := range n.In {
		switch p.edges[e] {
		case edgeActive:
			active = true
		case edgeUnknown:
			// Обратные рёбра не блокируют первый заход в цикл.
			if !e.Back {
				return false
			}
		}
	}
	return active
}

// activate активирует ребро. Активация обратного ребра в уже
// выполненную голову цикла означает повторный заход: тело цикла
// сбрасывается для следующей итерации.
func (p *Progress) activate(e *Edge) {
	if e.Back && p.visited[e.To] {
		p.reenterLoop(e)
		return
	}
	p.edges[e] = edgeActive
}

// reenterLoop сбрасывает состояние тела цикла перед новой итерацией:
// члены тела снова не посещены, внутренние рёбра — неразрешены,
// активировано только пришедшее обратное ребро. Счётчик итераций
// головы сохраняется.
func (p *Progress) reenterLoop(back *Edge) {
	head := back.To
	inBody := make(map[*Node]bool, len(head.loopBody))
	for _, m := range head.loopBody {
		inBody[m] = true
	}

	for _, m := range head.loopBody {
		delete(p.visited, m)
		delete(p.skipped, m)
		for _, es := range m.Out {
			for _, e := range es {
				if inBody[e.To] {
					delete(p.edges, e)
				}
			}
		}
	}

	p.edges[back] = edgeActive
}

// skip помечает ребро пропущенным и распространяет пропуск: узел,
// у которого все не-обратные входящие рёбра пропущены, пропускается
// целиком вместе со своими исходящими рёбрами.
func (p *Progress) skip(e *Edge) {
	if p.edges[e] == edgeSkipped {
		return
	}
	p.edges[e] = edgeSkipped

	to := e.To
	if p.visited[to] || p.skipped[to] {
		return
	}
	for _, in := range to.In {
		if !in.Back && p.edges[in] != edgeSkipped {
			return
		}
	}

	p.skipped[to] = true
	for _, es := range to.Out {
		for _, out := range es {
			p.skip(out)
		}
	}
}
