package graph

import (
	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/nodes"
)

// Edge — скомпилированное ребро графа.
type Edge struct {
	// From — узел-источник.
	From *Node

	// FromPort — выходной порт источника.
	FromPort string

	// To — узел-приёмник.
	To *Node

	// ToPort — входной порт приёмника.
	ToPort string

	// Back — обратное ребро цикла: лежит внутри SCC и ведёт
	// в loop-controller. Не учитывается при первичной проверке
	// готовности головы цикла.
	Back bool
}

// Node — скомпилированный узел графа.
type Node struct {
	// Spec — определение узла из workflow.
	Spec *domain.NodeSpec

	// Cap — разрешённая capability типа узла.
	Cap nodes.Capability

	// Desc — декларация типа (вариант, порты).
	Desc nodes.Descriptor

	// In — входящие рёбра.
	In []*Edge

	// Out — исходящие рёбра по выходным портам.
	Out map[string][]*Edge

	// scc — индекс компоненты сильной связности (Тарьян).
	scc int

	// loopBody — для loop-controller: члены его SCC (тело цикла,
	// включая саму голову). Сбрасываются при повторном заходе.
	loopBody []*Node

	// loopHead — для члена тела цикла: голова его цикла.
	// nil для узлов вне циклов и для самих голов.
	loopHead *Node
}

// ID возвращает идентификатор узла.
func (n *Node) ID() string {
	return n.Spec.ID
}

// IsLoopHead возвращает true для loop-controller узлов.
func (n *Node) IsLoopHead() bool {
	return n.Desc.Kind == nodes.KindLoop
}

// Graph — скомпилированный, провалидированный граф workflow.
//
// Строится один раз при dispatch (и при публикации — для валидации);
// во время выполнения только читается.
type Graph struct {
	// Workflow — исходное определение.
	Workflow *domain.Workflow

	// Nodes — узлы по ID.
	Nodes map[string]*Node

	// Start — trigger-узел, точка входа запуска.
	Start *Node
}

// Build компилирует и валидирует граф workflow.
//
// При структурных дефектах возвращает *ValidationError со всеми
// найденными нарушениями (см. validate.go).
func Build(w *domain.Workflow, registry *nodes.Registry) (*Graph, error) {
	g := &Graph{
		Workflow: w,
		Nodes:    make(map[string]*Node, len(w.Nodes)),
	}

	verr := &ValidationError{}

	g.buildNodes(registry, verr)
	g.buildEdges(verr)

	// Дальнейшие проверки требуют целостной структуры.
	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	g.markCycles(verr)
	g.checkReachability(verr)

	if err := verr.errOrNil(); err != nil {
		return nil, err
	}

	return g, nil
}

// Node возвращает узел по ID или nil.
func (g *Graph) Node(id string) *Node {
	return g.Nodes[id]
}

// Size возвращает количество узлов.
func (g *Graph) Size() int {
	return len(g.Nodes)
}

// markCycles находит компоненты сильной связности (алгоритм Тарьяна)
// и связывает loop-controller узлы с их телами. Несанкционированные
// циклы (SCC без loop-controller) регистрируются как нарушения.
func (g *Graph) markCycles(verr *ValidationError) {
	sccs := g.tarjan()

	for _, members := range sccs {
		cyclic := len(members) > 1
		if !cyclic {
			// Одиночный узел циклический только при self-loop.
			n := members[0]
			for _, edges := range n.Out {
				for _, e := range edges {
					if e.To == n {
						cyclic = true
					}
				}
			}
		}
		if !cyclic {
			continue
		}

		var heads []*Node
		for _, n := range members {
			if n.IsLoopHead() {
				heads = append(heads, n)
			}
		}

		if len(heads) == 0 {
			ids := make([]string, len(members))
			for i, n := range members {
				ids[i] = n.ID()
			}
			verr.add("", "connections", "cycle without loop-controller: %v", ids)
			continue
		}

		body := make([]*Node, len(members))
		copy(body, members)
		for _, head := range heads {
			head.loopBody = body
		}
		for _, n := range members {
			if !n.IsLoopHead() {
				n.loopHead = heads[0]
			}
		}

		// Помечаем обратные рёбра: внутри SCC, ведущие в голову цикла.
		for _, n := range members {
			for _, edges := range n.Out {
				for _, e := range edges {
					if e.To.scc == n.scc && e.To.IsLoopHead() {
						e.Back = true
					}
				}
			}
		}
	}
}

// tarjan возвращает компоненты сильной связности в детерминированном
// порядке обхода (порядок узлов workflow).
func (g *Graph) tarjan() [][]*Node {
	index := 0
	indices := make(map[*Node]int, len(g.Nodes))
	lowlink := make(map[*Node]int, len(g.Nodes))
	onStack := make(map[*Node]bool, len(g.Nodes))
	var stack []*Node
	var sccs [][]*Node
	sccIndex := 0

	var strongconnect func(n *Node)
	strongconnect = func(n *Node) {
		indices[n] = index
		lowlink[n] = index
		index++
		stack = append(stack, n)
		onStack[n] = true

		for _, edges := range n.Out {
			for _, e := range edges {
				m := e.To
				if _, seen := indices[m]; !seen {
					strongconnect(m)
					lowlink[n] = min(lowlink[n], lowlink[m])
				} else if onStack[m] {
					lowlink[n] = min(lowlink[n], indices[m])
				}
			}
		}

		if lowlink[n] == indices[n] {
			var members []*Node
			for {
				m := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[m] = false
				m.scc = sccIndex
				members = append(members, m)
				if m == n {
					break
				}
			}
			sccIndex++
			sccs = append(sccs, members)
		}
	}

	// Обходим в порядке определения узлов для детерминизма.
	for i := range g.Workflow.Nodes {
		n := g.Nodes[g.Workflow.Nodes[i].ID]
		if n == nil {
			continue
		}
		if _, seen := indices[n]; !seen {
			strongconnect(n)
		}
	}

	return sccs
}

// checkReachability находит узлы, недостижимые от trigger-узла.
func (g *Graph) checkReachability(verr *ValidationError) {
	if g.Start == nil {
		return
	}

	reached := make(map[*Node]bool, len(g.Nodes))
	queue := []*Node{g.Start}
	reached[g.Start] = true

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, edges := range n.Out {
			for _, e := range edges {
				if !reached[e.To] {
					reached[e.To] = true
					queue = append(queue, e.To)
				}
			}
		}
	}

	for i := range g.Workflow.Nodes {
		n := g.Nodes[g.Workflow.Nodes[i].ID]
		if n != nil && !reached[n] {
			verr.add(n.ID(), "connections", "node is unreachable from trigger")
		}
	}
}
