package graph

import (
	"strings"

	"github.com/shaiso/Nodeflow/internal/nodes"
)

// buildNodes создаёт узлы графа, проверяя определения:
//   - непустые и уникальные ID;
//   - тип узла зарегистрирован в реестре;
//   - ровно один trigger-узел на workflow.
func (g *Graph) buildNodes(registry *nodes.Registry, verr *ValidationError) {
	var triggers []*Node

	for i := range g.Workflow.Nodes {
		spec := &g.Workflow.Nodes[i]

		if strings.TrimSpace(spec.ID) == "" {
			verr.add("", "nodes", "node at position %d has empty id", i)
			continue
		}
		if _, exists := g.Nodes[spec.ID]; exists {
			verr.add(spec.ID, "nodes", "duplicate node id")
			continue
		}

		cap, err := registry.Resolve(spec.Type)
		if err != nil {
			verr.add(spec.ID, "nodes", "unknown node type %q", spec.Type)
			continue
		}

		n := &Node{
			Spec: spec,
			Cap:  cap,
			Desc: cap.Describe(),
			Out:  make(map[string][]*Edge),
		}
		g.Nodes[spec.ID] = n

		if n.Desc.Kind == nodes.KindTrigger {
			triggers = append(triggers, n)
		}
	}

	switch len(triggers) {
	case 0:
		verr.add("", "nodes", "workflow has no trigger node")
	case 1:
		g.Start = triggers[0]
	default:
		ids := make([]string, len(triggers))
		for i, n := range triggers {
			ids[i] = n.ID()
		}
		verr.add("", "nodes", "workflow has %d trigger nodes (%s), expected exactly one",
			len(triggers), strings.Join(ids, ", "))
	}
}

// buildEdges создаёт рёбра, проверяя соединения:
//   - оба конца указывают на существующие узлы;
//   - trigger-узел не может быть приёмником;
//   - порты объявлены в декларациях типов.
func (g *Graph) buildEdges(verr *ValidationError) {
	for i := range g.Workflow.Connections {
		c := &g.Workflow.Connections[i]

		from, ok := g.Nodes[c.FromNode]
		if !ok {
			verr.add("", "connections", "connection %d: source node %q does not exist", i, c.FromNode)
			continue
		}
		to, ok := g.Nodes[c.ToNode]
		if !ok {
			verr.add("", "connections", "connection %d: target node %q does not exist", i, c.ToNode)
			continue
		}

		// Проверяется до портов: у trigger-узлов нет входных портов,
		// и проверка порта перехватила бы нарушение с другим текстом.
		if to.Desc.Kind == nodes.KindTrigger {
			verr.add(to.ID(), "connections", "trigger node cannot be a connection target")
			continue
		}

		if !from.Desc.HasOutput(c.FromPort) {
			verr.add(from.ID(), "connections", "output port %q is not declared by type %s",
				c.FromPort, from.Desc.Type)
			continue
		}
		if !to.Desc.HasInput(c.ToPort) {
			verr.add(to.ID(), "connections", "input port %q is not declared by type %s",
				c.ToPort, to.Desc.Type)
			continue
		}

		e := &Edge{
			From:     from,
			FromPort: c.FromPort,
			To:       to,
			ToPort:   c.ToPort,
		}
		from.Out[c.FromPort] = append(from.Out[c.FromPort], e)
		to.In = append(to.In, e)
	}
}
