package graph

import (
	"errors"
	"testing"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/nodes"
)

// seed возвращает засев состояния: выход trigger-узла на порту main.
func seed(triggerID string, payload domain.Item) map[string]domain.PortOutputs {
	return map[string]domain.PortOutputs{
		triggerID: {nodes.PortMain: payload},
	}
}

func batchIDs(batch []*Node) []string {
	ids := make([]string, len(batch))
	for i, n := range batch {
		ids[i] = n.ID()
	}
	return ids
}

func wantBatch(t *testing.T, p *Progress, want ...string) []*Node {
	t.Helper()
	batch := p.NextBatch()
	got := batchIDs(batch)
	if len(got) != len(want) {
		t.Fatalf("NextBatch() = %v, ожидали %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NextBatch() = %v, ожидали %v", got, want)
		}
	}
	return batch
}

// recordMain фиксирует результат узла с единственным выходом main.
func recordMain(p *Progress, n *Node, item domain.Item) {
	p.Record(n, &nodes.Result{Outputs: domain.PortOutputs{nodes.PortMain: item}})
}

func TestProgressSequentialChain(t *testing.T) {
	g := mustBuild(t, workflow(
		[]domain.NodeSpec{
			node("start", "trigger.manual"),
			node("a", "data.set"),
			node("b", "data.set"),
			node("c", "data.set"),
		},
		[]domain.Connection{
			conn("start", "main", "a", "main"),
			conn("a", "main", "b", "main"),
			conn("b", "main", "c", "main"),
		},
	))

	p := NewProgress(g, 1000, seed("start", domain.Item{"x": 1}))

	for _, id := range []string{"a", "b", "c"} {
		batch := wantBatch(t, p, id)
		recordMain(p, batch[0], domain.Item{"x": 1})
	}
	if !p.Done() {
		t.Error("Done() = false после завершения цепочки")
	}
}

// Независимые узлы попадают в один батч и могут выполняться параллельно.
func TestProgressDiamondBatches(t *testing.T) {
	g := mustBuild(t, workflow(
		[]domain.NodeSpec{
			node("start", "trigger.manual"),
			node("a", "data.set"),
			node("b", "data.set"),
			node("c", "data.set"),
			node("join", "data.set"),
		},
		[]domain.Connection{
			conn("start", "main", "a", "main"),
			conn("a", "main", "b", "main"),
			conn("a", "main", "c", "main"),
			conn("b", "main", "join", "main"),
			conn("c", "main", "join", "main"),
		},
	))

	p := NewProgress(g, 1000, seed("start", domain.Item{}))

	batch := wantBatch(t, p, "a")
	recordMain(p, batch[0], domain.Item{"from": "a"})

	// b и c независимы — один батч.
	batch = wantBatch(t, p, "b", "c")
	recordMain(p, batch[0], domain.Item{"from": "b"})

	// join ждёт оба входа: после одного b узел ещё не готов.
	wantBatch(t, p, "c")
	recordMain(p, batch[1], domain.Item{"from": "c"})

	joinBatch := wantBatch(t, p, "join")
	inputs := p.InputsFor(joinBatch[0])
	if len(inputs[nodes.PortMain]) != 2 {
		t.Errorf("InputsFor(join): %d items на main, ожидали 2", len(inputs[nodes.PortMain]))
	}
}

// Условный узел активирует только выбранный порт; пропуск
// распространяется по невыбранной ветке, но не через точку слияния,
// у которой осталась активная ветка.
func TestProgressConditionalSkipPropagation(t *testing.T) {
	g := mustBuild(t, workflow(
		[]domain.NodeSpec{
			node("start", "trigger.manual"),
			node("cond", "logic.if"),
			node("yes", "data.set"),
			node("no", "data.set"),
			node("no2", "data.set"),
			node("join", "data.set"),
		},
		[]domain.Connection{
			conn("start", "main", "cond", "main"),
			conn("cond", "true", "yes", "main"),
			conn("cond", "false", "no", "main"),
			conn("no", "main", "no2", "main"),
			conn("yes", "main", "join", "main"),
			conn("no2", "main", "join", "main"),
		},
	))

	p := NewProgress(g, 1000, seed("start", domain.Item{}))

	batch := wantBatch(t, p, "cond")
	p.Record(batch[0], &nodes.Result{
		Outputs:      domain.PortOutputs{nodes.PortTrue: domain.Item{"ok": true}},
		SelectedPort: nodes.PortTrue,
	})

	if !p.Skipped("no") || !p.Skipped("no2") {
		t.Error("невыбранная ветка no -> no2 должна быть пропущена")
	}
	if p.Skipped("join") {
		t.Error("join имеет активную ветку и не должен быть пропущен")
	}

	batch = wantBatch(t, p, "yes")
	recordMain(p, batch[0], domain.Item{"ok": true})

	batch = wantBatch(t, p, "join")
	inputs := p.InputsFor(batch[0])
	if len(inputs[nodes.PortMain]) != 1 {
		t.Errorf("InputsFor(join): %d items, ожидали 1 (только активная ветка)", len(inputs[nodes.PortMain]))
	}
	recordMain(p, batch[0], domain.Item{})

	if !p.Done() {
		t.Error("Done() = false")
	}
}

func loopWorkflow() *domain.Workflow {
	return workflow(
		[]domain.NodeSpec{
			node("start", "trigger.manual"),
			node("head", "loop.counter"),
			node("body", "data.set"),
			node("after", "data.set"),
		},
		[]domain.Connection{
			conn("start", "main", "head", "main"),
			conn("head", "loop", "body", "main"),
			conn("body", "main", "head", "main"),
			conn("head", "done", "after", "main"),
		},
	)
}

// Тело цикла выполняется повторно: обратное ребро сбрасывает состояние
// тела, счётчик итераций головы растёт.
func TestProgressLoopIterations(t *testing.T) {
	g := mustBuild(t, loopWorkflow())
	p := NewProgress(g, 1000, seed("start", domain.Item{}))

	const iterations = 3
	for i := 1; i <= iterations; i++ {
		batch := wantBatch(t, p, "head")
		it, err := p.Visit(batch[0])
		if err != nil {
			t.Fatalf("Visit(head) итерация %d: %v", i, err)
		}
		if it != i {
			t.Fatalf("Visit(head) = %d, ожидали %d", it, i)
		}
		p.Record(batch[0], &nodes.Result{
			Outputs:      domain.PortOutputs{nodes.PortLoop: domain.Item{"index": i}},
			SelectedPort: nodes.PortLoop,
		})

		batch = wantBatch(t, p, "body")
		recordMain(p, batch[0], domain.Item{"index": i})
	}

	// Выход из цикла: порт done.
	batch := wantBatch(t, p, "head")
	if it, err := p.Visit(batch[0]); err != nil || it != iterations+1 {
		t.Fatalf("Visit(head) = %d, %v", it, err)
	}
	p.Record(batch[0], &nodes.Result{
		Outputs:      domain.PortOutputs{nodes.PortDone: domain.Item{}},
		SelectedPort: nodes.PortDone,
	})

	wantBatch(t, p, "after")
}

// Превышение предела итераций — фатальная ошибка запуска.
func TestProgressLoopLimitExceeded(t *testing.T) {
	w := loopWorkflow()
	w.Nodes[1].MaxIterations = 2

	g := mustBuild(t, w)
	p := NewProgress(g, 1000, seed("start", domain.Item{}))

	var limitErr error
	for i := 0; i < 5; i++ {
		batch := p.NextBatch()
		if len(batch) == 0 {
			t.Fatal("батч пуст до превышения предела")
		}
		n := batch[0]
		it, err := p.Visit(n)
		if err != nil {
			limitErr = err
			break
		}
		if n.IsLoopHead() {
			p.Record(n, &nodes.Result{
				Outputs:      domain.PortOutputs{nodes.PortLoop: domain.Item{"index": it}},
				SelectedPort: nodes.PortLoop,
			})
		} else {
			recordMain(p, n, domain.Item{})
		}
	}

	if !errors.Is(limitErr, ErrLoopLimitExceeded) {
		t.Errorf("err = %v, ожидали ErrLoopLimitExceeded", limitErr)
	}
}

// Входы узла — глубокие копии: мутация не видна другим узлам.
func TestProgressInputIsolation(t *testing.T) {
	g := mustBuild(t, workflow(
		[]domain.NodeSpec{
			node("start", "trigger.manual"),
			node("a", "data.set"),
			node("b", "data.set"),
		},
		[]domain.Connection{
			conn("start", "main", "a", "main"),
			conn("start", "main", "b", "main"),
		},
	))

	p := NewProgress(g, 1000, seed("start", domain.Item{
		"payload": map[string]any{"x": 1},
	}))

	batch := wantBatch(t, p, "a", "b")

	inputsA := p.InputsFor(batch[0])
	inputsA[nodes.PortMain][0]["payload"].(map[string]any)["x"] = 999

	inputsB := p.InputsFor(batch[1])
	if got := inputsB[nodes.PortMain][0]["payload"].(map[string]any)["x"]; got != 1 {
		t.Errorf("мутация входа узла a видна узлу b: x = %v", got)
	}
}
