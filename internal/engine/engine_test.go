package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/graph"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/queue"
)

// --- In-memory store ---

type memStore struct {
	mu        sync.Mutex
	workflows map[uuid.UUID]*domain.Workflow
	execs     map[uuid.UUID]*domain.Execution
	cancels   map[uuid.UUID]bool
	history   map[uuid.UUID][]domain.ExecutionStatus
}

func newMemStore() *memStore {
	return &memStore{
		workflows: make(map[uuid.UUID]*domain.Workflow),
		execs:     make(map[uuid.UUID]*domain.Execution),
		cancels:   make(map[uuid.UUID]bool),
		history:   make(map[uuid.UUID][]domain.ExecutionStatus),
	}
}

func (s *memStore) putWorkflow(wf *domain.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.ID] = wf
}

func (s *memStore) Workflow(_ context.Context, id uuid.UUID) (*domain.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s not found", id)
	}
	return wf, nil
}

func (s *memStore) Execution(_ context.Context, id uuid.UUID) (*domain.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, ok := s.execs[id]
	if !ok {
		return nil, fmt.Errorf("execution %s not found", id)
	}
	return copyExecution(exec), nil
}

func (s *memStore) SaveExecution(_ context.Context, exec *domain.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs[exec.ID] = copyExecution(exec)
	s.history[exec.ID] = append(s.history[exec.ID], exec.Status)
	return nil
}

// statusHistory возвращает статусы execution в порядке сохранения.
func (s *memStore) statusHistory(id uuid.UUID) []domain.ExecutionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ExecutionStatus(nil), s.history[id]...)
}

func (s *memStore) ListPendingExecutions(_ context.Context, limit int) ([]*domain.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Execution
	for _, exec := range s.execs {
		if exec.Status == domain.StatusPending && len(out) < limit {
			out = append(out, copyExecution(exec))
		}
	}
	return out, nil
}

func (s *memStore) RequestCancel(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = true
	return nil
}

func (s *memStore) CancelRequested(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels[id], nil
}

func copyExecution(exec *domain.Execution) *domain.Execution {
	cp := *exec
	cp.NodeOutputs = graph.CloneNodeOutputs(exec.NodeOutputs)
	if exec.Error != nil {
		errCopy := *exec.Error
		cp.Error = &errCopy
	}
	return &cp
}

// --- Тестовые узлы ---

// incrNode — увеличивает x входного item на 1.
type incrNode struct{}

func (n *incrNode) Describe() nodes.Descriptor {
	return nodes.Descriptor{Type: "test.incr", Kind: nodes.KindAction,
		Inputs: []string{nodes.PortMain}, Outputs: []string{nodes.PortMain}}
}

func (n *incrNode) Execute(_ context.Context, req *nodes.Request) (*nodes.Result, error) {
	in := req.FirstInput()
	x := 0
	switch v := in["x"].(type) {
	case int:
		x = v
	case float64:
		x = int(v)
	}
	return &nodes.Result{
		Outputs: domain.PortOutputs{nodes.PortMain: domain.Item{"x": x + 1}},
	}, nil
}

// flakyNode — отказывает первые failures попыток, затем выполняется.
type flakyNode struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (n *flakyNode) Describe() nodes.Descriptor {
	return nodes.Descriptor{Type: "test.flaky", Kind: nodes.KindAction,
		Inputs: []string{nodes.PortMain}, Outputs: []string{nodes.PortMain}}
}

func (n *flakyNode) Execute(_ context.Context, _ *nodes.Request) (*nodes.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.calls <= n.failures {
		return nil, nodes.Retryablef("transient failure %d", n.calls)
	}
	return &nodes.Result{
		Outputs: domain.PortOutputs{nodes.PortMain: domain.Item{"calls": n.calls}},
	}, nil
}

func (n *flakyNode) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// blockNode — сигналит о старте и ждёт release (или отмены ctx).
type blockNode struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockNode() *blockNode {
	return &blockNode{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (n *blockNode) Describe() nodes.Descriptor {
	return nodes.Descriptor{Type: "test.block", Kind: nodes.KindAction,
		Inputs: []string{nodes.PortMain}, Outputs: []string{nodes.PortMain}}
}

func (n *blockNode) Execute(ctx context.Context, _ *nodes.Request) (*nodes.Result, error) {
	n.started <- struct{}{}
	select {
	case <-n.release:
		return &nodes.Result{
			Outputs: domain.PortOutputs{nodes.PortMain: domain.Item{"blocked": true}},
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (n *blockNode) Release() {
	n.once.Do(func() { close(n.release) })
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	return Config{
		NodeTimeout:   time.Second,
		BackoffBase:   time.Millisecond,
		BackoffMax:    5 * time.Millisecond,
		RunRetryDelay: 10 * time.Millisecond,
		Workers:       2,
	}
}

func newTestEngine(t *testing.T, cfg Config, caps ...nodes.Capability) (*Engine, *memStore) {
	t.Helper()

	st := newMemStore()
	registry := nodes.NewRegistry()
	registry.RegisterDefaults()
	for _, c := range caps {
		registry.MustRegister(c)
	}

	eng, err := New(Params{Config: cfg, Store: st, Registry: registry, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng, st
}

// manualWorkflow — активный workflow с manual-триггером "start".
func manualWorkflow(specs []domain.NodeSpec, conns []domain.Connection) *domain.Workflow {
	return &domain.Workflow{
		ID:       uuid.New(),
		Name:     "test",
		IsActive: true,
		Nodes: append([]domain.NodeSpec{
			{ID: "start", Type: "trigger.manual"},
		}, specs...),
		Connections: conns,
		Trigger:     domain.TriggerConfig{Kind: domain.TriggerManual},
	}
}

func waitStatus(t *testing.T, st *memStore, id uuid.UUID, want domain.ExecutionStatus) *domain.Execution {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		exec, err := st.Execution(context.Background(), id)
		if err == nil && exec.Status == want {
			return exec
		}
		time.Sleep(5 * time.Millisecond)
	}

	exec, _ := st.Execution(context.Background(), id)
	t.Fatalf("execution не достиг статуса %s, текущий: %+v", want, exec)
	return nil
}

// --- Сценарии ---

// Цепочка start -> b -> c: payload {x:1} инкрементируется дважды.
func TestEngineChainExecution(t *testing.T) {
	eng, st := newTestEngine(t, fastConfig(), &incrNode{})
	defer eng.Close()

	wf := manualWorkflow(
		[]domain.NodeSpec{
			{ID: "b", Type: "test.incr"},
			{ID: "c", Type: "test.incr"},
		},
		[]domain.Connection{
			{FromNode: "start", FromPort: "main", ToNode: "b", ToPort: "main"},
			{FromNode: "b", FromPort: "main", ToNode: "c", ToPort: "main"},
		},
	)
	st.putWorkflow(wf)

	if err := eng.StartWorker(context.Background()); err != nil {
		t.Fatalf("StartWorker: %v", err)
	}

	exec, err := eng.TriggerWorkflow(context.Background(), wf.ID, domain.TriggerManual, domain.Item{"x": 1})
	if err != nil {
		t.Fatalf("TriggerWorkflow: %v", err)
	}

	final := waitStatus(t, st, exec.ID, domain.StatusSucceeded)

	got := final.NodeOutputs["c"][nodes.PortMain]["x"]
	if got != 3 {
		t.Errorf("выход узла c: x = %v, ожидали 3", got)
	}
	if final.Attempt != 1 {
		t.Errorf("Attempt = %d, ожидали 1", final.Attempt)
	}
}

// Узел отказывает дважды и выполняется с третьей попытки:
// execution успешен, run-level retry не задействован.
func TestEngineNodeRetrySucceeds(t *testing.T) {
	flaky := &flakyNode{failures: 2}
	cfg := fastConfig()
	cfg.MaxRetries = 3

	eng, st := newTestEngine(t, cfg, flaky)
	defer eng.Close()

	wf := manualWorkflow(
		[]domain.NodeSpec{{ID: "b", Type: "test.flaky"}},
		[]domain.Connection{
			{FromNode: "start", FromPort: "main", ToNode: "b", ToPort: "main"},
		},
	)
	st.putWorkflow(wf)

	eng.StartWorker(context.Background())
	exec, err := eng.TriggerWorkflow(context.Background(), wf.ID, domain.TriggerManual, nil)
	if err != nil {
		t.Fatalf("TriggerWorkflow: %v", err)
	}

	final := waitStatus(t, st, exec.ID, domain.StatusSucceeded)

	if calls := flaky.callCount(); calls != 3 {
		t.Errorf("узел вызван %d раз, ожидали 3", calls)
	}
	if final.Attempt != 1 {
		t.Errorf("Attempt = %d, run-level retry не должен был сработать", final.Attempt)
	}
}

// Узел исчерпывает попытки: execution FAILED с указанием узла.
func TestEngineNodeFailsAfterRetries(t *testing.T) {
	flaky := &flakyNode{failures: 1000}
	cfg := fastConfig()
	cfg.MaxRetries = 2
	cfg.RunRetries = -1 // без run-level retry

	eng, st := newTestEngine(t, cfg, flaky)
	defer eng.Close()

	wf := manualWorkflow(
		[]domain.NodeSpec{
			{ID: "b", Type: "test.flaky"},
			{ID: "c", Type: "data.set"},
		},
		[]domain.Connection{
			{FromNode: "start", FromPort: "main", ToNode: "b", ToPort: "main"},
			{FromNode: "b", FromPort: "main", ToNode: "c", ToPort: "main"},
		},
	)
	st.putWorkflow(wf)

	eng.StartWorker(context.Background())
	exec, _ := eng.TriggerWorkflow(context.Background(), wf.ID, domain.TriggerManual, nil)

	final := waitStatus(t, st, exec.ID, domain.StatusFailed)

	if final.Error == nil || final.Error.NodeID != "b" {
		t.Fatalf("Error = %+v, ожидали NodeID=b", final.Error)
	}
	if final.Error.Code != domain.ErrCodeNodeFailed {
		t.Errorf("Error.Code = %s, ожидали %s", final.Error.Code, domain.ErrCodeNodeFailed)
	}
	if calls := flaky.callCount(); calls != 2 {
		t.Errorf("узел вызван %d раз, ожидали 2 (MaxRetries)", calls)
	}
	if _, ok := final.NodeOutputs["c"]; ok {
		t.Error("узел c после упавшего b не должен был выполниться")
	}
}

// После run-level ошибки запуск ставится в очередь повторно.
func TestEngineRunLevelRetry(t *testing.T) {
	flaky := &flakyNode{failures: 1000}
	cfg := fastConfig()
	cfg.MaxRetries = 2
	cfg.RunRetries = 1

	eng, st := newTestEngine(t, cfg, flaky)
	defer eng.Close()

	wf := manualWorkflow(
		[]domain.NodeSpec{{ID: "b", Type: "test.flaky"}},
		[]domain.Connection{
			{FromNode: "start", FromPort: "main", ToNode: "b", ToPort: "main"},
		},
	)
	st.putWorkflow(wf)

	eng.StartWorker(context.Background())
	exec, _ := eng.TriggerWorkflow(context.Background(), wf.ID, domain.TriggerManual, nil)

	// Финальный FAILED наступает после второй run-level попытки.
	deadline := time.Now().Add(5 * time.Second)
	var final *domain.Execution
	for time.Now().Before(deadline) {
		e, _ := st.Execution(context.Background(), exec.ID)
		if e != nil && e.Status == domain.StatusFailed && e.Attempt == 2 {
			final = e
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if final == nil {
		t.Fatal("execution не достиг FAILED с Attempt=2")
	}

	// 2 попытки узла × 2 run-level попытки.
	if calls := flaky.callCount(); calls != 4 {
		t.Errorf("узел вызван %d раз, ожидали 4", calls)
	}
}

// При падении узла батча выходы его успешных соседей отбрасываются:
// в записи FAILED остаётся снимок до батча.
func TestEngineBatchFailureDiscardsSiblingOutputs(t *testing.T) {
	flaky := &flakyNode{failures: 1000}
	cfg := fastConfig()
	cfg.MaxRetries = 1
	cfg.RunRetries = -1

	eng, st := newTestEngine(t, cfg, flaky, &incrNode{})
	defer eng.Close()

	// start разветвляется на b и f — оба выполняются в одном батче.
	wf := manualWorkflow(
		[]domain.NodeSpec{
			{ID: "b", Type: "test.incr"},
			{ID: "f", Type: "test.flaky"},
		},
		[]domain.Connection{
			{FromNode: "start", FromPort: "main", ToNode: "b", ToPort: "main"},
			{FromNode: "start", FromPort: "main", ToNode: "f", ToPort: "main"},
		},
	)
	st.putWorkflow(wf)

	eng.StartWorker(context.Background())
	exec, _ := eng.TriggerWorkflow(context.Background(), wf.ID, domain.TriggerManual, domain.Item{"x": 1})

	final := waitStatus(t, st, exec.ID, domain.StatusFailed)

	if final.Error == nil || final.Error.NodeID != "f" {
		t.Fatalf("Error = %+v, ожидали NodeID=f", final.Error)
	}
	if _, ok := final.NodeOutputs["b"]; ok {
		t.Error("выход успешного соседа упавшего батча должен быть отброшен")
	}
	if _, ok := final.NodeOutputs["start"]; !ok {
		t.Error("trigger payload должен сохраниться")
	}
}

// Run-level retry не публикует промежуточный FAILED: терминальный
// статус сохраняется один раз, после решения о повторе.
func TestEngineRunRetryHidesIntermediateFailure(t *testing.T) {
	flaky := &flakyNode{failures: 1}
	cfg := fastConfig()
	cfg.MaxRetries = 1
	cfg.RunRetries = 1

	eng, st := newTestEngine(t, cfg, flaky)
	defer eng.Close()

	wf := manualWorkflow(
		[]domain.NodeSpec{{ID: "b", Type: "test.flaky"}},
		[]domain.Connection{
			{FromNode: "start", FromPort: "main", ToNode: "b", ToPort: "main"},
		},
	)
	st.putWorkflow(wf)

	eng.StartWorker(context.Background())
	exec, _ := eng.TriggerWorkflow(context.Background(), wf.ID, domain.TriggerManual, nil)

	final := waitStatus(t, st, exec.ID, domain.StatusSucceeded)
	if final.Attempt != 2 {
		t.Errorf("Attempt = %d, ожидали 2", final.Attempt)
	}

	for _, s := range st.statusHistory(exec.ID) {
		if s == domain.StatusFailed {
			t.Error("при run-level retry промежуточный FAILED не должен попадать в хранилище")
		}
	}
}

// Превышение предела итераций цикла — фатальная ошибка:
// запуск FAILED с кодом лимита, run-level retry не выполняется.
func TestEngineLoopLimitFatal(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxLoopIterations = 2
	cfg.RunRetries = 1

	eng, st := newTestEngine(t, cfg, &incrNode{})
	defer eng.Close()

	wf := manualWorkflow(
		[]domain.NodeSpec{
			{ID: "ctr", Type: "loop.counter", Parameters: map[string]any{"count": 100}},
			{ID: "body", Type: "test.incr"},
		},
		[]domain.Connection{
			{FromNode: "start", FromPort: "main", ToNode: "ctr", ToPort: "main"},
			{FromNode: "ctr", FromPort: "loop", ToNode: "body", ToPort: "main"},
			{FromNode: "body", FromPort: "main", ToNode: "ctr", ToPort: "main"},
		},
	)
	st.putWorkflow(wf)

	eng.StartWorker(context.Background())
	exec, _ := eng.TriggerWorkflow(context.Background(), wf.ID, domain.TriggerManual, nil)

	final := waitStatus(t, st, exec.ID, domain.StatusFailed)

	if final.Error == nil || final.Error.Code != domain.ErrCodeLoopLimit {
		t.Fatalf("Error = %+v, ожидали код %s", final.Error, domain.ErrCodeLoopLimit)
	}
	if final.Error.NodeID != "ctr" {
		t.Errorf("Error.NodeID = %s, ожидали ctr", final.Error.NodeID)
	}
	if final.Attempt != 1 {
		t.Errorf("Attempt = %d, фатальная ошибка не должна повторяться", final.Attempt)
	}
}

// Отмена наблюдается на границе батчей: выполненный батч сохраняется,
// следующий не запускается.
func TestEngineCancelBetweenBatches(t *testing.T) {
	block := newBlockNode()
	eng, st := newTestEngine(t, fastConfig(), block)
	defer eng.Close()

	wf := manualWorkflow(
		[]domain.NodeSpec{
			{ID: "b", Type: "test.block"},
			{ID: "c", Type: "data.set"},
		},
		[]domain.Connection{
			{FromNode: "start", FromPort: "main", ToNode: "b", ToPort: "main"},
			{FromNode: "b", FromPort: "main", ToNode: "c", ToPort: "main"},
		},
	)
	st.putWorkflow(wf)

	eng.StartWorker(context.Background())
	exec, _ := eng.TriggerWorkflow(context.Background(), wf.ID, domain.TriggerManual, nil)

	<-block.started
	if err := eng.CancelExecution(context.Background(), exec.ID); err != nil {
		t.Fatalf("CancelExecution: %v", err)
	}
	block.Release()

	final := waitStatus(t, st, exec.ID, domain.StatusCancelled)

	if _, ok := final.NodeOutputs["b"]; !ok {
		t.Error("результат завершившегося узла b должен быть сохранён")
	}
	if _, ok := final.NodeOutputs["c"]; ok {
		t.Error("узел c не должен был запуститься после отмены")
	}
}

// Заполненная очередь: запуск отклоняется без блокировки вызывающего.
func TestEngineQueueFull(t *testing.T) {
	cfg := fastConfig()
	cfg.QueueCapacity = 1

	eng, st := newTestEngine(t, cfg)
	defer eng.Close()

	wf := manualWorkflow(
		[]domain.NodeSpec{{ID: "b", Type: "data.set"}},
		[]domain.Connection{
			{FromNode: "start", FromPort: "main", ToNode: "b", ToPort: "main"},
		},
	)
	st.putWorkflow(wf)

	// Воркеры не запущены: первый запуск занимает единственный слот.
	if _, err := eng.TriggerWorkflow(context.Background(), wf.ID, domain.TriggerManual, nil); err != nil {
		t.Fatalf("TriggerWorkflow: %v", err)
	}

	exec, err := eng.TriggerWorkflow(context.Background(), wf.ID, domain.TriggerManual, nil)
	if !errors.Is(err, queue.ErrFull) {
		t.Fatalf("err = %v, ожидали ErrFull", err)
	}
	if exec != nil {
		t.Fatal("при отказе очереди execution не возвращается")
	}
}

func TestEngineTriggerValidation(t *testing.T) {
	eng, st := newTestEngine(t, fastConfig())
	defer eng.Close()

	inactive := manualWorkflow(nil, nil)
	inactive.IsActive = false
	st.putWorkflow(inactive)

	if _, err := eng.TriggerWorkflow(context.Background(), inactive.ID, domain.TriggerManual, nil); !errors.Is(err, ErrWorkflowInactive) {
		t.Errorf("неактивный workflow: err = %v, ожидали ErrWorkflowInactive", err)
	}

	webhookWF := &domain.Workflow{
		ID:       uuid.New(),
		IsActive: true,
		Nodes:    []domain.NodeSpec{{ID: "start", Type: "trigger.webhook"}},
		Trigger:  domain.TriggerConfig{Kind: domain.TriggerWebhook},
	}
	st.putWorkflow(webhookWF)

	// Cron-запуск webhook-workflow запрещён, manual — разрешён всегда.
	if _, err := eng.TriggerWorkflow(context.Background(), webhookWF.ID, domain.TriggerCron, nil); !errors.Is(err, ErrTriggerMismatch) {
		t.Errorf("cron для webhook-workflow: err = %v, ожидали ErrTriggerMismatch", err)
	}
	if _, err := eng.TriggerWorkflow(context.Background(), webhookWF.ID, domain.TriggerManual, nil); err != nil {
		t.Errorf("manual-запуск должен быть разрешён: %v", err)
	}
}

// Graceful drain: остановка пула возвращает незавершённый запуск
// в PENDING, после рестарта он выполняется заново.
func TestEngineGracefulDrain(t *testing.T) {
	block := newBlockNode()
	eng, st := newTestEngine(t, fastConfig(), block)
	defer eng.Close()

	wf := manualWorkflow(
		[]domain.NodeSpec{{ID: "b", Type: "test.block"}},
		[]domain.Connection{
			{FromNode: "start", FromPort: "main", ToNode: "b", ToPort: "main"},
		},
	)
	st.putWorkflow(wf)

	eng.StartWorker(context.Background())
	exec, _ := eng.TriggerWorkflow(context.Background(), wf.ID, domain.TriggerManual, nil)

	<-block.started
	eng.StopWorker()

	released := waitStatus(t, st, exec.ID, domain.StatusPending)
	if _, ok := released.NodeOutputs["start"]; !ok {
		t.Error("trigger payload должен сохраниться при drain")
	}
	if len(released.NodeOutputs) != 1 {
		t.Errorf("NodeOutputs = %v, при drain остаётся только trigger", released.NodeOutputs)
	}

	// Рестарт: recover подхватывает PENDING execution.
	block.Release()
	if err := eng.StartWorker(context.Background()); err != nil {
		t.Fatalf("повторный StartWorker: %v", err)
	}

	waitStatus(t, st, exec.ID, domain.StatusSucceeded)
}

func TestEngineStatus(t *testing.T) {
	eng, _ := newTestEngine(t, fastConfig())
	defer eng.Close()

	status := eng.Status()
	if status.WorkersRunning {
		t.Error("пул не запускался")
	}
	if status.NodeTypes == 0 {
		t.Error("встроенный каталог узлов пуст")
	}

	eng.StartWorker(context.Background())
	if !eng.Status().WorkersRunning {
		t.Error("пул запущен, Status должен это отражать")
	}
	eng.StopWorker()
}
