package nodes

import (
	"context"
	"fmt"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Kind — вариант узла. Определяет, как движок обращается с узлом.
type Kind string

const (
	// KindTrigger — узел без входов, начинает выполнение.
	// Его результат засевается Dispatcher'ом из trigger payload.
	KindTrigger Kind = "trigger"

	// KindAction — узел, преобразующий входы в выходы.
	KindAction Kind = "action"

	// KindConditional — узел, выбирающий один из выходных портов
	// (результат содержит SelectedPort).
	KindConditional Kind = "conditional"

	// KindLoop — loop-controller: единственный вид узла, который
	// планировщик может посещать повторно (в пределах лимита итераций).
	KindLoop Kind = "loop"
)

// PortMain — имя порта по умолчанию.
const PortMain = "main"

// Descriptor — декларация типа узла: вариант и объявленные порты.
//
// Планировщик использует Outputs для активации рёбер, валидация графа —
// Inputs/Outputs для проверки connections.
type Descriptor struct {
	// Type — имя типа узла (например, "http.request").
	Type string

	// Kind — вариант узла.
	Kind Kind

	// Inputs — объявленные входные порты. Пустой для триггеров.
	Inputs []string

	// Outputs — объявленные выходные порты.
	Outputs []string
}

// HasInput проверяет, объявлен ли входной порт.
func (d Descriptor) HasInput(port string) bool {
	for _, p := range d.Inputs {
		if p == port {
			return true
		}
	}
	return false
}

// HasOutput проверяет, объявлен ли выходной порт.
func (d Descriptor) HasOutput(port string) bool {
	for _, p := range d.Outputs {
		if p == port {
			return true
		}
	}
	return false
}

// Request — входные данные для выполнения узла.
//
// Inputs — глубокие копии данных предыдущих узлов: узел может
// свободно мутировать их, не влияя на общий контекст выполнения.
type Request struct {
	// NodeID — идентификатор узла в workflow.
	NodeID string

	// Inputs — входные данные: порт → items со всех активированных
	// входящих рёбер этого порта.
	Inputs map[string][]domain.Item

	// Parameters — параметры узла, уже отрендеренные
	// (шаблоны подставлены из контекста выполнения).
	Parameters map[string]any

	// Iteration — номер итерации для loop-controller узлов (с 1).
	// 0 для обычных узлов.
	Iteration int
}

// FirstInput возвращает первый item порта main (или nil).
// Удобство для узлов с единственным входом.
func (r *Request) FirstInput() domain.Item {
	items := r.Inputs[PortMain]
	if len(items) == 0 {
		return nil
	}
	return items[0]
}

// Result — результат выполнения узла.
type Result struct {
	// Outputs — данные по выходным портам: порт → item.
	Outputs domain.PortOutputs

	// SelectedPort — подсказка планировщику для conditional/loop узлов:
	// активировать только рёбра этого порта. Пустой — активировать все.
	SelectedPort string
}

// Capability — контракт, который реализует каждый тип узла.
//
// Execute может выполнять внешний I/O, но обязан уважать ctx
// (движок навешивает таймаут) и не должен держать внутренние
// блокировки движка. Инфраструктурные и логические ошибки
// возвращаются через error; *Error с Retryable=true будет
// автоматически повторён executor'ом.
type Capability interface {
	// Describe возвращает декларацию типа узла.
	Describe() Descriptor

	// Execute выполняет узел.
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// Error — ошибка выполнения узла.
type Error struct {
	// NodeID — узел, где произошла ошибка (заполняется executor'ом).
	NodeID string

	// Message — описание ошибки.
	Message string

	// Retryable — можно ли автоматически повторить попытку.
	Retryable bool

	// Err — базовая ошибка (опционально).
	Err error
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf создаёт неповторяемую (non-retryable) ошибку узла.
func Errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Retryablef создаёт повторяемую (retryable) ошибку узла.
func Retryablef(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Retryable: true}
}
