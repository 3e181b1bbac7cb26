package chain

import (
	"context"
	"time"
)

// Data — рабочие данные одного chain: значения initial context и
// результаты завершённых задач под их именами. Заполняется один раз
// на имя задачи при её успехе, читается более поздними задачами через
// RequiresInputs. Владеет данными исключительно горутина-исполнитель,
// синхронизация не нужна.
type Data map[string]any

// Outcome — нормализованный результат одного вызова work.
type Outcome struct {
	// Done — операция завершена; false означает «ещё не готово»,
	// попытка потрачена, после RetryInterval будет следующая.
	Done bool

	// Output — полезный результат задачи, попадает в Data при успехе.
	Output map[string]any

	// Progress — прогресс по данным удалённой стороны, 0..100
	// (polling-задачи).
	Progress float64

	// Status — сырой статус из ответа удалённой стороны (polling-задачи).
	Status string
}

// Work — способность выполнить одну попытку задачи.
//
// Контракт: (Outcome{Done: true, ...}, nil) — успех; (Outcome{}, err) и
// (Outcome{Done: false}, nil) эквивалентны — попытка не удалась, будет
// retry в пределах потолка. Perform обязан уважать ctx: дедлайн chain
// отменяет попытку на любой точке приостановки.
type Work interface {
	Perform(ctx context.Context, inputs Data) (Outcome, error)
}

// WorkFunc — адаптер, позволяющий использовать функцию как Work.
type WorkFunc func(ctx context.Context, inputs Data) (Outcome, error)

// Perform вызывает f.
func (f WorkFunc) Perform(ctx context.Context, inputs Data) (Outcome, error) {
	return f(ctx, inputs)
}

// TaskSpec — декларативное описание одного шага chain.
//
// TaskSpec не содержит изменяемого состояния: один слайс спеков можно
// разделять между любым числом одновременно выполняющихся chains.
type TaskSpec struct {
	// Name — имя задачи, уникальное внутри последовательности.
	Name string

	// Work — способность выполнить попытку.
	Work Work

	// RetryInterval — пауза между попытками.
	RetryInterval time.Duration

	// MaxAttempts — потолок попыток, минимум 1.
	MaxAttempts int

	// RequiresInputs — имена более ранних задач (или ключи initial
	// context), чьи значения нужны этой задаче. Все должны
	// резолвиться до вызова work; порядок не важен.
	RequiresInputs []string

	// OnComplete — опциональный callback, вызывается не более одного
	// раза, только при успехе задачи.
	OnComplete func(Result)
}

// Result — итог успешно завершённой задачи.
type Result struct {
	// Task — имя задачи.
	Task string

	// Attempts — сколько попыток потрачено.
	Attempts int

	// Output — полезный результат, если есть.
	Output map[string]any

	// Elapsed — сколько заняла задача от первой попытки до успеха.
	Elapsed time.Duration

	// CompletedAt — момент успеха.
	CompletedAt time.Time
}

// TaskNames возвращает имена задач последовательности по порядку.
func TaskNames(specs []TaskSpec) []string {
	names := make([]string, len(specs))
	for i := range specs {
		names[i] = specs[i].Name
	}
	return names
}
