package tracker

import (
	"math"
	"sync"
	"time"
)

// record — внутреннее состояние одного chain.
// Доступ только под mu Tracker'а; наружу отдаются снапшоты.
type record struct {
	id              string
	status          Status
	taskSequence    []string
	currentTask     string
	currentProgress *TaskProgress
	attempts        map[string]int
	completed       []CompletedTask
	startTime       time.Time
	lastUpdated     time.Time
	endTime         *time.Time
	errMsg          string
	failedTask      string
}

// terminal возвращает true, если запись финализирована.
func (r *record) terminal() bool {
	return r.endTime != nil
}

// Tracker — реестр состояния всех chains процесса.
//
// Все операции сериализуются за одним RWMutex: каждая из них O(1)
// и короткая, поэтому одна блокировка на весь реестр не является
// узким местом. Создаётся один раз в main и передаётся по ссылке.
type Tracker struct {
	mu     sync.RWMutex
	chains map[string]*record
}

// New создаёт пустой Tracker.
func New() *Tracker {
	return &Tracker{
		chains: make(map[string]*record),
	}
}

// StartChain регистрирует новый chain в состоянии running.
// Возвращает ErrChainExists, если id уже занят.
func (t *Tracker) StartChain(id string, taskNames []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.chains[id]; ok {
		return ErrChainExists
	}

	now := time.Now()
	seq := make([]string, len(taskNames))
	copy(seq, taskNames)

	t.chains[id] = &record{
		id:           id,
		status:       StatusRunning,
		taskSequence: seq,
		attempts:     make(map[string]int, len(seq)),
		completed:    make([]CompletedTask, 0, len(seq)),
		startTime:    now,
		lastUpdated:  now,
	}
	return nil
}

// RecordAttempt увеличивает счётчик попыток задачи и помечает её текущей.
// Вызывается исполнителем перед каждым вызовом work.
// Неизвестные id и финализированные записи игнорируются.
func (t *Tracker) RecordAttempt(id, task string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.chains[id]
	if !ok || rec.terminal() {
		return
	}

	rec.attempts[task]++
	rec.currentTask = task
	rec.lastUpdated = time.Now()
}

// UpdateTaskProgress сохраняет последний отчёт о прогрессе активной задачи.
// Неизвестные id и финализированные записи игнорируются.
func (t *Tracker) UpdateTaskProgress(id, task string, p TaskProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.chains[id]
	if !ok || rec.terminal() {
		return
	}

	rec.currentTask = task
	rec.currentProgress = &p
	rec.lastUpdated = time.Now()
}

// CompleteTask фиксирует успешное завершение задачи. Когда завершены все
// задачи последовательности, chain переходит в completed с установкой
// end_time. Возвращает статус записи после вызова, чтобы вызывающая
// сторона могла обнаружить переход в completed ровно один раз.
// Финализированные записи не изменяются.
func (t *Tracker) CompleteTask(id, task string, result map[string]any) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.chains[id]
	if !ok {
		return "", ErrChainNotFound
	}
	if rec.terminal() {
		return rec.status, nil
	}

	now := time.Now()
	rec.completed = append(rec.completed, CompletedTask{
		Task:           task,
		CompletionTime: now,
		Attempts:       rec.attempts[task],
		Result:         copyMap(result),
	})
	rec.lastUpdated = now

	if len(rec.completed) == len(rec.taskSequence) {
		rec.status = StatusCompleted
		rec.currentTask = ""
		rec.currentProgress = nil
		end := now
		rec.endTime = &end
	}
	return rec.status, nil
}

// FailChain переводит chain в failed с текстом ошибки и именем упавшей
// задачи. Терминальное состояние липкое: если end_time уже установлен,
// вызов ничего не меняет. Возвращает true, если переход применён.
func (t *Tracker) FailChain(id, errMsg, failedTask string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.chains[id]
	if !ok || rec.terminal() {
		return false
	}

	now := time.Now()
	rec.status = StatusFailed
	rec.errMsg = errMsg
	rec.failedTask = failedTask
	rec.lastUpdated = now
	end := now
	rec.endTime = &end
	return true
}

// GetStatus возвращает снимок записи chain или ErrChainNotFound.
func (t *Tracker) GetStatus(id string) (Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.chains[id]
	if !ok {
		return Snapshot{}, ErrChainNotFound
	}
	return rec.snapshot(), nil
}

// ListActive возвращает сокращённые снимки всех выполняющихся chains.
func (t *Tracker) ListActive() map[string]ActiveSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	active := make(map[string]ActiveSnapshot)
	for id, rec := range t.chains {
		if rec.status != StatusRunning {
			continue
		}
		active[id] = ActiveSnapshot{
			CurrentTask: rec.currentTask,
			Progress:    rec.progress(),
			StartTime:   rec.startTime,
			LastUpdated: rec.lastUpdated,
		}
	}
	return active
}

// EvictBefore удаляет финализированные записи, чей end_time раньше cutoff.
// Выполняющиеся chains не затрагиваются. Возвращает число удалённых.
func (t *Tracker) EvictBefore(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for id, rec := range t.chains {
		if rec.endTime != nil && rec.endTime.Before(cutoff) {
			delete(t.chains, id)
			evicted++
		}
	}
	return evicted
}

// Len возвращает общее число записей в реестре.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.chains)
}

// progress вычисляет агрегированный прогресс. Вызывается под mu.
func (r *record) progress() Progress {
	total := len(r.taskSequence)
	done := len(r.completed)

	var pct float64
	if total > 0 {
		pct = math.Round(float64(done)/float64(total)*100*100) / 100
	}
	return Progress{
		CompletedTasks: done,
		TotalTasks:     total,
		Percentage:     pct,
	}
}

// snapshot строит полный снимок записи с копиями слайсов и map.
// Вызывается под mu.
func (r *record) snapshot() Snapshot {
	seq := make([]string, len(r.taskSequence))
	copy(seq, r.taskSequence)

	completed := make([]CompletedTask, len(r.completed))
	copy(completed, r.completed)
	for i := range completed {
		completed[i].Result = copyMap(completed[i].Result)
	}

	attempts := make(map[string]int, len(r.attempts))
	for k, v := range r.attempts {
		attempts[k] = v
	}

	var curProgress *TaskProgress
	if r.currentProgress != nil {
		p := *r.currentProgress
		curProgress = &p
	}

	var end *time.Time
	if r.endTime != nil {
		e := *r.endTime
		end = &e
	}

	return Snapshot{
		ChainID:         r.id,
		Status:          r.status,
		Progress:        r.progress(),
		TaskSequence:    seq,
		CurrentTask:     r.currentTask,
		CurrentProgress: curProgress,
		CompletedTasks:  completed,
		Attempts:        attempts,
		StartTime:       r.startTime,
		LastUpdated:     r.lastUpdated,
		EndTime:         end,
		Error:           r.errMsg,
		FailedTask:      r.failedTask,
	}
}

// copyMap делает неглубокую копию map результата.
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
