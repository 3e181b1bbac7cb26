package tracker

import "time"

// Status — статус выполнения chain.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress — агрегированный прогресс chain: сколько задач завершено
// из общего числа и процент выполнения.
type Progress struct {
	CompletedTasks int     `json:"completed_tasks"`
	TotalTasks     int     `json:"total_tasks"`
	Percentage     float64 `json:"percentage"`
}

// TaskProgress — последний отчёт о прогрессе активной задачи
// (для polling-задач: данные из опрошенного status endpoint).
type TaskProgress struct {
	// Percent — прогресс задачи по данным удалённой стороны, 0..100.
	Percent float64 `json:"percent"`

	// Status — сырой статус из ответа удалённой стороны.
	Status string `json:"status,omitempty"`

	// ElapsedSec — сколько секунд задача уже выполняется.
	ElapsedSec float64 `json:"elapsed_sec"`
}

// CompletedTask — запись об успешно завершённой задаче.
// Слайс таких записей хранит порядок завершения.
type CompletedTask struct {
	// Task — имя задачи.
	Task string `json:"task"`

	// CompletionTime — момент завершения.
	CompletionTime time.Time `json:"completion_time"`

	// Attempts — сколько попыток понадобилось.
	Attempts int `json:"attempts"`

	// Result — результат работы задачи (payload), если есть.
	Result map[string]any `json:"result,omitempty"`
}

// Snapshot — неизменяемый снимок записи chain.
// Все слайсы и map — копии, снапшот безопасно использовать
// после освобождения блокировки реестра.
type Snapshot struct {
	ChainID         string          `json:"chain_id"`
	Status          Status          `json:"status"`
	Progress        Progress        `json:"progress"`
	TaskSequence    []string        `json:"task_sequence"`
	CurrentTask     string          `json:"current_task,omitempty"`
	CurrentProgress *TaskProgress   `json:"current_progress,omitempty"`
	CompletedTasks  []CompletedTask `json:"completed_tasks"`
	Attempts        map[string]int  `json:"attempts,omitempty"`
	StartTime       time.Time       `json:"start_time"`
	LastUpdated     time.Time       `json:"last_updated"`
	EndTime         *time.Time      `json:"end_time,omitempty"`
	Error           string          `json:"error,omitempty"`
	FailedTask      string          `json:"failed_task,omitempty"`
}

// ActiveSnapshot — сокращённый снимок выполняющегося chain
// для списка активных.
type ActiveSnapshot struct {
	CurrentTask string    `json:"current_task,omitempty"`
	Progress    Progress  `json:"progress"`
	StartTime   time.Time `json:"start_time"`
	LastUpdated time.Time `json:"last_updated"`
}
