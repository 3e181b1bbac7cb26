package chain

import "errors"

// Терминальные ошибки выполнения.
var (
	// ErrRetryExhausted — задача потратила весь потолок попыток.
	ErrRetryExhausted = errors.New("max attempts exceeded")

	// ErrChainTimeout — дедлайн всего chain истёк.
	ErrChainTimeout = errors.New("chain execution timeout")
)

// Ошибки одной попытки (поглощаются retry-циклом).
var (
	// ErrMissingInput — required input отсутствует в данных chain.
	ErrMissingInput = errors.New("missing required input")

	// ErrProbeFailed — опрос status endpoint'а не удался
	// (транспорт, не-200 статус или недекодируемое тело).
	ErrProbeFailed = errors.New("status probe failed")
)

// Ошибки валидации последовательности задач.
var (
	// ErrNoTasks — последовательность не содержит задач.
	ErrNoTasks = errors.New("task sequence is empty")

	// ErrEmptyTaskName — задача без имени.
	ErrEmptyTaskName = errors.New("task has empty name")

	// ErrDuplicateTaskName — несколько задач с одним именем.
	ErrDuplicateTaskName = errors.New("duplicate task name")

	// ErrNoWork — задача без work.
	ErrNoWork = errors.New("task has no work")

	// ErrBadAttempts — потолок попыток меньше 1.
	ErrBadAttempts = errors.New("max attempts must be at least 1")

	// ErrBadInterval — неположительный интервал между попытками.
	ErrBadInterval = errors.New("retry interval must be positive")

	// ErrSelfInput — задача требует собственный результат.
	ErrSelfInput = errors.New("task requires its own output")

	// ErrForwardInput — required input ссылается на более позднюю задачу.
	ErrForwardInput = errors.New("required input references a later task")

	// ErrEmptyChainID — запуск без идентификатора chain.
	ErrEmptyChainID = errors.New("chain id is empty")
)

// ValidationError — ошибка валидации последовательности с контекстом.
type ValidationError struct {
	Task    string // имя задачи, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Task != "" {
		return "task " + e.Task + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(task, field, message string, err error) *ValidationError {
	return &ValidationError{
		Task:    task,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
