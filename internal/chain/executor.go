package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"conveyor/internal/archive"
	"conveyor/internal/events"
	"conveyor/internal/telemetry"
	"conveyor/internal/tracker"
)

// Config — зависимости и настройки Executor.
type Config struct {
	// Tracker — реестр состояния chains. Обязателен.
	Tracker *tracker.Tracker

	// Timeout — дедлайн всего chain; 0 — без дедлайна.
	Timeout time.Duration

	// Logger — логгер; nil — slog.Default().
	Logger *slog.Logger

	// Events — публикация событий жизненного цикла; nil — выключено.
	Events *events.Publisher

	// Archive — архив финализированных chains; nil — выключено.
	Archive *archive.Archiver
}

// Executor — драйвер выполнения chains.
//
// Один Executor обслуживает все chains процесса: Launch поднимает
// горутину на каждый chain, внутри горутины задачи идут строго
// последовательно. Записью в реестр для конкретного id занимается
// только его горутина; читатели ходят в реестр напрямую.
type Executor struct {
	tracker *tracker.Tracker
	timeout time.Duration
	logger  *slog.Logger
	events  *events.Publisher
	archive *archive.Archiver

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New создаёт Executor.
func New(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Executor{
		tracker: cfg.Tracker,
		timeout: cfg.Timeout,
		logger:  logger,
		events:  cfg.Events,
		archive: cfg.Archive,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Request — дескриптор запуска одного chain: идентификатор,
// последовательность задач и initial context.
type Request struct {
	ID      string
	Tasks   []TaskSpec
	Initial Data
}

// Launch валидирует последовательность, регистрирует chain в реестре и
// запускает выполнение на отдельной горутине. Возвращается сразу, не
// дожидаясь результата: итог виден только через реестр.
func (e *Executor) Launch(req Request) error {
	if req.ID == "" {
		return ErrEmptyChainID
	}
	if err := ValidateSequence(req.Tasks); err != nil {
		return err
	}
	if err := e.tracker.StartChain(req.ID, TaskNames(req.Tasks)); err != nil {
		return err
	}

	telemetry.ChainsStarted.Inc()
	telemetry.ChainsActive.Inc()
	e.publishStarted(req)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.Execute(e.baseCtx, req.ID, req.Tasks, req.Initial)
	}()

	return nil
}

// Stop отменяет базовый контекст и дожидается завершения всех запущенных
// chains. Выполняющиеся chains финализируются с ошибкой отмены.
func (e *Executor) Stop() {
	e.cancel()
	e.wg.Wait()
}

// Execute выполняет задачи последовательности строго по порядку.
//
// Возвращает упорядоченный список результатов успешных задач,
// накопленных до первого падения (пустой, если упала первая задача), и
// терминальную ошибку, если chain не дошёл до конца. Частичное
// выполнение от полного отличают по терминальному статусу в реестре, а
// не по длине списка.
func (e *Executor) Execute(ctx context.Context, chainID string, tasks []TaskSpec, initial Data) ([]Result, error) {
	log := telemetry.WithChainID(e.logger, chainID)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	// Рабочие данные chain: initial context плюс результаты задач.
	// Копия — chain не должен делить map с вызывающей стороной.
	data := make(Data, len(initial)+len(tasks))
	for k, v := range initial {
		data[k] = v
	}

	log.Info("chain started", "tasks", len(tasks))

	results := make([]Result, 0, len(tasks))
	for i := range tasks {
		task := &tasks[i]

		res, err := e.runTask(ctx, chainID, task, data, log)
		if err != nil {
			e.failChain(chainID, task.Name, err, log)
			return results, err
		}

		if res.Output != nil {
			data[task.Name] = res.Output
		}

		st, cerr := e.tracker.CompleteTask(chainID, task.Name, res.Output)
		if cerr != nil {
			log.Error("failed to record task completion", "task", task.Name, "error", cerr)
		}
		if task.OnComplete != nil {
			task.OnComplete(res)
		}
		results = append(results, res)

		log.Info("task completed",
			"task", task.Name,
			"attempts", res.Attempts,
			"elapsed", res.Elapsed,
		)
		e.publishTaskCompleted(chainID, res, log)

		if st == tracker.StatusCompleted {
			e.completeChain(chainID, log)
		}
	}

	return results, nil
}

// runTask гонит retry-цикл одной задачи: одна попытка — один вызов
// Perform (для polling-задач — один опрос). Возвращает Result при
// успехе либо терминальную ошибку: исчерпание потолка попыток или
// завершение контекста chain.
func (e *Executor) runTask(ctx context.Context, chainID string, task *TaskSpec, data Data, log *slog.Logger) (Result, error) {
	start := time.Now()

	for attempt := 1; attempt <= task.MaxAttempts; attempt++ {
		e.tracker.RecordAttempt(chainID, task.Name)
		telemetry.TaskAttempts.WithLabelValues(task.Name).Inc()

		var outcome Outcome
		inputs, err := resolveInputs(task, data)
		if err == nil {
			outcome, err = task.Work.Perform(ctx, inputs)
		}

		if err == nil {
			if outcome.Status != "" || outcome.Progress > 0 {
				e.tracker.UpdateTaskProgress(chainID, task.Name, tracker.TaskProgress{
					Percent:    outcome.Progress,
					Status:     outcome.Status,
					ElapsedSec: time.Since(start).Seconds(),
				})
			}
			if outcome.Done {
				res := Result{
					Task:        task.Name,
					Attempts:    attempt,
					Output:      outcome.Output,
					Elapsed:     time.Since(start),
					CompletedAt: time.Now(),
				}
				telemetry.TaskDuration.WithLabelValues(task.Name).Observe(res.Elapsed.Seconds())
				return res, nil
			}
		}

		// Контекст chain умер — терминальная ошибка, не попытка
		if ctx.Err() != nil {
			return Result{}, terminalCtxError(ctx, task.Name)
		}

		if err != nil {
			log.Warn("task attempt failed",
				"task", task.Name,
				"attempt", attempt,
				"error", err,
			)
		} else {
			log.Debug("task not ready",
				"task", task.Name,
				"attempt", attempt,
				"status", outcome.Status,
				"progress", outcome.Progress,
			)
		}

		if attempt == task.MaxAttempts {
			break
		}

		// Пауза между попытками с учётом дедлайна chain
		select {
		case <-time.After(task.RetryInterval):
		case <-ctx.Done():
			return Result{}, terminalCtxError(ctx, task.Name)
		}
	}

	return Result{}, fmt.Errorf("task %s: %w", task.Name, ErrRetryExhausted)
}

// resolveInputs собирает значения required inputs задачи из данных
// chain. Отсутствие любого значения — ErrMissingInput, стоимостью в
// одну обычную попытку.
func resolveInputs(task *TaskSpec, data Data) (Data, error) {
	if len(task.RequiresInputs) == 0 {
		return nil, nil
	}

	inputs := make(Data, len(task.RequiresInputs))
	for _, name := range task.RequiresInputs {
		v, ok := data[name]
		if !ok {
			return nil, fmt.Errorf("%w: task %s requires %q", ErrMissingInput, task.Name, name)
		}
		inputs[name] = v
	}
	return inputs, nil
}

// terminalCtxError переводит завершение контекста в терминальную ошибку
// chain с именем активной задачи.
func terminalCtxError(ctx context.Context, task string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("task %s: %w", task, ErrChainTimeout)
	}
	return fmt.Errorf("task %s: %w", task, ctx.Err())
}

// failChain финализирует chain после терминальной ошибки.
// Повторная финализация невозможна: переход применяет только первый
// вызов, остальные — no-op.
func (e *Executor) failChain(chainID, task string, terminalErr error, log *slog.Logger) {
	if !e.tracker.FailChain(chainID, terminalErr.Error(), task) {
		return
	}

	telemetry.ChainsActive.Dec()
	telemetry.ChainsFailed.WithLabelValues(failReason(terminalErr)).Inc()

	log.Warn("chain failed", "task", task, "error", terminalErr)

	if e.events != nil {
		err := e.events.PublishChainFailed(context.Background(), events.ChainFailedPayload{
			ChainID:    chainID,
			FailedTask: task,
			Error:      terminalErr.Error(),
		})
		if err != nil {
			log.Warn("failed to publish chain.failed", "error", err)
		}
	}
	e.archiveChain(chainID, log)
}

// completeChain финализирует chain после успеха всех задач.
func (e *Executor) completeChain(chainID string, log *slog.Logger) {
	telemetry.ChainsActive.Dec()
	telemetry.ChainsCompleted.Inc()

	snap, err := e.tracker.GetStatus(chainID)
	if err != nil {
		log.Error("failed to read completed chain", "error", err)
		return
	}

	log.Info("chain completed",
		"tasks", snap.Progress.CompletedTasks,
		"elapsed", snap.EndTime.Sub(snap.StartTime),
	)

	if e.events != nil {
		perr := e.events.PublishChainCompleted(context.Background(), events.ChainCompletedPayload{
			ChainID:        chainID,
			TasksCompleted: snap.Progress.CompletedTasks,
			ElapsedSec:     snap.EndTime.Sub(snap.StartTime).Seconds(),
		})
		if perr != nil {
			log.Warn("failed to publish chain.completed", "error", perr)
		}
	}
	e.archiveChain(chainID, log)
}

// archiveChain пишет финализированный снимок в архив.
// Собственный контекст: дедлайн chain к этому моменту может быть мёртв.
func (e *Executor) archiveChain(chainID string, log *slog.Logger) {
	if e.archive == nil {
		return
	}

	snap, err := e.tracker.GetStatus(chainID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.archive.Record(ctx, snap); err != nil {
		log.Warn("failed to archive chain", "error", err)
	}
}

// publishStarted публикует событие о запуске chain.
func (e *Executor) publishStarted(req Request) {
	if e.events == nil {
		return
	}
	err := e.events.PublishChainStarted(context.Background(), events.ChainStartedPayload{
		ChainID:      req.ID,
		TaskSequence: TaskNames(req.Tasks),
	})
	if err != nil {
		e.logger.Warn("failed to publish chain.started", "chain_id", req.ID, "error", err)
	}
}

// publishTaskCompleted публикует событие о завершённой задаче.
func (e *Executor) publishTaskCompleted(chainID string, res Result, log *slog.Logger) {
	if e.events == nil {
		return
	}
	err := e.events.PublishTaskCompleted(context.Background(), events.TaskCompletedPayload{
		ChainID:    chainID,
		Task:       res.Task,
		Attempts:   res.Attempts,
		ElapsedSec: res.Elapsed.Seconds(),
	})
	if err != nil {
		log.Warn("failed to publish task.completed", "task", res.Task, "error", err)
	}
}

// failReason — метка причины падения для метрик.
func failReason(err error) string {
	switch {
	case errors.Is(err, ErrChainTimeout):
		return "timeout"
	case errors.Is(err, ErrRetryExhausted):
		return "retry_exhausted"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
