// Package janitor периодически удаляет из реестра старые
// финализированные записи chains.
//
// Реестр живёт в памяти и без eviction растёт неограниченно за время
// жизни процесса. Janitor сметает записи, финализированные раньше
// retention-порога; выполняющиеся chains не трогаются никогда.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"conveyor/internal/telemetry"
	"conveyor/internal/tracker"
)

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Config — конфигурация Janitor.
type Config struct {
	// Tracker — реестр, который нужно подметать. Обязателен.
	Tracker *tracker.Tracker

	// Retention — сколько хранить финализированные записи.
	// 0 отключает eviction: Start ничего не запускает.
	Retention time.Duration

	// Interval — период между сметаниями.
	Interval time.Duration

	// CronExpr — расписание сметаний cron-выражением; если задано,
	// имеет приоритет над Interval.
	CronExpr string

	Logger *slog.Logger
}

// Janitor — фоновый сборщик финализированных записей.
type Janitor struct {
	tracker   *tracker.Tracker
	retention time.Duration
	interval  time.Duration
	schedule  cron.Schedule
	logger    *slog.Logger
}

// New создаёт Janitor. Невалидное cron-выражение — ошибка конфигурации,
// тихий fallback на интервал скрывал бы опечатку в расписании.
func New(cfg Config) (*Janitor, error) {
	j := &Janitor{
		tracker:   cfg.Tracker,
		retention: cfg.Retention,
		interval:  cfg.Interval,
		logger:    cfg.Logger,
	}

	if cfg.CronExpr != "" {
		schedule, err := cronParser.Parse(cfg.CronExpr)
		if err != nil {
			return nil, fmt.Errorf("parse cron expression %q: %w", cfg.CronExpr, err)
		}
		j.schedule = schedule
	}

	return j, nil
}

// Start запускает цикл сметаний на отдельной горутине.
// Останавливается с завершением ctx. При Retention == 0 — no-op.
func (j *Janitor) Start(ctx context.Context) {
	if j.retention == 0 {
		j.logger.Info("janitor disabled: retention is zero")
		return
	}

	go j.loop(ctx)
}

func (j *Janitor) loop(ctx context.Context) {
	j.logger.Info("janitor started",
		"retention", j.retention,
		"interval", j.interval,
		"cron", j.schedule != nil,
	)

	for {
		if err := j.sleepUntilNext(ctx); err != nil {
			j.logger.Info("janitor stopped")
			return
		}
		j.Tick(time.Now())
	}
}

// sleepUntilNext ждёт следующего сметания: по cron-расписанию, если оно
// задано, иначе по фиксированному интервалу.
func (j *Janitor) sleepUntilNext(ctx context.Context) error {
	wait := j.interval
	if j.schedule != nil {
		now := time.Now()
		wait = j.schedule.Next(now).Sub(now)
	}

	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick выполняет одно сметание: удаляет записи, финализированные раньше
// now-retention. Возвращает число удалённых.
func (j *Janitor) Tick(now time.Time) int {
	evicted := j.tracker.EvictBefore(now.Add(-j.retention))
	if evicted > 0 {
		telemetry.ChainsEvicted.Add(float64(evicted))
		j.logger.Info("evicted finished chains", "count", evicted)
	}
	return evicted
}
