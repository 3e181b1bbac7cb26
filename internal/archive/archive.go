// Package archive пишет финализированные chains в PostgreSQL.
//
// Архив — write-only журнал для аудита и аналитики. Сервис никогда не
// читает его обратно: источником истины остаётся реестр в памяти,
// восстановление состояния после рестарта не предусмотрено.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"conveyor/internal/tracker"
)

// NewPool создаёт пул соединений с PostgreSQL и проверяет его ping'ом.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// Archiver сохраняет снимки финализированных chains.
type Archiver struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New создаёт новый Archiver.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Archiver {
	return &Archiver{
		pool:   pool,
		logger: logger,
	}
}

// EnsureSchema создаёт таблицу архива, если её нет.
func (a *Archiver) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS chain_history (
			id              TEXT PRIMARY KEY,
			status          TEXT NOT NULL,
			failed_task     TEXT,
			error           TEXT,
			tasks_total     INT NOT NULL,
			tasks_completed INT NOT NULL,
			attempts        JSONB,
			started_at      TIMESTAMPTZ NOT NULL,
			finished_at     TIMESTAMPTZ NOT NULL,
			archived_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := a.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create chain_history: %w", err)
	}
	return nil
}

// Record сохраняет снимок финализированного chain.
// Снимки без end_time не архивируются.
func (a *Archiver) Record(ctx context.Context, snap tracker.Snapshot) error {
	if snap.EndTime == nil {
		return fmt.Errorf("chain %s is not finished", snap.ChainID)
	}

	attemptsJSON, err := json.Marshal(snap.Attempts)
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}

	query := `
		INSERT INTO chain_history
			(id, status, failed_task, error, tasks_total, tasks_completed, attempts, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = a.pool.Exec(ctx, query,
		snap.ChainID,
		string(snap.Status),
		nullString(snap.FailedTask),
		nullString(snap.Error),
		snap.Progress.TotalTasks,
		snap.Progress.CompletedTasks,
		attemptsJSON,
		snap.StartTime,
		*snap.EndTime,
	)
	if err != nil {
		return fmt.Errorf("insert chain history: %w", err)
	}

	a.logger.Debug("chain archived", "chain_id", snap.ChainID, "status", snap.Status)
	return nil
}

// nullString возвращает nil для пустой строки (NULL в БД).
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
