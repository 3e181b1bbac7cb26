package api

import (
	"log/slog"

	"conveyor/internal/chain"
	"conveyor/internal/tracker"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	executor  *chain.Executor
	tracker   *tracker.Tracker
	blueprint []chain.TaskSpec
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Executor запускает chains. Обязателен.
	Executor *chain.Executor

	// Tracker — реестр состояния chains. Обязателен.
	Tracker *tracker.Tracker

	// Blueprint — последовательность задач, которую запускает
	// trigger endpoint. Спеки неизменяемы, слайс разделяется всеми
	// одновременно выполняющимися chains.
	Blueprint []chain.TaskSpec

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		executor:  cfg.Executor,
		tracker:   cfg.Tracker,
		blueprint: cfg.Blueprint,
		logger:    cfg.Logger,
	}
}
