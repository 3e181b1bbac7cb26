// Package tasks собирает onboarding blueprint — последовательность
// задач, которую сервис выполняет для подключения проекта:
//
//  1. shared_vpc — опрос подключения service project к shared VPC
//  2. vpc_sc    — опрос включения проекта в VPC-SC периметр
//  3. handoff   — сводка по результатам двух проверок
//
// Конкретные lookup-операции живут во внешних сервисах; blueprint
// знает только их status endpoints и условие завершения.
package tasks

import (
	"context"
	"time"

	"conveyor/internal/chain"
)

// Имена задач blueprint'а.
const (
	TaskSharedVPC = "shared_vpc"
	TaskVPCSC     = "vpc_sc"
	TaskHandoff   = "handoff"
)

// statusDone — терминальный статус удалённой операции.
const statusDone = "DONE"

// Config — параметры сборки blueprint'а.
type Config struct {
	// SharedVPCStatusURL, VPCSCStatusURL — status endpoints
	// lookup-операций.
	SharedVPCStatusURL string
	VPCSCStatusURL     string

	// RetryInterval — пауза между опросами.
	RetryInterval time.Duration

	// MaxAttempts — потолок опросов на задачу.
	MaxAttempts int
}

// Onboarding возвращает последовательность задач onboarding'а.
// Результат неизменяем и разделяется всеми chains процесса.
func Onboarding(cfg Config) []chain.TaskSpec {
	return []chain.TaskSpec{
		{
			Name: TaskSharedVPC,
			Work: &chain.StatusProbe{
				URL:      cfg.SharedVPCStatusURL,
				Succeeds: chain.StatusIs(statusDone),
			},
			RetryInterval: cfg.RetryInterval,
			MaxAttempts:   cfg.MaxAttempts,
		},
		{
			Name: TaskVPCSC,
			Work: &chain.StatusProbe{
				URL:      cfg.VPCSCStatusURL,
				Succeeds: chain.StatusIs(statusDone),
			},
			RetryInterval: cfg.RetryInterval,
			MaxAttempts:   cfg.MaxAttempts,
		},
		{
			Name:           TaskHandoff,
			Work:           chain.WorkFunc(handoffSummary),
			RetryInterval:  cfg.RetryInterval,
			MaxAttempts:    1,
			RequiresInputs: []string{TaskSharedVPC, TaskVPCSC},
		},
	}
}

// handoffSummary сворачивает результаты проверок в итоговый отчёт.
// Синхронная задача: выполняется за один вызов, без опроса.
func handoffSummary(_ context.Context, inputs chain.Data) (chain.Outcome, error) {
	summary := map[string]any{
		"verified":   []string{TaskSharedVPC, TaskVPCSC},
		"shared_vpc": finalStatus(inputs[TaskSharedVPC]),
		"vpc_sc":     finalStatus(inputs[TaskVPCSC]),
	}
	return chain.Outcome{Done: true, Output: summary}, nil
}

// finalStatus вытаскивает статус из результата polling-задачи.
func finalStatus(v any) string {
	body, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	status, _ := body["status"].(string)
	return status
}
