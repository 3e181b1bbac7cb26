// Package config читает конфигурацию сервиса из переменных окружения.
package config

import (
	"os"
	"strconv"
	"time"
)

// Значения по умолчанию повторяют параметры onboarding-цепочки:
// опрос раз в 5 секунд, потолок 15 попыток, дедлайн chain 5 минут.
const (
	defaultAPIPort       = "8080"
	defaultChainTimeout  = 300 * time.Second
	defaultRetryInterval = 5 * time.Second
	defaultMaxAttempts   = 15

	defaultSharedVPCStatusURL = "http://localhost:5001/status"
	defaultVPCSCStatusURL     = "http://localhost:5002/status"

	defaultEvictInterval  = 10 * time.Minute
	defaultEvictRetention = 24 * time.Hour
)

// Config — конфигурация сервиса.
type Config struct {
	// APIPort — порт HTTP API.
	APIPort string

	// ChainTimeout — дедлайн всего chain; 0 отключает дедлайн.
	ChainTimeout time.Duration

	// RetryInterval — пауза между попытками задач blueprint'а.
	RetryInterval time.Duration

	// MaxAttempts — потолок попыток задач blueprint'а.
	MaxAttempts int

	// SharedVPCStatusURL, VPCSCStatusURL — status endpoints внешних
	// lookup-операций.
	SharedVPCStatusURL string
	VPCSCStatusURL     string

	// DBURL — DSN PostgreSQL для архива; пусто — архив выключен.
	DBURL string

	// RabbitURL — адрес RabbitMQ для событий; пусто — события выключены.
	RabbitURL string

	// EvictInterval — период сметания janitor'а.
	EvictInterval time.Duration

	// EvictCron — cron-выражение вместо фиксированного интервала;
	// пусто — используется EvictInterval.
	EvictCron string

	// EvictRetention — сколько хранить финализированные записи;
	// 0 отключает eviction полностью.
	EvictRetention time.Duration
}

// Load читает конфигурацию из окружения с дефолтами.
func Load() Config {
	return Config{
		APIPort:            getEnv("API_PORT", defaultAPIPort),
		ChainTimeout:       getEnvDuration("CHAIN_TIMEOUT_SEC", defaultChainTimeout),
		RetryInterval:      getEnvDuration("TASK_RETRY_INTERVAL_SEC", defaultRetryInterval),
		MaxAttempts:        getEnvInt("TASK_MAX_ATTEMPTS", defaultMaxAttempts),
		SharedVPCStatusURL: getEnv("SHARED_VPC_STATUS_URL", defaultSharedVPCStatusURL),
		VPCSCStatusURL:     getEnv("VPC_SC_STATUS_URL", defaultVPCSCStatusURL),
		DBURL:              getEnv("DB_URL", ""),
		RabbitURL:          getEnv("RABBITMQ_URL", ""),
		EvictInterval:      getEnvDuration("EVICT_INTERVAL_SEC", defaultEvictInterval),
		EvictCron:          getEnv("EVICT_CRON", ""),
		EvictRetention:     getEnvDuration("EVICT_RETENTION_SEC", defaultEvictRetention),
	}
}

// getEnv возвращает значение переменной или дефолт.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt возвращает целое значение переменной или дефолт.
// Невалидные значения игнорируются в пользу дефолта.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getEnvDuration читает переменную как число секунд.
// Отрицательные и невалидные значения игнорируются; явный 0 валиден —
// им отключают таймауты и retention.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
