package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики выполнения chains.
var (
	// ChainsStarted — сколько chains запущено.
	ChainsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_chains_started_total",
		Help: "Total number of chains started.",
	})

	// ChainsCompleted — сколько chains завершилось успешно.
	ChainsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_chains_completed_total",
		Help: "Total number of chains that completed successfully.",
	})

	// ChainsFailed — сколько chains упало, по причинам
	// (retry_exhausted, timeout, canceled, error).
	ChainsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_chains_failed_total",
		Help: "Total number of failed chains by reason.",
	}, []string{"reason"})

	// ChainsActive — сколько chains выполняется сейчас.
	ChainsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "conveyor_chains_active",
		Help: "Number of chains currently running.",
	})

	// ChainsEvicted — сколько финализированных записей удалил janitor.
	ChainsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_chains_evicted_total",
		Help: "Total number of finished chain records evicted.",
	})
)

// Метрики выполнения задач.
var (
	// TaskAttempts — попытки по задачам.
	TaskAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_task_attempts_total",
		Help: "Total number of task attempts by task name.",
	}, []string{"task"})

	// TaskDuration — длительность задачи от первой попытки до успеха.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conveyor_task_duration_seconds",
		Help:    "Time from a task's first attempt to its success.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"task"})
)

// Метрики HTTP API.
var (
	// HTTPRequests — запросы к API по маршруту и статусу ответа.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_http_requests_total",
		Help: "Total number of HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	// HTTPDuration — длительность обработки запроса.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conveyor_http_request_duration_seconds",
		Help:    "HTTP request duration by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
