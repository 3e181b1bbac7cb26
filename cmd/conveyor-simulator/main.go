// Conveyor Simulator — dev-заглушка удалённой долгой операции.
//
// Отдаёт status endpoint в wire-формате внешних lookup-сервисов:
// прогресс растёт от первого обращения до истечения длительности,
// затем статус переключается в DONE. Один процесс — одна операция;
// для цепочки из двух проверок поднимаются два экземпляра на разных
// портах.
package main

import (
	"context"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"conveyor/internal/api"
	"conveyor/internal/telemetry"
)

// Базовые длительности по типам задач, секунды.
var baseDurations = map[string]time.Duration{
	"shared_vpc": 30 * time.Second,
	"vpc_sc":     45 * time.Second,
}

const defaultDuration = 60 * time.Second

// taskState — состояние имитируемой операции.
// Часы запускаются лениво, первым обращением к /status: удалённая
// операция «начинается», когда её впервые опрашивают.
type taskState struct {
	mu       sync.Mutex
	taskID   string
	taskType string
	duration time.Duration
	started  time.Time
}

func newTaskState(taskID, taskType string, duration time.Duration) *taskState {
	if duration <= 0 {
		duration = baseDurations[taskType]
		if duration == 0 {
			duration = defaultDuration
		}
		// Разброс ±5s, чтобы параллельные операции завершались вразнобой
		duration += time.Duration((rand.Float64()*10 - 5) * float64(time.Second))
	}
	return &taskState{
		taskID:   taskID,
		taskType: taskType,
		duration: duration,
	}
}

// report возвращает текущий статус операции.
func (s *taskState) report() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.IsZero() {
		s.started = time.Now()
	}

	elapsed := time.Since(s.started)
	progress := min(100, elapsed.Seconds()/s.duration.Seconds()*100)

	status := "RUNNING"
	if progress >= 100 {
		status = "DONE"
	}

	return map[string]any{
		"status":      status,
		"task_id":     s.taskID,
		"task_type":   s.taskType,
		"progress":    float64(int(progress*100)) / 100,
		"elapsed_sec": float64(int(elapsed.Seconds()*100)) / 100,
	}
}

func main() {
	_ = godotenv.Load()

	logger := telemetry.SetupLogger()

	port := os.Getenv("SIM_PORT")
	if port == "" {
		port = "5001"
	}
	taskType := os.Getenv("SIM_TASK_TYPE")
	if taskType == "" {
		taskType = "shared_vpc"
	}

	var duration time.Duration
	if v := os.Getenv("SIM_DURATION_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			duration = time.Duration(n) * time.Second
		}
	}

	state := newTaskState(port, taskType, duration)
	logger.Info("simulator initialized",
		"task_type", taskType,
		"duration", state.duration,
		"port", port,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		report := state.report()
		logger.Info("status polled",
			"status", report["status"],
			"progress", report["progress"],
		)
		api.JSON(w, http.StatusOK, report)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
