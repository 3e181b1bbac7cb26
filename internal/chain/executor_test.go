package chain

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"conveyor/internal/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(tr *tracker.Tracker, timeout time.Duration) *Executor {
	return New(Config{
		Tracker: tr,
		Timeout: timeout,
		Logger:  testLogger(),
	})
}

// succeedsOnAttempt возвращает work, успешный на n-м вызове,
// и счётчик вызовов. Счётчик трогает только горутина chain.
func succeedsOnAttempt(n int, output map[string]any) (Work, *int) {
	calls := new(int)
	work := WorkFunc(func(context.Context, Data) (Outcome, error) {
		*calls++
		if *calls >= n {
			return Outcome{Done: true, Output: output}, nil
		}
		return Outcome{Done: false}, nil
	})
	return work, calls
}

// neverSucceeds возвращает work, который никогда не завершается.
func neverSucceeds() (Work, *int) {
	calls := new(int)
	work := WorkFunc(func(context.Context, Data) (Outcome, error) {
		*calls++
		return Outcome{Done: false}, nil
	})
	return work, calls
}

// --- Sequential Execution Tests ---

// Сценарий: task1 успешен с первой попытки, task2 — с третьей.
func TestExecutor_TwoTasks_Completed(t *testing.T) {
	tr := tracker.New()
	e := newTestExecutor(tr, 0)

	work1, _ := succeedsOnAttempt(1, map[string]any{"out": "v1"})
	work2, calls2 := succeedsOnAttempt(3, nil)

	tasks := []TaskSpec{
		{Name: "task1", Work: work1, RetryInterval: time.Millisecond, MaxAttempts: 5},
		{Name: "task2", Work: work2, RetryInterval: time.Millisecond, MaxAttempts: 5},
	}

	if err := tr.StartChain("chain-a", TaskNames(tasks)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := e.Execute(context.Background(), "chain-a", tasks, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Task != "task1" || results[1].Task != "task2" {
		t.Errorf("unexpected result order: %v", results)
	}
	if results[1].Attempts != 3 {
		t.Errorf("expected 3 attempts for task2, got %d", results[1].Attempts)
	}
	if *calls2 != 3 {
		t.Errorf("attempt count must equal work invocations, got %d", *calls2)
	}

	snap, _ := tr.GetStatus("chain-a")
	if snap.Status != tracker.StatusCompleted {
		t.Errorf("expected completed, got %s", snap.Status)
	}
	if snap.Attempts["task2"] != 3 {
		t.Errorf("expected attempts[task2]=3, got %d", snap.Attempts["task2"])
	}
	if len(snap.CompletedTasks) != 2 ||
		snap.CompletedTasks[0].Task != "task1" ||
		snap.CompletedTasks[1].Task != "task2" {
		t.Errorf("unexpected completed order: %+v", snap.CompletedTasks)
	}
	if snap.EndTime == nil {
		t.Error("end_time should be set")
	}
	if snap.Progress.Percentage != 100 {
		t.Errorf("expected 100%%, got %v", snap.Progress.Percentage)
	}
}

// Сценарий: task1 исчерпывает потолок, task2 не запускается.
func TestExecutor_RetryExhausted_ShortCircuits(t *testing.T) {
	tr := tracker.New()
	e := newTestExecutor(tr, 0)

	work1, calls1 := neverSucceeds()
	work2, calls2 := succeedsOnAttempt(1, nil)

	tasks := []TaskSpec{
		{Name: "task1", Work: work1, RetryInterval: time.Millisecond, MaxAttempts: 3},
		{Name: "task2", Work: work2, RetryInterval: time.Millisecond, MaxAttempts: 3},
	}

	tr.StartChain("chain-b", TaskNames(tasks))

	results, err := e.Execute(context.Background(), "chain-b", tasks, nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if *calls1 != 3 {
		t.Errorf("expected 3 invocations, got %d", *calls1)
	}
	if *calls2 != 0 {
		t.Error("task2 must never be attempted")
	}

	snap, _ := tr.GetStatus("chain-b")
	if snap.Status != tracker.StatusFailed {
		t.Errorf("expected failed, got %s", snap.Status)
	}
	if snap.FailedTask != "task1" {
		t.Errorf("expected failed_task=task1, got %q", snap.FailedTask)
	}
	if len(snap.CompletedTasks) != 0 {
		t.Errorf("expected no completed tasks, got %d", len(snap.CompletedTasks))
	}
	if !strings.Contains(snap.Error, "max attempts exceeded") {
		t.Errorf("unexpected error message: %q", snap.Error)
	}
}

// Сценарий: дедлайн chain короче, чем опрос task2.
func TestExecutor_ChainTimeout(t *testing.T) {
	tr := tracker.New()
	e := newTestExecutor(tr, 80*time.Millisecond)

	work1, _ := succeedsOnAttempt(1, nil)
	work2, _ := neverSucceeds()

	tasks := []TaskSpec{
		{Name: "task1", Work: work1, RetryInterval: time.Millisecond, MaxAttempts: 3},
		{Name: "task2", Work: work2, RetryInterval: 20 * time.Millisecond, MaxAttempts: 1000},
	}

	tr.StartChain("chain-c", TaskNames(tasks))

	results, err := e.Execute(context.Background(), "chain-c", tasks, nil)
	if !errors.Is(err, ErrChainTimeout) {
		t.Fatalf("expected ErrChainTimeout, got %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result (task1), got %d", len(results))
	}

	snap, _ := tr.GetStatus("chain-c")
	if snap.Status != tracker.StatusFailed {
		t.Errorf("expected failed, got %s", snap.Status)
	}
	if snap.FailedTask != "task2" {
		t.Errorf("expected failed_task=task2, got %q", snap.FailedTask)
	}
	if !strings.Contains(snap.Error, "chain execution timeout") {
		t.Errorf("unexpected error message: %q", snap.Error)
	}
}

// Сценарий: дедлайн истекает во время паузы между попытками.
func TestExecutor_TimeoutCancelsRetryDelay(t *testing.T) {
	tr := tracker.New()
	e := newTestExecutor(tr, 30*time.Millisecond)

	work, _ := neverSucceeds()
	tasks := []TaskSpec{
		{Name: "task1", Work: work, RetryInterval: time.Hour, MaxAttempts: 10},
	}

	tr.StartChain("chain-delay", TaskNames(tasks))

	start := time.Now()
	_, err := e.Execute(context.Background(), "chain-delay", tasks, nil)
	if !errors.Is(err, ErrChainTimeout) {
		t.Fatalf("expected ErrChainTimeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("deadline must cancel the pending retry delay promptly")
	}
}

// --- Input Resolution Tests ---

func TestExecutor_InputsFlowBetweenTasks(t *testing.T) {
	tr := tracker.New()
	e := newTestExecutor(tr, 0)

	work1, _ := succeedsOnAttempt(1, map[string]any{"vpc": "host-42"})

	var gotInputs Data
	work2 := WorkFunc(func(_ context.Context, inputs Data) (Outcome, error) {
		gotInputs = inputs
		return Outcome{Done: true}, nil
	})

	tasks := []TaskSpec{
		{Name: "task1", Work: work1, RetryInterval: time.Millisecond, MaxAttempts: 1},
		{Name: "task2", Work: work2, RetryInterval: time.Millisecond, MaxAttempts: 1,
			RequiresInputs: []string{"task1", "project_id"}},
	}

	tr.StartChain("chain-inputs", TaskNames(tasks))

	_, err := e.Execute(context.Background(), "chain-inputs", tasks, Data{"project_id": "p-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, ok := gotInputs["task1"].(map[string]any)
	if !ok || out["vpc"] != "host-42" {
		t.Errorf("expected task1 output in inputs, got %v", gotInputs["task1"])
	}
	if gotInputs["project_id"] != "p-1" {
		t.Errorf("expected initial context value, got %v", gotInputs["project_id"])
	}
}

func TestExecutor_MissingInputConsumesAttempts(t *testing.T) {
	tr := tracker.New()
	e := newTestExecutor(tr, 0)

	work, calls := succeedsOnAttempt(1, nil)
	tasks := []TaskSpec{
		{Name: "task1", Work: work, RetryInterval: time.Millisecond, MaxAttempts: 2,
			RequiresInputs: []string{"absent"}},
	}

	tr.StartChain("chain-missing", TaskNames(tasks))

	_, err := e.Execute(context.Background(), "chain-missing", tasks, nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	// Work не вызывается, пока inputs не резолвятся, но попытки тратятся
	if *calls != 0 {
		t.Errorf("work must not be invoked without inputs, got %d calls", *calls)
	}

	snap, _ := tr.GetStatus("chain-missing")
	if snap.Attempts["task1"] != 2 {
		t.Errorf("expected 2 attempts, got %d", snap.Attempts["task1"])
	}
}

// --- Callback Tests ---

func TestExecutor_OnCompleteFiresOncePerSuccess(t *testing.T) {
	tr := tracker.New()
	e := newTestExecutor(tr, 0)

	var completions []Result
	work1, _ := succeedsOnAttempt(2, map[string]any{"k": "v"})
	work2, _ := neverSucceeds()

	tasks := []TaskSpec{
		{Name: "task1", Work: work1, RetryInterval: time.Millisecond, MaxAttempts: 3,
			OnComplete: func(r Result) { completions = append(completions, r) }},
		{Name: "task2", Work: work2, RetryInterval: time.Millisecond, MaxAttempts: 2,
			OnComplete: func(r Result) { completions = append(completions, r) }},
	}

	tr.StartChain("chain-cb", TaskNames(tasks))
	e.Execute(context.Background(), "chain-cb", tasks, nil)

	// Только успешная задача зовёт callback, ровно один раз
	if len(completions) != 1 {
		t.Fatalf("expected 1 completion callback, got %d", len(completions))
	}
	if completions[0].Task != "task1" || completions[0].Attempts != 2 {
		t.Errorf("unexpected callback result: %+v", completions[0])
	}
	if completions[0].Output["k"] != "v" {
		t.Errorf("callback must carry the full result, got %+v", completions[0].Output)
	}
}

// --- Transient Fault Tests ---

func TestExecutor_WorkErrorIsAbsorbed(t *testing.T) {
	tr := tracker.New()
	e := newTestExecutor(tr, 0)

	calls := 0
	work := WorkFunc(func(context.Context, Data) (Outcome, error) {
		calls++
		if calls < 3 {
			return Outcome{}, errors.New("remote hiccup")
		}
		return Outcome{Done: true}, nil
	})

	tasks := []TaskSpec{
		{Name: "task1", Work: work, RetryInterval: time.Millisecond, MaxAttempts: 5},
	}

	tr.StartChain("chain-fault", TaskNames(tasks))

	results, err := e.Execute(context.Background(), "chain-fault", tasks, nil)
	if err != nil {
		t.Fatalf("transient faults must not surface: %v", err)
	}
	if results[0].Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", results[0].Attempts)
	}
}

// --- Polling Progress Tests ---

func TestExecutor_PollingReportsProgress(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		polls++
		status := "RUNNING"
		if polls >= 3 {
			status = "DONE"
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":   status,
			"progress": float64(polls) * 33.0,
		})
	}))
	defer server.Close()

	tr := tracker.New()
	e := newTestExecutor(tr, 0)

	tasks := []TaskSpec{
		{
			Name:          "poll",
			Work:          &StatusProbe{URL: server.URL, Succeeds: StatusIs("DONE")},
			RetryInterval: time.Millisecond,
			MaxAttempts:   15,
		},
	}

	tr.StartChain("chain-poll", TaskNames(tasks))

	results, err := e.Execute(context.Background(), "chain-poll", tasks, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Один опрос — одна попытка
	if results[0].Attempts != 3 || polls != 3 {
		t.Errorf("expected 3 attempts / 3 polls, got %d / %d", results[0].Attempts, polls)
	}

	snap, _ := tr.GetStatus("chain-poll")
	if snap.Attempts["poll"] != 3 {
		t.Errorf("expected attempts=3, got %d", snap.Attempts["poll"])
	}
	// Результат задачи — полное декодированное тело
	if snap.CompletedTasks[0].Result["status"] != "DONE" {
		t.Errorf("unexpected task result: %v", snap.CompletedTasks[0].Result)
	}
}

// --- Launch / Stop Tests ---

func TestExecutor_Launch(t *testing.T) {
	tr := tracker.New()
	e := newTestExecutor(tr, 0)

	work, _ := succeedsOnAttempt(1, nil)
	tasks := []TaskSpec{
		{Name: "task1", Work: work, RetryInterval: time.Millisecond, MaxAttempts: 1},
	}

	if err := e.Launch(Request{ID: "chain-launch", Tasks: tasks}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Launch возвращается сразу; ждём терминального статуса через реестр
	waitForTerminal(t, tr, "chain-launch")

	snap, _ := tr.GetStatus("chain-launch")
	if snap.Status != tracker.StatusCompleted {
		t.Errorf("expected completed, got %s", snap.Status)
	}
}

func TestExecutor_Launch_EmptyID(t *testing.T) {
	e := newTestExecutor(tracker.New(), 0)

	err := e.Launch(Request{Tasks: []TaskSpec{validSpec("task1")}})
	if !errors.Is(err, ErrEmptyChainID) {
		t.Errorf("expected ErrEmptyChainID, got %v", err)
	}
}

func TestExecutor_Launch_DuplicateID(t *testing.T) {
	tr := tracker.New()
	e := newTestExecutor(tr, 0)

	work, _ := neverSucceeds()
	tasks := []TaskSpec{
		{Name: "task1", Work: work, RetryInterval: 50 * time.Millisecond, MaxAttempts: 1000},
	}

	if err := e.Launch(Request{ID: "chain-dup", Tasks: tasks}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer e.Stop()

	err := e.Launch(Request{ID: "chain-dup", Tasks: tasks})
	if !errors.Is(err, tracker.ErrChainExists) {
		t.Errorf("expected ErrChainExists, got %v", err)
	}
}

func TestExecutor_Launch_InvalidSequence(t *testing.T) {
	e := newTestExecutor(tracker.New(), 0)

	err := e.Launch(Request{ID: "chain-bad", Tasks: nil})
	if !errors.Is(err, ErrNoTasks) {
		t.Errorf("expected ErrNoTasks, got %v", err)
	}
}

func TestExecutor_Stop_FailsInFlightChains(t *testing.T) {
	tr := tracker.New()
	e := newTestExecutor(tr, 0)

	work, _ := neverSucceeds()
	tasks := []TaskSpec{
		{Name: "task1", Work: work, RetryInterval: 20 * time.Millisecond, MaxAttempts: 100000},
	}

	if err := e.Launch(Request{ID: "chain-stop", Tasks: tasks}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Stop дожидается горутины chain
	e.Stop()

	snap, _ := tr.GetStatus("chain-stop")
	if snap.Status != tracker.StatusFailed {
		t.Errorf("expected failed after shutdown, got %s", snap.Status)
	}
	if snap.FailedTask != "task1" {
		t.Errorf("expected failed_task=task1, got %q", snap.FailedTask)
	}
	if !strings.Contains(snap.Error, "context canceled") {
		t.Errorf("unexpected error message: %q", snap.Error)
	}
}

// --- Concurrent Read Tests ---

// Читатели не должны видеть ни completed_tasks длиннее
// последовательности, ни running-запись с end_time.
func TestExecutor_ConcurrentReadsSeeConsistentState(t *testing.T) {
	tr := tracker.New()
	e := newTestExecutor(tr, 0)

	slowWork := WorkFunc(func(context.Context, Data) (Outcome, error) {
		time.Sleep(2 * time.Millisecond)
		return Outcome{Done: true}, nil
	})

	tasks := make([]TaskSpec, 5)
	for i := range tasks {
		tasks[i] = TaskSpec{
			Name:          "task" + string(rune('1'+i)),
			Work:          slowWork,
			RetryInterval: time.Millisecond,
			MaxAttempts:   1,
		}
	}

	if err := e.Launch(Request{ID: "chain-reads", Tasks: tasks}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				snap, err := tr.GetStatus("chain-reads")
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if len(snap.CompletedTasks) > len(snap.TaskSequence) {
					t.Errorf("completed_tasks (%d) exceeds sequence (%d)",
						len(snap.CompletedTasks), len(snap.TaskSequence))
				}
				if snap.Status == tracker.StatusRunning && snap.EndTime != nil {
					t.Error("running record must not carry an end_time")
				}
				want := 100 * float64(len(snap.CompletedTasks)) / float64(len(snap.TaskSequence))
				if snap.Progress.Percentage != want {
					t.Errorf("progress %v does not match completed count %d",
						snap.Progress.Percentage, len(snap.CompletedTasks))
				}
				if snap.Status.IsTerminal() {
					return
				}
			}
		}()
	}

	wg.Wait()
	e.Stop()
}

// waitForTerminal опрашивает реестр до терминального статуса chain.
func waitForTerminal(t *testing.T, tr *tracker.Tracker, id string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := tr.GetStatus(id)
		if err == nil && snap.Status.IsTerminal() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("chain %s did not reach a terminal state", id)
}
