package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"conveyor/internal/chain"
	"conveyor/internal/tracker"
)

// testEnv — сервер API поверх настоящих executor и tracker.
type testEnv struct {
	server  *httptest.Server
	tracker *tracker.Tracker
}

func newTestEnv(t *testing.T, blueprint []chain.TaskSpec) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := tracker.New()

	executor := chain.New(chain.Config{
		Tracker: registry,
		Logger:  logger,
	})
	t.Cleanup(executor.Stop)

	handler := NewHandler(Config{
		Executor:  executor,
		Tracker:   registry,
		Blueprint: blueprint,
		Logger:    logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{server: server, tracker: registry}
}

func quickBlueprint() []chain.TaskSpec {
	work := chain.WorkFunc(func(context.Context, chain.Data) (chain.Outcome, error) {
		return chain.Outcome{Done: true}, nil
	})
	return []chain.TaskSpec{
		{Name: "task1", Work: work, RetryInterval: time.Millisecond, MaxAttempts: 1},
		{Name: "task2", Work: work, RetryInterval: time.Millisecond, MaxAttempts: 1},
	}
}

// --- Trigger Tests ---

func TestStartChain_ReturnsReceipt(t *testing.T) {
	env := newTestEnv(t, quickBlueprint())

	resp, err := http.Post(env.server.URL+"/api/v1/chains", "application/json", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var receipt ReceiptResponse
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		t.Fatalf("failed to decode receipt: %v", err)
	}

	if _, err := uuid.Parse(receipt.ChainID); err != nil {
		t.Errorf("chain_id must be a uuid, got %q", receipt.ChainID)
	}
	if receipt.Status != "running" {
		t.Errorf("expected running, got %q", receipt.Status)
	}
	if receipt.StatusEndpoint != "/api/v1/chains/"+receipt.ChainID {
		t.Errorf("unexpected status_endpoint: %q", receipt.StatusEndpoint)
	}
	if len(receipt.TaskSequence) != 2 || receipt.TaskSequence[0] != "task1" {
		t.Errorf("unexpected task_sequence: %v", receipt.TaskSequence)
	}
}

func TestStartChain_InputsSeedContext(t *testing.T) {
	var gotInputs chain.Data
	work := chain.WorkFunc(func(_ context.Context, inputs chain.Data) (chain.Outcome, error) {
		gotInputs = inputs
		return chain.Outcome{Done: true}, nil
	})
	blueprint := []chain.TaskSpec{
		{Name: "task1", Work: work, RetryInterval: time.Millisecond, MaxAttempts: 1,
			RequiresInputs: []string{"project_id"}},
	}

	env := newTestEnv(t, blueprint)

	body := strings.NewReader(`{"inputs": {"project_id": "p-42"}}`)
	resp, err := http.Post(env.server.URL+"/api/v1/chains", "application/json", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var receipt ReceiptResponse
	json.NewDecoder(resp.Body).Decode(&receipt)

	waitForTerminal(t, env.tracker, receipt.ChainID)

	if gotInputs["project_id"] != "p-42" {
		t.Errorf("expected seeded input, got %v", gotInputs)
	}
}

func TestStartChain_BadBody(t *testing.T) {
	env := newTestEnv(t, quickBlueprint())

	resp, err := http.Post(env.server.URL+"/api/v1/chains", "application/json",
		strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

// --- Status Query Tests ---

func TestGetChain_Lifecycle(t *testing.T) {
	env := newTestEnv(t, quickBlueprint())

	resp, err := http.Post(env.server.URL+"/api/v1/chains", "application/json", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var receipt ReceiptResponse
	json.NewDecoder(resp.Body).Decode(&receipt)
	resp.Body.Close()

	waitForTerminal(t, env.tracker, receipt.ChainID)

	statusResp, err := http.Get(env.server.URL + receipt.StatusEndpoint)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer statusResp.Body.Close()

	if statusResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", statusResp.StatusCode)
	}

	var snap tracker.Snapshot
	if err := json.NewDecoder(statusResp.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if snap.Status != tracker.StatusCompleted {
		t.Errorf("expected completed, got %s", snap.Status)
	}
	if snap.Progress.Percentage != 100 {
		t.Errorf("expected 100%%, got %v", snap.Progress.Percentage)
	}
	if len(snap.CompletedTasks) != 2 {
		t.Errorf("expected 2 completed tasks, got %d", len(snap.CompletedTasks))
	}
}

func TestGetChain_Unknown(t *testing.T) {
	env := newTestEnv(t, quickBlueprint())

	resp, err := http.Get(env.server.URL + "/api/v1/chains/" + uuid.New().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	var er ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if er.Error.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", er.Error.Code)
	}
}

func TestGetChain_MalformedID(t *testing.T) {
	env := newTestEnv(t, quickBlueprint())

	resp, err := http.Get(env.server.URL + "/api/v1/chains/not-a-uuid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

// --- Active Listing Tests ---

func TestListActiveChains(t *testing.T) {
	// Blueprint, который не завершается, пока его не отменят
	work := chain.WorkFunc(func(context.Context, chain.Data) (chain.Outcome, error) {
		return chain.Outcome{Done: false}, nil
	})
	blueprint := []chain.TaskSpec{
		{Name: "task1", Work: work, RetryInterval: 20 * time.Millisecond, MaxAttempts: 100000},
	}

	env := newTestEnv(t, blueprint)

	resp, err := http.Post(env.server.URL+"/api/v1/chains", "application/json", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var receipt ReceiptResponse
	json.NewDecoder(resp.Body).Decode(&receipt)
	resp.Body.Close()

	listResp, err := http.Get(env.server.URL + "/api/v1/chains")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer listResp.Body.Close()

	var active map[string]tracker.ActiveSnapshot
	if err := json.NewDecoder(listResp.Body).Decode(&active); err != nil {
		t.Fatalf("failed to decode active listing: %v", err)
	}

	entry, ok := active[receipt.ChainID]
	if !ok {
		t.Fatalf("running chain missing from active listing: %v", active)
	}
	if entry.Progress.TotalTasks != 1 {
		t.Errorf("unexpected progress: %+v", entry.Progress)
	}
}

func TestListActiveChains_Empty(t *testing.T) {
	env := newTestEnv(t, quickBlueprint())

	resp, err := http.Get(env.server.URL + "/api/v1/chains")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var active map[string]tracker.ActiveSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&active); err != nil {
		t.Fatalf("failed to decode active listing: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected empty listing, got %v", active)
	}
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
