package tasks

import (
	"context"
	"testing"
	"time"

	"conveyor/internal/chain"
)

func testConfig() Config {
	return Config{
		SharedVPCStatusURL: "http://localhost:5001/status",
		VPCSCStatusURL:     "http://localhost:5002/status",
		RetryInterval:      5 * time.Second,
		MaxAttempts:        15,
	}
}

func TestOnboarding_SequenceIsValid(t *testing.T) {
	specs := Onboarding(testConfig())

	if err := chain.ValidateSequence(specs); err != nil {
		t.Fatalf("blueprint must validate: %v", err)
	}

	names := chain.TaskNames(specs)
	want := []string{TaskSharedVPC, TaskVPCSC, TaskHandoff}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("expected task %d to be %s, got %s", i, name, names[i])
		}
	}
}

func TestOnboarding_ProbeConfiguration(t *testing.T) {
	specs := Onboarding(testConfig())

	probe, ok := specs[0].Work.(*chain.StatusProbe)
	if !ok {
		t.Fatalf("shared_vpc must be a polling task, got %T", specs[0].Work)
	}
	if probe.URL != "http://localhost:5001/status" {
		t.Errorf("unexpected probe url: %s", probe.URL)
	}
	if !probe.Succeeds.Evaluate(map[string]any{"status": "DONE"}) {
		t.Error("probe must succeed on status=DONE")
	}
	if probe.Succeeds.Evaluate(map[string]any{"status": "RUNNING"}) {
		t.Error("probe must not succeed on status=RUNNING")
	}

	if specs[0].MaxAttempts != 15 || specs[0].RetryInterval != 5*time.Second {
		t.Errorf("unexpected retry config: %d / %v", specs[0].MaxAttempts, specs[0].RetryInterval)
	}
}

func TestOnboarding_HandoffRequiresBothChecks(t *testing.T) {
	specs := Onboarding(testConfig())
	handoff := specs[2]

	if len(handoff.RequiresInputs) != 2 {
		t.Fatalf("handoff must require both checks, got %v", handoff.RequiresInputs)
	}

	outcome, err := handoff.Work.Perform(context.Background(), chain.Data{
		TaskSharedVPC: map[string]any{"status": "DONE", "task_id": "5001"},
		TaskVPCSC:     map[string]any{"status": "DONE", "task_id": "5002"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Done {
		t.Error("handoff must complete in one call")
	}
	if outcome.Output["shared_vpc"] != "DONE" || outcome.Output["vpc_sc"] != "DONE" {
		t.Errorf("unexpected summary: %v", outcome.Output)
	}
}
