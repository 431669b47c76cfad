package dag

import (
	"reflect"
	"testing"
)

func TestStateMachine_Transitions_ValidAndInvalid(t *testing.T) {
	state := ExecutionState{"A": TaskPending}

	if err := Transition(state, "A", TaskPending, TaskRunning); err != nil {
		t.Fatalf("expected valid transition, got %v", err)
	}
	if err := Transition(state, "A", TaskRunning, TaskCompleted); err != nil {
		t.Fatalf("expected valid transition, got %v", err)
	}

	// Terminal -> RUNNING is forbidden.
	if err := Transition(state, "A", TaskCompleted, TaskRunning); err == nil {
		t.Fatalf("expected error")
	}

	state["A"] = TaskFailed
	if err := Transition(state, "A", TaskFailed, TaskRunning); err == nil {
		t.Fatalf("expected error")
	}

	state["A"] = TaskSkipped
	if err := Transition(state, "A", TaskSkipped, TaskRunning); err == nil {
		t.Fatalf("expected error")
	}

	// Expected prior state must match.
	state["A"] = TaskPending
	if err := Transition(state, "A", TaskRunning, TaskCompleted); err == nil {
		t.Fatalf("expected error for stale prior state")
	}
	if state["A"] != TaskPending {
		t.Fatalf("state changed on failed transition: %s", state["A"])
	}

	if err := Transition(state, "missing", TaskPending, TaskRunning); err == nil {
		t.Fatalf("expected error for unknown node")
	}
}

func TestStateMachine_PendingToCached(t *testing.T) {
	state := ExecutionState{"A": TaskPending}
	if err := Transition(state, "A", TaskPending, TaskCached); err != nil {
		t.Fatalf("expected valid transition, got %v", err)
	}
	if !IsTerminal(state["A"]) || !IsSuccessful(state["A"]) {
		t.Fatalf("CACHED must be terminal and successful")
	}
	if IsSuccessful(TaskSkipped) || IsSuccessful(TaskFailed) {
		t.Fatalf("SKIPPED and FAILED must not satisfy dependencies")
	}
}

func TestFailurePropagation_CascadeFailure_MarksDownstreamSkipped(t *testing.T) {
	g := mustGraph(t, node("A"), node("B", "A"), node("C", "B"), node("X"))

	state := ExecutionState{
		"A": TaskRunning,
		"B": TaskPending,
		"C": TaskPending,
		"X": TaskPending,
	}

	skipped, err := FailAndPropagate(g, state, "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := ExecutionState{
		"A": TaskFailed,
		"B": TaskSkipped,
		"C": TaskSkipped,
		"X": TaskPending,
	}
	if !reflect.DeepEqual(state, want) {
		t.Fatalf("state mismatch: got %v want %v", state, want)
	}

	if len(skipped) != 2 {
		t.Fatalf("expected 2 skipped nodes, got %v", skipped)
	}
	seen := map[string]bool{}
	for _, n := range skipped {
		seen[n] = true
	}
	if !seen["B"] || !seen["C"] {
		t.Fatalf("expected B and C skipped, got %v", skipped)
	}

	// The unrelated root is still schedulable.
	if got := GetReadyTasks(g, state); !reflect.DeepEqual(got, []string{"X"}) {
		t.Fatalf("unexpected ready list: %v", got)
	}
}

func TestFailurePropagation_Diamond_DownstreamSkippedNotFailed(t *testing.T) {
	g := mustGraph(t, node("A"), node("B", "A"), node("C", "A"), node("D", "B", "C"))

	state := ExecutionState{
		"A": TaskCompleted,
		"B": TaskRunning,
		"C": TaskCompleted,
		"D": TaskPending,
	}

	skipped, err := FailAndPropagate(g, state, "B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state["B"] != TaskFailed {
		t.Fatalf("expected B FAILED, got %s", state["B"])
	}
	if state["D"] != TaskSkipped {
		t.Fatalf("expected D SKIPPED, got %s", state["D"])
	}
	if state["C"] != TaskCompleted {
		t.Fatalf("completed sibling must be untouched, got %s", state["C"])
	}
	if !reflect.DeepEqual(skipped, []string{"D"}) {
		t.Fatalf("unexpected skipped list: %v", skipped)
	}
}

func TestFailurePropagation_DetectsRunningDownstreamInvariantViolation(t *testing.T) {
	g := mustGraph(t, node("A"), node("B", "A"))

	state := ExecutionState{"A": TaskRunning, "B": TaskRunning}
	if _, err := FailAndPropagate(g, state, "A"); err == nil {
		t.Fatalf("expected invariant violation error")
	}
}

func TestFailurePropagation_RejectsNonRunningNode(t *testing.T) {
	g := mustGraph(t, node("A"))
	state := ExecutionState{"A": TaskPending}
	if _, err := FailAndPropagate(g, state, "A"); err == nil {
		t.Fatalf("expected error failing a PENDING node")
	}
	if _, err := FailAndPropagate(g, state, "ghost"); err == nil {
		t.Fatalf("expected error for unknown node")
	}
}
