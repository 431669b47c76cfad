package dag

import (
	"container/heap"
	"fmt"
)

// IsTerminal reports whether the state is terminal (finished).
func IsTerminal(s TaskState) bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskSkipped, TaskCached:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether the state satisfies dependencies.
func IsSuccessful(s TaskState) bool {
	switch s {
	case TaskCompleted, TaskCached:
		return true
	default:
		return false
	}
}

// Transition moves nodeName from one state to another.
//
// The caller supplies the expected prior state so that inconsistencies are
// reported instead of overwritten. state is mutated only on success.
func Transition(state ExecutionState, nodeName string, from, to TaskState) error {
	cur, ok := state[nodeName]
	if !ok {
		return fmt.Errorf("unknown node in state: %q", nodeName)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", nodeName, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", nodeName, from, to)
	}
	state[nodeName] = to
	return nil
}

func isAllowedTransition(from, to TaskState) bool {
	switch from {
	case TaskPending:
		return to == TaskRunning || to == TaskCached || to == TaskSkipped
	case TaskRunning:
		return to == TaskCompleted || to == TaskFailed
	default:
		return false
	}
}

// FailAndPropagate moves nodeName from RUNNING to FAILED and marks every
// PENDING node reachable from it as SKIPPED. It returns the names it
// skipped, in canonical order.
//
// A downstream node found RUNNING is an invariant violation.
func FailAndPropagate(g *TaskGraph, state ExecutionState, nodeName string) ([]string, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	node, ok := g.nodesByName[nodeName]
	if !ok {
		return nil, fmt.Errorf("unknown node: %q", nodeName)
	}

	cur, ok := state[nodeName]
	if !ok {
		return nil, fmt.Errorf("unknown node in state: %q", nodeName)
	}
	if cur != TaskRunning && cur != TaskFailed {
		return nil, fmt.Errorf("cannot fail %q from state %s", nodeName, cur)
	}
	if cur == TaskRunning {
		state[nodeName] = TaskFailed
	}

	start := node.canonicalIndex
	visited := make([]bool, len(g.nodes))
	visited[start] = true

	var skipped []string
	hq := &intMinHeap{}
	heap.Init(hq)
	for _, d := range g.outgoing[start] {
		heap.Push(hq, d)
	}

	for hq.Len() > 0 {
		u := heap.Pop(hq).(int)
		if visited[u] {
			continue
		}
		visited[u] = true

		name := g.nodes[u].Name
		st, ok := state[name]
		if !ok {
			return nil, fmt.Errorf("missing state for %q", name)
		}

		switch st {
		case TaskPending:
			state[name] = TaskSkipped
			skipped = append(skipped, name)
		case TaskRunning:
			return nil, fmt.Errorf("invariant violation: downstream node %q is RUNNING during failure propagation", name)
		default:
			// Already terminal.
		}

		for _, v := range g.outgoing[u] {
			if !visited[v] {
				heap.Push(hq, v)
			}
		}
	}

	return skipped, nil
}
