package dag

// ExecutionState maps node name to its current TaskState for one run.
// Missing names are treated as unknown, never as PENDING.
type ExecutionState map[string]TaskState

// NewExecutionState returns a state with every node of g PENDING.
func NewExecutionState(g *TaskGraph) ExecutionState {
	state := make(ExecutionState, len(g.nodes))
	for _, n := range g.nodes {
		state[n.Name] = TaskPending
	}
	return state
}

// GetReadyTasks returns the PENDING nodes whose dependencies all succeeded
// (COMPLETED or CACHED), in execution order: depth, then name.
//
// It reads the order fixed when g was built and mutates nothing.
func GetReadyTasks(g *TaskGraph, state ExecutionState) []string {
	if g == nil {
		return nil
	}
	var ready []string
	for _, idx := range g.order {
		name := g.nodes[idx].Name
		if state[name] == TaskPending && g.satisfied(idx, state) {
			ready = append(ready, name)
		}
	}
	return ready
}

// Unfinished returns the nodes of g not yet in a terminal state, in
// execution order.
func Unfinished(g *TaskGraph, state ExecutionState) []string {
	var out []string
	for _, idx := range g.order {
		if name := g.nodes[idx].Name; !IsTerminal(state[name]) {
			out = append(out, name)
		}
	}
	return out
}

func (g *TaskGraph) satisfied(idx int, state ExecutionState) bool {
	for _, p := range g.incoming[idx] {
		if !IsSuccessful(state[g.nodes[p].Name]) {
			return false
		}
	}
	return true
}
