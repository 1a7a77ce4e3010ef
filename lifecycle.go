package reflexive

import "github.com/loykin/reflexive/internal/metrics"

// State is a step of the instance lifecycle.
type State string

const (
	StateCreated         State = "created"
	StateModeResolved    State = "mode_resolved"
	StateChildReady      State = "child_ready"
	StateSpawnPending    State = "spawn_pending"
	StateSpawnedReady    State = "spawned_ready"
	StateSpawnFailed     State = "spawn_failed"
	StateStandaloneReady State = "standalone_ready"
	StateTerminating     State = "terminating"
	StateTerminated      State = "terminated"
)

// allowed lists the legal successors of each state.
var allowed = map[State][]State{
	StateCreated:         {StateModeResolved},
	StateModeResolved:    {StateChildReady, StateSpawnPending, StateStandaloneReady},
	StateSpawnPending:    {StateSpawnedReady, StateSpawnFailed},
	StateSpawnFailed:     {StateStandaloneReady},
	StateChildReady:      {StateTerminating},
	StateSpawnedReady:    {StateTerminating},
	StateStandaloneReady: {StateTerminating},
	StateTerminating:     {StateTerminated},
}

// Ready reports whether s is one of the three operating states.
func (s State) Ready() bool {
	return s == StateChildReady || s == StateSpawnedReady || s == StateStandaloneReady
}

func canTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// setState moves the lifecycle forward. Illegal moves are ignored and logged.
func (i *Instance) setState(to State) {
	i.mu.Lock()
	from := i.lifecycle
	ok := canTransition(from, to)
	if ok {
		i.lifecycle = to
	}
	i.mu.Unlock()
	if !ok {
		i.log.Debug("Ignored lifecycle transition", "from", from, "to", to)
		return
	}
	metrics.RecordStateTransition(string(from), string(to))
	i.log.Debug("Lifecycle transition", "from", from, "to", to)
}
