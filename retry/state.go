package retry

// State is a node of the per-step attempt machine.
type State string

const (
	StateStart     State = "start"
	StateResolve   State = "resolve"
	StateHighlight State = "highlight"
	StateAct       State = "act"
	StateCapture   State = "capture"
	StatePersist   State = "persist"
	StateRecover   State = "recover"
	StateSuccess   State = "success"
	StateFailed    State = "failed"
)

// transitions lists the legal successors of each state.
var transitions = map[State][]State{
	StateStart:     {StateResolve, StateHighlight},
	StateResolve:   {StateHighlight, StateCapture, StateRecover},
	StateHighlight: {StateAct},
	StateAct:       {StateCapture, StateRecover},
	StateCapture:   {StatePersist},
	StatePersist:   {StateSuccess},
	StateRecover:   {StateResolve, StateFailed},
}

// CanTransition reports whether the machine may move from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends the machine.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// Transition is one recorded move.
type Transition struct {
	From    State
	To      State
	Attempt int
}
