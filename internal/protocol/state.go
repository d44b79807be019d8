package protocol

// State is a lifecycle stage of the embedded widget.
type State string

const (
	StateIdle           State = "idle"
	StateScriptInjected State = "script-injected"
	StateScriptLoaded   State = "script-loaded"
	StateReady          State = "ready"
	StateVerified       State = "verified"
	StateExpired        State = "expired"
	StateErred          State = "erred"
)

// transitions lists the allowed targets for each state. Expired may precede
// ready because setup checkpoints can be reported as expiry.
var transitions = map[State][]State{
	StateIdle:           {StateScriptInjected, StateExpired, StateErred},
	StateScriptInjected: {StateScriptLoaded, StateExpired, StateErred},
	StateScriptLoaded:   {StateReady, StateExpired, StateErred},
	StateReady:          {StateReady, StateVerified, StateExpired, StateErred},
	StateVerified:       {StateReady, StateVerified, StateExpired, StateErred},
	StateExpired:        {StateScriptInjected, StateScriptLoaded, StateReady, StateVerified, StateExpired, StateErred},
	StateErred:          {StateReady, StateErred},
}

// CanTransition reports whether the lifecycle allows moving from one state
// to another. Leaving erred for ready additionally requires a rendered
// widget, which Session enforces.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
