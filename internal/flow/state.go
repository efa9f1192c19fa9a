package flow

// State is a phase of a run.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateRegistering
	StateLoggingIn
	StatePassed
	StateFailed
)

var stateNames = [...]string{
	StateIdle:        "Idle",
	StateGenerating:  "Generating",
	StateRegistering: "Registering",
	StateLoggingIn:   "LoggingIn",
	StatePassed:      "Passed",
	StateFailed:      "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StatePassed || s == StateFailed
}
