package monitor

// State is a monitoring loop state. The numeric value is exported as the
// oracle_monitor_loop_state gauge.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateReconciling
	StateReporting
	StateSleeping
	StateCooldown
	StateStopped
)

var stateNames = map[State]string{
	StateIdle:        "idle",
	StateFetching:    "fetching",
	StateReconciling: "reconciling",
	StateReporting:   "reporting",
	StateSleeping:    "sleeping",
	StateCooldown:    "cooldown",
	StateStopped:     "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
