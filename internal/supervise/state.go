package supervise

// State identifies where a managed service currently sits in its lifecycle.
// Exactly one operation may be in flight per service; every working state
// eventually resolves back to StateIdle.
type State string

const (
	StateIdle       State = "idle"
	StateInstalling State = "installing"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateStopping   State = "stopping"
	StateRestarting State = "restarting"
)

// Working reports whether the state represents an in-flight operation that
// rejects further admission.
func (s State) Working() bool {
	switch s {
	case StateInstalling, StateStarting, StateStopping, StateRestarting:
		return true
	}
	return false
}

func (s State) String() string {
	return string(s)
}
