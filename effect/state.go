package effect

// Phase is the position of an effect in its lifecycle.
type Phase string

const (
	PhaseUnmounted      Phase = "unmounted"
	PhaseMounting       Phase = "mounting"
	PhaseMounted        Phase = "mounted"
	PhaseMountErrored   Phase = "mountErrored"
	PhaseUnmounting     Phase = "unmounting"
	PhaseUnmountErrored Phase = "unmountErrored"
)

// canMount reports whether a mount may start from p. Error phases allow a
// later attempt.
func (p Phase) canMount() bool {
	return p == PhaseUnmounted || p == PhaseMountErrored || p == PhaseUnmountErrored
}

func (p Phase) canUnmount() bool {
	return p == PhaseMounted || p == PhaseUnmountErrored
}

// State is the observable lifecycle state of one effect.
type State struct {
	Phase Phase `json:"phase"`
	// Mounted is true after a successful mount until the next successful unmount.
	Mounted bool `json:"mounted"`
	// Unmounted is true after a successful unmount until the next successful mount.
	Unmounted bool `json:"unmounted"`
	// MountedInMs is how long the last successful mount took.
	MountedInMs *int64 `json:"mountedInMs,omitempty"`
	// UnmountedInMs is how long the last successful unmount took.
	UnmountedInMs *int64 `json:"unmountedInMs,omitempty"`
	MountError    string `json:"mountError,omitempty"`
	UnmountError  string `json:"unmountError,omitempty"`
}

func (s State) clone() State {
	if s.MountedInMs != nil {
		v := *s.MountedInMs
		s.MountedInMs = &v
	}
	if s.UnmountedInMs != nil {
		v := *s.UnmountedInMs
		s.UnmountedInMs = &v
	}
	return s
}
