package progress

// Kind distinguishes regular progress from a terminal failure.
type Kind string

const (
	KindProgress Kind = "progress"
	KindError    Kind = "error"
)

// Active steps shown by progress consumers.
const (
	StepMaster   = "step-master"
	StepWorkers  = "step-workers"
	StepApps     = "step-apps"
	StepComplete = "step-complete"
)

// Event is one progress update. Percent never decreases within a run.
type Event struct {
	Kind       Kind   `json:"kind"`
	Percent    int    `json:"percent"`
	Message    string `json:"message"`
	ActiveStep string `json:"activeStep,omitempty"`
	Completed  bool   `json:"completed,omitempty"`
	Details    any    `json:"details,omitempty"`
}

// IsTerminal reports whether no further events follow in the same run.
func (e Event) IsTerminal() bool {
	return e.Completed || e.Kind == KindError
}
