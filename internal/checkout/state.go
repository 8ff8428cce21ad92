package checkout

// State is the checkout coordinator state
type State string

const (
	StateIdle       State = "IDLE"
	StateSubmitting State = "SUBMITTING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// CanSubmit reports whether a new submission may start from s
func (s State) CanSubmit() bool {
	return s != StateSubmitting
}

// IsTerminal reports whether s is the end of a submission attempt
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

func (s State) String() string {
	return string(s)
}
