package scene

// Status is the lifecycle state of a persisted scene.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusGenerating Status = "generating"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// transitions is the status DAG. not_started may fail directly so that a row
// persisted before generation started can still be closed out.
var transitions = map[Status][]Status{
	StatusNotStarted: {StatusGenerating, StatusFailed},
	StatusGenerating: {StatusActive, StatusFailed},
	StatusActive:     {StatusCompleted},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusGenerating, StatusActive, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next follows the DAG.
// Staying in the same status is not a transition.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}
