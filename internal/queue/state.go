package queue

import "github.com/gonewton/newton/internal/domain"

// PlanState is the queue directory a plan file currently lives in.
type PlanState string

const (
	StateDraft     PlanState = "draft"
	StateTodo      PlanState = "todo"
	StateCompleted PlanState = "completed"
	StateFailed    PlanState = "failed"
)

// States lists every plan state in directory-creation order.
var States = []PlanState{StateTodo, StateCompleted, StateFailed, StateDraft}

// Valid reports whether s is a known plan state.
func (s PlanState) Valid() bool {
	switch s {
	case StateDraft, StateTodo, StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a plan in s may be moved to target.
// Drafts are promoted to todo, todo ends in completed or failed, and a
// failed plan may be queued again.
func (s PlanState) CanTransitionTo(target PlanState) bool {
	switch s {
	case StateDraft:
		return target == StateTodo
	case StateTodo:
		return target == StateCompleted || target == StateFailed
	case StateFailed:
		return target == StateTodo
	default:
		return false
	}
}

func (s PlanState) transitionError(target PlanState) error {
	return &domain.TransitionError{Kind: "plan", From: string(s), To: string(target)}
}
