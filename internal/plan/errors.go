package plan

import "fmt"

// PlanningError means the planner returned something the engine cannot
// execute: invalid JSON, or an action missing its module/function. Nothing is
// dispatched when planning fails.
type PlanningError struct {
	Reason string
}

func (e *PlanningError) Error() string {
	return "planning error: " + e.Reason
}

// ResolutionError means an Action referenced a prior step's result that does
// not exist, failed, or lacks the named field. The Action it belongs to is
// never dispatched.
type ResolutionError struct {
	Step   int
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve reference to step %d: %s", e.Step, e.Reason)
}
