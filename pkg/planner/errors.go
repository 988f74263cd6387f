package planner

import (
	"errors"
	"fmt"
)

// ErrNoExecutableSteps indicates that planning produced nothing runnable,
// either because no agents are registered or because every generated step
// was dropped during validation.
var ErrNoExecutableSteps = errors.New("no executable steps for goal")

// UnsupportedGoalError reports a goal the system declines to plan, whether
// the feasibility gate refused it or the model answered UNSUPPORTED.
// Mapped to 422 at the HTTP boundary.
type UnsupportedGoalError struct {
	Reason string
}

func (e *UnsupportedGoalError) Error() string {
	return fmt.Sprintf("goal not supported: %s", e.Reason)
}
