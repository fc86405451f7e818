package entity

import "errors"

var (
	ErrPlanParse      = errors.New("no valid plan in model response")
	ErrNoToolSelected = errors.New("no tool selected")
	ErrToolNotFound   = errors.New("tool not found")
	ErrLabelNotFound  = errors.New("goto label not found")
	ErrStaleEpoch     = errors.New("signal from a replaced script")
	ErrSurfaceClosed  = errors.New("action surface is closed")
	ErrSessionClosed  = errors.New("session is closed")
	ErrSessionUnknown = errors.New("session not found")
	ErrNoEditableStep = errors.New("no editable step")
	ErrEmptyScript    = errors.New("script has no commands")
	ErrParameterName  = errors.New("parameter name must not be empty or contain braces or '='")
)

// PlanParseError keeps the raw model output of a response that was not a plan.
type PlanParseError struct {
	Raw   string
	Cause error
}

func (e *PlanParseError) Error() string {
	return ErrPlanParse.Error() + ": " + e.Cause.Error()
}

func (e *PlanParseError) Unwrap() []error {
	return []error{ErrPlanParse, e.Cause}
}
