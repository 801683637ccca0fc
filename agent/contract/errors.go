package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")
	ErrMalformedPlan   = errors.New("malformed routing plan")
	ErrStepLimit       = errors.New("turn exceeded step limit")
	ErrNothingToResume = errors.New("no interrupted turn to resume")
)
