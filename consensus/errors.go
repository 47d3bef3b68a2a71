package consensus

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotSealed is returned by VerifySeal when the evaluation was never sealed.
var ErrNotSealed = errors.New("evaluation is not sealed")

// ErrInvalidSeal is returned by VerifySeal when the recomputed hash does not
// match the stored seal, i.e. a field was mutated after sealing.
var ErrInvalidSeal = errors.New("evaluation seal does not match content")

// ErrNotFound is returned by lookups for unknown proposal or decision ids.
var ErrNotFound = errors.New("not found")

// MissingFieldError reports a required field absent from a constructor call.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// InvalidFieldError reports a field value outside its allowed domain.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// UnsealedEvaluationsError rejects decision aggregation over input that
// contains evaluations which were never sealed.
type UnsealedEvaluationsError struct {
	IDs []string
}

func (e *UnsealedEvaluationsError) Error() string {
	return fmt.Sprintf("cannot aggregate unsealed evaluations: %s", strings.Join(e.IDs, ", "))
}

// TamperedEvaluationsError rejects decision aggregation over input whose
// seal no longer matches its content.
type TamperedEvaluationsError struct {
	IDs []string
}

func (e *TamperedEvaluationsError) Error() string {
	return fmt.Sprintf("evaluation seal verification failed: %s", strings.Join(e.IDs, ", "))
}

// InvalidTransitionError reports an attempt to move a proposal out of a
// terminal status, or to skip a step of the status machine.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid proposal status transition %s -> %s", e.From, e.To)
}
