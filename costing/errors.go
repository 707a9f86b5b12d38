/*
errors.go - Centralized error types for the costing engine

PURPOSE:
  All engine error types in one place. Domain validation failures are
  surfaced before any mutation begins; everything else the engine
  deliberately tolerates (missing references, zero divisors) is handled
  in-line and never raised.

ERROR CATEGORIES:
  1. Domain validation - rejected operations (bad copy input, no period)
  2. Structural - blend cycle detected in the BOM graph

USAGE:
  Callers branch with errors.Is():

    if errors.Is(err, costing.ErrPeriodNotFound) {
        // 404
    }

SEE ALSO:
  - calculator.go, copy.go: produce these errors
  - api/handlers.go: maps them to HTTP statuses
*/
package costing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPeriodNotFound is returned when a referenced fiscal period does
	// not exist. Validated before any mutation.
	ErrPeriodNotFound = errors.New("fiscal period not found")

	// ErrSamePeriod is returned when a period copy names the same source
	// and target.
	ErrSamePeriod = errors.New("source and target period are the same")

	// ErrBlendCycle is returned when the crude-product dependency graph
	// contains a cycle. The calculation aborts before any write.
	ErrBlendCycle = errors.New("cycle detected in crude product blend graph")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PeriodNotFoundError names which side of an operation referenced the
// missing period.
type PeriodNotFoundError struct {
	Role     string // e.g. "source", "target", "calculation"
	PeriodID PeriodID
}

func (e *PeriodNotFoundError) Error() string {
	return fmt.Sprintf("%s fiscal period not found: %s", e.Role, e.PeriodID)
}

func (e *PeriodNotFoundError) Unwrap() error { return ErrPeriodNotFound }

// BlendCycleError lists the crude products left unresolved when the
// topological ordering stalled.
type BlendCycleError struct {
	Remaining []CrudeProductID
}

func (e *BlendCycleError) Error() string {
	return fmt.Sprintf("cycle detected in crude product blend graph: %d unresolved items", len(e.Remaining))
}

func (e *BlendCycleError) Unwrap() error { return ErrBlendCycle }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrSamePeriod) || errors.Is(err, ErrBlendCycle)
}

// IsNotFound reports whether the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPeriodNotFound)
}
