/*
errors.go - Error types for the costing engine

PURPOSE:
  Every public operation either returns a fully populated result or one of
  these errors. Partial results never leave the engine.

ERROR CATEGORIES:
  1. Input validation - bad weights/counts, missing part lists, zero denominators
  2. Mass balance - fatal only in the scenario differ (elsewhere a Warning)
  3. Route graph - malformed processing routes (unknown inputs, cycles)

USAGE:
  if errors.Is(err, costing.ErrInputValidation) {
      var ive *costing.InputValidationError
      errors.As(err, &ive)
      fmt.Println(ive.Stage, ive.Field)
  }

SEE ALSO:
  - types.go: Warning for the non-fatal findings
  - scenario.go: raises MassBalanceViolation
*/
package costing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInputValidation is returned for any input the pipeline refuses to cost.
	ErrInputValidation = errors.New("input validation failed")

	// ErrArithmeticDegenerate marks a division by zero (or a NaN-producing
	// step). It is always also an ErrInputValidation.
	ErrArithmeticDegenerate = errors.New("arithmetic degenerate")

	// ErrMassBalanceViolation is returned by the scenario differ when output
	// weights do not account for the griller weight.
	ErrMassBalanceViolation = errors.New("mass balance violation")

	// ErrInvalidRoute is returned for a malformed processing route.
	ErrInvalidRoute = errors.New("invalid processing route")

	// ErrRouteCycle is returned when a route's steps form a cycle.
	ErrRouteCycle = errors.New("processing route cycle")

	// ErrUnknownProfile is returned when a profile name does not resolve.
	ErrUnknownProfile = errors.New("unknown batch profile")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InputValidationError names the stage and field that were rejected.
type InputValidationError struct {
	Stage      Stage
	Field      string
	Reason     string
	Degenerate bool
}

func (e *InputValidationError) Error() string {
	if e.Degenerate {
		return fmt.Sprintf("%s: %s: degenerate: %s", e.Stage, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Field, e.Reason)
}

func (e *InputValidationError) Unwrap() error { return ErrInputValidation }

// Is lets a degenerate error also match ErrArithmeticDegenerate.
func (e *InputValidationError) Is(target error) bool {
	return e.Degenerate && target == ErrArithmeticDegenerate
}

func invalid(stage Stage, field, format string, args ...any) error {
	return &InputValidationError{Stage: stage, Field: field, Reason: fmt.Sprintf(format, args...)}
}

func degenerate(stage Stage, field, format string, args ...any) error {
	return &InputValidationError{Stage: stage, Field: field, Reason: fmt.Sprintf(format, args...), Degenerate: true}
}

// MassBalanceViolation reports output weights that do not add up to the griller.
type MassBalanceViolation struct {
	Label       string // "baseline" or "scenario"
	GrillerKg   decimal.Decimal
	AccountedKg decimal.Decimal
	DeviationKg decimal.Decimal
	ToleranceKg decimal.Decimal
	Parts       []string
}

func (e *MassBalanceViolation) Error() string {
	return fmt.Sprintf("%s mass balance: accounted %s kg vs griller %s kg (deviation %s kg, tolerance %s kg)",
		e.Label, e.AccountedKg, e.GrillerKg, e.DeviationKg, e.ToleranceKg)
}

func (e *MassBalanceViolation) Unwrap() error { return ErrMassBalanceViolation }

// RouteError wraps route graph validation failures.
type RouteError struct {
	Kind    error
	RouteID string
	Msg     string
}

func (e *RouteError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return fmt.Sprintf("route %s: %s", e.RouteID, e.Kind)
	}
	return fmt.Sprintf("route %s: %s: %s", e.RouteID, e.Kind, e.Msg)
}

func (e *RouteError) Unwrap() error { return e.Kind }

func routeInvalidf(routeID, format string, args ...any) error {
	return &RouteError{Kind: ErrInvalidRoute, RouteID: routeID, Msg: fmt.Sprintf(format, args...)}
}

func routeCycle(routeID string, path []string) error {
	msg := "cycle"
	if len(path) > 0 {
		msg = "cycle: " + strings.Join(path, " -> ")
	}
	return &RouteError{Kind: ErrRouteCycle, RouteID: routeID, Msg: msg}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInputValidation) ||
		errors.Is(err, ErrInvalidRoute) ||
		errors.Is(err, ErrRouteCycle) ||
		errors.Is(err, ErrUnknownProfile)
}
