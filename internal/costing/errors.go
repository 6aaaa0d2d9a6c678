package costing

import (
	"errors"
	"fmt"
)

var (
	// ErrCostCalculation matches every error produced while pricing.
	ErrCostCalculation = errors.New("cost calculation failed")
	// ErrRecipeCycle matches errors raised when a recipe contains itself.
	ErrRecipeCycle = errors.New("recipe cycle detected")
)

// CalculationError reports a cost that cannot be computed, such as a zero
// divisor on an ingredient or an item without a resolved component.
type CalculationError struct {
	Subject string
	Reason  string
	Err     error
}

func (e *CalculationError) Error() string {
	msg := "cost calculation"
	if e.Subject != "" {
		msg += ": " + e.Subject
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CalculationError) Unwrap() error {
	return e.Err
}

func (e *CalculationError) Is(target error) bool {
	return target == ErrCostCalculation
}

// CycleError is raised when a recipe is reached again along its own
// sub-recipe path. It is never downgraded to an unknown line cost.
type CycleError struct {
	RecipeID uint
	Name     string
}

func (e *CycleError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("cost calculation: cycle detected: recipe %d (%s) is referenced recursively", e.RecipeID, e.Name)
	}
	return fmt.Sprintf("cost calculation: cycle detected: recipe %d is referenced recursively", e.RecipeID)
}

func (e *CycleError) Is(target error) bool {
	return target == ErrRecipeCycle || target == ErrCostCalculation
}

func calcErr(subject, reason string, err error) error {
	return &CalculationError{Subject: subject, Reason: reason, Err: err}
}
