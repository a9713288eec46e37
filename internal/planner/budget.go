package planner

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultBudget applies when the user has not set one.
const DefaultBudget = 100.0

// ErrInvalidBudget is returned for budgets that are not positive finite numbers.
var ErrInvalidBudget = errors.New("budget must be a positive number")

// Summary is the Budget Ledger view.
type Summary struct {
	Budget     float64 `json:"budget"`
	Spent      float64 `json:"spent"`
	Remaining  float64 `json:"remaining"`
	Percentage float64 `json:"percentage"`
	Recipes    int     `json:"recipes"`
}

// Overspent reports whether spending exceeds the budget.
func (s Summary) Overspent() bool {
	return s.Spent > s.Budget
}

// Summarize derives remaining and percentage. Percentage is not capped at
// 100 and is 0 when the budget is 0.
func Summarize(budget, spent float64, recipes int) Summary {
	s := Summary{
		Budget:    budget,
		Spent:     spent,
		Remaining: max(0, budget-spent),
		Recipes:   recipes,
	}
	if budget != 0 {
		s.Percentage = spent / budget * 100
	}
	return s
}

// ValidateBudget checks that v is a positive finite number.
func ValidateBudget(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w, got %v", ErrInvalidBudget, v)
	}
	return nil
}

// ParseBudget reads user input such as "20", "20.5" or "$20".
func ParseBudget(s string) (float64, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, "$")
	raw = strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w, got %q", ErrInvalidBudget, s)
	}
	if err := ValidateBudget(v); err != nil {
		return 0, err
	}
	return v, nil
}
