package planner

import (
	"slices"

	"recipe-swiper/internal/recipe"
)

// MealPlan is the set of saved recipes together with the budget ledger.
// A recipe id appears at most once and spent always tracks the total cost
// of the recipes in the plan.
type MealPlan struct {
	recipes []recipe.Recipe
	spent   float64
	budget  float64
}

// NewMealPlan restores a plan from persisted recipes. Spent is recomputed
// from the recipes and an invalid budget falls back to DefaultBudget.
func NewMealPlan(recipes []recipe.Recipe, budget float64) *MealPlan {
	p := &MealPlan{budget: DefaultBudget}
	if ValidateBudget(budget) == nil {
		p.budget = budget
	}
	for _, r := range recipes {
		p.Add(r)
	}
	return p
}

// Add saves a recipe and charges its cost. It returns false when the recipe
// is already in the plan, leaving the ledger untouched.
func (p *MealPlan) Add(r recipe.Recipe) bool {
	if p.Contains(r.ID) {
		return false
	}
	p.recipes = append(p.recipes, r)
	p.spent += r.EstimatedCost
	return true
}

// Remove drops a recipe and refunds exactly its cost, never going below zero.
func (p *MealPlan) Remove(id int64) (recipe.Recipe, bool) {
	idx := p.index(id)
	if idx < 0 {
		return recipe.Recipe{}, false
	}
	r := p.recipes[idx]
	p.recipes = slices.Delete(p.recipes, idx, idx+1)
	p.spent = max(0, p.spent-r.EstimatedCost)
	if len(p.recipes) == 0 {
		p.spent = 0
	}
	return r, true
}

// Clear empties the plan and resets spent to zero.
func (p *MealPlan) Clear() {
	p.recipes = nil
	p.spent = 0
}

// Contains reports whether the recipe is in the plan.
func (p *MealPlan) Contains(id int64) bool {
	return p.index(id) >= 0
}

// Get returns a saved recipe by id.
func (p *MealPlan) Get(id int64) (recipe.Recipe, bool) {
	if idx := p.index(id); idx >= 0 {
		return p.recipes[idx], true
	}
	return recipe.Recipe{}, false
}

// Recipes returns the saved recipes in the order they were added.
func (p *MealPlan) Recipes() []recipe.Recipe {
	return slices.Clone(p.recipes)
}

// Len returns the number of saved recipes.
func (p *MealPlan) Len() int {
	return len(p.recipes)
}

// Spent returns the running total of saved recipe costs.
func (p *MealPlan) Spent() float64 {
	return p.spent
}

// Budget returns the current ceiling.
func (p *MealPlan) Budget() float64 {
	return p.budget
}

// SetBudget changes the ceiling. Invalid values are rejected with
// ErrInvalidBudget and the previous budget is kept.
func (p *MealPlan) SetBudget(v float64) error {
	if err := ValidateBudget(v); err != nil {
		return err
	}
	p.budget = v
	return nil
}

// Summary returns the ledger view of the plan.
func (p *MealPlan) Summary() Summary {
	return Summarize(p.budget, p.spent, len(p.recipes))
}

func (p *MealPlan) index(id int64) int {
	return slices.IndexFunc(p.recipes, func(r recipe.Recipe) bool { return r.ID == id })
}
