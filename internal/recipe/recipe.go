package recipe

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDietaryTag is returned when a preference is not one of the supported tags.
var ErrUnknownDietaryTag = errors.New("unknown dietary tag")

// DietaryTag is a dietary classification a user can filter on.
type DietaryTag string

const (
	Vegetarian DietaryTag = "vegetarian"
	Vegan      DietaryTag = "vegan"
	GlutenFree DietaryTag = "gluten-free"
	DairyFree  DietaryTag = "dairy-free"
	LowCarb    DietaryTag = "low-carb"
	Keto       DietaryTag = "keto"
	Paleo      DietaryTag = "paleo"
)

// AllDietaryTags lists the supported tags in display order.
var AllDietaryTags = []DietaryTag{Vegetarian, Vegan, GlutenFree, DairyFree, LowCarb, Keto, Paleo}

// ParseDietaryTag accepts a tag name case-insensitively, with spaces or
// underscores in place of dashes.
func ParseDietaryTag(s string) (DietaryTag, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "-", "_", "-").Replace(norm)
	for _, tag := range AllDietaryTags {
		if string(tag) == norm {
			return tag, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDietaryTag, s)
}

// Step is a single instruction step.
type Step struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Recipe is a normalized recipe. Values are never mutated after fetch.
type Recipe struct {
	ID                int64        `json:"id"`
	Title             string       `json:"title"`
	Image             string       `json:"image"`
	EstimatedCost     float64      `json:"estimatedCost"`
	CookingMinutes    int          `json:"cookingTime"`
	Servings          int          `json:"servings"`
	DietaryTags       []DietaryTag `json:"dietaryTags"`
	DishTypes         []string     `json:"dishTypes"`
	Cuisines          []string     `json:"cuisines"`
	UsedIngredients   []string     `json:"usedIngredients"`
	MissedIngredients []string     `json:"missedIngredients"`
	Ingredients       []string     `json:"ingredients"`
	Summary           string       `json:"summary,omitempty"`
	SourceURL         string       `json:"sourceUrl,omitempty"`
	Steps             []Step       `json:"steps,omitempty"`
}

// HasTag reports whether the recipe carries the given dietary tag.
func (r Recipe) HasTag(tag DietaryTag) bool {
	for _, t := range r.DietaryTags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasDishType reports whether the recipe is classified under the dish type.
func (r Recipe) HasDishType(dishType string) bool {
	for _, d := range r.DishTypes {
		if strings.EqualFold(d, dishType) {
			return true
		}
	}
	return false
}

// MatchesAll reports whether the recipe carries every requested tag.
func MatchesAll(r Recipe, prefs []DietaryTag) bool {
	for _, p := range prefs {
		if !r.HasTag(p) {
			return false
		}
	}
	return true
}

// FilterByDiet keeps the recipes that satisfy every preference, preserving order.
func FilterByDiet(recipes []Recipe, prefs []DietaryTag) []Recipe {
	out := make([]Recipe, 0, len(recipes))
	for _, r := range recipes {
		if MatchesAll(r, prefs) {
			out = append(out, r)
		}
	}
	return out
}

// TotalCost sums the estimated cost of the recipes.
func TotalCost(recipes []Recipe) float64 {
	var total float64
	for _, r := range recipes {
		total += r.EstimatedCost
	}
	return total
}
