// Package pantry holds a user's available ingredients and dietary preferences.
package pantry

import (
	"fmt"
	"slices"
	"strings"

	"recipe-swiper/internal/recipe"
)

// NormalizeIngredients trims and lower-cases names, drops empties and removes
// duplicates while keeping first-occurrence order.
func NormalizeIngredients(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		name := strings.ToLower(strings.Join(strings.Fields(item), " "))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// SplitIngredients splits free text on commas, semicolons and newlines.
func SplitIngredients(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})
	return NormalizeIngredients(parts)
}

// ParsePreferences validates tag names. "none" alone clears the preferences.
func ParsePreferences(names []string) ([]recipe.DietaryTag, error) {
	var tags []recipe.DietaryTag
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if len(names) == 1 && strings.EqualFold(strings.TrimSpace(name), "none") {
			return []recipe.DietaryTag{}, nil
		}
		tag, err := recipe.ParseDietaryTag(name)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}
	if tags == nil {
		tags = []recipe.DietaryTag{}
	}
	return tags, nil
}

// Pantry is the Ingredient/Preference Store of one user.
type Pantry struct {
	ingredients []string
	preferences []recipe.DietaryTag
}

// New creates a pantry from persisted values, normalizing them.
func New(ingredients []string, preferences []recipe.DietaryTag) *Pantry {
	p := &Pantry{}
	p.SetIngredients(ingredients)
	p.SetPreferences(preferences)
	return p
}

// Ingredients returns a copy of the ingredient set.
func (p *Pantry) Ingredients() []string {
	return slices.Clone(p.ingredients)
}

// Preferences returns a copy of the preference set.
func (p *Pantry) Preferences() []recipe.DietaryTag {
	return slices.Clone(p.preferences)
}

// SetIngredients replaces the ingredient set and reports whether it changed.
// A reordering of the same ingredients is not a change and keeps the
// current order.
func (p *Pantry) SetIngredients(items []string) bool {
	next := NormalizeIngredients(items)
	if sameSet(next, p.ingredients) {
		return false
	}
	p.ingredients = next
	return true
}

// AddIngredients appends new ingredients and reports whether any were added.
func (p *Pantry) AddIngredients(items []string) bool {
	return p.SetIngredients(append(slices.Clone(p.ingredients), items...))
}

// RemoveIngredient drops an ingredient by name and reports whether it was present.
func (p *Pantry) RemoveIngredient(name string) bool {
	target := strings.ToLower(strings.Join(strings.Fields(name), " "))
	idx := slices.Index(p.ingredients, target)
	if idx < 0 {
		return false
	}
	p.ingredients = slices.Delete(slices.Clone(p.ingredients), idx, idx+1)
	return true
}

// SetPreferences replaces the preference set and reports whether it changed.
// Order does not matter when comparing.
func (p *Pantry) SetPreferences(tags []recipe.DietaryTag) bool {
	next := make([]recipe.DietaryTag, 0, len(tags))
	for _, t := range tags {
		if !slices.Contains(next, t) {
			next = append(next, t)
		}
	}
	if sameTags(next, p.preferences) {
		return false
	}
	p.preferences = next
	return true
}

// Signature identifies the filter combination independent of ingredient order.
func (p *Pantry) Signature() string {
	return Signature(p.ingredients, p.preferences)
}

// Signature builds a stable key from ingredients and preferences.
func Signature(ingredients []string, preferences []recipe.DietaryTag) string {
	ings := NormalizeIngredients(ingredients)
	slices.Sort(ings)

	prefs := make([]string, len(preferences))
	for i, t := range preferences {
		prefs[i] = string(t)
	}
	slices.Sort(prefs)
	prefs = slices.Compact(prefs)

	return fmt.Sprintf("i=%s|d=%s", strings.Join(ings, ","), strings.Join(prefs, ","))
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

func sameTags(a, b []recipe.DietaryTag) bool {
	if len(a) != len(b) {
		return false
	}
	for _, t := range a {
		if !slices.Contains(b, t) {
			return false
		}
	}
	return true
}
