package discovery

import (
	"slices"
	"strings"
	"time"

	"recipe-swiper/internal/pantry"
	"recipe-swiper/internal/recipe"
)

// SkipRecord remembers a skipped recipe and the ingredient set it was skipped under.
type SkipRecord struct {
	Recipe      recipe.Recipe `json:"recipe"`
	SkippedAt   time.Time     `json:"skippedAt"`
	Fingerprint []string      `json:"fingerprint"`
}

// SkipLog is the persisted list of skipped recipes, oldest first.
type SkipLog struct {
	records []SkipRecord
}

// NewSkipLog restores a log from persisted records.
func NewSkipLog(records []SkipRecord) *SkipLog {
	l := &SkipLog{}
	for _, rec := range records {
		if !l.Contains(rec.Recipe.ID) {
			l.records = append(l.records, rec)
		}
	}
	return l
}

// Fingerprint is the order independent form of an ingredient set.
func Fingerprint(ingredients []string) []string {
	fp := pantry.NormalizeIngredients(ingredients)
	slices.Sort(fp)
	return fp
}

// Record adds a skip. A recipe already in the log keeps its original record.
func (l *SkipLog) Record(r recipe.Recipe, ingredients []string, at time.Time) bool {
	if l.Contains(r.ID) {
		return false
	}
	l.records = append(l.records, SkipRecord{Recipe: r, SkippedAt: at, Fingerprint: Fingerprint(ingredients)})
	return true
}

// Remove drops the record for id.
func (l *SkipLog) Remove(id int64) (SkipRecord, bool) {
	idx := slices.IndexFunc(l.records, func(rec SkipRecord) bool { return rec.Recipe.ID == id })
	if idx < 0 {
		return SkipRecord{}, false
	}
	rec := l.records[idx]
	l.records = slices.Delete(l.records, idx, idx+1)
	return rec, true
}

// Contains reports whether id has been skipped.
func (l *SkipLog) Contains(id int64) bool {
	return slices.ContainsFunc(l.records, func(rec SkipRecord) bool { return rec.Recipe.ID == id })
}

// Records returns a copy of the log.
func (l *SkipLog) Records() []SkipRecord {
	return slices.Clone(l.records)
}

// Len returns the number of skipped recipes.
func (l *SkipLog) Len() int { return len(l.records) }

// Clear empties the log.
func (l *SkipLog) Clear() { l.records = nil }

// Excluded decides whether a skipped recipe stays out of a queue built from
// ingredients. A recipe skipped under the same ingredient set stays out. When
// the set has changed it comes back if the new set shares an ingredient with
// the recipe. With resurface disabled skipped recipes never come back.
// This is a heuristic, not a guarantee.
func (l *SkipLog) Excluded(id int64, ingredients []string, resurface bool) bool {
	idx := slices.IndexFunc(l.records, func(rec SkipRecord) bool { return rec.Recipe.ID == id })
	if idx < 0 {
		return false
	}
	if !resurface {
		return true
	}
	rec := l.records[idx]
	current := Fingerprint(ingredients)
	if slices.Equal(current, rec.Fingerprint) {
		return true
	}
	return !overlaps(current, rec.Recipe.Ingredients)
}

// Filter drops the recipes the log excludes for the ingredient set.
func (l *SkipLog) Filter(recipes []recipe.Recipe, ingredients []string, resurface bool) []recipe.Recipe {
	out := make([]recipe.Recipe, 0, len(recipes))
	for _, r := range recipes {
		if !l.Excluded(r.ID, ingredients, resurface) {
			out = append(out, r)
		}
	}
	return out
}

func overlaps(pantryItems, recipeIngredients []string) bool {
	for _, ing := range recipeIngredients {
		name := strings.ToLower(ing)
		for _, p := range pantryItems {
			if strings.Contains(name, p) || strings.Contains(p, name) {
				return true
			}
		}
	}
	return false
}
