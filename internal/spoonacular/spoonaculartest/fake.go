// Package spoonaculartest provides an in-memory recipe API for tests.
package spoonaculartest

import (
	"context"
	"sync"

	"recipe-swiper/internal/spoonacular"
)

// Info builds a one-serving recipe detail costing cost dollars.
func Info(id int64, title string, cost float64, diets ...string) spoonacular.Information {
	return spoonacular.Information{
		ID:              id,
		Title:           title,
		Servings:        1,
		PricePerServing: cost * 100,
		ReadyInMinutes:  20,
		Diets:           diets,
		DishTypes:       []string{"main course"},
		ExtendedIngredients: []spoonacular.Ingredient{
			{Name: "chicken"}, {Name: "rice"}, {Name: "garlic"},
		},
	}
}

// Fake implements spoonacular.Client from fixed data.
type Fake struct {
	mu      sync.Mutex
	order   []int64
	details map[int64]spoonacular.Information
	missed  map[int64]int
	err     error
	calls   map[string]int
	bulkIDs [][]int64

	// SearchFunc, when set, overrides the ids returned by FindByIngredients.
	SearchFunc func(ingredients []string) []int64
}

// NewFake returns an empty fake.
func NewFake() *Fake {
	return &Fake{
		details: map[int64]spoonacular.Information{},
		missed:  map[int64]int{},
		calls:   map[string]int{},
	}
}

// Add registers recipes in search order.
func (f *Fake) Add(infos ...spoonacular.Information) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, info := range infos {
		if _, ok := f.details[info.ID]; !ok {
			f.order = append(f.order, info.ID)
		}
		f.details[info.ID] = info
	}
	return f
}

// SetMissed sets the missing ingredient count reported for a recipe.
func (f *Fake) SetMissed(id int64, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missed[id] = n
}

// Fail makes every subsequent call return err. A nil err restores success.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns how many times an endpoint was hit.
func (f *Fake) Calls(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

// BulkIDs returns the id lists of every bulk request.
func (f *Fake) BulkIDs() [][]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]int64(nil), f.bulkIDs...)
}

func (f *Fake) FindByIngredients(_ context.Context, ingredients []string, opts spoonacular.SearchOptions) ([]spoonacular.SearchResult, error) {
	f.mu.Lock()
	ids := f.order
	search := f.SearchFunc
	f.mu.Unlock()
	if search != nil {
		ids = search(ingredients)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["findByIngredients"]++
	if f.err != nil {
		return nil, f.err
	}

	var out []spoonacular.SearchResult
	for _, id := range ids {
		if opts.Number > 0 && len(out) == opts.Number {
			break
		}
		info, ok := f.details[id]
		if !ok {
			continue
		}
		var used, missed []spoonacular.Ingredient
		for i, ing := range info.ExtendedIngredients {
			if i < len(ingredients) {
				used = append(used, ing)
			} else {
				missed = append(missed, ing)
			}
		}
		missedCount := len(missed)
		if n, ok := f.missed[id]; ok {
			missedCount = n
		}
		out = append(out, spoonacular.SearchResult{
			ID:                    id,
			Title:                 info.Title,
			Image:                 info.Image,
			UsedIngredientCount:   len(used),
			MissedIngredientCount: missedCount,
			UsedIngredients:       used,
			MissedIngredients:     missed,
		})
	}
	return out, nil
}

func (f *Fake) Information(_ context.Context, id int64) (*spoonacular.Information, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["information"]++
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.details[id]
	if !ok {
		return nil, &spoonacular.FetchError{Endpoint: "information", StatusCode: 404}
	}
	return &info, nil
}

func (f *Fake) InformationBulk(_ context.Context, ids []int64) ([]spoonacular.Information, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["informationBulk"]++
	f.bulkIDs = append(f.bulkIDs, append([]int64(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	var out []spoonacular.Information
	for _, id := range ids {
		if info, ok := f.details[id]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func (f *Fake) Random(_ context.Context, count int, _ []string) ([]spoonacular.Information, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["random"]++
	if f.err != nil {
		return nil, f.err
	}
	var out []spoonacular.Information
	for _, id := range f.order {
		if count > 0 && len(out) == count {
			break
		}
		out = append(out, f.details[id])
	}
	return out, nil
}
