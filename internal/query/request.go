package query

import (
	"fmt"
	"slices"
	"strings"

	"recipe-swiper/internal/pantry"
	"recipe-swiper/internal/recipe"
)

// Request is one discovery query.
type Request struct {
	Ingredients           []string
	Preferences           []recipe.DietaryTag
	Count                 int
	Ranking               int
	MaxMissingIngredients int
	DishType              string
}

// Signature identifies the filter combination of the request. Two requests
// with the same signature produce the same queue.
func (r Request) Signature() string {
	return fmt.Sprintf("%s|n=%d|r=%d|m=%d|t=%s",
		pantry.Signature(r.Ingredients, r.Preferences),
		r.Count, r.Ranking, r.MaxMissingIngredients, strings.ToLower(r.DishType))
}

func (r Request) searchKey() string {
	ings := pantry.NormalizeIngredients(r.Ingredients)
	slices.Sort(ings)
	return fmt.Sprintf("search:%s|n=%d|r=%d", strings.Join(ings, ","), r.Count, r.Ranking)
}

func (r Request) randomTags() []string {
	var tags []string
	for _, p := range r.Preferences {
		if tag, ok := apiTags[p]; ok {
			tags = append(tags, tag)
		}
	}
	if r.DishType != "" {
		tags = append(tags, strings.ToLower(r.DishType))
	}
	slices.Sort(tags)
	return tags
}

// apiTags maps preferences onto the tag vocabulary of the random endpoint.
// low-carb has no equivalent and is enforced by the post-fetch filter only.
var apiTags = map[recipe.DietaryTag]string{
	recipe.Vegetarian: "vegetarian",
	recipe.Vegan:      "vegan",
	recipe.GlutenFree: "gluten free",
	recipe.DairyFree:  "dairy free",
	recipe.Keto:       "ketogenic",
	recipe.Paleo:      "paleo",
}

func detailKey(id int64) string {
	return fmt.Sprintf("detail:%d", id)
}
