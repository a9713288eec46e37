// Package shopping derives a shopping list from the recipes in a meal plan.
package shopping

import (
	"strings"

	"recipe-swiper/internal/recipe"
)

// Build aggregates the missing ingredients of recipes. Names are matched
// case-insensitively and keep the spelling and order of first appearance.
// Anything the pantry already covers is left out.
func Build(recipes []recipe.Recipe, pantry []string) List {
	list := List{Items: []Item{}, Recipes: len(recipes)}
	index := map[string]int{}

	for _, r := range recipes {
		for _, name := range r.MissedIngredients {
			name = strings.TrimSpace(name)
			key := strings.ToLower(name)
			if key == "" || covered(key, pantry) {
				continue
			}
			idx, ok := index[key]
			if !ok {
				idx = len(list.Items)
				index[key] = idx
				list.Items = append(list.Items, Item{Name: name})
			}
			item := &list.Items[idx]
			if !contains(item.Recipes, r.Title) {
				item.Recipes = append(item.Recipes, r.Title)
			}
		}
	}
	return list
}

func covered(ingredient string, pantry []string) bool {
	for _, p := range pantry {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.Contains(ingredient, p) || strings.Contains(p, ingredient) {
			return true
		}
	}
	return false
}

func contains(titles []string, title string) bool {
	for _, t := range titles {
		if t == title {
			return true
		}
	}
	return false
}
