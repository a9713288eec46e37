package recipe

import (
	"math"
	"strings"

	"recipe-swiper/internal/spoonacular"
)

// Usage is the used/missing ingredient breakdown of a recipe relative to a pantry.
type Usage struct {
	Used   []string
	Missed []string
}

// UsageFromSearch takes the breakdown reported by an ingredient search.
func UsageFromSearch(res spoonacular.SearchResult) Usage {
	return Usage{
		Used:   ingredientNames(res.UsedIngredients),
		Missed: ingredientNames(res.MissedIngredients),
	}
}

// ComputeUsage matches recipe ingredients against the pantry. An ingredient
// counts as used when its name contains a pantry item or the reverse.
func ComputeUsage(ingredients, pantry []string) Usage {
	var u Usage
	for _, ing := range ingredients {
		if inPantry(ing, pantry) {
			u.Used = append(u.Used, ing)
		} else {
			u.Missed = append(u.Missed, ing)
		}
	}
	return u
}

func inPantry(ingredient string, pantry []string) bool {
	name := strings.ToLower(ingredient)
	for _, p := range pantry {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.Contains(name, p) || strings.Contains(p, name) {
			return true
		}
	}
	return false
}

// EstimateCost converts a per-serving price in cents to a whole-recipe cost
// in dollars rounded to cents.
func EstimateCost(pricePerServingCents float64, servings int) float64 {
	if servings < 1 {
		servings = 1
	}
	cost := pricePerServingCents * float64(servings) / 100
	if cost <= 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return 0
	}
	return math.Round(cost*100) / 100
}

// DietaryTagsOf derives the supported tags from the API flags and diet labels.
func DietaryTagsOf(info spoonacular.Information) []DietaryTag {
	set := map[DietaryTag]bool{
		Vegetarian: info.Vegetarian || info.Vegan,
		Vegan:      info.Vegan,
		GlutenFree: info.GlutenFree,
		DairyFree:  info.DairyFree,
	}
	for _, d := range info.Diets {
		switch strings.ToLower(strings.TrimSpace(d)) {
		case "vegan":
			set[Vegan], set[Vegetarian] = true, true
		case "vegetarian", "lacto ovo vegetarian", "lacto vegetarian", "ovo vegetarian":
			set[Vegetarian] = true
		case "gluten free":
			set[GlutenFree] = true
		case "dairy free":
			set[DairyFree] = true
		case "ketogenic":
			set[Keto], set[LowCarb] = true, true
		case "low carb":
			set[LowCarb] = true
		case "paleolithic", "paleo", "primal":
			set[Paleo] = true
		}
	}

	tags := []DietaryTag{}
	for _, tag := range AllDietaryTags {
		if set[tag] {
			tags = append(tags, tag)
		}
	}
	return tags
}

// FromInformation normalizes a detail payload. When usage is nil the
// breakdown is computed against pantry.
func FromInformation(info spoonacular.Information, usage *Usage, pantry []string) Recipe {
	ingredients := ingredientNames(info.ExtendedIngredients)

	u := ComputeUsage(ingredients, pantry)
	if usage != nil {
		u = *usage
	}

	return Recipe{
		ID:                info.ID,
		Title:             info.Title,
		Image:             info.Image,
		EstimatedCost:     EstimateCost(info.PricePerServing, info.Servings),
		CookingMinutes:    info.ReadyInMinutes,
		Servings:          info.Servings,
		DietaryTags:       DietaryTagsOf(info),
		DishTypes:         nonNil(info.DishTypes),
		Cuisines:          nonNil(info.Cuisines),
		UsedIngredients:   nonNil(u.Used),
		MissedIngredients: nonNil(u.Missed),
		Ingredients:       ingredients,
		Summary:           StripHTML(info.Summary),
		SourceURL:         info.SourceURL,
		Steps:             StepsOf(info),
	}
}

// StepsOf prefers the structured instructions and falls back to parsing the HTML.
func StepsOf(info spoonacular.Information) []Step {
	var steps []Step
	for _, section := range info.AnalyzedInstructions {
		for _, s := range section.Steps {
			text := strings.TrimSpace(s.Step)
			if text == "" {
				continue
			}
			steps = append(steps, Step{Number: len(steps) + 1, Text: text})
		}
	}
	if len(steps) > 0 {
		return steps
	}
	return ParseInstructions(info.Instructions)
}

func ingredientNames(ings []spoonacular.Ingredient) []string {
	names := make([]string, 0, len(ings))
	seen := make(map[string]bool, len(ings))
	for _, ing := range ings {
		name := strings.ToLower(strings.TrimSpace(ing.Name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
