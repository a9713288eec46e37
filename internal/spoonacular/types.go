package spoonacular

// Ingredient is an ingredient entry as returned by the recipe endpoints.
type Ingredient struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Original string  `json:"original"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
	Aisle    string  `json:"aisle"`
	Image    string  `json:"image"`
}

// SearchResult is a single match from findByIngredients.
type SearchResult struct {
	ID                    int64        `json:"id"`
	Title                 string       `json:"title"`
	Image                 string       `json:"image"`
	UsedIngredientCount   int          `json:"usedIngredientCount"`
	MissedIngredientCount int          `json:"missedIngredientCount"`
	UsedIngredients       []Ingredient `json:"usedIngredients"`
	MissedIngredients     []Ingredient `json:"missedIngredients"`
	UnusedIngredients     []Ingredient `json:"unusedIngredients"`
	Likes                 int          `json:"likes"`
}

// Step is one numbered step of an analyzed instruction.
type Step struct {
	Number int    `json:"number"`
	Step   string `json:"step"`
}

// AnalyzedInstruction groups steps under an optional section name.
type AnalyzedInstruction struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Information is the full recipe detail payload.
type Information struct {
	ID                   int64                 `json:"id"`
	Title                string                `json:"title"`
	Image                string                `json:"image"`
	Servings             int                   `json:"servings"`
	ReadyInMinutes       int                   `json:"readyInMinutes"`
	PricePerServing      float64               `json:"pricePerServing"`
	Summary              string                `json:"summary"`
	Instructions         string                `json:"instructions"`
	SourceURL            string                `json:"sourceUrl"`
	Cuisines             []string              `json:"cuisines"`
	DishTypes            []string              `json:"dishTypes"`
	Diets                []string              `json:"diets"`
	Vegetarian           bool                  `json:"vegetarian"`
	Vegan                bool                  `json:"vegan"`
	GlutenFree           bool                  `json:"glutenFree"`
	DairyFree            bool                  `json:"dairyFree"`
	ExtendedIngredients  []Ingredient          `json:"extendedIngredients"`
	AnalyzedInstructions []AnalyzedInstruction `json:"analyzedInstructions"`
}

// SearchOptions tunes a findByIngredients request.
type SearchOptions struct {
	Number  int
	Ranking int
}

type randomResponse struct {
	Recipes []Information `json:"recipes"`
}
