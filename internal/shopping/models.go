package shopping

// Item is one thing to buy and the recipes that need it.
type Item struct {
	Name    string   `json:"name"`
	Recipes []string `json:"recipes"`
}

// List is the shopping list for a meal plan.
type List struct {
	Items   []Item `json:"items"`
	Recipes int    `json:"recipes"`
}

// Len returns the number of distinct items.
func (l List) Len() int { return len(l.Items) }
