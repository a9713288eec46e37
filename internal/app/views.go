package app

import (
	"recipe-swiper/internal/discovery"
	"recipe-swiper/internal/planner"
	"recipe-swiper/internal/recipe"
	"recipe-swiper/internal/shopping"
)

// PantryView is the Ingredient/Preference Store of a user.
type PantryView struct {
	Ingredients []string            `json:"ingredients"`
	Preferences []recipe.DietaryTag `json:"preferences"`
}

// QueueView is the presentation state of the discovery queue. Exhausted is
// set when every fetched recipe has been decided; Stale when a newer filter
// change superseded the fetch that produced the view.
type QueueView struct {
	Current    *recipe.Recipe  `json:"current"`
	Available  []recipe.Recipe `json:"available"`
	Cursor     int             `json:"cursor"`
	TotalFound int             `json:"totalFound"`
	Processed  int             `json:"processed"`
	Progress   float64         `json:"progress"`
	Exhausted  bool            `json:"exhausted"`
	Stale      bool            `json:"stale,omitempty"`
	Signature  string          `json:"signature"`
	Budget     planner.Summary `json:"budget"`
}

// Empty reports that the filters matched no recipes at all.
func (v QueueView) Empty() bool {
	return v.TotalFound == 0
}

// DecisionView is the result of accepting or rejecting a recipe.
type DecisionView struct {
	Outcome string        `json:"outcome"`
	Recipe  recipe.Recipe `json:"recipe"`
	Queue   QueueView     `json:"queue"`
}

// PlanView is the meal plan with its budget ledger.
type PlanView struct {
	Recipes []recipe.Recipe `json:"recipes"`
	Budget  planner.Summary `json:"budget"`
}

// SkippedView lists the skipped recipes, oldest first.
type SkippedView struct {
	Records []discovery.SkipRecord `json:"records"`
}

// ShoppingView is the shopping list of the meal plan.
type ShoppingView = shopping.List

func pantryView(s *Session) PantryView {
	return PantryView{Ingredients: s.pantry.Ingredients(), Preferences: s.pantry.Preferences()}
}

func queueView(s *Session) QueueView {
	q := s.proc.Queue()
	v := QueueView{
		Available:  q.Available(),
		TotalFound: q.TotalFound(),
		Processed:  q.Decided(),
		Progress:   q.Progress(),
		Exhausted:  q.AllDecided(),
		Signature:  q.Signature(),
		Budget:     s.plan.Summary(),
	}
	if cur, ok := s.proc.Current(); ok {
		v.Current = &cur
		v.Cursor = s.proc.Cursor()
	}
	return v
}

func planView(s *Session) PlanView {
	return PlanView{Recipes: s.plan.Recipes(), Budget: s.plan.Summary()}
}

func decisionView(s *Session, res discovery.Result) DecisionView {
	return DecisionView{Outcome: res.Outcome.String(), Recipe: res.Recipe, Queue: queueView(s)}
}
