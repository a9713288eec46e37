package app

import (
	"context"

	"recipe-swiper/internal/discovery"
	"recipe-swiper/internal/pantry"
	"recipe-swiper/internal/planner"
	"recipe-swiper/internal/recipe"
	"recipe-swiper/internal/shopping"
	"recipe-swiper/internal/storage"

	"go.uber.org/zap"
)

// Pantry returns the ingredients and preferences of user.
func (a *App) Pantry(ctx context.Context, user string) (PantryView, error) {
	var v PantryView
	err := a.with(ctx, user, func(s *Session) error {
		v = pantryView(s)
		return nil
	})
	return v, err
}

// SetIngredients replaces the ingredient set. A change resets the queue and
// fetches recipes for the new set.
func (a *App) SetIngredients(ctx context.Context, user string, items []string) (QueueView, error) {
	return a.changePantry(ctx, user, func(p *pantry.Pantry) bool {
		return p.SetIngredients(items)
	})
}

// AddIngredients extends the ingredient set.
func (a *App) AddIngredients(ctx context.Context, user string, items []string) (QueueView, error) {
	return a.changePantry(ctx, user, func(p *pantry.Pantry) bool {
		return p.AddIngredients(items)
	})
}

// RemoveIngredient drops one ingredient from the set.
func (a *App) RemoveIngredient(ctx context.Context, user, name string) (QueueView, error) {
	return a.changePantry(ctx, user, func(p *pantry.Pantry) bool {
		return p.RemoveIngredient(name)
	})
}

// SetPreferences replaces the dietary preferences. Unknown tags are rejected
// and leave the preferences unchanged.
func (a *App) SetPreferences(ctx context.Context, user string, names []string) (QueueView, error) {
	tags, err := pantry.ParsePreferences(names)
	if err != nil {
		return QueueView{}, err
	}
	return a.changePantry(ctx, user, func(p *pantry.Pantry) bool {
		return p.SetPreferences(tags)
	})
}

func (a *App) changePantry(ctx context.Context, user string, change func(p *pantry.Pantry) bool) (QueueView, error) {
	err := a.with(ctx, user, func(s *Session) error {
		if !change(s.pantry) {
			return nil
		}
		a.reset(s)
		a.persist(s, storage.KeyIngredients, storage.KeyPreferences)
		return nil
	})
	if err != nil {
		return QueueView{}, err
	}
	return a.Queue(ctx, user)
}

// SetBudget changes the budget ceiling. Invalid values leave the prior
// budget in place.
func (a *App) SetBudget(ctx context.Context, user string, amount float64) (planner.Summary, error) {
	var sum planner.Summary
	err := a.with(ctx, user, func(s *Session) error {
		if err := s.plan.SetBudget(amount); err != nil {
			return err
		}
		a.persist(s, storage.KeyBudget)
		sum = s.plan.Summary()
		return nil
	})
	return sum, err
}

// Refresh fetches recipes for the current filters and loads them into a new
// queue epoch. The fetch runs without holding the session; when the filters
// changed while it was in flight the response is discarded and the returned
// view is marked stale.
func (a *App) Refresh(ctx context.Context, user string) (QueueView, error) {
	s, err := a.session(ctx, user)
	if err != nil {
		return QueueView{}, err
	}
	s.fetchSeq++
	seq := s.fetchSeq
	req := a.request(s)
	s.mu.Unlock()

	recipes, fetchErr := a.recipes.Discover(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.fetchSeq || req.Signature() != a.request(s).Signature() {
		a.log.Warn("discarded stale discovery response",
			zap.String("user", user),
			zap.String("signature", req.Signature()),
		)
		v := queueView(s)
		v.Stale = true
		return v, nil
	}
	if fetchErr != nil {
		return QueueView{}, fetchErr
	}

	s.proc.Load(req.Signature(), s.skips.Filter(recipes, req.Ingredients, a.cfg.ResurfaceSkipped))
	s.fetched = true
	return queueView(s), nil
}

// Queue returns the discovery queue, fetching it on first use.
func (a *App) Queue(ctx context.Context, user string) (QueueView, error) {
	s, err := a.session(ctx, user)
	if err != nil {
		return QueueView{}, err
	}
	if !s.fetched {
		s.mu.Unlock()
		return a.Refresh(ctx, user)
	}
	defer s.mu.Unlock()
	return queueView(s), nil
}

// Accept saves a recipe from the queue to the meal plan.
func (a *App) Accept(ctx context.Context, user string, id int64) (DecisionView, error) {
	var v DecisionView
	err := a.with(ctx, user, func(s *Session) error {
		res, err := s.proc.Accept(id)
		if err != nil {
			return err
		}
		if res.Outcome == discovery.OutcomeSaved || res.Outcome == discovery.OutcomeAlreadyInPlan {
			a.persist(s, storage.KeySavedRecipes, storage.KeySkippedRecipes)
		}
		v = decisionView(s, res)
		return nil
	})
	return v, err
}

// Reject skips a recipe from the queue.
func (a *App) Reject(ctx context.Context, user string, id int64) (DecisionView, error) {
	var v DecisionView
	err := a.with(ctx, user, func(s *Session) error {
		res, err := s.proc.Reject(id, s.pantry.Ingredients())
		if err != nil {
			return err
		}
		if res.Outcome == discovery.OutcomeSkipped {
			a.persist(s, storage.KeySkippedRecipes)
		}
		v = decisionView(s, res)
		return nil
	})
	return v, err
}

// Next moves to the following undecided recipe.
func (a *App) Next(ctx context.Context, user string) (QueueView, error) {
	return a.navigate(ctx, user, (*discovery.Processor).Next)
}

// Previous moves to the preceding undecided recipe.
func (a *App) Previous(ctx context.Context, user string) (QueueView, error) {
	return a.navigate(ctx, user, (*discovery.Processor).Previous)
}

func (a *App) navigate(ctx context.Context, user string, move func(*discovery.Processor) (recipe.Recipe, bool)) (QueueView, error) {
	var v QueueView
	err := a.with(ctx, user, func(s *Session) error {
		move(s.proc)
		v = queueView(s)
		return nil
	})
	return v, err
}

// Restart makes every recipe of the current queue undecided again.
func (a *App) Restart(ctx context.Context, user string) (QueueView, error) {
	var (
		v       QueueView
		fetched bool
	)
	err := a.with(ctx, user, func(s *Session) error {
		fetched = s.fetched
		s.proc.Restart()
		v = queueView(s)
		return nil
	})
	if err != nil {
		return QueueView{}, err
	}
	if !fetched {
		return a.Queue(ctx, user)
	}
	return v, nil
}

// Plan returns the meal plan and budget ledger.
func (a *App) Plan(ctx context.Context, user string) (PlanView, error) {
	var v PlanView
	err := a.with(ctx, user, func(s *Session) error {
		v = planView(s)
		return nil
	})
	return v, err
}

// RemoveFromPlan takes a recipe out of the meal plan.
func (a *App) RemoveFromPlan(ctx context.Context, user string, id int64) (PlanView, error) {
	var v PlanView
	err := a.with(ctx, user, func(s *Session) error {
		if _, ok := s.plan.Remove(id); !ok {
			return ErrNotInPlan
		}
		a.persist(s, storage.KeySavedRecipes)
		v = planView(s)
		return nil
	})
	return v, err
}

// ClearPlan empties the meal plan.
func (a *App) ClearPlan(ctx context.Context, user string) (PlanView, error) {
	var v PlanView
	err := a.with(ctx, user, func(s *Session) error {
		s.plan.Clear()
		a.persist(s, storage.KeySavedRecipes)
		v = planView(s)
		return nil
	})
	return v, err
}

// ShoppingList returns what to buy for the meal plan.
func (a *App) ShoppingList(ctx context.Context, user string) (ShoppingView, error) {
	var v ShoppingView
	err := a.with(ctx, user, func(s *Session) error {
		v = shopping.Build(s.plan.Recipes(), s.pantry.Ingredients())
		return nil
	})
	return v, err
}

// Skipped lists the skipped recipes.
func (a *App) Skipped(ctx context.Context, user string) (SkippedView, error) {
	var v SkippedView
	err := a.with(ctx, user, func(s *Session) error {
		v = SkippedView{Records: s.skips.Records()}
		if v.Records == nil {
			v.Records = []discovery.SkipRecord{}
		}
		return nil
	})
	return v, err
}

// RecoverSkipped moves a skipped recipe into the meal plan.
func (a *App) RecoverSkipped(ctx context.Context, user string, id int64) (PlanView, error) {
	var v PlanView
	err := a.with(ctx, user, func(s *Session) error {
		rec, ok := s.skips.Remove(id)
		if !ok {
			return ErrNotSkipped
		}
		s.plan.Add(rec.Recipe)
		a.persist(s, storage.KeySavedRecipes, storage.KeySkippedRecipes)
		v = planView(s)
		return nil
	})
	return v, err
}

// ClearSkipped empties the skipped list.
func (a *App) ClearSkipped(ctx context.Context, user string) (SkippedView, error) {
	err := a.with(ctx, user, func(s *Session) error {
		s.skips.Clear()
		a.persist(s, storage.KeySkippedRecipes)
		return nil
	})
	return SkippedView{Records: []discovery.SkipRecord{}}, err
}

// Recipe returns a recipe known to the session, or fetches its details.
func (a *App) Recipe(ctx context.Context, user string, id int64) (recipe.Recipe, error) {
	var (
		found recipe.Recipe
		ok    bool
	)
	err := a.with(ctx, user, func(s *Session) error {
		found, ok = lookup(s, id)
		return nil
	})
	if err != nil {
		return recipe.Recipe{}, err
	}
	if ok {
		return found, nil
	}
	return a.recipes.Recipe(ctx, id)
}

func lookup(s *Session, id int64) (recipe.Recipe, bool) {
	if e, ok := s.proc.Queue().Entry(id); ok {
		return e.Recipe, true
	}
	if r, ok := s.plan.Get(id); ok {
		return r, true
	}
	for _, rec := range s.skips.Records() {
		if rec.Recipe.ID == id {
			return rec.Recipe, true
		}
	}
	return recipe.Recipe{}, false
}
