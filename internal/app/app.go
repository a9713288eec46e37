// Package app runs the discovery workflow for many users. Every user owns a
// Session, and commands on one session are applied one at a time.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"recipe-swiper/internal/config"
	"recipe-swiper/internal/discovery"
	"recipe-swiper/internal/pantry"
	"recipe-swiper/internal/planner"
	"recipe-swiper/internal/query"
	"recipe-swiper/internal/recipe"
	"recipe-swiper/internal/storage"

	"go.uber.org/zap"
)

var (
	// ErrNotInPlan is returned when removing a recipe the meal plan does not hold.
	ErrNotInPlan = errors.New("recipe is not in the meal plan")
	// ErrNotSkipped is returned when recovering a recipe that was never skipped.
	ErrNotSkipped = errors.New("recipe is not in the skipped list")
)

// RecipeSource is the Recipe Query Layer as seen by the workflow.
type RecipeSource interface {
	Discover(ctx context.Context, req query.Request) ([]recipe.Recipe, error)
	Recipe(ctx context.Context, id int64) (recipe.Recipe, error)
}

// StateLoader reads persisted user state.
type StateLoader interface {
	Load(ctx context.Context, user string, key storage.Key, dst any) (bool, error)
}

// StateWriter queues persisted user state for writing.
type StateWriter interface {
	Schedule(user string, key storage.Key, v any)
}

// App holds the application's dependencies and the live sessions.
type App struct {
	recipes RecipeSource
	state   StateLoader
	writer  StateWriter
	cfg     *config.Config
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewApp creates and initializes a new App instance.
func NewApp(cfg *config.Config, recipes RecipeSource, state StateLoader, writer StateWriter, log *zap.Logger) *App {
	return &App{
		recipes:  recipes,
		state:    state,
		writer:   writer,
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Session is the workflow state of one user.
type Session struct {
	mu     sync.Mutex
	user   string
	loaded bool

	pantry *pantry.Pantry
	plan   *planner.MealPlan
	skips  *discovery.SkipLog
	proc   *discovery.Processor

	fetched  bool
	fetchSeq uint64
}

// session returns the locked session of user, loading persisted state on
// first use. The caller must unlock it.
func (a *App) session(ctx context.Context, user string) (*Session, error) {
	a.mu.Lock()
	s, ok := a.sessions[user]
	if !ok {
		s = &Session{user: user}
		a.sessions[user] = s
	}
	a.mu.Unlock()

	s.mu.Lock()
	if !s.loaded {
		if err := a.load(ctx, s); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to load session for %s: %w", user, err)
		}
		s.loaded = true
	}
	return s, nil
}

// with runs fn on the locked session of user.
func (a *App) with(ctx context.Context, user string, fn func(s *Session) error) error {
	s, err := a.session(ctx, user)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	return fn(s)
}

func (a *App) load(ctx context.Context, s *Session) error {
	var (
		ingredients []string
		prefs       []recipe.DietaryTag
		saved       []recipe.Recipe
		skipped     []discovery.SkipRecord
	)
	budget := a.cfg.DefaultBudget
	if budget <= 0 {
		budget = planner.DefaultBudget
	}

	loads := []struct {
		key storage.Key
		dst any
	}{
		{storage.KeyIngredients, &ingredients},
		{storage.KeyPreferences, &prefs},
		{storage.KeySavedRecipes, &saved},
		{storage.KeySkippedRecipes, &skipped},
		{storage.KeyBudget, &budget},
	}
	for _, l := range loads {
		if _, err := a.state.Load(ctx, s.user, l.key, l.dst); err != nil {
			return err
		}
	}

	s.pantry = pantry.New(ingredients, prefs)
	s.plan = planner.NewMealPlan(saved, budget)
	s.skips = discovery.NewSkipLog(skipped)
	s.proc = discovery.NewProcessor(discovery.NewQueue(), s.plan, s.skips)
	return nil
}

// persist schedules the current values of keys for writing.
func (a *App) persist(s *Session, keys ...storage.Key) {
	for _, key := range keys {
		var v any
		switch key {
		case storage.KeyIngredients:
			v = s.pantry.Ingredients()
		case storage.KeyPreferences:
			v = s.pantry.Preferences()
		case storage.KeySavedRecipes:
			v = s.plan.Recipes()
		case storage.KeySkippedRecipes:
			v = s.skips.Records()
		case storage.KeyBudget:
			v = s.plan.Budget()
		default:
			continue
		}
		a.writer.Schedule(s.user, key, v)
	}
}

// request builds the discovery query for the current filters of s.
func (a *App) request(s *Session) query.Request {
	return query.Request{
		Ingredients:           s.pantry.Ingredients(),
		Preferences:           s.pantry.Preferences(),
		Count:                 a.cfg.DiscoveryCount,
		Ranking:               a.cfg.DiscoveryRanking,
		MaxMissingIngredients: a.cfg.DiscoveryMaxMissing,
	}
}

// reset hard-resets the queue for the current filters. Decisions made under
// the old filters are dropped.
func (a *App) reset(s *Session) {
	s.proc.Load(a.request(s).Signature(), nil)
	s.fetched = false
	s.fetchSeq++
}
