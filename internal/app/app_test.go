package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"recipe-swiper/internal/cache"
	"recipe-swiper/internal/config"
	"recipe-swiper/internal/database"
	"recipe-swiper/internal/discovery"
	"recipe-swiper/internal/planner"
	"recipe-swiper/internal/query"
	"recipe-swiper/internal/recipe"
	"recipe-swiper/internal/spoonacular"
	"recipe-swiper/internal/spoonacular/spoonaculartest"
	"recipe-swiper/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const user = "42"

type harness struct {
	app    *App
	fake   *spoonaculartest.Fake
	source RecipeSource
	state  *storage.StateStore
	cfg    *config.Config
}

func newHarness(t *testing.T, fake *spoonaculartest.Fake) *harness {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "app.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ttl := query.TTLs{Detail: 24 * time.Hour, Search: 6 * time.Hour, Random: 15 * time.Minute}
	svc := query.NewService(fake, cache.NewSQLStore(db.SQL), ttl, zap.NewNop())
	state := storage.NewStateStore(db.SQL)
	cfg := &config.Config{
		DiscoveryCount:   10,
		DiscoveryRanking: 2,
		DefaultBudget:    100,
		ResurfaceSkipped: true,
	}
	h := &harness{fake: fake, source: svc, state: state, cfg: cfg}
	h.app = h.reopen()
	return h
}

// reopen builds a fresh App over the same database, as after a restart.
func (h *harness) reopen() *App {
	return NewApp(h.cfg, h.source, h.state, storage.NewWriter(h.state, 0, zap.NewNop()), zap.NewNop())
}

// tenRecipes registers ten recipes; the first three are vegan and the first
// costs $8.50, the second $15.00.
func tenRecipes() *spoonaculartest.Fake {
	fake := spoonaculartest.NewFake()
	costs := []float64{8.5, 15, 3, 4, 5, 6, 7, 8, 9, 10}
	for i, cost := range costs {
		var diets []string
		if i < 3 {
			diets = []string{"vegan"}
		}
		fake.Add(spoonaculartest.Info(int64(i+1), "Recipe", cost, diets...))
	}
	return fake
}

func fiveRecipes() *spoonaculartest.Fake {
	fake := spoonaculartest.NewFake()
	for i := int64(1); i <= 5; i++ {
		fake.Add(spoonaculartest.Info(i, "Recipe", 5))
	}
	return fake
}

func idsOf(rs []recipe.Recipe) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestDiscoveryWorkflow(t *testing.T) {
	ctx := context.Background()

	t.Run("AcceptFirstRecipe", func(t *testing.T) {
		h := newHarness(t, tenRecipes())

		q, err := h.app.SetIngredients(ctx, user, []string{"chicken", "rice"})
		require.NoError(t, err)
		require.Equal(t, 10, q.TotalFound)
		require.NotNil(t, q.Current)
		assert.Equal(t, int64(1), q.Current.ID)

		d, err := h.app.Accept(ctx, user, 1)
		require.NoError(t, err)
		assert.Equal(t, "saved", d.Outcome)
		assert.InDelta(t, 8.50, d.Queue.Budget.Spent, 1e-9)
		assert.Len(t, d.Queue.Available, 9)

		plan, err := h.app.Plan(ctx, user)
		require.NoError(t, err)
		assert.Len(t, plan.Recipes, 1)
	})

	t.Run("OverspentBudget", func(t *testing.T) {
		h := newHarness(t, tenRecipes())
		_, err := h.app.SetIngredients(ctx, user, []string{"chicken", "rice"})
		require.NoError(t, err)
		_, err = h.app.SetBudget(ctx, user, 20)
		require.NoError(t, err)
		_, err = h.app.Accept(ctx, user, 1)
		require.NoError(t, err)
		_, err = h.app.Accept(ctx, user, 2)
		require.NoError(t, err)

		plan, err := h.app.Plan(ctx, user)
		require.NoError(t, err)
		assert.InDelta(t, 23.50, plan.Budget.Spent, 1e-9)
		assert.Zero(t, plan.Budget.Remaining)
		assert.InDelta(t, 117.5, plan.Budget.Percentage, 1e-9)
		assert.True(t, plan.Budget.Overspent())
	})

	t.Run("PreferenceChangeResetsQueue", func(t *testing.T) {
		h := newHarness(t, tenRecipes())
		_, err := h.app.SetIngredients(ctx, user, []string{"chicken", "rice"})
		require.NoError(t, err)
		_, err = h.app.Reject(ctx, user, 5)
		require.NoError(t, err)

		q, err := h.app.SetPreferences(ctx, user, []string{"vegan"})
		require.NoError(t, err)
		assert.Len(t, q.Available, 3)
		assert.Equal(t, 3, q.TotalFound)
		assert.Zero(t, q.Progress)
		assert.Zero(t, q.Processed)
	})

	t.Run("RejectLastThenRestart", func(t *testing.T) {
		h := newHarness(t, fiveRecipes())
		_, err := h.app.SetIngredients(ctx, user, []string{"chicken"})
		require.NoError(t, err)

		var d DecisionView
		for id := int64(1); id <= 5; id++ {
			d, err = h.app.Reject(ctx, user, id)
			require.NoError(t, err)
		}
		assert.Empty(t, d.Queue.Available)
		assert.True(t, d.Queue.Exhausted)
		assert.Nil(t, d.Queue.Current)
		assert.Equal(t, 100.0, d.Queue.Progress)

		q, err := h.app.Restart(ctx, user)
		require.NoError(t, err)
		assert.Len(t, q.Available, 5)
		assert.Zero(t, q.Progress)
		assert.False(t, q.Exhausted)
	})

	t.Run("RemoveFromPlan", func(t *testing.T) {
		h := newHarness(t, tenRecipes())
		_, err := h.app.SetIngredients(ctx, user, []string{"chicken", "rice"})
		require.NoError(t, err)
		_, err = h.app.Accept(ctx, user, 1)
		require.NoError(t, err)
		_, err = h.app.Accept(ctx, user, 2)
		require.NoError(t, err)

		plan, err := h.app.RemoveFromPlan(ctx, user, 2)
		require.NoError(t, err)
		assert.InDelta(t, 8.50, plan.Budget.Spent, 1e-9)

		_, err = h.app.RemoveFromPlan(ctx, user, 2)
		assert.ErrorIs(t, err, ErrNotInPlan)

		plan, err = h.app.ClearPlan(ctx, user)
		require.NoError(t, err)
		assert.Zero(t, plan.Budget.Spent)
		assert.Empty(t, plan.Recipes)
	})

	t.Run("EmptyIngredientsUseRandomSample", func(t *testing.T) {
		h := newHarness(t, tenRecipes())
		q, err := h.app.Queue(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, 10, q.TotalFound)
		assert.Equal(t, 1, h.fake.Calls("random"))
		assert.Zero(t, h.fake.Calls("findByIngredients"))
	})

	t.Run("UnchangedIngredientsKeepQueue", func(t *testing.T) {
		h := newHarness(t, tenRecipes())
		_, err := h.app.SetIngredients(ctx, user, []string{"chicken", "rice"})
		require.NoError(t, err)
		_, err = h.app.Accept(ctx, user, 1)
		require.NoError(t, err)

		q, err := h.app.SetIngredients(ctx, user, []string{"Rice", "chicken"})
		require.NoError(t, err)
		assert.Equal(t, 1, q.Processed)
	})
}

func TestDecisions(t *testing.T) {
	ctx := context.Background()

	t.Run("AlreadyDecided", func(t *testing.T) {
		h := newHarness(t, tenRecipes())
		_, err := h.app.SetIngredients(ctx, user, []string{"chicken"})
		require.NoError(t, err)
		_, err = h.app.Accept(ctx, user, 1)
		require.NoError(t, err)

		d, err := h.app.Accept(ctx, user, 1)
		require.NoError(t, err)
		assert.Equal(t, "already_decided", d.Outcome)
		assert.InDelta(t, 8.50, d.Queue.Budget.Spent, 1e-9)
		assert.Equal(t, 1, d.Queue.Processed)
	})

	t.Run("AlreadyInPlanAfterReset", func(t *testing.T) {
		h := newHarness(t, tenRecipes())
		_, err := h.app.SetIngredients(ctx, user, []string{"chicken"})
		require.NoError(t, err)
		_, err = h.app.Accept(ctx, user, 1)
		require.NoError(t, err)
		_, err = h.app.SetIngredients(ctx, user, []string{"chicken", "rice"})
		require.NoError(t, err)

		d, err := h.app.Accept(ctx, user, 1)
		require.NoError(t, err)
		assert.Equal(t, "already_in_plan", d.Outcome)
		assert.InDelta(t, 8.50, d.Queue.Budget.Spent, 1e-9)
		assert.Equal(t, 1, d.Queue.Budget.Recipes)
	})

	t.Run("UnknownRecipe", func(t *testing.T) {
		h := newHarness(t, tenRecipes())
		_, err := h.app.SetIngredients(ctx, user, []string{"chicken"})
		require.NoError(t, err)

		_, err = h.app.Accept(ctx, user, 99)
		assert.ErrorIs(t, err, discovery.ErrUnknownRecipe)
		_, err = h.app.Reject(ctx, user, 99)
		assert.ErrorIs(t, err, discovery.ErrUnknownRecipe)
	})

	t.Run("NextAndPrevious", func(t *testing.T) {
		h := newHarness(t, fiveRecipes())
		_, err := h.app.SetIngredients(ctx, user, []string{"chicken"})
		require.NoError(t, err)

		q, err := h.app.Previous(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, int64(5), q.Current.ID)
		q, err = h.app.Next(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, int64(1), q.Current.ID)
		assert.Zero(t, q.Processed)
	})
}

func TestInvalidInput(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, tenRecipes())

	t.Run("Budget", func(t *testing.T) {
		_, err := h.app.SetBudget(ctx, user, -5)
		assert.ErrorIs(t, err, planner.ErrInvalidBudget)

		plan, err := h.app.Plan(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, 100.0, plan.Budget.Budget)
	})

	t.Run("Preferences", func(t *testing.T) {
		_, err := h.app.SetPreferences(ctx, user, []string{"carnivore"})
		assert.ErrorIs(t, err, recipe.ErrUnknownDietaryTag)

		p, err := h.app.Pantry(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, p.Preferences)
	})
}

func TestFetchFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, tenRecipes())
	h.fake.Fail(&spoonacular.FetchError{Endpoint: "findByIngredients", StatusCode: 500})

	_, err := h.app.SetIngredients(ctx, user, []string{"chicken"})
	var fe *spoonacular.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 500, fe.StatusCode)

	h.fake.Fail(nil)
	q, err := h.app.Queue(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 10, q.TotalFound)
}

func TestSkippedRecipes(t *testing.T) {
	ctx := context.Background()

	t.Run("ResurfaceOnIngredientOverlap", func(t *testing.T) {
		h := newHarness(t, tenRecipes())
		_, err := h.app.SetIngredients(ctx, user, []string{"chicken", "rice"})
		require.NoError(t, err)
		_, err = h.app.Reject(ctx, user, 1)
		require.NoError(t, err)

		q, err := h.app.SetIngredients(ctx, user, []string{"beef"})
		require.NoError(t, err)
		assert.Equal(t, 9, q.TotalFound)
		assert.NotContains(t, idsOf(q.Available), int64(1))

		q, err = h.app.SetIngredients(ctx, user, []string{"garlic"})
		require.NoError(t, err)
		assert.Equal(t, 10, q.TotalFound)
		assert.Contains(t, idsOf(q.Available), int64(1))
	})

	t.Run("Recover", func(t *testing.T) {
		h := newHarness(t, tenRecipes())
		_, err := h.app.SetIngredients(ctx, user, []string{"chicken"})
		require.NoError(t, err)
		_, err = h.app.Reject(ctx, user, 2)
		require.NoError(t, err)

		sk, err := h.app.Skipped(ctx, user)
		require.NoError(t, err)
		require.Len(t, sk.Records, 1)

		plan, err := h.app.RecoverSkipped(ctx, user, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, idsOf(plan.Recipes))
		assert.InDelta(t, 15.0, plan.Budget.Spent, 1e-9)

		_, err = h.app.RecoverSkipped(ctx, user, 2)
		assert.ErrorIs(t, err, ErrNotSkipped)
	})

	t.Run("Clear", func(t *testing.T) {
		h := newHarness(t, tenRecipes())
		_, err := h.app.SetIngredients(ctx, user, []string{"chicken"})
		require.NoError(t, err)
		_, err = h.app.Reject(ctx, user, 3)
		require.NoError(t, err)

		_, err = h.app.ClearSkipped(ctx, user)
		require.NoError(t, err)
		sk, err := h.app.Skipped(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, sk.Records)
	})
}

func TestShoppingList(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, tenRecipes())
	_, err := h.app.SetIngredients(ctx, user, []string{"chicken", "rice"})
	require.NoError(t, err)
	_, err = h.app.Accept(ctx, user, 1)
	require.NoError(t, err)
	_, err = h.app.Accept(ctx, user, 2)
	require.NoError(t, err)

	list, err := h.app.ShoppingList(ctx, user)
	require.NoError(t, err)
	require.Equal(t, 1, list.Len())
	assert.Equal(t, "garlic", list.Items[0].Name)
	assert.Len(t, list.Items[0].Recipes, 1)
}

func TestRecipe(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, tenRecipes())

	t.Run("FromQueue", func(t *testing.T) {
		_, err := h.app.SetIngredients(ctx, user, []string{"chicken"})
		require.NoError(t, err)
		calls := h.fake.Calls("information")

		r, err := h.app.Recipe(ctx, user, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(3), r.ID)
		assert.Equal(t, calls, h.fake.Calls("information"))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := h.app.Recipe(ctx, user, 99)
		var fe *spoonacular.FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, 404, fe.StatusCode)
	})
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, tenRecipes())

	_, err := h.app.SetIngredients(ctx, user, []string{"chicken", "rice"})
	require.NoError(t, err)
	_, err = h.app.SetPreferences(ctx, user, []string{"vegan"})
	require.NoError(t, err)
	_, err = h.app.SetBudget(ctx, user, 40)
	require.NoError(t, err)
	_, err = h.app.Accept(ctx, user, 1)
	require.NoError(t, err)
	_, err = h.app.Reject(ctx, user, 2)
	require.NoError(t, err)

	restarted := h.reopen()

	p, err := restarted.Pantry(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []string{"chicken", "rice"}, p.Ingredients)
	assert.Equal(t, []recipe.DietaryTag{recipe.Vegan}, p.Preferences)

	plan, err := restarted.Plan(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, idsOf(plan.Recipes))
	assert.Equal(t, 40.0, plan.Budget.Budget)
	assert.InDelta(t, 8.50, plan.Budget.Spent, 1e-9)

	sk, err := restarted.Skipped(ctx, user)
	require.NoError(t, err)
	require.Len(t, sk.Records, 1)
	assert.Equal(t, int64(2), sk.Records[0].Recipe.ID)

	t.Run("UsersAreIsolated", func(t *testing.T) {
		plan, err := restarted.Plan(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, plan.Recipes)
		assert.Equal(t, 100.0, plan.Budget.Budget)
	})
}

// gatedSource blocks the first Discover call after arm until release.
type gatedSource struct {
	RecipeSource

	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSource) arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = true
}

func (g *gatedSource) Discover(ctx context.Context, req query.Request) ([]recipe.Recipe, error) {
	g.mu.Lock()
	block := g.armed
	g.armed = false
	g.mu.Unlock()
	if block {
		close(g.entered)
		<-g.release
	}
	return g.RecipeSource.Discover(ctx, req)
}

func TestStaleResponsesAreDiscarded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, tenRecipes())
	gate := &gatedSource{RecipeSource: h.source, entered: make(chan struct{}), release: make(chan struct{})}

	core, logs := observer.New(zap.WarnLevel)
	a := NewApp(h.cfg, gate, h.state, storage.NewWriter(h.state, 0, zap.NewNop()), zap.New(core))

	_, err := a.SetIngredients(ctx, user, []string{"chicken"})
	require.NoError(t, err)

	gate.arm()
	type result struct {
		q   QueueView
		err error
	}
	done := make(chan result, 1)
	go func() {
		q, err := a.Refresh(ctx, user)
		done <- result{q, err}
	}()
	<-gate.entered

	current, err := a.SetIngredients(ctx, user, []string{"beef"})
	require.NoError(t, err)
	close(gate.release)

	stale := <-done
	require.NoError(t, stale.err)
	assert.True(t, stale.q.Stale)
	assert.Equal(t, current.Signature, stale.q.Signature)
	assert.Equal(t, 1, logs.FilterMessage("discarded stale discovery response").Len())

	q, err := a.Queue(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, current.Signature, q.Signature)
	assert.False(t, q.Stale)
}
