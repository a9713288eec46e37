package acceptance_tests

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"recipe-swiper/internal/app"
	"recipe-swiper/internal/cache"
	"recipe-swiper/internal/config"
	"recipe-swiper/internal/database"
	"recipe-swiper/internal/metrics"
	"recipe-swiper/internal/query"
	"recipe-swiper/internal/spoonacular/spoonaculartest"
	"recipe-swiper/internal/storage"

	"go.uber.org/zap"
)

type process struct {
	db      *database.DB
	writer  *storage.Writer
	tracker *metrics.Tracker
	app     *app.App
}

// start wires the application the way cmd/server does, minus the transports.
func start(t *testing.T, dbPath string, fake *spoonaculartest.Fake) *process {
	t.Helper()
	db, err := database.NewDB(dbPath, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	cfg := &config.Config{DiscoveryCount: 10, DiscoveryRanking: 2, DefaultBudget: 50, ResurfaceSkipped: true}
	tracker := metrics.NewTracker(metrics.DefaultCapacity)
	ttl := query.TTLs{Detail: time.Hour, Search: time.Hour, Random: time.Minute}
	svc := query.NewService(fake, cache.NewSQLStore(db.SQL), ttl, zap.NewNop(), tracker, metrics.NewStore(db.SQL, zap.NewNop()))
	state := storage.NewStateStore(db.SQL)
	writer := storage.NewWriter(state, 10*time.Millisecond, zap.NewNop())

	return &process{db: db, writer: writer, tracker: tracker, app: app.NewApp(cfg, svc, state, writer, zap.NewNop())}
}

func (p *process) stop() {
	p.writer.Close(context.Background())
	p.db.Close()
}

// --- Acceptance Test ---
func TestFullWorkflow(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "acceptance.db")

	fake := spoonaculartest.NewFake()
	fake.Add(
		spoonaculartest.Info(11, "Garlic Chicken", 12.5),
		spoonaculartest.Info(12, "Chicken Fried Rice", 6),
		spoonaculartest.Info(13, "Rice Pudding", 3, "vegetarian"),
	)

	// --- Step 1: Discovery ---
	t.Log("--- Step 1: Discovering Recipes ---")
	p := start(t, dbPath, fake)
	q, err := p.app.SetIngredients(ctx, "u1", []string{"Chicken", "rice"})
	if err != nil {
		t.Fatalf("Discovery failed: %v", err)
	}
	if q.TotalFound != 3 || q.Current == nil || q.Current.ID != 11 {
		t.Fatalf("Expected 3 recipes starting at 11, got %d (current %v)", q.TotalFound, q.Current)
	}
	if n := fake.Calls("findByIngredients"); n != 1 {
		t.Errorf("Expected 1 search call, got %d", n)
	}

	// --- Step 2: Decisions ---
	t.Log("--- Step 2: Swiping ---")
	if d, err := p.app.Accept(ctx, "u1", 11); err != nil || d.Outcome != "saved" {
		t.Fatalf("Accept failed: %v (%+v)", err, d)
	}
	if d, err := p.app.Reject(ctx, "u1", 12); err != nil || d.Outcome != "skipped" {
		t.Fatalf("Reject failed: %v (%+v)", err, d)
	}
	p.stop()

	// --- Step 3: Restart from persisted state and cached responses ---
	t.Log("--- Step 3: Restarting ---")
	p = start(t, dbPath, fake)
	defer p.stop()

	plan, err := p.app.Plan(ctx, "u1")
	if err != nil {
		t.Fatalf("Failed to load plan: %v", err)
	}
	if len(plan.Recipes) != 1 || plan.Budget.Spent != 12.5 || plan.Budget.Budget != 50 {
		t.Errorf("Expected the saved recipe to survive a restart, got %+v", plan)
	}

	q, err = p.app.Queue(ctx, "u1")
	if err != nil {
		t.Fatalf("Queue failed: %v", err)
	}
	// The skipped recipe stays hidden under the same ingredient set.
	if q.TotalFound != 2 {
		t.Errorf("Expected 2 recipes after excluding the skipped one, got %d", q.TotalFound)
	}
	if n := fake.Calls("findByIngredients"); n != 1 {
		t.Errorf("Expected the search to be served from cache, got %d calls", n)
	}
	if s := p.tracker.Stats(time.Now()); s.Cached == 0 {
		t.Errorf("Expected cached calls to be tracked, got %+v", s)
	}
}
