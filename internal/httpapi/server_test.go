package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"recipe-swiper/internal/app"
	"recipe-swiper/internal/cache"
	"recipe-swiper/internal/config"
	"recipe-swiper/internal/database"
	"recipe-swiper/internal/metrics"
	"recipe-swiper/internal/query"
	"recipe-swiper/internal/spoonacular"
	"recipe-swiper/internal/spoonacular/spoonaculartest"
	"recipe-swiper/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type testServer struct {
	handler http.Handler
	fake    *spoonaculartest.Fake
	tracker *metrics.Tracker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fake := spoonaculartest.NewFake()
	fake.Add(
		spoonaculartest.Info(1, "Chicken Rice", 8.5, "vegan"),
		spoonaculartest.Info(2, "Fried Rice", 4),
	)

	cfg := &config.Config{DiscoveryCount: 10, DiscoveryRanking: 2, DefaultBudget: 100, ResurfaceSkipped: true}
	reg := prometheus.NewRegistry()
	tracker := metrics.NewTracker(metrics.DefaultCapacity)
	ttl := query.TTLs{Detail: time.Hour, Search: time.Hour, Random: time.Minute}
	svc := query.NewService(fake, cache.NewSQLStore(db.SQL), ttl, zap.NewNop(), tracker, metrics.NewCollector(reg))
	state := storage.NewStateStore(db.SQL)
	a := app.NewApp(cfg, svc, state, storage.NewWriter(state, 0, zap.NewNop()), zap.NewNop())

	s := NewServer(Deps{
		App:       a,
		Tracker:   tracker,
		Cache:     svc,
		Gatherer:  reg,
		JWTSecret: testSecret,
		Log:       zap.NewNop(),
	})
	return &testServer{handler: s.Handler(), fake: fake, tracker: tracker}
}

func token(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.doAs(t, "alice", method, path, body)
}

func (ts *testServer) doAs(t *testing.T, user, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token(t, testSecret, user))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)

	t.Run("MissingToken", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plan", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, errMissingToken.Error(), decodeBody[errorBody](t, rec).Error)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/plan", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, "other", "alice"))
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("MissingSubject", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/plan", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, testSecret, ""))
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("EmptySecretRejectsEverything", func(t *testing.T) {
		_, err := verify("Bearer "+token(t, testSecret, "alice"), nil)
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("Success", func(t *testing.T) {
		user, err := verify("Bearer "+token(t, testSecret, "alice"), []byte(testSecret))
		require.NoError(t, err)
		assert.Equal(t, "alice", user)
	})
}

func TestDiscoverFlow(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ts := newTestServer(t)

		rec := ts.do(t, http.MethodPut, "/api/pantry/ingredients", `{"text":"chicken, rice"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		p := decodeBody[pantryResponse](t, rec)
		assert.Equal(t, []string{"chicken", "rice"}, p.Pantry.Ingredients)
		require.NotNil(t, p.Queue.Current)
		assert.Equal(t, int64(1), p.Queue.Current.ID)
		assert.Equal(t, 2, p.Queue.TotalFound)

		rec = ts.do(t, http.MethodPost, "/api/discover/1/accept", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		d := decodeBody[app.DecisionView](t, rec)
		assert.Equal(t, "saved", d.Outcome)
		assert.InDelta(t, 8.5, d.Queue.Budget.Spent, 1e-9)
		assert.InDelta(t, 50, d.Queue.Progress, 1e-9)

		rec = ts.do(t, http.MethodPost, "/api/discover/2/reject", "")
		require.Equal(t, http.StatusOK, rec.Code)
		d = decodeBody[app.DecisionView](t, rec)
		assert.Equal(t, "skipped", d.Outcome)
		assert.True(t, d.Queue.Exhausted)

		rec = ts.do(t, http.MethodGet, "/api/plan", "")
		require.Equal(t, http.StatusOK, rec.Code)
		plan := decodeBody[app.PlanView](t, rec)
		require.Len(t, plan.Recipes, 1)
		assert.Equal(t, "Chicken Rice", plan.Recipes[0].Title)

		rec = ts.do(t, http.MethodGet, "/api/skipped", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[app.SkippedView](t, rec).Records, 1)

		rec = ts.do(t, http.MethodPost, "/api/discover/restart", "")
		require.Equal(t, http.StatusOK, rec.Code)
		q := decodeBody[app.QueueView](t, rec)
		assert.Equal(t, 0, q.Processed)
		assert.False(t, q.Exhausted)
	})

	t.Run("UsersAreIsolated", func(t *testing.T) {
		ts := newTestServer(t)
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/discover", "").Code)
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/discover/1/accept", "").Code)

		rec := ts.doAs(t, "bob", http.MethodGet, "/api/plan", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decodeBody[app.PlanView](t, rec).Recipes)
	})

	t.Run("NextAndPrevious", func(t *testing.T) {
		ts := newTestServer(t)
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/discover", "").Code)

		q := decodeBody[app.QueueView](t, ts.do(t, http.MethodPost, "/api/discover/next", ""))
		require.NotNil(t, q.Current)
		assert.Equal(t, int64(2), q.Current.ID)

		q = decodeBody[app.QueueView](t, ts.do(t, http.MethodPost, "/api/discover/previous", ""))
		require.NotNil(t, q.Current)
		assert.Equal(t, int64(1), q.Current.ID)
	})
}

func TestErrors(t *testing.T) {
	ts := newTestServer(t)

	t.Run("InvalidBudget", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, "/api/budget", `{"budget": -5}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = ts.do(t, http.MethodPut, "/api/budget", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, "/api/pantry/ingredients", `{"ingredients":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownDiet", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, "/api/pantry/preferences", `{"preferences":["carnivore"]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("BadID", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/discover/abc/accept", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/plan/99", "").Code)
		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/skipped/99/recover", "").Code)
		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/discover/99/accept", "").Code)
	})

	t.Run("UpstreamFailure", func(t *testing.T) {
		ts := newTestServer(t)
		ts.fake.Fail(&spoonacular.FetchError{Endpoint: "random", StatusCode: 503})
		rec := ts.do(t, http.MethodGet, "/api/discover", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, decodeBody[errorBody](t, rec).Error, "503")
	})
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusOf(context.Canceled))
	assert.Equal(t, http.StatusNotFound, statusOf(app.ErrNotInPlan))
}

func TestPlanAndShopping(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ts := newTestServer(t)
		ts.do(t, http.MethodPut, "/api/pantry/ingredients", `{"ingredients":["chicken"]}`)
		ts.do(t, http.MethodPost, "/api/discover/1/accept", "")

		rec := ts.do(t, http.MethodPut, "/api/budget", `{"budget": 5}`)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = ts.do(t, http.MethodGet, "/api/plan/shopping-list", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"items"`)

		rec = ts.do(t, http.MethodGet, "/api/recipes/1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Chicken Rice")

		rec = ts.do(t, http.MethodDelete, "/api/plan", "")
		require.Equal(t, http.StatusOK, rec.Code)
		plan := decodeBody[app.PlanView](t, rec)
		assert.Empty(t, plan.Recipes)
		assert.Zero(t, plan.Budget.Spent)
	})
}

func TestDiagnostics(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ts := newTestServer(t)
		ts.do(t, http.MethodGet, "/api/discover", "")

		rec := ts.do(t, http.MethodGet, "/api/diagnostics/calls", "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[callsResponse](t, rec)
		assert.NotEmpty(t, resp.Calls)

		assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/diagnostics/cache", "").Code)
		assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/diagnostics/calls", "").Code)
		assert.Empty(t, ts.tracker.Calls())
	})
}

func TestPublicRoutes(t *testing.T) {
	ts := newTestServer(t)

	t.Run("Health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("Metrics", func(t *testing.T) {
		ts.do(t, http.MethodGet, "/api/discover", "")
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "recipe_swiper_")
	})

	t.Run("CORS", func(t *testing.T) {
		s := NewServer(Deps{CORSOrigins: []string{"https://app.example.com"}, Log: zap.NewNop()})
		req := httptest.NewRequest(http.MethodOptions, "/api/plan", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
