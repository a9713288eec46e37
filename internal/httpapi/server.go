// Package httpapi serves the discovery workflow as a JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"recipe-swiper/internal/app"
	"recipe-swiper/internal/cache"
	"recipe-swiper/internal/metrics"
	"recipe-swiper/internal/pantry"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// CacheAdmin inspects and clears the response cache.
type CacheAdmin interface {
	ClearCache(ctx context.Context) error
	CacheStats(ctx context.Context) (cache.Stats, error)
}

// Deps are the collaborators of the API.
type Deps struct {
	App         *app.App
	Tracker     *metrics.Tracker
	Cache       CacheAdmin
	Gatherer    prometheus.Gatherer
	Webhook     http.Handler
	JWTSecret   string
	CORSOrigins []string
	Log         *zap.Logger
}

// Server is the JSON API.
type Server struct {
	app     *app.App
	tracker *metrics.Tracker
	cache   CacheAdmin
	log     *zap.Logger
	handler http.Handler
}

// NewServer builds the router.
func NewServer(d Deps) *Server {
	s := &Server{app: d.App, tracker: d.Tracker, cache: d.Cache, log: d.Log}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(d.Log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	if d.Webhook != nil {
		r.Post("/webhook", d.Webhook.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticate([]byte(d.JWTSecret)))

		r.Get("/pantry", s.getPantry)
		r.Put("/pantry/ingredients", s.putIngredients)
		r.Put("/pantry/preferences", s.putPreferences)
		r.Put("/budget", s.putBudget)

		r.Route("/discover", func(r chi.Router) {
			r.Get("/", s.getQueue)
			r.Post("/refresh", s.queueCommand(s.app.Refresh))
			r.Post("/restart", s.queueCommand(s.app.Restart))
			r.Post("/next", s.queueCommand(s.app.Next))
			r.Post("/previous", s.queueCommand(s.app.Previous))
			r.Post("/{id}/accept", s.decide(s.app.Accept))
			r.Post("/{id}/reject", s.decide(s.app.Reject))
		})

		r.Route("/plan", func(r chi.Router) {
			r.Get("/", s.getPlan)
			r.Delete("/", s.clearPlan)
			r.Get("/shopping-list", s.getShoppingList)
			r.Delete("/{id}", s.removeFromPlan)
		})

		r.Route("/skipped", func(r chi.Router) {
			r.Get("/", s.getSkipped)
			r.Delete("/", s.clearSkipped)
			r.Post("/{id}/recover", s.recoverSkipped)
		})

		r.Get("/recipes/{id}", s.getRecipe)

		r.Route("/diagnostics", func(r chi.Router) {
			r.Get("/calls", s.getCalls)
			r.Delete("/calls", s.clearCalls)
			r.Delete("/cache", s.clearCache)
		})
	})

	var h http.Handler = r
	if len(d.CORSOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: d.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		}).Handler(r)
	}
	s.handler = h
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// NewHTTPServer wraps the handler with the timeouts the process serves it under.
func NewHTTPServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

type pantryResponse struct {
	Pantry app.PantryView `json:"pantry"`
	Queue  app.QueueView  `json:"queue"`
}

func (s *Server) getPantry(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Pantry(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) putIngredients(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Ingredients []string `json:"ingredients"`
		Text        string   `json:"text"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	items := body.Ingredients
	if body.Text != "" {
		items = append(items, pantry.SplitIngredients(body.Text)...)
	}

	ctx, user := r.Context(), userFrom(r.Context())
	q, err := s.app.SetIngredients(ctx, user, items)
	s.writePantry(w, r, q, err)
}

func (s *Server) putPreferences(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Preferences []string `json:"preferences"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx, user := r.Context(), userFrom(r.Context())
	q, err := s.app.SetPreferences(ctx, user, body.Preferences)
	s.writePantry(w, r, q, err)
}

func (s *Server) writePantry(w http.ResponseWriter, r *http.Request, q app.QueueView, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.app.Pantry(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pantryResponse{Pantry: p, Queue: q})
}

func (s *Server) putBudget(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Budget *float64 `json:"budget"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Budget == nil {
		s.writeError(w, r, fmt.Errorf("%w: budget is required", errBadRequest))
		return
	}
	sum, err := s.app.SetBudget(r.Context(), userFrom(r.Context()), *body.Budget)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) getQueue(w http.ResponseWriter, r *http.Request) {
	s.queueCommand(s.app.Queue)(w, r)
}

func (s *Server) queueCommand(fn func(context.Context, string) (app.QueueView, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := fn(r.Context(), userFrom(r.Context()))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func (s *Server) decide(fn func(context.Context, string, int64) (app.DecisionView, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		d, err := fn(r.Context(), userFrom(r.Context()), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Plan(r.Context(), userFrom(r.Context()))
	s.writePlan(w, r, p, err)
}

func (s *Server) clearPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.ClearPlan(r.Context(), userFrom(r.Context()))
	s.writePlan(w, r, p, err)
}

func (s *Server) removeFromPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.app.RemoveFromPlan(r.Context(), userFrom(r.Context()), id)
	s.writePlan(w, r, p, err)
}

func (s *Server) recoverSkipped(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.app.RecoverSkipped(r.Context(), userFrom(r.Context()), id)
	s.writePlan(w, r, p, err)
}

func (s *Server) writePlan(w http.ResponseWriter, r *http.Request, p app.PlanView, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) getShoppingList(w http.ResponseWriter, r *http.Request) {
	l, err := s.app.ShoppingList(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) getSkipped(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.Skipped(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) clearSkipped(w http.ResponseWriter, r *http.Request) {
	v, err := s.app.ClearSkipped(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) getRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.app.Recipe(r.Context(), userFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type callsResponse struct {
	Calls []metrics.Call `json:"calls"`
	Stats metrics.Summary `json:"stats"`
	Cache cache.Stats     `json:"cache"`
}

func (s *Server) getCalls(w http.ResponseWriter, r *http.Request) {
	resp := callsResponse{Calls: []metrics.Call{}}
	if s.tracker != nil {
		resp.Calls = s.tracker.Calls()
		resp.Stats = s.tracker.Stats(time.Now())
	}
	if s.cache != nil {
		st, err := s.cache.CacheStats(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Cache = st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) clearCalls(w http.ResponseWriter, _ *http.Request) {
	if s.tracker != nil {
		s.tracker.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	if s.cache != nil {
		if err := s.cache.ClearCache(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: recipe id %q is not a number", errBadRequest, raw)
	}
	return id, nil
}
