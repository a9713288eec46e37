// Package query turns ingredients and preferences into normalized recipes,
// caching upstream responses.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"recipe-swiper/internal/cache"
	"recipe-swiper/internal/recipe"
	"recipe-swiper/internal/spoonacular"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TTLs are the freshness windows per response kind.
type TTLs struct {
	Detail time.Duration
	Search time.Duration
	Random time.Duration
}

// Service is the Recipe Query Layer.
type Service struct {
	client    spoonacular.Client
	cache     cache.Store
	ttl       TTLs
	observers []Observer
	group     singleflight.Group
	log       *zap.Logger
	now       func() time.Time
}

// NewService creates a query service.
func NewService(client spoonacular.Client, store cache.Store, ttl TTLs, log *zap.Logger, observers ...Observer) *Service {
	return &Service{
		client:    client,
		cache:     store,
		ttl:       ttl,
		observers: observers,
		log:       log,
		now:       time.Now,
	}
}

// Discover runs a query. Empty ingredients request a random sample,
// otherwise recipes are ranked by ingredient match and their details are
// fetched in bulk. Dietary preferences are applied as a strict conjunction
// after the fetch. Upstream failures are returned, never an empty result.
func (s *Service) Discover(ctx context.Context, req Request) ([]recipe.Recipe, error) {
	var (
		recipes []recipe.Recipe
		err     error
	)
	if len(req.Ingredients) == 0 {
		recipes, err = s.random(ctx, req)
	} else {
		recipes, err = s.byIngredients(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	if req.DishType != "" {
		kept := recipes[:0]
		for _, r := range recipes {
			if r.HasDishType(req.DishType) {
				kept = append(kept, r)
			}
		}
		recipes = kept
	}
	return recipe.FilterByDiet(recipes, req.Preferences), nil
}

// Recipe returns the full detail of one recipe.
func (s *Service) Recipe(ctx context.Context, id int64) (recipe.Recipe, error) {
	var info spoonacular.Information
	err := s.cached(ctx, EndpointInformation, detailKey(id), s.ttl.Detail, &info, func(ctx context.Context) (any, error) {
		return s.client.Information(ctx, id)
	})
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("failed to fetch recipe %d: %w", id, err)
	}
	return recipe.FromInformation(info, nil, nil), nil
}

// ClearCache drops every cached response.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// CacheStats reports the live cache entries.
func (s *Service) CacheStats(ctx context.Context) (cache.Stats, error) {
	return s.cache.Stats(ctx)
}

func (s *Service) random(ctx context.Context, req Request) ([]recipe.Recipe, error) {
	count := req.Count
	tags := req.randomTags()
	key := fmt.Sprintf("random:n=%d|tags=%s", count, strings.Join(tags, ","))

	var infos []spoonacular.Information
	err := s.cached(ctx, EndpointRandom, key, s.ttl.Random, &infos, func(ctx context.Context) (any, error) {
		return s.client.Random(ctx, count, tags)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch random recipes: %w", err)
	}

	recipes := make([]recipe.Recipe, 0, len(infos))
	for _, info := range infos {
		recipes = append(recipes, recipe.FromInformation(info, nil, req.Ingredients))
	}
	return recipes, nil
}

func (s *Service) byIngredients(ctx context.Context, req Request) ([]recipe.Recipe, error) {
	var results []spoonacular.SearchResult
	opts := spoonacular.SearchOptions{Number: req.Count, Ranking: req.Ranking}
	err := s.cached(ctx, EndpointSearch, req.searchKey(), s.ttl.Search, &results, func(ctx context.Context) (any, error) {
		return s.client.FindByIngredients(ctx, req.Ingredients, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search recipes: %w", err)
	}

	if req.MaxMissingIngredients > 0 {
		kept := results[:0]
		for _, res := range results {
			if res.MissedIngredientCount <= req.MaxMissingIngredients {
				kept = append(kept, res)
			}
		}
		results = kept
	}

	ids := make([]int64, len(results))
	for i, res := range results {
		ids[i] = res.ID
	}
	details, err := s.details(ctx, ids)
	if err != nil {
		return nil, err
	}

	recipes := make([]recipe.Recipe, 0, len(results))
	for _, res := range results {
		info, ok := details[res.ID]
		if !ok {
			s.log.Warn("recipe detail missing from bulk response", zap.Int64("recipe_id", res.ID))
			continue
		}
		usage := recipe.UsageFromSearch(res)
		recipes = append(recipes, recipe.FromInformation(info, &usage, req.Ingredients))
	}
	return recipes, nil
}

// details resolves recipe details by id, fetching only those not cached.
func (s *Service) details(ctx context.Context, ids []int64) (map[int64]spoonacular.Information, error) {
	out := make(map[int64]spoonacular.Information, len(ids))
	start := s.now()

	var missing []int64
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		raw, ok := s.lookup(ctx, detailKey(id))
		var info spoonacular.Information
		if ok && json.Unmarshal(raw, &info) == nil {
			out[id] = info
			continue
		}
		missing = append(missing, id)
	}
	if len(out) > 0 {
		s.emit(CallEvent{Endpoint: EndpointBulk, Key: fmt.Sprintf("detail:%d ids", len(out)), Cached: true, Latency: s.now().Sub(start)})
	}
	if len(missing) == 0 {
		return out, nil
	}

	parts := make([]string, len(missing))
	for i, id := range missing {
		parts[i] = strconv.FormatInt(id, 10)
	}
	key := "bulk:" + strings.Join(parts, ",")

	v, err, _ := s.group.Do(key, func() (any, error) {
		begin := s.now()
		infos, err := s.client.InformationBulk(ctx, missing)
		s.emit(CallEvent{Endpoint: EndpointBulk, Key: key, Latency: s.now().Sub(begin), Err: err})
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			s.store(ctx, detailKey(info.ID), info, s.ttl.Detail)
		}
		return infos, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recipe details: %w", err)
	}
	for _, info := range v.([]spoonacular.Information) {
		out[info.ID] = info
	}
	return out, nil
}

// cached serves key from the cache or runs fetch once across concurrent
// callers, storing the result. The value is decoded into out.
func (s *Service) cached(ctx context.Context, endpoint, key string, ttl time.Duration, out any, fetch func(context.Context) (any, error)) error {
	start := s.now()
	if raw, ok := s.lookup(ctx, key); ok {
		if err := json.Unmarshal(raw, out); err == nil {
			s.emit(CallEvent{Endpoint: endpoint, Key: key, Cached: true, Latency: s.now().Sub(start)})
			return nil
		}
		s.log.Warn("discarding undecodable cache entry", zap.String("key", key))
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		begin := s.now()
		result, err := fetch(ctx)
		s.emit(CallEvent{Endpoint: endpoint, Key: key, Latency: s.now().Sub(begin), Err: err})
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s response: %w", endpoint, err)
		}
		s.put(ctx, key, raw, ttl)
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(v.([]byte), out)
}

func (s *Service) lookup(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return raw, ok
}

func (s *Service) store(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.put(ctx, key, raw, ttl)
}

func (s *Service) put(ctx context.Context, key string, raw []byte, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) emit(e CallEvent) {
	e.ID = uuid.NewString()
	if e.At.IsZero() {
		e.At = s.now()
	}
	for _, o := range s.observers {
		o.ObserveCall(e)
	}
}
