package spoonacular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"recipe-swiper/internal/config"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// Client is an interface for the Spoonacular recipe API.
type Client interface {
	FindByIngredients(ctx context.Context, ingredients []string, opts SearchOptions) ([]SearchResult, error)
	Information(ctx context.Context, id int64) (*Information, error)
	InformationBulk(ctx context.Context, ids []int64) ([]Information, error)
	Random(ctx context.Context, count int, tags []string) ([]Information, error)
}

// Option customizes the client.
type Option func(*spoonacularClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *spoonacularClient) { c.httpClient = h }
}

// WithRetryInterval sets the initial backoff between attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(c *spoonacularClient) { c.retryInterval = d }
}

// spoonacularClient is the concrete implementation of Client.
type spoonacularClient struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	limiter       *rate.Limiter
	maxTries      uint
	retryInterval time.Duration
}

// NewClient creates a new Spoonacular API client.
func NewClient(cfg *config.Config, opts ...Option) Client {
	limit, burst := rate.Inf, 1
	if cfg.SpoonacularRPS > 0 {
		limit = rate.Limit(cfg.SpoonacularRPS)
		burst = max(1, int(cfg.SpoonacularRPS))
	}

	c := &spoonacularClient{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		baseURL:       strings.TrimRight(cfg.SpoonacularBaseURL, "/"),
		apiKey:        cfg.SpoonacularAPIKey,
		limiter:       rate.NewLimiter(limit, burst),
		maxTries:      uint(max(1, cfg.SpoonacularMaxRetries)),
		retryInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindByIngredients searches recipes ranked by how well they use the given ingredients.
func (c *spoonacularClient) FindByIngredients(ctx context.Context, ingredients []string, opts SearchOptions) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("ingredients", strings.Join(ingredients, ","))
	params.Set("number", strconv.Itoa(orDefault(opts.Number, 10)))
	params.Set("ranking", strconv.Itoa(orDefault(opts.Ranking, 2)))
	params.Set("ignorePantry", "true")

	var results []SearchResult
	if err := c.get(ctx, "findByIngredients", "/recipes/findByIngredients", params, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Information fetches the full detail of one recipe.
func (c *spoonacularClient) Information(ctx context.Context, id int64) (*Information, error) {
	params := url.Values{}
	params.Set("includeNutrition", "false")

	var info Information
	path := fmt.Sprintf("/recipes/%d/information", id)
	if err := c.get(ctx, "information", path, params, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// InformationBulk fetches details for several recipes in one call.
func (c *spoonacularClient) InformationBulk(ctx context.Context, ids []int64) ([]Information, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	params := url.Values{}
	params.Set("ids", strings.Join(parts, ","))

	var infos []Information
	if err := c.get(ctx, "informationBulk", "/recipes/informationBulk", params, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// Random returns a random sample of recipes, optionally restricted by tags.
func (c *spoonacularClient) Random(ctx context.Context, count int, tags []string) ([]Information, error) {
	params := url.Values{}
	params.Set("number", strconv.Itoa(orDefault(count, 10)))
	if len(tags) > 0 {
		params.Set("include-tags", strings.Join(tags, ","))
	}

	var resp randomResponse
	if err := c.get(ctx, "random", "/recipes/random", params, &resp); err != nil {
		return nil, err
	}
	return resp.Recipes, nil
}

// get performs a rate limited GET with retries and decodes the JSON body into out.
func (c *spoonacularClient) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(&FetchError{Endpoint: endpoint, Err: err})
		}
		body, err := c.do(ctx, endpoint, path, params)
		if err != nil {
			var fe *FetchError
			if ctx.Err() != nil || (errors.As(err, &fe) && !fe.Retryable()) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return body, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return fe
		}
		return &FetchError{Endpoint: endpoint, Err: err}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Endpoint: endpoint, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (c *spoonacularClient) do(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(snippet))),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return body, nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
