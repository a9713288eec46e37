// Package llm turns free-text pantry descriptions into ingredient lists.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"recipe-swiper/internal/pantry"

	"go.uber.org/zap"
)

// ErrNoIngredients is returned when a response holds no usable ingredient.
var ErrNoIngredients = errors.New("no ingredients found")

// IngredientExtractor extracts ingredient names from free text.
type IngredientExtractor interface {
	ExtractIngredients(ctx context.Context, text string) ([]string, error)
}

// SplitExtractor splits text on list separators without calling a model.
type SplitExtractor struct{}

// ExtractIngredients implements IngredientExtractor.
func (SplitExtractor) ExtractIngredients(_ context.Context, text string) ([]string, error) {
	items := pantry.SplitIngredients(text)
	if len(items) == 0 {
		return nil, ErrNoIngredients
	}
	return items, nil
}

// Fallback tries Primary and uses SplitExtractor when it fails.
type Fallback struct {
	Primary IngredientExtractor
	Log     *zap.Logger
}

// ExtractIngredients implements IngredientExtractor.
func (f Fallback) ExtractIngredients(ctx context.Context, text string) ([]string, error) {
	if f.Primary != nil {
		items, err := f.Primary.ExtractIngredients(ctx, text)
		if err == nil {
			return items, nil
		}
		if f.Log != nil {
			f.Log.Warn("ingredient extraction failed, splitting text", zap.Error(err))
		}
	}
	return SplitExtractor{}.ExtractIngredients(ctx, text)
}

// parseIngredientList accepts a JSON array of strings or an object with an
// "ingredients" array, optionally wrapped in a markdown code fence.
func parseIngredientList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		var wrapped struct {
			Ingredients []string `json:"ingredients"`
		}
		if err2 := json.Unmarshal([]byte(raw), &wrapped); err2 != nil {
			return nil, fmt.Errorf("failed to parse ingredient list: %w", err)
		}
		items = wrapped.Ingredients
	}

	items = pantry.NormalizeIngredients(items)
	if len(items) == 0 {
		return nil, ErrNoIngredients
	}
	return items, nil
}
