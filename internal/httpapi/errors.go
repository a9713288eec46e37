package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"recipe-swiper/internal/app"
	"recipe-swiper/internal/discovery"
	"recipe-swiper/internal/planner"
	"recipe-swiper/internal/recipe"
	"recipe-swiper/internal/spoonacular"

	"go.uber.org/zap"
)

// errBadRequest marks malformed request bodies and path parameters.
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error string `json:"error"`
}

// statusOf maps workflow errors onto HTTP statuses.
func statusOf(err error) int {
	var fe *spoonacular.FetchError
	switch {
	case errors.As(err, &fe):
		return http.StatusBadGateway
	case errors.Is(err, errBadRequest),
		errors.Is(err, planner.ErrInvalidBudget),
		errors.Is(err, recipe.ErrUnknownDietaryTag):
		return http.StatusBadRequest
	case errors.Is(err, discovery.ErrUnknownRecipe),
		errors.Is(err, app.ErrNotInPlan),
		errors.Is(err, app.ErrNotSkipped):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
