package spoonacular

import "fmt"

// FetchError reports a failed call to the recipe API, either a transport
// failure or a non-2xx response.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("spoonacular: %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("spoonacular: %s failed: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a repeated request could succeed.
func (e *FetchError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
