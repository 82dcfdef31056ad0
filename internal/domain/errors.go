package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrFetchFailed is returned when a recipe page could not be fetched
	ErrFetchFailed = errors.New("recipe page fetch failed")

	// ErrUnsupportedFormat is returned for an unknown flat-text format hint
	ErrUnsupportedFormat = errors.New("unsupported recipe text format")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrCatalogUnavailable is returned when the ingredient catalog cannot be read
	ErrCatalogUnavailable = errors.New("ingredient catalog unavailable")

	// ErrPersistenceUnavailable is returned when no recipe store is configured
	ErrPersistenceUnavailable = errors.New("recipe persistence not configured")

	// ErrRecipeNotFound is returned when a stored recipe does not exist
	ErrRecipeNotFound = errors.New("recipe not found")

	// ErrForbidden is returned when a caller saves over a recipe it does not own
	ErrForbidden = errors.New("recipe belongs to another owner")
)

// FetchError describes a page fetch that reached the server but got a non-2xx answer,
// or never reached it at all (StatusCode 0).
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s returned status %d", ErrFetchFailed, e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrFetchFailed, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrFetchFailed, e.URL)
}

// Unwrap lets errors.Is match both ErrFetchFailed and the transport cause.
func (e *FetchError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFetchFailed, e.Err}
	}
	return []error{ErrFetchFailed}
}
