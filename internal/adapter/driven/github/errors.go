package github

import (
	"errors"
	"fmt"
	"time"

	gh "github.com/google/go-github/v82/github"
)

// Sentinel errors classifying GitHub API failures. Callers match with
// errors.Is; the original go-github error text is preserved in the wrap.
var (
	// ErrAuthentication indicates an invalid or expired token (HTTP 401).
	ErrAuthentication = errors.New("github: invalid or expired credentials")

	// ErrAccessDenied indicates a plain 403 on a private resource, as
	// opposed to a rate-limited 403.
	ErrAccessDenied = errors.New("github: access denied")

	// ErrNotFound indicates the repository or resource does not exist (HTTP 404).
	ErrNotFound = errors.New("github: not found")

	// ErrNetwork indicates a transport-level failure (DNS, timeout, reset).
	ErrNetwork = errors.New("github: network failure")
)

// RateLimitError indicates the API rate limit is exhausted (403/429 with rate
// headers). ResetAt tells callers when requests may resume.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// mapError classifies a go-github error into the adapter's error taxonomy.
// Rate-limit 403s are distinguished from plain access-denied 403s; anything
// that is not an HTTP-level response is treated as a transport failure.
func mapError(err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitError{
			ResetAt:   rateErr.Rate.Reset.Time,
			Remaining: rateErr.Rate.Remaining,
		}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &RateLimitError{ResetAt: time.Now().Add(abuseErr.GetRetryAfter())}
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case 401:
			return fmt.Errorf("%w: %s", ErrAuthentication, respErr.Message)
		case 403:
			return fmt.Errorf("%w: %s", ErrAccessDenied, respErr.Message)
		case 404:
			return fmt.Errorf("%w: %s", ErrNotFound, respErr.Message)
		default:
			return err
		}
	}

	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
