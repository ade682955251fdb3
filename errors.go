package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aihelper/aihelper/internal/catalog"
	"github.com/aihelper/aihelper/internal/config"
	"github.com/aihelper/aihelper/internal/fallback"
	"github.com/aihelper/aihelper/internal/provider"
	"github.com/aihelper/aihelper/internal/reports"
	"github.com/aihelper/aihelper/internal/schema"
	"github.com/openai/openai-go"
)

// newUserErrorf is a user-facing error.
// this function is mostly to avoid linters complain about errors starting with a capitalized letter.
func newUserErrorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// cliError is a wrapper around an error that adds additional context.
type cliError struct {
	err    error
	reason string
}

func (m cliError) Error() string {
	return m.err.Error()
}

func (m cliError) Reason() string {
	return m.reason
}

func (m cliError) Unwrap() error {
	return m.err
}

// explain wraps err with a reason fit for the user, unless it already has
// one.
func explain(err error) error {
	if err == nil {
		return nil
	}
	var ce cliError
	if errors.As(err, &ce) {
		return err
	}
	return cliError{err: err, reason: reasonFor(err)}
}

func reasonFor(err error) string {
	var (
		caller    *fallback.CallerError
		exhausted *fallback.ChainExhaustedError
		apiErr    *openai.Error
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out."
	case errors.As(err, &caller):
		return "Invalid request."
	case errors.Is(err, provider.ErrMissingAPIKey):
		return "Missing API key."
	case errors.As(err, &exhausted):
		if errors.As(exhausted.Last, &apiErr) {
			return "Every model in the fallback chain failed. " + apiReason(apiErr)
		}
		return "Every model in the fallback chain failed."
	case errors.As(err, &apiErr):
		return apiReason(apiErr)
	case errors.Is(err, schema.ErrMissingField), errors.Is(err, schema.ErrNoJSON):
		return "The model answer did not match the schema."
	case errors.Is(err, config.ErrNotList), errors.Is(err, config.ErrUnknownKey):
		return "Invalid configuration key."
	case errors.Is(err, catalog.ErrNotFound):
		return "Unknown model."
	case errors.Is(err, reports.ErrNoMatches), errors.Is(err, reports.ErrMultipleMatches):
		return "Could not find the report."
	}
	return "Something went wrong."
}

func apiReason(err *openai.Error) string {
	switch err.StatusCode {
	case http.StatusNotFound:
		return "Missing model."
	case http.StatusBadRequest:
		if err.Code == "context_length_exceeded" {
			return "Maximum prompt size exceeded."
		}
		return "API request error."
	case http.StatusUnauthorized:
		return "Invalid API key."
	case http.StatusTooManyRequests:
		return "You've hit your API rate limit."
	case http.StatusInternalServerError:
		return "API server error."
	default:
		return "Unknown API error."
	}
}
