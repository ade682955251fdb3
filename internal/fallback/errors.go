package fallback

import (
	"fmt"
	"time"

	xstrings "github.com/charmbracelet/x/exp/strings"
)

// CallerError is a malformed request. It is raised before any model is
// tried and is never retried.
type CallerError struct {
	Err error
}

func (e *CallerError) Error() string { return "invalid request: " + e.Err.Error() }

func (e *CallerError) Unwrap() error { return e.Err }

// AttemptFailure is the failure of one candidate. It moves the executor to
// the next candidate.
type AttemptFailure struct {
	Model   string
	Elapsed time.Duration
	Err     error
}

func (e *AttemptFailure) Error() string {
	return fmt.Sprintf("%s failed after %s: %v", e.Model, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *AttemptFailure) Unwrap() error { return e.Err }

// ChainExhaustedError is returned when every candidate failed.
type ChainExhaustedError struct {
	Attempted []string
	Failures  []*AttemptFailure
	Last      error
}

func (e *ChainExhaustedError) Error() string {
	return fmt.Sprintf(
		"all %d models failed (%s), last error: %v",
		len(e.Attempted),
		xstrings.EnglishJoin(e.Attempted, true),
		e.Last,
	)
}

func (e *ChainExhaustedError) Unwrap() error { return e.Last }
