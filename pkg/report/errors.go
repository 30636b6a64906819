package report

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidRepo aborts a run whose repository cannot be validated.
	ErrInvalidRepo = errors.New("invalid owner/repo")
	// ErrNoRepoPage is returned when a repository overview cannot be built.
	ErrNoRepoPage = errors.New("repository page unavailable")
)

// Messages shown to end users.
const (
	msgInvalidRepo = "You've entered invalid owner/repo, or the target is private. Please try again."
	msgCancelled   = "The request was cancelled before the report was ready."
	msgFailed      = "Something went wrong while building the report. Please try again later."
)

// UserMessage renders err for a CLI or HTTP response.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRepo), errors.Is(err, ErrNoRepoPage):
		return msgInvalidRepo
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return msgCancelled
	default:
		return msgFailed
	}
}
