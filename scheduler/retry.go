package scheduler

import (
	"time"

	"github.com/publora/publora/post"
)

// DefaultMaxRetries bounds how many times an all-platforms-failed post is re-dispatched
const DefaultMaxRetries = 3

// Resolution is the next state a dispatch outcome maps to
type Resolution struct {
	Status             post.Status
	ErrorMessage       string
	IncrementRetry     bool
	ResetScheduledTime bool
	ProcessedAt        *time.Time
}

// Resolve turns a dispatch outcome plus the post's current retry count into
// its next state:
//
//   - every platform succeeded → completed, error message cleared
//   - partial success → completed, error message lists the failed platforms.
//     Terminal on purpose: retrying the whole post would duplicate-post to
//     the platforms that already succeeded, so the failed ones are abandoned.
//   - every platform failed → back to pending with retry count + 1 and the
//     scheduled time reset to now (retries are paced by the poll interval,
//     not backed off here; uploaders own any network-level backoff), until
//     the retry bound is hit, which is terminal failed.
func Resolve(outcome Outcome, retryCount, maxRetries int, now time.Time) Resolution {
	switch {
	case outcome.AllSucceeded():
		return Resolution{
			Status:       post.StatusCompleted,
			ErrorMessage: "",
			ProcessedAt:  &now,
		}

	case outcome.AllFailed():
		if retryCount < maxRetries {
			return Resolution{
				Status:             post.StatusPending,
				ErrorMessage:       outcome.FailureSummary(),
				IncrementRetry:     true,
				ResetScheduledTime: true,
			}
		}
		return Resolution{
			Status:       post.StatusFailed,
			ErrorMessage: "max retries exceeded: " + outcome.FailureSummary(),
			ProcessedAt:  &now,
		}

	default:
		// Partial success
		return Resolution{
			Status:       post.StatusCompleted,
			ErrorMessage: "partial failure: " + outcome.FailureSummary(),
			ProcessedAt:  &now,
		}
	}
}
