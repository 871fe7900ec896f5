package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publora/publora/platform"
	"github.com/publora/publora/post"
)

func outcomeOf(results map[string]platform.UploadResult, platforms ...string) Outcome {
	return Outcome{Platforms: platforms, Results: results}
}

func TestResolveAllSucceeded(t *testing.T) {
	now := time.Now()
	outcome := outcomeOf(map[string]platform.UploadResult{
		"youtube": {Success: true},
		"tiktok":  {Success: true},
	}, "youtube", "tiktok")

	res := Resolve(outcome, 2, DefaultMaxRetries, now)

	assert.Equal(t, post.StatusCompleted, res.Status)
	assert.Empty(t, res.ErrorMessage)
	assert.False(t, res.IncrementRetry)
	assert.False(t, res.ResetScheduledTime)
	require.NotNil(t, res.ProcessedAt)
	assert.Equal(t, now, *res.ProcessedAt)
}

func TestResolveAllFailedBelowBound(t *testing.T) {
	outcome := outcomeOf(map[string]platform.UploadResult{
		"youtube": {Error: "timeout"},
		"tiktok":  {Error: "401 unauthorized"},
	}, "youtube", "tiktok")

	res := Resolve(outcome, 0, DefaultMaxRetries, time.Now())

	assert.Equal(t, post.StatusPending, res.Status)
	assert.True(t, res.IncrementRetry)
	assert.True(t, res.ResetScheduledTime)
	assert.Nil(t, res.ProcessedAt)
	assert.Equal(t, "youtube: timeout; tiktok: 401 unauthorized", res.ErrorMessage)
}

func TestResolveAllFailedAtBound(t *testing.T) {
	now := time.Now()
	outcome := outcomeOf(map[string]platform.UploadResult{
		"youtube": {Error: "timeout"},
	}, "youtube")

	res := Resolve(outcome, DefaultMaxRetries, DefaultMaxRetries, now)

	assert.Equal(t, post.StatusFailed, res.Status)
	assert.False(t, res.IncrementRetry)
	assert.False(t, res.ResetScheduledTime)
	assert.Equal(t, "max retries exceeded: youtube: timeout", res.ErrorMessage)
	require.NotNil(t, res.ProcessedAt)
}

func TestResolvePartialSuccessIsTerminal(t *testing.T) {
	outcome := outcomeOf(map[string]platform.UploadResult{
		"youtube": {Success: true},
		"tiktok":  {Error: "500 internal"},
	}, "youtube", "tiktok")

	// Even at retry count zero, partial success never re-dispatches
	res := Resolve(outcome, 0, DefaultMaxRetries, time.Now())

	assert.Equal(t, post.StatusCompleted, res.Status)
	assert.False(t, res.IncrementRetry)
	assert.Equal(t, "partial failure: tiktok: 500 internal", res.ErrorMessage)
	require.NotNil(t, res.ProcessedAt)
}

func TestOutcomePredicates(t *testing.T) {
	empty := Outcome{}
	assert.False(t, empty.AllSucceeded())
	assert.True(t, empty.AllFailed())

	mixed := outcomeOf(map[string]platform.UploadResult{
		"youtube": {Success: true},
		"tiktok":  {Error: "down"},
	}, "youtube", "tiktok")
	assert.False(t, mixed.AllSucceeded())
	assert.False(t, mixed.AllFailed())
	assert.Equal(t, "tiktok: down", mixed.FailureSummary())
}
