package scheduler

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/publora/publora/errors"
	"github.com/publora/publora/post"
)

// LoopConfig contains configuration for the publish loop
type LoopConfig struct {
	Interval      time.Duration // How often to check for due posts
	GracePeriod   time.Duration // How late a post may run before it is failed instead
	MaxRetries    int           // Dispatch attempts before an all-failed post is terminal
	UploadTimeout time.Duration // Per-platform upload deadline
}

// DefaultLoopConfig returns sensible defaults
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		Interval:      60 * time.Second,
		GracePeriod:   30 * time.Minute,
		MaxRetries:    DefaultMaxRetries,
		UploadTimeout: 5 * time.Minute,
	}
}

// Loop polls the store for due posts and drives each one to a terminal
// state or a retry. It is the only writer of status/retry fields while a
// post is in flight; a single slow or failing post never aborts the cycle.
type Loop struct {
	store    *post.Store
	executor *Executor
	cfg      LoopConfig
	logger   *zap.SugaredLogger
	clock    func() time.Time
}

// NewLoop creates a publish loop
func NewLoop(store *post.Store, executor *Executor, cfg LoopConfig, logger *zap.SugaredLogger) *Loop {
	return &Loop{
		store:    store,
		executor: executor,
		cfg:      cfg,
		logger:   logger.Named("loop"),
		clock:    time.Now,
	}
}

// WithClock overrides the loop's notion of now (for tests)
func (l *Loop) WithClock(clock func() time.Time) *Loop {
	l.clock = clock
	return l
}

// Run executes poll cycles at the configured interval until ctx is
// cancelled. Posts stranded in processing by a previous crash are released
// back to pending before the first cycle.
func (l *Loop) Run(ctx context.Context) error {
	l.recoverStranded()

	l.logger.Infow("Publish loop started",
		"interval", l.cfg.Interval,
		"grace_period", l.cfg.GracePeriod,
		"max_retries", l.cfg.MaxRetries,
	)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	// Run the first cycle immediately rather than waiting an interval
	l.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Infow("Publish loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.cycle(ctx)
		}
	}
}

// RunOnce executes exactly one poll cycle and returns, for cron-style
// invocation. Crash recovery runs here too so a cron-driven setup still
// catches up after an interrupted cycle.
func (l *Loop) RunOnce(ctx context.Context) error {
	l.recoverStranded()
	return l.cycle(ctx)
}

// recoverStranded returns crash-orphaned processing posts to pending. The
// retry count is deliberately untouched: the interrupted attempt's outcome
// is unknown, so it does not count against the bound.
func (l *Loop) recoverStranded() {
	released, err := l.store.ReleaseStuckProcessing(l.clock())
	if err != nil {
		l.logger.Warnw("Failed to release stranded posts", "error", err)
		return
	}
	if released > 0 {
		l.logger.Infow("Released stranded processing posts", "count", released)
	}
}

// cycle runs one poll: fetch due posts and process them sequentially in
// scheduled order, fully resolving each before moving to the next.
func (l *Loop) cycle(ctx context.Context) error {
	now := l.clock()

	due, err := l.store.GetDue(now, l.cfg.GracePeriod)
	if err != nil {
		l.logger.Errorw("Failed to query due posts", "error", err)
		return err
	}

	if len(due) == 0 {
		l.logger.Debugw("No posts due", "now", now.Format(time.RFC3339))
		return nil
	}

	l.logger.Infow("Processing due posts", "count", len(due))

	for _, p := range due {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := l.processPost(ctx, p, now); err != nil {
			// Isolated: one post's persistence failure must not abort the cycle
			l.logger.Errorw("Failed to process post",
				"post_id", p.ID,
				"error", err,
			)
		}
	}

	return nil
}

// processPost drives one due post through the precondition checks, the
// dispatch, and the retry resolution. Every terminal path records its reason
// on the post; nothing propagates out except store failures.
func (l *Loop) processPost(ctx context.Context, p *post.ScheduledPost, now time.Time) error {
	// Defensive re-check; the resolver should already have terminated the post
	if p.RetryCount >= l.cfg.MaxRetries {
		l.logger.Warnw("Post exceeded retry bound outside resolver",
			"post_id", p.ID,
			"retry_count", p.RetryCount,
		)
		return l.fail(p, now, "max retries exceeded")
	}

	// Artifact existence is checked lazily, at dispatch time
	if _, err := os.Stat(p.ArtifactPath); err != nil {
		return l.fail(p, now, "artifact not found")
	}

	// A post that slept past the grace window is failed, never dispatched
	if lateness := now.Sub(p.ScheduledAt); lateness > l.cfg.GracePeriod {
		l.logger.Warnw("Post missed grace period",
			"post_id", p.ID,
			"scheduled_at", p.ScheduledAt.Format(time.RFC3339),
			"lateness", lateness.Round(time.Second),
		)
		return l.fail(p, now, "missed grace period")
	}

	claimed, err := l.store.ClaimProcessing(p.ID)
	if err != nil {
		return errors.Wrapf(err, "failed to claim post %s", p.ID)
	}
	if !claimed {
		// Cancelled or claimed elsewhere since GetDue; not ours to run
		l.logger.Debugw("Skipping post, claim lost", "post_id", p.ID)
		return nil
	}

	meta, err := p.DecodeMetadata()
	if err != nil {
		l.logger.Warnw("Post metadata invalid", "post_id", p.ID, "error", err)
		return l.fail(p, now, "invalid metadata")
	}

	outcome := l.executor.Run(ctx, p, meta)
	resolution := Resolve(outcome, p.RetryCount, l.cfg.MaxRetries, now)

	if resolution.ResetScheduledTime {
		l.logger.Infow("Post scheduled for retry",
			"post_id", p.ID,
			"retry_count", p.RetryCount+1,
			"max_retries", l.cfg.MaxRetries,
			"error", resolution.ErrorMessage,
		)
		return l.store.ResetForRetry(p.ID, now, resolution.ErrorMessage)
	}

	l.logger.Infow("Post resolved",
		"post_id", p.ID,
		"status", resolution.Status,
		"error", resolution.ErrorMessage,
	)
	return l.store.UpdateStatus(p.ID, resolution.Status, resolution.ErrorMessage, resolution.ProcessedAt, resolution.IncrementRetry)
}

// fail marks a post terminally failed with the given reason
func (l *Loop) fail(p *post.ScheduledPost, now time.Time, reason string) error {
	return l.store.UpdateStatus(p.ID, post.StatusFailed, reason, &now, false)
}
