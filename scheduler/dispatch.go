// Package scheduler drives scheduled posts through dispatch, retry
// resolution, and the polling loop that ties them together.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/publora/publora/platform"
	"github.com/publora/publora/post"
)

// Outcome aggregates the per-platform results of one dispatch attempt.
// Platforms preserves the post's destination order so logs and error
// summaries stay deterministic.
type Outcome struct {
	Platforms []string
	Results   map[string]platform.UploadResult
}

// AllSucceeded reports whether every platform accepted the upload
func (o Outcome) AllSucceeded() bool {
	for _, name := range o.Platforms {
		if !o.Results[name].Success {
			return false
		}
	}
	return len(o.Platforms) > 0
}

// AllFailed reports whether no platform accepted the upload
func (o Outcome) AllFailed() bool {
	for _, name := range o.Platforms {
		if o.Results[name].Success {
			return false
		}
	}
	return true
}

// FailureSummary joins the failed platforms and their errors, in platform order
func (o Outcome) FailureSummary() string {
	var parts []string
	for _, name := range o.Platforms {
		if res := o.Results[name]; !res.Success {
			parts = append(parts, fmt.Sprintf("%s: %s", name, res.Error))
		}
	}
	return strings.Join(parts, "; ")
}

// Executor invokes the platform uploaders for one due post. Platforms are
// attempted sequentially so per-post logs stay strictly ordered; results are
// returned raw — retry decisions belong to the resolver.
type Executor struct {
	registry      *platform.Registry
	uploadTimeout time.Duration
	logger        *zap.SugaredLogger
}

// NewExecutor creates a dispatch executor. uploadTimeout bounds each
// individual Upload call; zero disables the per-call deadline.
func NewExecutor(registry *platform.Registry, uploadTimeout time.Duration, logger *zap.SugaredLogger) *Executor {
	return &Executor{
		registry:      registry,
		uploadTimeout: uploadTimeout,
		logger:        logger.Named("dispatch"),
	}
}

// Run uploads the post's artifact to each destination platform in order and
// aggregates the raw results. It never returns an error: every failure mode
// is folded into the per-platform result so the caller resolves retry versus
// terminal from data, not from error identity.
func (e *Executor) Run(ctx context.Context, p *post.ScheduledPost, meta post.Metadata) Outcome {
	outcome := Outcome{
		Platforms: p.Platforms,
		Results:   make(map[string]platform.UploadResult, len(p.Platforms)),
	}

	for _, name := range p.Platforms {
		uploader, ok := e.registry.Get(name)
		if !ok {
			outcome.Results[name] = platform.UploadResult{
				Error: fmt.Sprintf("no uploader registered for platform %q", name),
			}
			continue
		}

		result := e.uploadOne(ctx, uploader, p.ArtifactPath, meta)
		outcome.Results[name] = result

		if result.Success {
			e.logger.Infow("Platform upload succeeded",
				"post_id", p.ID,
				"platform", name,
				"remote_id", result.PostID,
				"url", result.URL,
			)
		} else {
			e.logger.Warnw("Platform upload failed",
				"post_id", p.ID,
				"platform", name,
				"error", result.Error,
			)
		}
	}

	return outcome
}

// uploadOne runs a single upload under the per-call deadline. A panicking
// uploader is contained here and reported as a failed result so one bad
// implementation cannot take the loop down.
func (e *Executor) uploadOne(ctx context.Context, uploader platform.Uploader, artifactPath string, meta post.Metadata) (result platform.UploadResult) {
	if e.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.uploadTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			result = platform.UploadResult{Error: fmt.Sprintf("uploader panic: %v", r)}
		}
	}()

	return uploader.Upload(ctx, artifactPath, meta)
}
