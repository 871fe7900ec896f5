// Package platform defines the destination-platform capability consumed by
// the scheduler: one Uploader per destination, a registry to look them up,
// and the credential check used at post-creation time.
package platform

import (
	"context"

	"github.com/publora/publora/post"
)

// UploadResult is the raw outcome of one platform upload attempt
type UploadResult struct {
	Success bool   `json:"success"`
	PostID  string `json:"post_id,omitempty"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Uploader publishes one artifact to one destination platform. An
// implementation owns its own auth, HTTP retry/backoff, and any
// platform-specific validation; the scheduler never retries an individual
// Upload call.
type Uploader interface {
	Upload(ctx context.Context, artifactPath string, meta post.Metadata) UploadResult
}

// CredentialStore reports whether a platform has usable credentials.
// Consulted when a post is created, not at dispatch time: a post for an
// unauthenticated platform simply surfaces as a failed UploadResult.
type CredentialStore interface {
	IsAuthenticated(platform string) bool
}
