// Package post defines the scheduled post entity, its persistence, and
// publish-slot allocation.
package post

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/publora/publora/errors"
)

// Status represents the current state of a scheduled post
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsValidStatus returns true if the status string is a valid Status
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted,
		StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states the post never leaves
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Metadata is the typed view of a post's metadata blob. The orchestrator
// only decodes it to hand to uploaders; it never interprets the fields.
type Metadata struct {
	Title    string `json:"title,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Hashtags string `json:"hashtags,omitempty"`
}

// ScheduledPost is a media artifact queued for cross-platform publishing
type ScheduledPost struct {
	ID           string          `json:"id"`
	ArtifactPath string          `json:"artifact_path"`
	Metadata     json.RawMessage `json:"metadata,omitempty"` // Opaque blob; decoded only at dispatch time
	Platforms    []string        `json:"platforms"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	Status       Status          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RetryCount   int             `json:"retry_count"`
	CreatedAt    time.Time       `json:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// New creates a pending post for the given artifact, metadata blob, and
// destination platforms. Platform order is preserved; duplicates are dropped.
func New(artifactPath string, metadata Metadata, platforms []string, scheduledAt time.Time) (*ScheduledPost, error) {
	if artifactPath == "" {
		return nil, errors.New("artifact path cannot be empty")
	}

	deduped := dedupePlatforms(platforms)
	if len(deduped) == 0 {
		return nil, errors.New("at least one platform is required")
	}

	blob, err := json.Marshal(metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal metadata")
	}

	now := time.Now()
	return &ScheduledPost{
		ID:           uuid.NewString(),
		ArtifactPath: artifactPath,
		Metadata:     blob,
		Platforms:    deduped,
		ScheduledAt:  scheduledAt,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// DecodeMetadata decodes the opaque metadata blob into its typed form.
// An empty blob decodes to zero-value Metadata. A blob that does not parse
// wraps errors.ErrInvalidMetadata; the post is then terminally invalid.
func (p *ScheduledPost) DecodeMetadata() (Metadata, error) {
	if len(p.Metadata) == 0 {
		return Metadata{}, nil
	}

	var meta Metadata
	if err := json.Unmarshal(p.Metadata, &meta); err != nil {
		return Metadata{}, errors.Wrap(errors.ErrInvalidMetadata, err.Error())
	}
	return meta, nil
}

// PlatformsString returns the comma-joined platform list as persisted
func (p *ScheduledPost) PlatformsString() string {
	return strings.Join(p.Platforms, ",")
}

// SplitPlatforms parses a comma-joined platform column value
func SplitPlatforms(s string) []string {
	return dedupePlatforms(strings.Split(s, ","))
}

func dedupePlatforms(platforms []string) []string {
	seen := make(map[string]bool, len(platforms))
	var out []string
	for _, raw := range platforms {
		name := strings.TrimSpace(strings.ToLower(raw))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
