package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/publora/publora/config"
	"github.com/publora/publora/errors"
	"github.com/publora/publora/post"
)

const webhookMaxRedirects = 10

// WebhookUploader publishes by POSTing the artifact reference and metadata
// to a configured per-platform HTTP endpoint. The receiving automation owns
// the platform's real wire protocol; this side only needs a success/failure
// answer and the resulting post id/url.
type WebhookUploader struct {
	name     string
	endpoint string
	token    string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.SugaredLogger
}

// webhookRequest is the JSON body sent to the endpoint
type webhookRequest struct {
	ArtifactPath string `json:"artifact_path"`
	Title        string `json:"title,omitempty"`
	Caption      string `json:"caption,omitempty"`
	Hashtags     string `json:"hashtags,omitempty"`
}

// webhookResponse is the JSON body expected back on success
type webhookResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// NewWebhookUploader builds an uploader for one configured platform.
// rate_per_minute <= 0 disables pacing.
func NewWebhookUploader(name string, cfg config.PlatformConfig, logger *zap.SugaredLogger) *WebhookUploader {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}

	token := ""
	if cfg.TokenFile != "" {
		if raw, err := os.ReadFile(cfg.TokenFile); err == nil {
			token = strings.TrimSpace(string(raw))
		}
	}

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= webhookMaxRedirects {
				return errors.Newf("stopped after %d redirects", webhookMaxRedirects)
			}
			return nil
		},
	}

	return &WebhookUploader{
		name:     name,
		endpoint: cfg.Endpoint,
		token:    token,
		client:   client,
		limiter:  limiter,
		logger:   logger.Named("uploader." + name),
	}
}

// Upload implements Uploader. The deadline on ctx bounds the whole call,
// including any time spent waiting on the rate limiter.
func (u *WebhookUploader) Upload(ctx context.Context, artifactPath string, meta post.Metadata) UploadResult {
	if u.endpoint == "" {
		return UploadResult{Error: "no endpoint configured for platform " + u.name}
	}

	if err := u.limiter.Wait(ctx); err != nil {
		return UploadResult{Error: "rate limit wait: " + err.Error()}
	}

	body, err := json.Marshal(webhookRequest{
		ArtifactPath: artifactPath,
		Title:        meta.Title,
		Caption:      meta.Caption,
		Hashtags:     meta.Hashtags,
	})
	if err != nil {
		return UploadResult{Error: "marshal request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(body))
	if err != nil {
		return UploadResult{Error: "build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		u.logger.Warnw("Upload request failed", "platform", u.name, "error", err)
		return UploadResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = resp.Status
		}
		u.logger.Warnw("Upload rejected", "platform", u.name, "status", resp.StatusCode)
		return UploadResult{Error: "upload rejected: " + msg}
	}

	var parsed webhookResponse
	// A body that doesn't parse is still a success; id/url are best-effort
	_ = json.Unmarshal(raw, &parsed)

	u.logger.Infow("Upload accepted",
		"platform", u.name,
		"post_id", parsed.ID,
		"url", parsed.URL,
	)

	return UploadResult{Success: true, PostID: parsed.ID, URL: parsed.URL}
}
