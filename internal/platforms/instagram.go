package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/postdeck/postdeck/internal/models"
)

var instagramErrorHints = map[int]string{
	3:       "App needs permissions. Request: instagram_basic, instagram_content_publish",
	4:       "Rate limit reached. Wait a few minutes.",
	190:     "Access token expired. Generate new token.",
	200:     "No permission. Check Instagram Business Account.",
	9007:    "Media upload failed. Check file size and format.",
	10:      "Permission denied. Check app permissions.",
	100:     "Invalid parameter. Ensure URL is publicly accessible.",
	352:     "Publishing too fast. Wait 20-30 seconds between posts.",
	2207026: "Container not ready. Try waiting longer before publishing.",
}

// InstagramAdapter publishes through the two-phase container/publish flow of
// the Instagram Graph API. Media is mandatory. Videos poll a status endpoint
// until processing finishes; images wait one fixed ingest delay instead. A
// failure after container creation is surfaced as-is; a fresh attempt starts
// a new container.
type InstagramAdapter struct {
	BaseURL          string
	Client           *http.Client
	PollInterval     time.Duration
	PollMaxAttempts  int
	ImageIngestDelay time.Duration
}

func NewInstagramAdapter(client *http.Client, pollInterval time.Duration, pollMaxAttempts int, imageDelay time.Duration) *InstagramAdapter {
	return &InstagramAdapter{
		BaseURL:          "https://graph.facebook.com/v18.0",
		Client:           client,
		PollInterval:     pollInterval,
		PollMaxAttempts:  pollMaxAttempts,
		ImageIngestDelay: imageDelay,
	}
}

func (a *InstagramAdapter) Platform() string {
	return models.PlatformInstagram
}

func (a *InstagramAdapter) Publish(ctx context.Context, conn *models.Connection, req *PublishRequest) Result {
	if conn.AccessToken == "" {
		return failure(ErrorKindConfig, "access token is empty")
	}
	if conn.AccountID == "" {
		return failure(ErrorKindConfig, "Instagram account ID is empty")
	}
	if len(req.Media) == 0 {
		return failure(ErrorKindConfig, "Instagram requires an image or video. Please upload media.")
	}

	asset := req.Media[0]

	creationID, res := a.createContainer(ctx, conn, req.Message, asset.URL, asset.IsVideo())
	if !res.Success {
		return res
	}

	if asset.IsVideo() {
		if res := a.waitForVideoProcessing(ctx, conn, creationID); !res.Success {
			return res
		}
	} else {
		// Give the platform a moment to finish ingesting the image before
		// the publish call.
		select {
		case <-time.After(a.ImageIngestDelay):
		case <-ctx.Done():
			return failure(ErrorKindTransport, fmt.Sprintf("request failed: %v", ctx.Err()))
		}
	}

	return a.publishContainer(ctx, conn, creationID)
}

func (a *InstagramAdapter) createContainer(ctx context.Context, conn *models.Connection, caption, mediaURL string, isVideo bool) (string, Result) {
	endpoint := fmt.Sprintf("%s/%s/media", a.BaseURL, conn.AccountID)

	form := url.Values{}
	form.Set("caption", caption)
	form.Set("access_token", conn.AccessToken)
	if isVideo {
		form.Set("media_type", "VIDEO")
		form.Set("video_url", mediaURL)
	} else {
		form.Set("image_url", mediaURL)
	}

	body, status, err := a.postForm(ctx, endpoint, form)
	if err != nil {
		return "", failure(ErrorKindTransport, fmt.Sprintf("container request failed: %v", err))
	}

	var result struct {
		ID string `json:"id"`
	}
	if status == http.StatusOK && json.Unmarshal(body, &result) == nil && result.ID != "" {
		return result.ID, Result{Success: true}
	}

	msg, kind := parseGraphError(body, instagramErrorHints)
	return "", failure(kind, msg)
}

func (a *InstagramAdapter) waitForVideoProcessing(ctx context.Context, conn *models.Connection, containerID string) Result {
	for attempt := 0; attempt < a.PollMaxAttempts; attempt++ {
		select {
		case <-time.After(a.PollInterval):
		case <-ctx.Done():
			return failure(ErrorKindTransport, fmt.Sprintf("status poll aborted: %v", ctx.Err()))
		}

		statusURL := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s",
			a.BaseURL, containerID, url.QueryEscape(conn.AccessToken))

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return failure(ErrorKindTransport, fmt.Sprintf("error creating request: %v", err))
		}

		resp, err := a.Client.Do(httpReq)
		if err != nil {
			// Transient poll failure, spend an attempt and retry.
			slog.Info(err.Error())
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			continue
		}

		var status struct {
			StatusCode string `json:"status_code"`
		}
		if json.Unmarshal(body, &status) != nil {
			continue
		}

		switch status.StatusCode {
		case "FINISHED":
			return Result{Success: true}
		case "ERROR":
			return failure(ErrorKindProcessing, "video processing failed")
		}
	}

	return failure(ErrorKindProcessing, "video processing timeout")
}

func (a *InstagramAdapter) publishContainer(ctx context.Context, conn *models.Connection, creationID string) Result {
	endpoint := fmt.Sprintf("%s/%s/media_publish", a.BaseURL, conn.AccountID)

	form := url.Values{}
	form.Set("creation_id", creationID)
	form.Set("access_token", conn.AccessToken)

	body, status, err := a.postForm(ctx, endpoint, form)
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("publish request failed: %v", err))
	}

	var result struct {
		ID string `json:"id"`
	}
	if status == http.StatusOK && json.Unmarshal(body, &result) == nil && result.ID != "" {
		return success(result.ID)
	}

	msg, kind := parseGraphError(body, instagramErrorHints)
	return failure(kind, msg)
}

func (a *InstagramAdapter) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
