package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/postdeck/postdeck/internal/models"
)

var facebookErrorHints = map[int]string{
	3:   "App needs permissions. Go to App Review and request pages_manage_posts",
	4:   "Rate limit reached. Wait a few minutes.",
	190: "Access token expired. Generate new token.",
	200: "No permission. Check you are Page Admin.",
	102: "Invalid session. Re-authenticate.",
	10:  "Permission denied. Check app permissions.",
}

// FacebookAdapter posts to a Facebook page via the Graph API. Text-only
// posts use the feed endpoint; posts with media use the photo upload
// endpoint instead.
type FacebookAdapter struct {
	BaseURL string
	Client  *http.Client
}

func NewFacebookAdapter(client *http.Client) *FacebookAdapter {
	return &FacebookAdapter{
		BaseURL: "https://graph.facebook.com/v18.0",
		Client:  client,
	}
}

func (a *FacebookAdapter) Platform() string {
	return models.PlatformFacebook
}

func (a *FacebookAdapter) Publish(ctx context.Context, conn *models.Connection, req *PublishRequest) Result {
	if conn.AccessToken == "" {
		return failure(ErrorKindConfig, "access token is empty")
	}
	if conn.AccountID == "" {
		return failure(ErrorKindConfig, "page ID is empty")
	}

	if len(req.Media) == 0 {
		return a.postFeed(ctx, conn, req)
	}
	return a.postPhoto(ctx, conn, req)
}

func (a *FacebookAdapter) postFeed(ctx context.Context, conn *models.Connection, req *PublishRequest) Result {
	endpoint := fmt.Sprintf("%s/%s/feed", a.BaseURL, conn.AccountID)

	form := url.Values{}
	form.Set("message", req.Message)
	form.Set("access_token", conn.AccessToken)
	if req.Link != "" {
		form.Set("link", req.Link)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error creating request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return a.doCreate(httpReq)
}

func (a *FacebookAdapter) postPhoto(ctx context.Context, conn *models.Connection, req *PublishRequest) Result {
	endpoint := fmt.Sprintf("%s/%s/photos", a.BaseURL, conn.AccountID)
	asset := req.Media[0]

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("message", req.Message); err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error building upload: %v", err))
	}
	if err := writer.WriteField("access_token", conn.AccessToken); err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error building upload: %v", err))
	}
	part, err := writer.CreateFormFile("source", asset.Filename)
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error building upload: %v", err))
	}
	if _, err := part.Write(asset.Data); err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error building upload: %v", err))
	}
	if err := writer.Close(); err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error building upload: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error creating request: %v", err))
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	return a.doCreate(httpReq)
}

func (a *FacebookAdapter) doCreate(httpReq *http.Request) Result {
	resp, err := a.Client.Do(httpReq)
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error reading response: %v", err))
	}

	var result struct {
		ID string `json:"id"`
	}
	if resp.StatusCode == http.StatusOK && json.Unmarshal(respBody, &result) == nil && result.ID != "" {
		return success(result.ID)
	}

	msg, kind := parseGraphError(respBody, facebookErrorHints)
	return failure(kind, msg)
}
