package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/postdeck/postdeck/internal/models"
)

var linkedInHTTPErrors = map[int]string{
	400: "Bad Request - Invalid share payload",
	401: "Unauthorized - Invalid or expired access token",
	403: "Forbidden - Missing w_member_social or w_organization_social scope",
	404: "Not Found - Author URN not found",
	422: "Unprocessable - Duplicate share or invalid content",
	429: "Rate Limit Exceeded",
	500: "LinkedIn API Error",
}

// LinkedInAdapter creates a share with a single ugcPosts call. The
// connection's account identifier is the author URN (person or
// organization). Media is optional; when present its public URL rides along
// as article content so the call stays single-shot.
type LinkedInAdapter struct {
	BaseURL string
	Client  *http.Client
}

func NewLinkedInAdapter(client *http.Client) *LinkedInAdapter {
	return &LinkedInAdapter{
		BaseURL: "https://api.linkedin.com",
		Client:  client,
	}
}

func (a *LinkedInAdapter) Platform() string {
	return models.PlatformLinkedIn
}

func (a *LinkedInAdapter) Publish(ctx context.Context, conn *models.Connection, req *PublishRequest) Result {
	if conn.AccessToken == "" {
		return failure(ErrorKindConfig, "access token is empty")
	}
	if !strings.HasPrefix(conn.AccountID, "urn:") {
		return failure(ErrorKindConfig, "account ID must be a person or organization URN (urn:li:...)")
	}

	shareURL := req.Link
	if shareURL == "" && len(req.Media) > 0 {
		shareURL = req.Media[0].URL
	}

	shareContent := map[string]interface{}{
		"shareCommentary":    map[string]string{"text": req.Message},
		"shareMediaCategory": "NONE",
	}
	if shareURL != "" {
		shareContent["shareMediaCategory"] = "ARTICLE"
		shareContent["media"] = []map[string]interface{}{
			{"status": "READY", "originalUrl": shareURL},
		}
	}

	payload := map[string]interface{}{
		"author":         conn.AccountID,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error marshalling payload: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/v2/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error creating request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+conn.AccessToken)
	httpReq.Header.Set("X-Restli-Protocol-Version", "2.0.0")

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
	if resp.StatusCode == http.StatusCreated && json.Unmarshal(respBody, &result) == nil && result.ID != "" {
		return success(result.ID)
	}

	return failure(httpStatusKind(resp.StatusCode), parseLinkedInError(respBody, resp.StatusCode))
}

func parseLinkedInError(body []byte, httpCode int) string {
	var envelope struct {
		Message          string `json:"message"`
		ServiceErrorCode int    `json:"serviceErrorCode"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
		return fmt.Sprintf("%s (HTTP %d)", envelope.Message, httpCode)
	}
	return httpStatusMessage(httpCode, linkedInHTTPErrors)
}
