package platforms

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/postdeck/postdeck/internal/models"
)

const (
	pinterestMaxImageBytes       = 32 * 1024 * 1024
	pinterestMaxDescriptionRunes = 500
)

var pinterestAllowedMIME = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/bmp":  {},
	"image/webp": {},
}

var pinterestHTTPErrors = map[int]string{
	400: "Bad Request - Invalid parameters",
	401: "Unauthorized - Invalid or expired access token",
	403: "Forbidden - Trial access pending or insufficient permissions",
	404: "Not Found - Board not found",
	429: "Rate Limit Exceeded",
	500: "Pinterest API Error",
	503: "Pinterest API Unavailable",
}

// PinterestAdapter creates a pin with a single v5 call, embedding the image
// as base64. An image is mandatory; size and MIME type are gated locally
// before any network call.
type PinterestAdapter struct {
	BaseURL string
	Client  *http.Client
}

func NewPinterestAdapter(client *http.Client) *PinterestAdapter {
	return &PinterestAdapter{
		BaseURL: "https://api.pinterest.com/v5",
		Client:  client,
	}
}

func (a *PinterestAdapter) Platform() string {
	return models.PlatformPinterest
}

func (a *PinterestAdapter) Publish(ctx context.Context, conn *models.Connection, req *PublishRequest) Result {
	if conn.AccessToken == "" {
		return failure(ErrorKindConfig, "missing Pinterest access token")
	}
	if conn.AccountID == "" {
		return failure(ErrorKindConfig, "missing Pinterest board ID")
	}
	if len(req.Media) == 0 {
		return failure(ErrorKindConfig, "Pinterest requires an image. Please upload an image to create a pin.")
	}

	asset := req.Media[0]
	if len(asset.Data) > pinterestMaxImageBytes {
		return failure(ErrorKindPayload, fmt.Sprintf("image too large: %.2fMB (max 32MB)", float64(len(asset.Data))/1048576))
	}
	if _, ok := pinterestAllowedMIME[asset.MIME]; !ok {
		return failure(ErrorKindPayload, "unsupported image type: "+asset.MIME)
	}

	pin := map[string]interface{}{
		"board_id":    conn.AccountID,
		"description": truncateRunes(req.Message, pinterestMaxDescriptionRunes),
		"media_source": map[string]string{
			"source_type":  "image_base64",
			"data":         base64.StdEncoding.EncodeToString(asset.Data),
			"content_type": asset.MIME,
		},
	}
	if req.Link != "" {
		pin["link"] = req.Link
	}

	body, err := json.Marshal(pin)
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error marshalling payload: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/pins", bytes.NewReader(body))
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error creating request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+conn.AccessToken)

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("connection error: %v", err))
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

	return failure(httpStatusKind(resp.StatusCode), parsePinterestError(respBody, resp.StatusCode))
}

func parsePinterestError(body []byte, httpCode int) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		if envelope.Message != "" {
			return fmt.Sprintf("%s (HTTP %d)", envelope.Message, httpCode)
		}
		if envelope.Error != "" {
			return fmt.Sprintf("%s (HTTP %d)", envelope.Error, httpCode)
		}
	}

	base := httpStatusMessage(httpCode, pinterestHTTPErrors)
	switch httpCode {
	case 403:
		base += ". Your app may be in trial mode. Check Pinterest Developer Console."
	case 401:
		base += ". Generate new token from Pinterest Developer Console."
	case 404:
		base += ". Check Board ID is correct."
	}
	return base
}
