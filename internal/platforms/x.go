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
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/postdeck/postdeck/internal/media"
	"github.com/postdeck/postdeck/internal/models"
)

const (
	xMaxMediaPerPost   = 4
	xMaxTweetRunes     = 280
	xSimpleUploadLimit = 5_000_000
	xChunkSize         = 1_000_000

	xMaxImageBytes = 5 * 1024 * 1024
	xMaxVideoBytes = 512 * 1024 * 1024
	xMaxGifBytes   = 15 * 1024 * 1024
)

var xHTTPErrors = map[int]string{
	400: "Bad Request - Invalid parameters",
	401: "Unauthorized - Invalid or expired credentials",
	403: "Forbidden - Insufficient permissions or Free tier (upgrade to Basic)",
	404: "Not Found - Invalid endpoint",
	410: "Gone - Endpoint deprecated or unavailable on your tier",
	429: "Rate Limit Exceeded - Too many requests",
	500: "Internal Server Error - X API issue",
	503: "Service Unavailable - X API down",
}

// XAdapter posts status updates through the X API v2 with OAuth1 request
// signing. Media goes through the v1.1 upload protocol first: a simple
// multipart upload for small files, the chunked INIT/APPEND/FINALIZE flow
// with a bounded processing poll for large ones. At most four media ids are
// referenced per post; excess is silently dropped.
type XAdapter struct {
	APIBaseURL      string
	UploadBaseURL   string
	Client          *http.Client
	PollInterval    time.Duration
	PollMaxAttempts int
}

func NewXAdapter(client *http.Client, pollInterval time.Duration, pollMaxAttempts int) *XAdapter {
	return &XAdapter{
		APIBaseURL:      "https://api.twitter.com",
		UploadBaseURL:   "https://upload.twitter.com",
		Client:          client,
		PollInterval:    pollInterval,
		PollMaxAttempts: pollMaxAttempts,
	}
}

func (a *XAdapter) Platform() string {
	return models.PlatformX
}

func (a *XAdapter) Publish(ctx context.Context, conn *models.Connection, req *PublishRequest) Result {
	for field, value := range map[string]string{
		"api_key":             conn.ConsumerKey,
		"api_secret":          conn.ConsumerSecret,
		"access_token":        conn.OAuthToken,
		"access_token_secret": conn.OAuthTokenSecret,
	} {
		if value == "" {
			return failure(ErrorKindConfig, fmt.Sprintf("missing required credential: %s", field))
		}
	}

	client := a.signedClient(ctx, conn)
	text := truncateRunes(req.Message, xMaxTweetRunes)

	var mediaIDs []string
	for _, asset := range req.Media {
		if len(mediaIDs) >= xMaxMediaPerPost {
			break
		}
		mediaID, res := a.uploadMedia(ctx, client, asset)
		if !res.Success {
			return res
		}
		mediaIDs = append(mediaIDs, mediaID)
	}

	return a.postTweet(ctx, client, text, mediaIDs)
}

func (a *XAdapter) signedClient(ctx context.Context, conn *models.Connection) *http.Client {
	config := oauth1.NewConfig(conn.ConsumerKey, conn.ConsumerSecret)
	token := oauth1.NewToken(conn.OAuthToken, conn.OAuthTokenSecret)
	return config.Client(context.WithValue(ctx, oauth1.HTTPClient, a.Client), token)
}

func (a *XAdapter) postTweet(ctx context.Context, client *http.Client, text string, mediaIDs []string) Result {
	payload := map[string]interface{}{"text": text}
	if len(mediaIDs) > 0 {
		payload["media"] = map[string]interface{}{"media_ids": mediaIDs}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error marshalling payload: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.APIBaseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error creating request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error reading response: %v", err))
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if resp.StatusCode == http.StatusCreated && json.Unmarshal(respBody, &result) == nil && result.Data.ID != "" {
		return success(result.Data.ID)
	}

	msg := parseXError(respBody, resp.StatusCode)
	return failure(httpStatusKind(resp.StatusCode), msg)
}

func (a *XAdapter) uploadMedia(ctx context.Context, client *http.Client, asset *media.StagedAsset) (string, Result) {
	if res := checkXMediaSize(asset); !res.Success {
		return "", res
	}

	if len(asset.Data) < xSimpleUploadLimit {
		return a.uploadSimple(ctx, client, asset)
	}
	return a.uploadChunked(ctx, client, asset)
}

func checkXMediaSize(asset *media.StagedAsset) Result {
	max := xMaxImageBytes
	switch {
	case strings.Contains(asset.MIME, "video"):
		max = xMaxVideoBytes
	case strings.Contains(asset.MIME, "gif"):
		max = xMaxGifBytes
	}

	if len(asset.Data) > max {
		return failure(ErrorKindPayload, fmt.Sprintf("file too large: %.2fMB (max: %.2fMB)",
			float64(len(asset.Data))/1048576, float64(max)/1048576))
	}
	return Result{Success: true}
}

func (a *XAdapter) uploadSimple(ctx context.Context, client *http.Client, asset *media.StagedAsset) (string, Result) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("media", asset.Filename)
	if err == nil {
		_, err = part.Write(asset.Data)
	}
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		return "", failure(ErrorKindTransport, fmt.Sprintf("error building upload: %v", err))
	}

	respBody, status, err := a.doUpload(ctx, client, &body, writer.FormDataContentType())
	if err != nil {
		return "", failure(ErrorKindTransport, fmt.Sprintf("upload failed: %v", err))
	}

	mediaID, ok := mediaIDFrom(respBody)
	if !ok {
		return "", failure(httpStatusKind(status), parseXError(respBody, status))
	}
	return mediaID, Result{Success: true}
}

func (a *XAdapter) uploadChunked(ctx context.Context, client *http.Client, asset *media.StagedAsset) (string, Result) {
	category := "tweet_image"
	switch {
	case strings.Contains(asset.MIME, "video"):
		category = "tweet_video"
	case strings.Contains(asset.MIME, "gif"):
		category = "tweet_gif"
	}

	// INIT
	initForm := url.Values{}
	initForm.Set("command", "INIT")
	initForm.Set("media_type", asset.MIME)
	initForm.Set("media_category", category)
	initForm.Set("total_bytes", strconv.Itoa(len(asset.Data)))

	respBody, status, err := a.doUploadForm(ctx, client, initForm)
	if err != nil {
		return "", failure(ErrorKindTransport, fmt.Sprintf("init failed: %v", err))
	}
	mediaID, ok := mediaIDFrom(respBody)
	if !ok {
		return "", failure(httpStatusKind(status), "init failed: "+parseXError(respBody, status))
	}

	// APPEND one-megabyte segments
	for segment, offset := 0, 0; offset < len(asset.Data); segment, offset = segment+1, offset+xChunkSize {
		end := offset + xChunkSize
		if end > len(asset.Data) {
			end = len(asset.Data)
		}

		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		writer.WriteField("command", "APPEND")
		writer.WriteField("media_id", mediaID)
		writer.WriteField("segment_index", strconv.Itoa(segment))
		part, err := writer.CreateFormFile("media", asset.Filename)
		if err == nil {
			_, err = part.Write(asset.Data[offset:end])
		}
		if err == nil {
			err = writer.Close()
		}
		if err != nil {
			return "", failure(ErrorKindTransport, fmt.Sprintf("error building chunk: %v", err))
		}

		if _, _, err := a.doUpload(ctx, client, &body, writer.FormDataContentType()); err != nil {
			return "", failure(ErrorKindTransport, fmt.Sprintf("append failed: %v", err))
		}
	}

	// FINALIZE
	finalizeForm := url.Values{}
	finalizeForm.Set("command", "FINALIZE")
	finalizeForm.Set("media_id", mediaID)

	respBody, status, err = a.doUploadForm(ctx, client, finalizeForm)
	if err != nil {
		return "", failure(ErrorKindTransport, fmt.Sprintf("finalize failed: %v", err))
	}
	if _, ok := mediaIDFrom(respBody); !ok {
		return "", failure(httpStatusKind(status), "finalize failed: "+parseXError(respBody, status))
	}

	var finalize struct {
		ProcessingInfo *xProcessingInfo `json:"processing_info"`
	}
	if json.Unmarshal(respBody, &finalize) == nil && finalize.ProcessingInfo != nil {
		if res := a.waitForProcessing(ctx, client, mediaID); !res.Success {
			return "", res
		}
	}

	return mediaID, Result{Success: true}
}

type xProcessingInfo struct {
	State          string `json:"state"`
	CheckAfterSecs int    `json:"check_after_secs"`
}

func (a *XAdapter) waitForProcessing(ctx context.Context, client *http.Client, mediaID string) Result {
	for attempt := 0; attempt < a.PollMaxAttempts; attempt++ {
		statusURL := fmt.Sprintf("%s/1.1/media/upload.json?command=STATUS&media_id=%s", a.UploadBaseURL, mediaID)

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return failure(ErrorKindTransport, fmt.Sprintf("error creating request: %v", err))
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return failure(ErrorKindTransport, fmt.Sprintf("status check failed: %v", err))
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return failure(ErrorKindTransport, fmt.Sprintf("error reading response: %v", readErr))
		}

		var status struct {
			ProcessingInfo *xProcessingInfo `json:"processing_info"`
		}
		if json.Unmarshal(respBody, &status) != nil || status.ProcessingInfo == nil {
			return Result{Success: true}
		}

		switch status.ProcessingInfo.State {
		case "succeeded":
			return Result{Success: true}
		case "failed":
			return failure(ErrorKindProcessing, "media processing failed")
		}

		// The platform suggests a wait, capped at the configured interval so
		// the poll budget stays bounded.
		wait := a.PollInterval
		if suggested := time.Duration(status.ProcessingInfo.CheckAfterSecs) * time.Second; suggested > 0 && suggested < wait {
			wait = suggested
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return failure(ErrorKindTransport, fmt.Sprintf("status poll aborted: %v", ctx.Err()))
		}
	}

	return failure(ErrorKindProcessing, "media processing timeout")
}

func (a *XAdapter) doUpload(ctx context.Context, client *http.Client, body io.Reader, contentType string) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.UploadBaseURL+"/1.1/media/upload.json", body)
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}

func (a *XAdapter) doUploadForm(ctx context.Context, client *http.Client, form url.Values) ([]byte, int, error) {
	return a.doUpload(ctx, client, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func mediaIDFrom(body []byte) (string, bool) {
	var result struct {
		MediaIDString string `json:"media_id_string"`
	}
	if json.Unmarshal(body, &result) == nil && result.MediaIDString != "" {
		return result.MediaIDString, true
	}
	return "", false
}

// parseXError handles both v2 (errors[]/title+detail) and v1.1 (errors[] with
// codes) envelopes, falling back to the HTTP status table.
func parseXError(body []byte, httpCode int) string {
	base := httpStatusMessage(httpCode, xHTTPErrors)

	var envelope struct {
		Errors []struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
			Code    int    `json:"code"`
		} `json:"errors"`
		Error  string `json:"error"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return base
	}

	if len(envelope.Errors) > 0 {
		e := envelope.Errors[0]
		msg := e.Message
		if msg == "" {
			msg = base
		}
		if e.Detail != "" {
			msg += " - " + e.Detail
		} else if e.Code != 0 {
			msg += fmt.Sprintf(" (Code: %d)", e.Code)
		}
		return msg
	}
	if envelope.Error != "" {
		return envelope.Error
	}
	if envelope.Title != "" && envelope.Detail != "" {
		return envelope.Title + ": " + envelope.Detail
	}
	return base
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
