package platforms

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"

	"github.com/postdeck/postdeck/internal/models"
)

// TumblrAdapter posts to a blog through the Tumblr v2 API with OAuth1
// signing. Photo posts first reference the staged asset by URL; on any
// failure the same call is retried with the bytes embedded as base64. The
// fallback is part of the contract, not optional robustness.
type TumblrAdapter struct {
	BaseURL string
	Client  *http.Client
}

func NewTumblrAdapter(client *http.Client) *TumblrAdapter {
	return &TumblrAdapter{
		BaseURL: "https://api.tumblr.com",
		Client:  client,
	}
}

func (a *TumblrAdapter) Platform() string {
	return models.PlatformTumblr
}

func (a *TumblrAdapter) Publish(ctx context.Context, conn *models.Connection, req *PublishRequest) Result {
	for field, value := range map[string]string{
		"consumer_key":       conn.ConsumerKey,
		"consumer_secret":    conn.ConsumerSecret,
		"oauth_token":        conn.OAuthToken,
		"oauth_token_secret": conn.OAuthTokenSecret,
	} {
		if value == "" {
			return failure(ErrorKindConfig, fmt.Sprintf("missing required credential: %s", field))
		}
	}
	if !strings.Contains(conn.AccountID, ".") {
		return failure(ErrorKindConfig, "invalid blog name format. Use: blogname.tumblr.com")
	}

	client := a.signedClient(ctx, conn)

	if len(req.Media) == 0 {
		form := url.Values{}
		form.Set("type", "text")
		form.Set("body", req.Message)
		form.Set("state", "published")
		return a.createPost(ctx, client, conn.AccountID, form)
	}

	// Photo post via direct URL reference first.
	form := url.Values{}
	form.Set("type", "photo")
	form.Set("caption", req.Message)
	form.Set("state", "published")
	form.Set("source", req.Media[0].URL)

	res := a.createPost(ctx, client, conn.AccountID, form)
	if res.Success {
		return res
	}

	slog.Info("tumblr source upload failed, retrying with base64", "blog", conn.AccountID, "error", res.Error)
	return a.createPhotoBase64(ctx, client, conn.AccountID, req)
}

func (a *TumblrAdapter) createPhotoBase64(ctx context.Context, client *http.Client, blog string, req *PublishRequest) Result {
	form := url.Values{}
	form.Set("type", "photo")
	form.Set("caption", req.Message)
	form.Set("state", "published")

	// A single image goes under the scalar data64 parameter; only multi-image
	// posts use the indexed array form.
	if len(req.Media) == 1 {
		form.Set("data64", base64.StdEncoding.EncodeToString(req.Media[0].Data))
	} else {
		for i, asset := range req.Media {
			form.Set(fmt.Sprintf("data64[%d]", i), base64.StdEncoding.EncodeToString(asset.Data))
		}
	}

	return a.createPost(ctx, client, blog, form)
}

func (a *TumblrAdapter) createPost(ctx context.Context, client *http.Client, blog string, form url.Values) Result {
	endpoint := fmt.Sprintf("%s/v2/blog/%s/post", a.BaseURL, blog)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error creating request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(httpReq)
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(ErrorKindTransport, fmt.Sprintf("error reading response: %v", err))
	}

	var envelope struct {
		Meta struct {
			Status int    `json:"status"`
			Msg    string `json:"msg"`
		} `json:"meta"`
		Response struct {
			ID       json.Number `json:"id"`
			IDString string      `json:"id_string"`
		} `json:"response"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return failure(ErrorKindUnknown, fmt.Sprintf("unknown error: %s", string(respBody)))
	}

	postID := envelope.Response.IDString
	if postID == "" {
		postID = envelope.Response.ID.String()
	}
	if resp.StatusCode == http.StatusCreated && postID != "" && postID != "0" {
		return success(postID)
	}

	msg := envelope.Meta.Msg
	if msg == "" {
		msg = fmt.Sprintf("unknown error: %s", string(respBody))
	}
	return failure(httpStatusKind(resp.StatusCode), fmt.Sprintf("%s (HTTP %d)", msg, resp.StatusCode))
}

func (a *TumblrAdapter) signedClient(ctx context.Context, conn *models.Connection) *http.Client {
	config := oauth1.NewConfig(conn.ConsumerKey, conn.ConsumerSecret)
	token := oauth1.NewToken(conn.OAuthToken, conn.OAuthTokenSecret)
	return config.Client(context.WithValue(ctx, oauth1.HTTPClient, a.Client), token)
}
