package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postdeck/postdeck/internal/media"
	"github.com/postdeck/postdeck/internal/models"
)

func newLinkedInAdapter(baseURL string) *LinkedInAdapter {
	a := NewLinkedInAdapter(http.DefaultClient)
	a.BaseURL = baseURL
	return a
}

func TestLinkedInValidation(t *testing.T) {
	a := newLinkedInAdapter("http://unused")

	res := a.Publish(context.Background(), &models.Connection{AccountID: "urn:li:person:1"}, &PublishRequest{Message: "hi"})
	require.False(t, res.Success)
	assert.Equal(t, ErrorKindConfig, res.Kind)

	res = a.Publish(context.Background(), &models.Connection{AccessToken: "tok", AccountID: "person1"}, &PublishRequest{Message: "hi"})
	require.False(t, res.Success)
	assert.Equal(t, ErrorKindConfig, res.Kind)
	assert.Contains(t, res.Error, "URN")
}

func TestLinkedInShare(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/ugcPosts", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "urn:li:person:1", payload["author"])
		assert.Equal(t, "PUBLISHED", payload["lifecycleState"])

		content := payload["specificContent"].(map[string]interface{})["com.linkedin.ugc.ShareContent"].(map[string]interface{})
		assert.Equal(t, "NONE", content["shareMediaCategory"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"urn:li:share:42"}`))
	}))
	defer server.Close()

	a := newLinkedInAdapter(server.URL)
	conn := &models.Connection{AccessToken: "tok", AccountID: "urn:li:person:1"}

	res := a.Publish(context.Background(), conn, &PublishRequest{Message: "hello network"})
	require.True(t, res.Success)
	assert.Equal(t, "urn:li:share:42", res.PostID)
}

func TestLinkedInShareWithMediaURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		content := payload["specificContent"].(map[string]interface{})["com.linkedin.ugc.ShareContent"].(map[string]interface{})
		assert.Equal(t, "ARTICLE", content["shareMediaCategory"])

		mediaList := content["media"].([]interface{})
		require.Len(t, mediaList, 1)
		assert.Equal(t, "https://cdn.example/pic.jpg", mediaList[0].(map[string]interface{})["originalUrl"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"urn:li:share:43"}`))
	}))
	defer server.Close()

	a := newLinkedInAdapter(server.URL)
	conn := &models.Connection{AccessToken: "tok", AccountID: "urn:li:person:1"}
	req := &PublishRequest{
		Message: "with pic",
		Media:   []*media.StagedAsset{{URL: "https://cdn.example/pic.jpg", MIME: "image/jpeg"}},
	}

	res := a.Publish(context.Background(), conn, req)
	require.True(t, res.Success)
}

func TestLinkedInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Expired access token","serviceErrorCode":65601}`))
	}))
	defer server.Close()

	a := newLinkedInAdapter(server.URL)
	conn := &models.Connection{AccessToken: "old", AccountID: "urn:li:person:1"}

	res := a.Publish(context.Background(), conn, &PublishRequest{Message: "hi"})
	require.False(t, res.Success)
	assert.Equal(t, ErrorKindAuth, res.Kind)
	assert.Contains(t, res.Error, "Expired access token")
}
