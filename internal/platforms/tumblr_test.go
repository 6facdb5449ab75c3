package platforms

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postdeck/postdeck/internal/media"
	"github.com/postdeck/postdeck/internal/models"
)

func newTumblrAdapter(baseURL string) *TumblrAdapter {
	a := NewTumblrAdapter(http.DefaultClient)
	a.BaseURL = baseURL
	return a
}

func tumblrConn() *models.Connection {
	return &models.Connection{
		AccountID:        "myblog.tumblr.com",
		ConsumerKey:      "ck",
		ConsumerSecret:   "cs",
		OAuthToken:       "ot",
		OAuthTokenSecret: "os",
	}
}

func TestTumblrValidation(t *testing.T) {
	a := newTumblrAdapter("http://unused")

	conn := tumblrConn()
	conn.OAuthTokenSecret = ""
	res := a.Publish(context.Background(), conn, &PublishRequest{Message: "hi"})
	require.False(t, res.Success)
	assert.Equal(t, ErrorKindConfig, res.Kind)
	assert.Equal(t, "missing required credential: oauth_token_secret", res.Error)

	conn = tumblrConn()
	conn.AccountID = "myblog"
	res = a.Publish(context.Background(), conn, &PublishRequest{Message: "hi"})
	require.False(t, res.Success)
	assert.Equal(t, ErrorKindConfig, res.Kind)
	assert.Contains(t, res.Error, "blogname.tumblr.com")
}

func TestTumblrTextPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/blog/myblog.tumblr.com/post", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "text", r.PostFormValue("type"))
		assert.Equal(t, "hello tumblr", r.PostFormValue("body"))
		assert.Equal(t, "published", r.PostFormValue("state"))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"meta":{"status":201,"msg":"Created"},"response":{"id":123456,"id_string":"123456"}}`))
	}))
	defer server.Close()

	a := newTumblrAdapter(server.URL)

	res := a.Publish(context.Background(), tumblrConn(), &PublishRequest{Message: "hello tumblr"})
	require.True(t, res.Success)
	assert.Equal(t, "123456", res.PostID)
}

func TestTumblrPhotoBase64Fallback(t *testing.T) {
	data := []byte("rawjpegbytes")
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		switch atomic.AddInt32(&calls, 1) {
		case 1:
			assert.Equal(t, "https://cdn.example/pic.jpg", r.PostFormValue("source"))
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"meta":{"status":400,"msg":"Bad Request"},"response":{}}`))
		case 2:
			assert.Empty(t, r.PostFormValue("source"))
			assert.Equal(t, base64.StdEncoding.EncodeToString(data), r.PostFormValue("data64"))
			assert.Empty(t, r.PostFormValue("data64[0]"), "single image uses the scalar parameter")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"meta":{"status":201,"msg":"Created"},"response":{"id_string":"999"}}`))
		default:
			t.Error("too many calls")
		}
	}))
	defer server.Close()

	a := newTumblrAdapter(server.URL)
	req := &PublishRequest{
		Message: "photo",
		Media:   []*media.StagedAsset{{URL: "https://cdn.example/pic.jpg", Data: data, MIME: "image/jpeg"}},
	}

	res := a.Publish(context.Background(), tumblrConn(), req)
	require.True(t, res.Success)
	assert.Equal(t, "999", res.PostID)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "failed source upload must retry with base64")
}

func TestTumblrError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"meta":{"status":401,"msg":"Not Authorized"},"response":{}}`))
	}))
	defer server.Close()

	a := newTumblrAdapter(server.URL)

	res := a.Publish(context.Background(), tumblrConn(), &PublishRequest{Message: "hi"})
	require.False(t, res.Success)
	assert.Equal(t, ErrorKindAuth, res.Kind)
	assert.Contains(t, res.Error, "Not Authorized")
	assert.Contains(t, res.Error, "HTTP 401")
}
