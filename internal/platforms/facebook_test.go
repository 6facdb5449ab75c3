package platforms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postdeck/postdeck/internal/media"
	"github.com/postdeck/postdeck/internal/models"
)

func newFacebookAdapter(baseURL string) *FacebookAdapter {
	a := NewFacebookAdapter(http.DefaultClient)
	a.BaseURL = baseURL
	return a
}

func TestFacebookMissingCredentials(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	a := newFacebookAdapter(server.URL)

	res := a.Publish(context.Background(), &models.Connection{AccountID: "page1"}, &PublishRequest{Message: "hi"})
	assert.False(t, res.Success)
	assert.Equal(t, ErrorKindConfig, res.Kind)

	res = a.Publish(context.Background(), &models.Connection{AccessToken: "tok"}, &PublishRequest{Message: "hi"})
	assert.False(t, res.Success)
	assert.Equal(t, ErrorKindConfig, res.Kind)

	assert.Zero(t, calls, "config errors must not reach the network")
}

func TestFacebookTextPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/page1/feed", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Launch day!", r.PostFormValue("message"))
		assert.Equal(t, "tok", r.PostFormValue("access_token"))
		assert.Equal(t, "https://example.com", r.PostFormValue("link"))
		w.Write([]byte(`{"id":"page1_777"}`))
	}))
	defer server.Close()

	a := newFacebookAdapter(server.URL)
	conn := &models.Connection{AccessToken: "tok", AccountID: "page1"}

	res := a.Publish(context.Background(), conn, &PublishRequest{Message: "Launch day!", Link: "https://example.com"})
	require.True(t, res.Success)
	assert.Equal(t, "page1_777", res.PostID)
}

func TestFacebookPhotoPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/page1/photos", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "pic post", r.FormValue("message"))

		file, header, err := r.FormFile("source")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "cat.jpg", header.Filename)

		w.Write([]byte(`{"id":"photo_42"}`))
	}))
	defer server.Close()

	a := newFacebookAdapter(server.URL)
	conn := &models.Connection{AccessToken: "tok", AccountID: "page1"}
	req := &PublishRequest{
		Message: "pic post",
		Media:   []*media.StagedAsset{{Data: []byte("jpegbytes"), MIME: "image/jpeg", Filename: "cat.jpg"}},
	}

	res := a.Publish(context.Background(), conn, req)
	require.True(t, res.Success)
	assert.Equal(t, "photo_42", res.PostID)
}

func TestFacebookGraphError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Error validating access token","type":"OAuthException","code":190}}`))
	}))
	defer server.Close()

	a := newFacebookAdapter(server.URL)
	conn := &models.Connection{AccessToken: "expired", AccountID: "page1"}

	res := a.Publish(context.Background(), conn, &PublishRequest{Message: "hi"})
	require.False(t, res.Success)
	assert.Equal(t, ErrorKindAuth, res.Kind)
	assert.Contains(t, res.Error, "(#190) Error validating access token")
	assert.Contains(t, res.Error, "Generate new token")
}
