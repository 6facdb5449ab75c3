package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postdeck/postdeck/internal/media"
	"github.com/postdeck/postdeck/internal/models"
)

func newXAdapter(apiURL, uploadURL string) *XAdapter {
	a := NewXAdapter(http.DefaultClient, time.Millisecond, 3)
	a.APIBaseURL = apiURL
	a.UploadBaseURL = uploadURL
	return a
}

func xConn() *models.Connection {
	return &models.Connection{
		ConsumerKey:      "ck",
		ConsumerSecret:   "cs",
		OAuthToken:       "ot",
		OAuthTokenSecret: "os",
	}
}

func TestXMissingCredential(t *testing.T) {
	a := newXAdapter("http://unused", "http://unused")

	conn := xConn()
	conn.ConsumerKey = ""

	res := a.Publish(context.Background(), conn, &PublishRequest{Message: "hi"})
	require.False(t, res.Success)
	assert.Equal(t, ErrorKindConfig, res.Kind)
	assert.Equal(t, "missing required credential: api_key", res.Error)
}

func TestXTextTweet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/tweets", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Authorization"), "requests must be OAuth1 signed")

		var payload struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "hello world", payload.Text)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1234567890"}}`))
	}))
	defer server.Close()

	a := newXAdapter(server.URL, server.URL)

	res := a.Publish(context.Background(), xConn(), &PublishRequest{Message: "hello world"})
	require.True(t, res.Success)
	assert.Equal(t, "1234567890", res.PostID)
}

func TestXTruncatesLongMessages(t *testing.T) {
	long := strings.Repeat("я", 300)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, 280, len([]rune(payload.Text)))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1"}}`))
	}))
	defer server.Close()

	a := newXAdapter(server.URL, server.URL)

	res := a.Publish(context.Background(), xConn(), &PublishRequest{Message: long})
	require.True(t, res.Success)
}

func TestXMediaCapAtFour(t *testing.T) {
	var uploads int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1.1/media/upload.json":
			n := atomic.AddInt32(&uploads, 1)
			w.Write([]byte(fmt.Sprintf(`{"media_id_string":"m%d"}`, n)))
		case "/2/tweets":
			var payload struct {
				Media struct {
					MediaIDs []string `json:"media_ids"`
				} `json:"media"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Len(t, payload.Media.MediaIDs, 4)

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"55"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	a := newXAdapter(server.URL, server.URL)

	var assets []*media.StagedAsset
	for i := 0; i < 6; i++ {
		assets = append(assets, &media.StagedAsset{
			Data:     []byte("img"),
			MIME:     "image/jpeg",
			Filename: fmt.Sprintf("pic%d.jpg", i),
		})
	}

	res := a.Publish(context.Background(), xConn(), &PublishRequest{Message: "pics", Media: assets})
	require.True(t, res.Success)
	assert.EqualValues(t, 4, atomic.LoadInt32(&uploads), "only four assets should be uploaded")
}

func TestXMediaTooLarge(t *testing.T) {
	a := newXAdapter("http://unused", "http://unused")

	req := &PublishRequest{
		Message: "big",
		Media:   []*media.StagedAsset{{Data: make([]byte, xMaxImageBytes+1), MIME: "image/jpeg"}},
	}

	res := a.Publish(context.Background(), xConn(), req)
	require.False(t, res.Success)
	assert.Equal(t, ErrorKindPayload, res.Kind)
	assert.Contains(t, res.Error, "file too large")
}

func TestXErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"title":"Forbidden","detail":"You are not permitted to perform this action"}`))
	}))
	defer server.Close()

	a := newXAdapter(server.URL, server.URL)

	res := a.Publish(context.Background(), xConn(), &PublishRequest{Message: "hi"})
	require.False(t, res.Success)
	assert.Equal(t, ErrorKindPermission, res.Kind)
	assert.Equal(t, "Forbidden: You are not permitted to perform this action", res.Error)
}

func TestXErrorStatusTableFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	a := newXAdapter(server.URL, server.URL)

	res := a.Publish(context.Background(), xConn(), &PublishRequest{Message: "hi"})
	require.False(t, res.Success)
	assert.Equal(t, ErrorKindRateLimit, res.Kind)
	assert.Equal(t, "Rate Limit Exceeded - Too many requests", res.Error)
}

func TestXChunkedUploadWithProcessing(t *testing.T) {
	var appends, statusPolls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/2/tweets" {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"77"}}`))
			return
		}

		if r.Method == http.MethodGet {
			if atomic.AddInt32(&statusPolls, 1) < 2 {
				w.Write([]byte(`{"media_id_string":"m1","processing_info":{"state":"in_progress","check_after_secs":1}}`))
			} else {
				w.Write([]byte(`{"media_id_string":"m1","processing_info":{"state":"succeeded"}}`))
			}
			return
		}

		r.ParseMultipartForm(32 << 20)
		command := r.FormValue("command")
		if command == "" {
			r.ParseForm()
			command = r.PostFormValue("command")
		}
		switch command {
		case "INIT":
			w.Write([]byte(`{"media_id_string":"m1"}`))
		case "APPEND":
			atomic.AddInt32(&appends, 1)
			w.WriteHeader(http.StatusNoContent)
		case "FINALIZE":
			w.Write([]byte(`{"media_id_string":"m1","processing_info":{"state":"pending","check_after_secs":1}}`))
		default:
			t.Errorf("unexpected command %q", command)
		}
	}))
	defer server.Close()

	a := newXAdapter(server.URL, server.URL)

	req := &PublishRequest{
		Message: "vid",
		Media:   []*media.StagedAsset{{Data: make([]byte, xSimpleUploadLimit+500), MIME: "video/mp4", Filename: "clip.mp4"}},
	}

	res := a.Publish(context.Background(), xConn(), req)
	require.True(t, res.Success)
	assert.Equal(t, "77", res.PostID)
	assert.EqualValues(t, 6, atomic.LoadInt32(&appends), "5.0005MB should append in six 1MB segments")
	assert.EqualValues(t, 2, atomic.LoadInt32(&statusPolls))
}

// newProcessingServer drives a chunked upload whose STATUS poll always
// answers with the given processing state. No tweet is ever created.
func newProcessingServer(t *testing.T, state string, statusPolls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/2/tweets" {
			t.Error("tweet must not be created when media processing does not finish")
			return
		}

		if r.Method == http.MethodGet {
			atomic.AddInt32(statusPolls, 1)
			w.Write([]byte(fmt.Sprintf(`{"media_id_string":"m1","processing_info":{"state":%q,"check_after_secs":1}}`, state)))
			return
		}

		r.ParseMultipartForm(32 << 20)
		command := r.FormValue("command")
		if command == "" {
			r.ParseForm()
			command = r.PostFormValue("command")
		}
		switch command {
		case "INIT":
			w.Write([]byte(`{"media_id_string":"m1"}`))
		case "APPEND":
			w.WriteHeader(http.StatusNoContent)
		case "FINALIZE":
			w.Write([]byte(`{"media_id_string":"m1","processing_info":{"state":"pending","check_after_secs":1}}`))
		default:
			t.Errorf("unexpected command %q", command)
		}
	}))
}

func TestXProcessingFailed(t *testing.T) {
	var statusPolls int32
	server := newProcessingServer(t, "failed", &statusPolls)
	defer server.Close()

	a := newXAdapter(server.URL, server.URL)

	req := &PublishRequest{
		Message: "vid",
		Media:   []*media.StagedAsset{{Data: make([]byte, xSimpleUploadLimit+500), MIME: "video/mp4", Filename: "clip.mp4"}},
	}

	res := a.Publish(context.Background(), xConn(), req)
	require.False(t, res.Success)
	assert.Equal(t, ErrorKindProcessing, res.Kind)
	assert.Equal(t, "media processing failed", res.Error)
	assert.EqualValues(t, 1, atomic.LoadInt32(&statusPolls), "a failed state must stop the poll immediately")
}

func TestXProcessingTimeout(t *testing.T) {
	var statusPolls int32
	server := newProcessingServer(t, "in_progress", &statusPolls)
	defer server.Close()

	a := newXAdapter(server.URL, server.URL)

	req := &PublishRequest{
		Message: "vid",
		Media:   []*media.StagedAsset{{Data: make([]byte, xSimpleUploadLimit+500), MIME: "video/mp4", Filename: "clip.mp4"}},
	}

	res := a.Publish(context.Background(), xConn(), req)
	require.False(t, res.Success)
	assert.Equal(t, ErrorKindProcessing, res.Kind)
	assert.Equal(t, "media processing timeout", res.Error)
	assert.EqualValues(t, a.PollMaxAttempts, atomic.LoadInt32(&statusPolls), "the poll budget is bounded")
}
