package platforms

import (
	"context"

	"github.com/postdeck/postdeck/internal/media"
	"github.com/postdeck/postdeck/internal/models"
)

// ErrorKind classifies why a publish attempt failed, so operators can tell a
// rejected payload from an expired token from a platform that never finished
// processing.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindConfig     ErrorKind = "config"     // missing/malformed credentials, detected locally
	ErrorKindTransport  ErrorKind = "transport"  // connection, timeout, DNS
	ErrorKindAuth       ErrorKind = "auth"       // expired or invalid token
	ErrorKindPermission ErrorKind = "permission" // insufficient scope
	ErrorKindRateLimit  ErrorKind = "rate_limit"
	ErrorKindPayload    ErrorKind = "payload"    // bad format or size
	ErrorKindProcessing ErrorKind = "processing" // async step reported error or timed out
	ErrorKindUnknown    ErrorKind = "unknown"
)

// Result is the normalized outcome of one adapter invocation. Success is the
// only field trusted for branching; everything else is detail.
type Result struct {
	Success bool
	PostID  string
	Kind    ErrorKind
	Error   string
}

// PublishRequest carries one logical post into an adapter. Media is empty
// when the post has none; adapters that require media reject locally.
type PublishRequest struct {
	Message string
	Link    string
	Media   []*media.StagedAsset
}

// Adapter publishes one post to one platform. Implementations never retry
// transport failures and never block past their configured timeout and poll
// budget.
type Adapter interface {
	Platform() string
	Publish(ctx context.Context, conn *models.Connection, req *PublishRequest) Result
}

// Registry maps platform tags to adapters. New platforms are added by
// registering an implementation, not by editing the dispatch path.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	r.adapters[a.Platform()] = a
}

func (r *Registry) Get(platform string) (Adapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}

func success(postID string) Result {
	return Result{Success: true, PostID: postID}
}

func failure(kind ErrorKind, msg string) Result {
	return Result{Success: false, Kind: kind, Error: msg}
}
