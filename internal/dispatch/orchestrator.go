package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/postdeck/postdeck/internal/media"
	"github.com/postdeck/postdeck/internal/models"
	"github.com/postdeck/postdeck/internal/platforms"
	"github.com/postdeck/postdeck/internal/repository"
	"github.com/postdeck/postdeck/pkg/utils"
)

// Orchestrator fans one post out to every pending platform attempt,
// records per-attempt outcomes and settles the post's aggregate status.
type Orchestrator struct {
	posts       repository.PostRepository
	connections repository.ConnectionRepository
	attempts    repository.AttemptRepository
	registry    *platforms.Registry
	stager      media.Stager
	secretKey   string
	concurrency int
}

func NewOrchestrator(
	posts repository.PostRepository,
	connections repository.ConnectionRepository,
	attempts repository.AttemptRepository,
	registry *platforms.Registry,
	stager media.Stager,
	secretKey string,
	concurrency int,
) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		posts:       posts,
		connections: connections,
		attempts:    attempts,
		registry:    registry,
		stager:      stager,
		secretKey:   secretKey,
		concurrency: concurrency,
	}
}

// Dispatch publishes a post to every platform that still has a pending
// attempt row and returns the post's final aggregate status. The post is
// marked failed only when every attempt failed; one success is enough to
// count the post as published. Terminal attempt rows from earlier runs are
// left untouched, so re-dispatching a half-finished post retries only what
// never went out.
func (o *Orchestrator) Dispatch(ctx context.Context, postID int64) (string, error) {
	post, err := o.posts.GetByID(ctx, postID)
	if err != nil {
		return "", err
	}
	if post == nil {
		return "", errors.New("post not found")
	}

	attempts, err := o.attempts.ListByPostID(ctx, postID)
	if err != nil {
		return "", err
	}
	if len(attempts) == 0 {
		return "", errors.New("no platforms selected for publishing")
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, o.concurrency)

	for _, attempt := range attempts {
		if attempt.Status != models.AttemptStatusPending {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(attempt *models.PostPlatform) {
			defer wg.Done()
			defer func() { <-semaphore }()
			o.runAttempt(ctx, post, attempt)
		}(attempt)
	}

	wg.Wait()

	return o.settle(ctx, postID)
}

func (o *Orchestrator) runAttempt(ctx context.Context, post *models.Post, attempt *models.PostPlatform) {
	res := o.publish(ctx, post, attempt)

	status := models.AttemptStatusFailed
	if res.Success {
		status = models.AttemptStatusPublished
	}

	var publishedAt *time.Time
	if res.Success {
		now := time.Now()
		publishedAt = &now
	}

	if err := o.attempts.Update(ctx, attempt.ID, status, res.PostID, res.Error, publishedAt); err != nil {
		slog.Error("failed to record attempt outcome", "post_id", post.ID, "platform", attempt.Platform, "error", err)
	}

	if !res.Success {
		slog.Info("publish attempt failed", "post_id", post.ID, "platform", attempt.Platform, "kind", res.Kind, "error", res.Error)
	}
}

func (o *Orchestrator) publish(ctx context.Context, post *models.Post, attempt *models.PostPlatform) platforms.Result {
	conn, err := o.connections.GetByID(ctx, attempt.ConnectionID)
	if err != nil {
		return platforms.Result{Kind: platforms.ErrorKindTransport, Error: err.Error()}
	}
	if conn == nil || !conn.IsActive() {
		return platforms.Result{Kind: platforms.ErrorKindConfig, Error: "connection inactive or not found"}
	}

	if err := o.decryptCredentials(conn); err != nil {
		return platforms.Result{Kind: platforms.ErrorKindConfig, Error: "failed to decrypt credentials"}
	}

	adapter, ok := o.registry.Get(attempt.Platform)
	if !ok {
		return platforms.Result{Kind: platforms.ErrorKindConfig, Error: "unsupported platform: " + attempt.Platform}
	}

	req := &platforms.PublishRequest{
		Message: post.Message,
		Link:    post.Link,
	}

	// Each attempt stages its own copy so one platform releasing the asset
	// cannot pull it out from under another still mid-upload.
	if post.HasMedia() {
		asset, err := o.stager.Stage(ctx, post.MediaData, post.MediaMIME, post.MediaFilename)
		if err != nil {
			return platforms.Result{Kind: platforms.ErrorKindTransport, Error: "failed to stage media: " + err.Error()}
		}
		defer func() {
			if err := o.stager.Release(ctx, asset); err != nil {
				slog.Info("failed to release staged media", "key", asset.Key, "error", err)
			}
		}()
		req.Media = []*media.StagedAsset{asset}
	}

	return platforms.Normalize(adapter.Publish(ctx, conn, req))
}

// decryptCredentials replaces the connection's encrypted credential fields
// with plaintext, in memory only. An empty secret key means credentials are
// stored unencrypted.
func (o *Orchestrator) decryptCredentials(conn *models.Connection) error {
	if o.secretKey == "" {
		return nil
	}

	key := []byte(o.secretKey)
	fields := []*string{
		&conn.AccessToken, &conn.RefreshToken,
		&conn.ConsumerKey, &conn.ConsumerSecret,
		&conn.OAuthToken, &conn.OAuthTokenSecret,
	}
	for _, field := range fields {
		if *field == "" {
			continue
		}
		plain, err := utils.Decrypt(*field, key)
		if err != nil {
			slog.Info(err.Error())
			return err
		}
		*field = plain
	}
	return nil
}

// settle derives the post's aggregate status from its attempt rows and
// persists it. published_at is stamped on failure too, marking when the
// dispatch concluded.
func (o *Orchestrator) settle(ctx context.Context, postID int64) (string, error) {
	attempts, err := o.attempts.ListByPostID(ctx, postID)
	if err != nil {
		return "", err
	}

	status := models.PostStatusFailed
	for _, a := range attempts {
		if a.Status == models.AttemptStatusPublished {
			status = models.PostStatusPublished
			break
		}
	}

	now := time.Now()
	if err := o.posts.UpdateStatus(ctx, postID, status, &now); err != nil {
		return "", err
	}
	return status, nil
}
