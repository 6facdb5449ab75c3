package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/postdeck/postdeck/internal/models"
	"github.com/postdeck/postdeck/internal/repository"
)

// Dispatcher publishes one post to its pending platforms and returns the
// post's final aggregate status.
type Dispatcher interface {
	Dispatch(ctx context.Context, postID int64) (string, error)
}

// Stats summarizes one runner sweep.
type Stats struct {
	Scanned   int `json:"scanned"`
	Due       int `json:"due"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Runner finds due scheduled posts and pushes them through the dispatcher.
// It is safe to run concurrently with itself and with the queue worker: the
// claim update lets exactly one caller take a post.
type Runner struct {
	posts      repository.PostRepository
	attempts   repository.AttemptRepository
	dispatcher Dispatcher
}

func NewRunner(posts repository.PostRepository, attempts repository.AttemptRepository, dispatcher Dispatcher) *Runner {
	return &Runner{posts: posts, attempts: attempts, dispatcher: dispatcher}
}

func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	now := time.Now()

	due, err := r.posts.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Scanned: len(due), Due: len(due)}

	for _, post := range due {
		claimed, err := r.posts.ClaimForPublishing(ctx, post.ID)
		if err != nil {
			slog.Info(err.Error())
			stats.Failed++
			continue
		}
		if !claimed {
			// Another runner or the queue worker got here first.
			stats.Skipped++
			continue
		}

		attempts, err := r.attempts.ListByPostID(ctx, post.ID)
		if err != nil {
			slog.Info(err.Error())
			stats.Failed++
			continue
		}
		if len(attempts) == 0 {
			// A scheduled post with no platform rows can never publish.
			slog.Info("scheduled post has no platform attempts", "post_id", post.ID)
			if err := r.posts.UpdateStatus(ctx, post.ID, models.PostStatusFailed, nil); err != nil {
				slog.Info(err.Error())
			}
			stats.Skipped++
			continue
		}

		status, err := r.dispatcher.Dispatch(ctx, post.ID)
		if err != nil {
			slog.Error("dispatch failed", "post_id", post.ID, "error", err)
			stats.Failed++
			continue
		}

		if status == models.PostStatusPublished {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}

	return stats, nil
}
