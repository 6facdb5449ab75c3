package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
	"github.com/postdeck/postdeck/internal/repository"
	"github.com/postdeck/postdeck/internal/scheduler"
)

// Worker consumes dispatch tasks. It shares the claim semantics with the
// scheduler sweep, so a post is published once no matter which path reaches
// it first.
type Worker struct {
	posts      repository.PostRepository
	dispatcher scheduler.Dispatcher
}

func NewWorker(posts repository.PostRepository, dispatcher scheduler.Dispatcher) *Worker {
	return &Worker{posts: posts, dispatcher: dispatcher}
}

func (w *Worker) HandleDispatchPostTask(ctx context.Context, task *asynq.Task) error {
	var payload DispatchPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	claimed, err := w.posts.ClaimForPublishing(ctx, payload.PostID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Printf("Post %d already claimed, skipping", payload.PostID)
		return nil
	}

	if _, err := w.dispatcher.Dispatch(ctx, payload.PostID); err != nil {
		return err
	}
	return nil
}
