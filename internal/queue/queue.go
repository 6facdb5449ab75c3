package queue

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypeDispatchPost = "dispatch:post"

type DispatchPostPayload struct {
	PostID int64 `json:"post_id"`
}

// EnqueuePost schedules a dispatch task to run after delay. A zero delay
// makes the task runnable immediately.
func EnqueuePost(asynqClient *asynq.Client, payload DispatchPostPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeDispatchPost, taskPayload)

	_, err = asynqClient.Enqueue(task, asynq.ProcessIn(delay))
	if err != nil {
		return err
	}

	log.Printf("Dispatch task scheduled: %+v", payload)
	return nil
}
