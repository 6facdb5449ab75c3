package models

import "time"

const (
	AttemptStatusPending   = "pending"
	AttemptStatusPublished = "published"
	AttemptStatusFailed    = "failed"
)

// PostPlatform records the outcome of dispatching one post to one
// connection. Exactly one row exists per selected platform per post; rows
// are created with status pending and mutated once to a terminal state.
// Deleting a post removes its rows in the same transaction.
type PostPlatform struct {
	ID             int64      `db:"id" json:"id"`
	PostID         int64      `db:"post_id" json:"post_id"`
	ConnectionID   int64      `db:"connection_id" json:"connection_id"`
	Platform       string     `db:"platform" json:"platform"`
	Status         string     `db:"status" json:"status"`
	PlatformPostID string     `db:"platform_post_id" json:"platform_post_id"`
	ErrorMessage   string     `db:"error_message" json:"error_message"`
	PublishedAt    *time.Time `db:"published_at" json:"published_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
