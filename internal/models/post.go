package models

import "time"

const (
	PostStatusDraft      = "draft"
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
)

const (
	MediaKindNone  = "none"
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

// Post is one logical message. Status moves monotonically along
// draft/scheduled -> publishing -> published|failed; once publishing has
// started a post never reverts.
type Post struct {
	ID            int64      `db:"id" json:"id"`
	ClientID      int64      `db:"client_id" json:"client_id"`
	Message       string     `db:"message" json:"message"`
	Link          string     `db:"link" json:"link"`
	MediaData     []byte     `db:"media_data" json:"-"`
	MediaMIME     string     `db:"media_mime" json:"media_mime"`
	MediaFilename string     `db:"media_filename" json:"media_filename"`
	MediaKind     string     `db:"media_kind" json:"media_kind"`
	IsScheduled   bool       `db:"is_scheduled" json:"is_scheduled"`
	ScheduledAt   *time.Time `db:"scheduled_at" json:"scheduled_at"`
	Status        string     `db:"status" json:"status"`
	PublishedAt   *time.Time `db:"published_at" json:"published_at"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Post) HasMedia() bool {
	return p.MediaKind != "" && p.MediaKind != MediaKindNone && len(p.MediaData) > 0
}
