package transfer

import "github.com/postdeck/postdeck/internal/models"

// PostCreation carries the multipart form fields of a create-post request.
// Targets is a JSON array of connection IDs. An empty ScheduledTime means
// the post publishes immediately.
type PostCreation struct {
	Message       string
	Link          string
	ScheduledTime string
	Targets       string
}

// PlatformOutcome is one platform's result in an immediate publish
// response.
type PlatformOutcome struct {
	Platform       string `json:"platform"`
	Status         string `json:"status"`
	PlatformPostID string `json:"platform_post_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// PostCreated is the create-post response. Outcomes is populated only on
// the immediate path; scheduled posts report their queue delay instead.
type PostCreated struct {
	PostID   int64             `json:"post_id"`
	Status   string            `json:"status"`
	Outcomes []PlatformOutcome `json:"outcomes,omitempty"`
}

// PostDetail is a post together with its per-platform attempt rows.
type PostDetail struct {
	Post     *models.Post           `json:"post"`
	Attempts []*models.PostPlatform `json:"attempts"`
}
