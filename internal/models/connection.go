package models

import (
	"time"
)

const (
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformX         = "x"
	PlatformLinkedIn  = "linkedin"
	PlatformTumblr    = "tumblr"
	PlatformPinterest = "pinterest"
)

// Platforms lists every platform tag a connection may carry.
var Platforms = []string{
	PlatformFacebook,
	PlatformInstagram,
	PlatformX,
	PlatformLinkedIn,
	PlatformTumblr,
	PlatformPinterest,
}

func IsValidPlatform(platform string) bool {
	for _, p := range Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

// Connection is one authorized account on one platform. AccountID holds the
// platform-specific identifier: page ID (facebook), business account ID
// (instagram), username (x), person/organization URN (linkedin), blog
// hostname (tumblr) or board ID (pinterest). Which credential fields must be
// populated depends on the platform; adapters validate before any network
// call. Credentials are stored AES-GCM encrypted.
type Connection struct {
	ID               int64     `db:"id" json:"id"`
	ClientID         int64     `db:"client_id" json:"client_id"`
	Platform         string    `db:"platform" json:"platform"`
	AccountID        string    `db:"account_id" json:"account_id"`
	AccountName      string    `db:"account_name" json:"account_name"`
	AccessToken      string    `db:"access_token" json:"-"`
	RefreshToken     string    `db:"refresh_token" json:"-"`
	ConsumerKey      string    `db:"consumer_key" json:"-"`
	ConsumerSecret   string    `db:"consumer_secret" json:"-"`
	OAuthToken       string    `db:"oauth_token" json:"-"`
	OAuthTokenSecret string    `db:"oauth_token_secret" json:"-"`
	TokenExpiresAt   time.Time `db:"token_expires_at" json:"token_expires_at"`
	Status           int       `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

func (c *Connection) IsActive() bool {
	return c.Status == 1
}
