package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"

	"github.com/postdeck/postdeck/internal/models"
	"github.com/postdeck/postdeck/internal/repository"
	"github.com/postdeck/postdeck/pkg/utils"
)

// TokenRefreshJob renews OAuth2 access tokens that are about to expire.
// Today only LinkedIn issues refresh tokens here; the other platforms use
// long-lived tokens or OAuth1 credentials that never expire.
type TokenRefreshJob struct {
	connections repository.ConnectionRepository
	oauthConfig *oauth2.Config
	secretKey   string
}

func NewTokenRefreshJob(connections repository.ConnectionRepository, clientID, clientSecret, secretKey string) *TokenRefreshJob {
	return &TokenRefreshJob{
		connections: connections,
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     linkedin.Endpoint,
		},
		secretKey: secretKey,
	}
}

func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	connections, err := j.connections.ListExpiring(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, conn := range connections {
		if conn.Platform != models.PlatformLinkedIn {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(conn *models.Connection) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := j.refresh(ctx, conn); err != nil {
				slog.Info("Unable to refresh tokens for LinkedIn", "connection_id", conn.ID, "error", err)
			}
		}(conn)
	}

	wg.Wait()
}

func (j *TokenRefreshJob) refresh(ctx context.Context, conn *models.Connection) error {
	refreshToken, err := j.reveal(conn.RefreshToken)
	if err != nil {
		return err
	}

	source := j.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return err
	}

	accessToken, err := j.conceal(token.AccessToken)
	if err != nil {
		return err
	}

	newRefresh := token.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}
	newRefresh, err = j.conceal(newRefresh)
	if err != nil {
		return err
	}

	return j.connections.SetToken(ctx, conn.ID, accessToken, newRefresh, token.Expiry)
}

func (j *TokenRefreshJob) reveal(value string) (string, error) {
	if j.secretKey == "" || value == "" {
		return value, nil
	}
	return utils.Decrypt(value, []byte(j.secretKey))
}

func (j *TokenRefreshJob) conceal(value string) (string, error) {
	if j.secretKey == "" || value == "" {
		return value, nil
	}
	return utils.Encrypt([]byte(value), []byte(j.secretKey))
}
