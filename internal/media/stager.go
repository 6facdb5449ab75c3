package media

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	gonanoid "github.com/matoous/go-nanoid/v2"

	cfg "github.com/postdeck/postdeck/configs"
)

// StagedAsset is a transient, externally addressable copy of a post's media.
// URL is publicly fetchable for the duration of one dispatch attempt; the
// raw bytes are retained so base64 upload paths need no second fetch.
type StagedAsset struct {
	Key      string
	URL      string
	Data     []byte
	MIME     string
	Filename string
}

func (a *StagedAsset) IsVideo() bool {
	return strings.HasPrefix(a.MIME, "video")
}

// Stager materializes in-memory media to a transient location and guarantees
// cleanup. Release must be invoked after every dispatch attempt that staged
// media, on success and failure paths alike.
type Stager interface {
	Stage(ctx context.Context, data []byte, mimeType, filename string) (*StagedAsset, error)
	Release(ctx context.Context, asset *StagedAsset) error
}

// R2Stager stages assets in a Cloudflare R2 bucket exposed through a public
// base URL.
type R2Stager struct {
	config cfg.Config
	client *s3.Client
}

func NewR2Stager(c cfg.Config) *R2Stager {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.R2.AccessKey, c.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		log.Fatal(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2.AccountID))
	})

	return &R2Stager{config: c, client: client}
}

func (r *R2Stager) Stage(ctx context.Context, data []byte, mimeType, filename string) (*StagedAsset, error) {
	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	key := StagingKey(id, time.Now(), filename)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	}

	if _, err := r.client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to stage media: %w", err)
	}

	return &StagedAsset{
		Key:      key,
		URL:      fmt.Sprintf("%s/%s", strings.TrimSuffix(r.config.R2.PublicBaseURL, "/"), key),
		Data:     data,
		MIME:     mimeType,
		Filename: filename,
	}, nil
}

func (r *R2Stager) Release(ctx context.Context, asset *StagedAsset) error {
	if asset == nil {
		return nil
	}

	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.config.R2.BucketName),
		Key:    aws.String(asset.Key),
	})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// StagingKey derives the stable object name for a staged asset from a unique
// token plus timestamp, keeping the original file extension so platforms that
// sniff by extension still work.
func StagingKey(token string, now time.Time, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("staging/%s_%d%s", token, now.Unix(), ext)
}
