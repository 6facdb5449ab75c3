package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/hibiken/asynq"

	"github.com/postdeck/postdeck/internal/models"
	"github.com/postdeck/postdeck/internal/queue"
	"github.com/postdeck/postdeck/internal/repository"
	"github.com/postdeck/postdeck/internal/scheduler"
	"github.com/postdeck/postdeck/internal/transfer"
)

type PostService interface {
	CreatePost(ctx context.Context, clientID int64, pc *transfer.PostCreation, file *multipart.FileHeader) (*transfer.PostCreated, error)
	List(ctx context.Context, clientID int64) ([]*transfer.PostDetail, error)
	PostInfo(ctx context.Context, postID, clientID int64) (*transfer.PostDetail, error)
	Remove(ctx context.Context, clientID, postID int64) error
}

type postService struct {
	db          *sql.DB
	pr          repository.PostRepository
	cr          repository.ConnectionRepository
	ar          repository.AttemptRepository
	dispatcher  scheduler.Dispatcher
	asynqClient *asynq.Client
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	cr repository.ConnectionRepository,
	ar repository.AttemptRepository,
	dispatcher scheduler.Dispatcher,
	asynqClient *asynq.Client) PostService {
	return &postService{
		db:          db,
		pr:          pr,
		cr:          cr,
		ar:          ar,
		dispatcher:  dispatcher,
		asynqClient: asynqClient,
	}
}

// mediaKinds maps sniffed file extensions to the stored media kind.
var mediaKinds = map[string]string{
	"jpeg": models.MediaKindImage,
	"jpg":  models.MediaKindImage,
	"png":  models.MediaKindImage,
	"mp4":  models.MediaKindVideo,
	"mov":  models.MediaKindVideo,
}

// CreatePost validates the request, writes the post together with one
// pending attempt row per target connection, then routes it: scheduled
// posts go to the delayed queue, immediate posts are dispatched in-request
// and the per-platform outcomes returned.
func (s *postService) CreatePost(ctx context.Context, clientID int64, pc *transfer.PostCreation, file *multipart.FileHeader) (*transfer.PostCreated, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return nil, err
	}
	if pc.Message == "" {
		err := errors.New("message cannot be empty")
		slog.Info(err.Error())
		return nil, err
	}

	var targets []int
	if err := json.Unmarshal([]byte(pc.Targets), &targets); err != nil {
		err = fmt.Errorf("invalid targets format: %w", err)
		slog.Error(err.Error())
		return nil, err
	}
	if len(targets) == 0 {
		err := errors.New("no platforms selected")
		slog.Error(err.Error())
		return nil, err
	}

	var scheduledAt *time.Time
	if pc.ScheduledTime != "" {
		parsed, err := time.Parse("2006-01-02T15:04", pc.ScheduledTime)
		if err != nil {
			err = fmt.Errorf("invalid scheduled time format: %w", err)
			slog.Error(err.Error())
			return nil, err
		}
		scheduledAt = &parsed
	}

	post := models.Post{
		ClientID:    clientID,
		Message:     pc.Message,
		Link:        pc.Link,
		MediaKind:   models.MediaKindNone,
		IsScheduled: scheduledAt != nil,
		ScheduledAt: scheduledAt,
		Status:      models.PostStatusScheduled,
	}
	if scheduledAt == nil {
		post.Status = models.PostStatusPublishing
	}

	if file != nil {
		if err := s.attachMedia(&post, file); err != nil {
			return nil, err
		}
	}

	connections, err := s.resolveTargets(ctx, clientID, targets)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	postID, err := s.pr.Create(ctx, tx, &post)
	if err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}

	for _, conn := range connections {
		attempt := models.PostPlatform{
			PostID:       postID,
			ConnectionID: conn.ID,
			Platform:     conn.Platform,
			Status:       models.AttemptStatusPending,
		}
		if _, err = s.ar.Create(ctx, tx, &attempt); err != nil {
			return nil, fmt.Errorf("error saving platform attempt: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if scheduledAt != nil {
		delay := time.Until(*scheduledAt)
		if delay < 0 {
			delay = 0
		}
		if err := queue.EnqueuePost(s.asynqClient, queue.DispatchPostPayload{PostID: postID}, delay); err != nil {
			slog.Error("failed to enqueue post", "post_id", postID, "error", err)
			return nil, fmt.Errorf("error scheduling post: %w", err)
		}
		return &transfer.PostCreated{PostID: postID, Status: models.PostStatusScheduled}, nil
	}

	return s.dispatchNow(ctx, postID)
}

func (s *postService) attachMedia(post *models.Post, file *multipart.FileHeader) error {
	fileContent, err := file.Open()
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer fileContent.Close()

	fileBytes, err := io.ReadAll(fileContent)
	if err != nil {
		return fmt.Errorf("error reading file content: %w", err)
	}

	fileType, err := filetype.Match(fileBytes)
	if err != nil || fileType == types.Unknown {
		return errors.New("unsupported file type")
	}
	kind, ok := mediaKinds[fileType.Extension]
	if !ok {
		return fmt.Errorf("file type %s is not allowed", fileType.Extension)
	}

	post.MediaData = fileBytes
	post.MediaMIME = fileType.MIME.Value
	post.MediaFilename = file.Filename
	post.MediaKind = kind
	return nil
}

func (s *postService) resolveTargets(ctx context.Context, clientID int64, targets []int) ([]*models.Connection, error) {
	connections := make([]*models.Connection, 0, len(targets))
	for _, id := range targets {
		conn, err := s.cr.GetByID(ctx, int64(id))
		if err != nil {
			return nil, fmt.Errorf("error checking connection %d: %w", id, err)
		}
		if conn == nil || conn.ClientID != clientID {
			return nil, fmt.Errorf("connection %d does not exist", id)
		}
		if !models.IsValidPlatform(conn.Platform) {
			return nil, fmt.Errorf("unsupported platform: %s", conn.Platform)
		}
		connections = append(connections, conn)
	}
	return connections, nil
}

func (s *postService) dispatchNow(ctx context.Context, postID int64) (*transfer.PostCreated, error) {
	status, err := s.dispatcher.Dispatch(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error publishing post: %w", err)
	}

	attempts, err := s.ar.ListByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}

	created := &transfer.PostCreated{PostID: postID, Status: status}
	for _, a := range attempts {
		created.Outcomes = append(created.Outcomes, transfer.PlatformOutcome{
			Platform:       a.Platform,
			Status:         a.Status,
			PlatformPostID: a.PlatformPostID,
			Error:          a.ErrorMessage,
		})
	}
	return created, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, clientID int64) (*transfer.PostDetail, error) {
	var err error

	if clientID == 0 {
		err = errors.New("client is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	if postID == 0 {
		err = errors.New("post id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	isValid, err := s.pr.CheckByClientID(ctx, postID, clientID)
	if err != nil {
		return nil, err
	}

	if !isValid {
		err = errors.New("Post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("Error getting post info")
	}

	attempts, err := s.ar.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("Error getting post attempts")
	}

	return &transfer.PostDetail{Post: post, Attempts: attempts}, nil
}

func (s *postService) List(ctx context.Context, clientID int64) ([]*transfer.PostDetail, error) {
	posts, err := s.pr.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("Error getting posts")
	}

	details := make([]*transfer.PostDetail, 0, len(posts))
	for _, post := range posts {
		attempts, err := s.ar.ListByPostID(ctx, post.ID)
		if err != nil {
			return nil, fmt.Errorf("Error getting post attempts")
		}
		details = append(details, &transfer.PostDetail{Post: post, Attempts: attempts})
	}
	return details, nil
}

func (s *postService) Remove(ctx context.Context, clientID, postID int64) error {
	var err error

	if clientID == 0 {
		err = errors.New("client is not valid")
		slog.Info(err.Error())
		return err
	}

	if postID == 0 {
		err = errors.New("post_id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.pr.CheckByClientID(ctx, postID, clientID)
	if err != nil {
		return err
	}

	if !isValid {
		err = errors.New("Post doesn't exist")
		slog.Info(err.Error())
		return err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post != nil && strings.EqualFold(post.Status, models.PostStatusPublishing) {
		err = errors.New("post is currently being published")
		slog.Info(err.Error())
		return err
	}

	err = s.pr.Remove(ctx, postID)
	if err != nil {
		return fmt.Errorf("Error removing post")
	}

	return nil
}
