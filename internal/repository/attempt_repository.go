package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postdeck/postdeck/internal/models"
)

type AttemptRepository interface {
	Create(ctx context.Context, tx *sql.Tx, attempt *models.PostPlatform) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostPlatform, error)
	Update(ctx context.Context, id int64, status, platformPostID, errorMessage string, publishedAt *time.Time) error
}

type attemptRepository struct {
	db *sql.DB
}

func NewAttemptRepository(db *sql.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Create(ctx context.Context, tx *sql.Tx, attempt *models.PostPlatform) (int64, error) {
	query := `
		INSERT INTO post_platforms (post_id, connection_id, platform, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, attempt.PostID, attempt.ConnectionID, attempt.Platform, attempt.Status).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, attempt.PostID, attempt.ConnectionID, attempt.Platform, attempt.Status).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *attemptRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostPlatform, error) {
	query := `SELECT id, post_id, connection_id, platform, status, platform_post_id, error_message, published_at, created_at, updated_at FROM post_platforms WHERE post_id = $1`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.PostPlatform
	for rows.Next() {
		var a models.PostPlatform
		err := rows.Scan(&a.ID, &a.PostID, &a.ConnectionID, &a.Platform, &a.Status, &a.PlatformPostID, &a.ErrorMessage, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	return attempts, nil
}

func (r *attemptRepository) Update(ctx context.Context, id int64, status, platformPostID, errorMessage string, publishedAt *time.Time) error {
	query := `
		UPDATE post_platforms
		SET status = $1,
			platform_post_id = $2,
			error_message = $3,
			published_at = $4,
			updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, status, platformPostID, errorMessage, publishedAt, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
