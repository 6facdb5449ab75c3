package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postdeck/postdeck/internal/models"
)

type ConnectionRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Connection, error)
	ListByClientID(ctx context.Context, clientID int64) ([]*models.Connection, error)
	ListActive(ctx context.Context, clientID int64) ([]*models.Connection, error)
	ListExpiring(ctx context.Context, from, to time.Time) ([]*models.Connection, error)
	SetToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error
}

type connectionRepository struct {
	db *sql.DB
}

func NewConnectionRepository(db *sql.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

const connectionColumns = `id, client_id, platform, account_id, account_name, access_token, refresh_token, consumer_key, consumer_secret, oauth_token, oauth_token_secret, token_expires_at, status, created_at, updated_at`

func scanConnection(row interface{ Scan(...any) error }) (*models.Connection, error) {
	var conn models.Connection
	err := row.Scan(
		&conn.ID, &conn.ClientID, &conn.Platform, &conn.AccountID, &conn.AccountName,
		&conn.AccessToken, &conn.RefreshToken, &conn.ConsumerKey, &conn.ConsumerSecret,
		&conn.OAuthToken, &conn.OAuthTokenSecret, &conn.TokenExpiresAt,
		&conn.Status, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id int64) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

	conn, err := scanConnection(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return conn, nil
}

func (r *connectionRepository) ListByClientID(ctx context.Context, clientID int64) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE client_id = $1`

	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var conns []*models.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

func (r *connectionRepository) ListActive(ctx context.Context, clientID int64) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE client_id = $1 AND status = 1`

	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var conns []*models.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// ListExpiring returns active connections whose token expires inside the
// window. Only platforms that store a refresh token are worth returning.
func (r *connectionRepository) ListExpiring(ctx context.Context, from, to time.Time) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE status = 1 AND refresh_token != '' AND token_expires_at BETWEEN $1 AND $2`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var conns []*models.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

func (r *connectionRepository) SetToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE connections
		SET access_token = $1,
			refresh_token = $2,
			token_expires_at = $3,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, accessToken, refreshToken, expiresAt, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
