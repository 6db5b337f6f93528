package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/domainsec/tracker/internal/models"
	"github.com/domainsec/tracker/internal/store"
)

// UserStore implements store.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new PostgreSQL-backed user store.
// It shares the connection pool with other stores.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{
		pool: pool,
	}
}

// Get retrieves a user by key.
func (s *UserStore) Get(ctx context.Context, key uuid.UUID) (*models.User, error) {
	query := `
		SELECT key, user_name, display_name, preferred_lang,
			tfa_validated, email_validated, tfa_code,
			created_at, updated_at
		FROM users
		WHERE key = $1
	`

	var user models.User
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&user.Key,
		&user.UserName,
		&user.DisplayName,
		&user.PreferredLang,
		&user.TFAValidated,
		&user.EmailValidated,
		&user.TFACode,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", mapPostgresError(err))
	}

	return &user, nil
}

// Create creates a new user in the database.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (
			key, user_name, display_name, preferred_lang,
			tfa_validated, email_validated, tfa_code,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := s.pool.Exec(ctx, query,
		user.Key,
		user.UserName,
		user.DisplayName,
		user.PreferredLang,
		user.TFAValidated,
		user.EmailValidated,
		user.TFACode,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("user_key", user.Key.String()).
		Str("user_name", user.UserName).
		Msg("Created user")

	return nil
}
