package repository

import (
	"context"

	"github.com/ivzakh/termkeeper/internal/database"
	"github.com/ivzakh/termkeeper/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates the user on first contact or refreshes the profile and
// last_active_at on every later one. Idempotent by user id.
func (r *UserRepository) Upsert(ctx context.Context, userID int64, username, fullName string) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO users (user_id, username, full_name, last_active_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET username = EXCLUDED.username, full_name = EXCLUDED.full_name, last_active_at = NOW()
		 RETURNING user_id, username, full_name, phone, is_active, created_at, last_active_at`,
		userID, username, fullName,
	).Scan(&user.UserID, &user.Username, &user.FullName, &user.Phone, &user.IsActive, &user.CreatedAt, &user.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT user_id, username, full_name, phone, is_active, created_at, last_active_at
		 FROM users WHERE user_id = $1`,
		userID,
	).Scan(&user.UserID, &user.Username, &user.FullName, &user.Phone, &user.IsActive, &user.CreatedAt, &user.LastActiveAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return user, nil
}

// Deactivate soft-disables a user. Users are never deleted.
func (r *UserRepository) Deactivate(ctx context.Context, userID int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET is_active = FALSE WHERE user_id = $1`,
		userID,
	)
	return err
}
