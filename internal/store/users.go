// Package store contains the pgx-backed repositories for users, domains,
// channels, and websocket connection audit rows.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/notifmoo/notif/internal/apperrors"
	"github.com/notifmoo/notif/internal/database"
)

// User is a dashboard user row.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserRepository persists dashboard users.
type UserRepository struct {
	db *database.Connection
}

// NewUserRepository creates a user repository.
func NewUserRepository(db *database.Connection) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user and returns the stored row.
func (r *UserRepository) Create(ctx context.Context, name, email, passwordHash string) (*User, error) {
	var u User
	err := r.db.Pool().QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, password_hash, created_at
	`, name, email, passwordHash).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, apperrors.DB(err)
	}
	return &u, nil
}

// FindByEmail returns the user with the given email, or nil if none exists.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.Pool().QueryRow(ctx, `
		SELECT id, name, email, password_hash, created_at FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.DB(err)
	}
	return &u, nil
}

// GetByID returns the user with the given id, or nil if none exists.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.db.Pool().QueryRow(ctx, `
		SELECT id, name, email, password_hash, created_at FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.DB(err)
	}
	return &u, nil
}
