package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/notifmoo/notif/internal/apperrors"
	"github.com/notifmoo/notif/internal/database"
)

// Domain is a registered external origin owning an API key.
// One domain carries exactly one key.
type Domain struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	DomainName string
	Key        string
	IsActive   bool
	CreatedAt  time.Time
}

// NewDomainKey generates a fresh API key of the form nk_<32 hex chars>.
func NewDomainKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", apperrors.Internal(err)
	}
	return "nk_" + hex.EncodeToString(buf), nil
}

// DomainRepository persists domains and their API keys.
type DomainRepository struct {
	db *database.Connection
}

// NewDomainRepository creates a domain repository.
func NewDomainRepository(db *database.Connection) *DomainRepository {
	return &DomainRepository{db: db}
}

// Create inserts a domain with its generated key. The name is normalized to
// lowercase; a duplicate per user is rejected with a validation error.
func (r *DomainRepository) Create(ctx context.Context, userID uuid.UUID, domainName, key string) (*Domain, error) {
	domainName = strings.ToLower(strings.TrimSpace(domainName))
	var d Domain
	err := r.db.Pool().QueryRow(ctx, `
		INSERT INTO domains (user_id, domain_name, key)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, domain_name) DO NOTHING
		RETURNING id, user_id, domain_name, key, is_active, created_at
	`, userID, domainName, key).Scan(&d.ID, &d.UserID, &d.DomainName, &d.Key, &d.IsActive, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Validation("domain already exists for this user")
	}
	if err != nil {
		return nil, apperrors.DB(err)
	}
	return &d, nil
}

// ListByUser returns all domains of a user, newest first.
func (r *DomainRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Domain, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, user_id, domain_name, key, is_active, created_at
		FROM domains WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, apperrors.DB(err)
	}
	defer rows.Close()

	var domains []Domain
	for rows.Next() {
		var d Domain
		if err := rows.Scan(&d.ID, &d.UserID, &d.DomainName, &d.Key, &d.IsActive, &d.CreatedAt); err != nil {
			return nil, apperrors.DB(err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// FindByKey returns the active domain owning the given API key, or nil.
func (r *DomainRepository) FindByKey(ctx context.Context, key string) (*Domain, error) {
	var d Domain
	err := r.db.Pool().QueryRow(ctx, `
		SELECT id, user_id, domain_name, key, is_active, created_at
		FROM domains WHERE key = $1 AND is_active = true
	`, key).Scan(&d.ID, &d.UserID, &d.DomainName, &d.Key, &d.IsActive, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.DB(err)
	}
	return &d, nil
}

// SetActive toggles a domain's key, scoped to its owner.
func (r *DomainRepository) SetActive(ctx context.Context, id, userID uuid.UUID, isActive bool) error {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE domains SET is_active = $1 WHERE id = $2 AND user_id = $3
	`, isActive, id, userID)
	if err != nil {
		return apperrors.DB(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Auth("domain not found")
	}
	return nil
}

// Delete removes a domain, scoped to its owner.
func (r *DomainRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.db.Pool().Exec(ctx, `
		DELETE FROM domains WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return apperrors.DB(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.Auth("domain not found")
	}
	return nil
}
