package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/notifmoo/notif/internal/apperrors"
	"github.com/notifmoo/notif/internal/database"
)

// Channel is a channel row scoped to a domain.
type Channel struct {
	ID        uuid.UUID
	Name      string
	DomainID  uuid.UUID
	CreatedAt time.Time
}

// ChannelRepository persists channels seen on domain-authenticated sockets.
type ChannelRepository struct {
	db *database.Connection
}

// NewChannelRepository creates a channel repository.
func NewChannelRepository(db *database.Connection) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Ensure inserts the channel row for (name, domain) if absent and returns it.
func (r *ChannelRepository) Ensure(ctx context.Context, name string, domainID uuid.UUID) (*Channel, error) {
	if _, err := r.db.Pool().Exec(ctx, `
		INSERT INTO channels (name, domain_id)
		VALUES ($1, $2)
		ON CONFLICT (name, domain_id) DO NOTHING
	`, name, domainID); err != nil {
		return nil, apperrors.DB(err)
	}

	var c Channel
	err := r.db.Pool().QueryRow(ctx, `
		SELECT id, name, domain_id, created_at FROM channels WHERE name = $1 AND domain_id = $2
	`, name, domainID).Scan(&c.ID, &c.Name, &c.DomainID, &c.CreatedAt)
	if err != nil {
		return nil, apperrors.DB(err)
	}
	return &c, nil
}

// ListByUser returns the channels across all of a user's domains, newest first.
func (r *ChannelRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Channel, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT c.id, c.name, c.domain_id, c.created_at
		FROM channels c
		JOIN domains d ON d.id = c.domain_id
		WHERE d.user_id = $1
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, apperrors.DB(err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.ID, &c.Name, &c.DomainID, &c.CreatedAt); err != nil {
			return nil, apperrors.DB(err)
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}
