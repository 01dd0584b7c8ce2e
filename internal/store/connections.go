package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/notifmoo/notif/internal/apperrors"
	"github.com/notifmoo/notif/internal/database"
)

// WsConnection is an audit row for one socket's subscription to one channel.
type WsConnection struct {
	ID             uuid.UUID
	ChannelID      *uuid.UUID
	ChannelName    string
	DomainID       uuid.UUID
	SocketID       string
	ConnectedUser  *string
	ConnectedAt    time.Time
	DisconnectedAt *time.Time
	Status         string
}

// ChannelCount is the number of connected sockets on one channel.
type ChannelCount struct {
	ChannelName string
	Count       int64
}

// ConnectionRepository persists websocket connection audit rows.
type ConnectionRepository struct {
	db *database.Connection
}

// NewConnectionRepository creates a connection repository.
func NewConnectionRepository(db *database.Connection) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Insert records a connected subscription.
func (r *ConnectionRepository) Insert(ctx context.Context, channelID *uuid.UUID, channelName string, domainID uuid.UUID, socketID string, connectedUser *string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.Pool().QueryRow(ctx, `
		INSERT INTO ws_connections (channel_id, channel_name, domain_id, socket_id, connected_user, status)
		VALUES ($1, $2, $3, $4, $5, 'connected')
		RETURNING id
	`, channelID, channelName, domainID, socketID, connectedUser).Scan(&id)
	if err != nil {
		return uuid.Nil, apperrors.DB(err)
	}
	return id, nil
}

// MarkDisconnected closes every connected audit row for a socket.
func (r *ConnectionRepository) MarkDisconnected(ctx context.Context, socketID string) error {
	_, err := r.db.Pool().Exec(ctx, `
		UPDATE ws_connections SET status = 'disconnected', disconnected_at = NOW()
		WHERE socket_id = $1 AND status = 'connected'
	`, socketID)
	if err != nil {
		return apperrors.DB(err)
	}
	return nil
}

// MarkDisconnectedByChannel closes the audit row for a socket on one channel.
func (r *ConnectionRepository) MarkDisconnectedByChannel(ctx context.Context, socketID, channelName string) error {
	_, err := r.db.Pool().Exec(ctx, `
		UPDATE ws_connections SET status = 'disconnected', disconnected_at = NOW()
		WHERE socket_id = $1 AND channel_name = $2 AND status = 'connected'
	`, socketID, channelName)
	if err != nil {
		return apperrors.DB(err)
	}
	return nil
}

// ActiveByUser returns the connected rows across a user's domains, newest first.
func (r *ConnectionRepository) ActiveByUser(ctx context.Context, userID uuid.UUID) ([]WsConnection, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT w.id, w.channel_id, w.channel_name, w.domain_id, w.socket_id,
		       w.connected_user, w.connected_at, w.disconnected_at, w.status
		FROM ws_connections w
		JOIN domains d ON d.id = w.domain_id
		WHERE d.user_id = $1 AND w.status = 'connected'
		ORDER BY w.connected_at DESC
	`, userID)
	if err != nil {
		return nil, apperrors.DB(err)
	}
	defer rows.Close()

	var conns []WsConnection
	for rows.Next() {
		var w WsConnection
		if err := rows.Scan(&w.ID, &w.ChannelID, &w.ChannelName, &w.DomainID, &w.SocketID,
			&w.ConnectedUser, &w.ConnectedAt, &w.DisconnectedAt, &w.Status); err != nil {
			return nil, apperrors.DB(err)
		}
		conns = append(conns, w)
	}
	return conns, rows.Err()
}

// CountsByUser aggregates connected sockets per channel across a user's domains.
func (r *ConnectionRepository) CountsByUser(ctx context.Context, userID uuid.UUID) ([]ChannelCount, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT w.channel_name, COUNT(*)::bigint
		FROM ws_connections w
		JOIN domains d ON d.id = w.domain_id
		WHERE d.user_id = $1 AND w.status = 'connected'
		GROUP BY w.channel_name
		ORDER BY COUNT(*) DESC
	`, userID)
	if err != nil {
		return nil, apperrors.DB(err)
	}
	defer rows.Close()

	var counts []ChannelCount
	for rows.Next() {
		var c ChannelCount
		if err := rows.Scan(&c.ChannelName, &c.Count); err != nil {
			return nil, apperrors.DB(err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
