package store

import (
	"context"

	"github.com/google/uuid"
)

// Audit records subscription lifecycle rows for domain-authenticated sockets.
// It satisfies the realtime session's audit-log dependency.
type Audit struct {
	channels *ChannelRepository
	conns    *ConnectionRepository
}

// NewAudit creates an audit recorder over the channel and connection repositories.
func NewAudit(channels *ChannelRepository, conns *ConnectionRepository) *Audit {
	return &Audit{channels: channels, conns: conns}
}

// SubscriptionOpened ensures the channel row exists and inserts a connected
// audit row for the socket.
func (a *Audit) SubscriptionOpened(ctx context.Context, channelName string, domainID uuid.UUID, socketID string, connectedUser *string) error {
	ch, err := a.channels.Ensure(ctx, channelName, domainID)
	if err != nil {
		return err
	}
	_, err = a.conns.Insert(ctx, &ch.ID, channelName, domainID, socketID, connectedUser)
	return err
}

// SubscriptionClosed marks the socket's audit row for one channel disconnected.
func (a *Audit) SubscriptionClosed(ctx context.Context, socketID, channelName string) error {
	return a.conns.MarkDisconnectedByChannel(ctx, socketID, channelName)
}

// SocketClosed marks every connected audit row for the socket disconnected.
func (a *Audit) SocketClosed(ctx context.Context, socketID string) error {
	return a.conns.MarkDisconnected(ctx, socketID)
}
