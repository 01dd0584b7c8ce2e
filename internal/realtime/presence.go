package realtime

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/notifmoo/notif/internal/pubsub"
)

// PresenceMember is the stored (socket, user) record on a presence channel.
// A member is unique within a channel by socket id; the same user id may
// appear on multiple sockets.
type PresenceMember struct {
	UserID   string          `json:"user_id"`
	UserInfo json.RawMessage `json:"user_info,omitempty"`
	SocketID string          `json:"socket_id"`
}

// PresenceUser is the external projection of a member.
type PresenceUser struct {
	UserID   string          `json:"user_id"`
	UserInfo json.RawMessage `json:"user_info,omitempty"`
}

// Roster tracks presence membership through the bus's presence primitives.
// There is no in-process cache: the bus is the source of truth, so multiple
// instances share presence state consistently.
type Roster struct {
	bus pubsub.Bus
}

// NewRoster creates a roster over the given bus.
func NewRoster(bus pubsub.Bus) *Roster {
	return &Roster{bus: bus}
}

// AddMember records a member on a presence channel.
func (r *Roster) AddMember(ctx context.Context, channel, socketID, userID string, userInfo json.RawMessage) error {
	member := PresenceMember{
		UserID:   userID,
		UserInfo: userInfo,
		SocketID: socketID,
	}
	data, err := json.Marshal(member)
	if err != nil {
		return err
	}
	if err := r.bus.PresenceAdd(ctx, channel, socketID, data); err != nil {
		return err
	}
	log.Info().
		Str("channel", channel).
		Str("socket_id", socketID).
		Str("user_id", userID).
		Msg("Presence member added")
	return nil
}

// RemoveMember drops a socket's membership from a presence channel.
func (r *Roster) RemoveMember(ctx context.Context, channel, socketID string) error {
	if err := r.bus.PresenceRemove(ctx, channel, socketID); err != nil {
		return err
	}
	log.Info().
		Str("channel", channel).
		Str("socket_id", socketID).
		Msg("Presence member removed")
	return nil
}

// ListMembers returns every member currently on the channel, projected to
// PresenceUser. Malformed stored entries are skipped.
func (r *Roster) ListMembers(ctx context.Context, channel string) ([]PresenceUser, error) {
	raw, err := r.bus.PresenceMembers(ctx, channel)
	if err != nil {
		return nil, err
	}

	users := make([]PresenceUser, 0, len(raw))
	for _, data := range raw {
		var member PresenceMember
		if err := json.Unmarshal([]byte(data), &member); err != nil {
			continue
		}
		users = append(users, PresenceUser{UserID: member.UserID, UserInfo: member.UserInfo})
	}
	return users, nil
}
