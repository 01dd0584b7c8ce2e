package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifmoo/notif/internal/pubsub"
)

func TestRosterAddListRemove(t *testing.T) {
	roster := NewRoster(pubsub.NewLocalBus())
	ctx := context.Background()

	require.NoError(t, roster.AddMember(ctx, "presence-lobby", "1.a", "alice", json.RawMessage(`{"user_id":"alice"}`)))
	require.NoError(t, roster.AddMember(ctx, "presence-lobby", "2.b", "bob", nil))

	members, err := roster.ListMembers(ctx, "presence-lobby")
	require.NoError(t, err)
	require.Len(t, members, 2)

	ids := []string{members[0].UserID, members[1].UserID}
	assert.ElementsMatch(t, []string{"alice", "bob"}, ids)

	require.NoError(t, roster.RemoveMember(ctx, "presence-lobby", "1.a"))

	members, err = roster.ListMembers(ctx, "presence-lobby")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "bob", members[0].UserID)
}

func TestRosterSameUserOnTwoSockets(t *testing.T) {
	roster := NewRoster(pubsub.NewLocalBus())
	ctx := context.Background()

	require.NoError(t, roster.AddMember(ctx, "presence-lobby", "1.a", "alice", nil))
	require.NoError(t, roster.AddMember(ctx, "presence-lobby", "2.b", "alice", nil))

	members, err := roster.ListMembers(ctx, "presence-lobby")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRosterEmptyChannel(t *testing.T) {
	roster := NewRoster(pubsub.NewLocalBus())

	members, err := roster.ListMembers(context.Background(), "presence-empty")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestRosterChannelsAreIsolated(t *testing.T) {
	roster := NewRoster(pubsub.NewLocalBus())
	ctx := context.Background()

	require.NoError(t, roster.AddMember(ctx, "presence-a", "1.a", "alice", nil))

	members, err := roster.ListMembers(ctx, "presence-b")
	require.NoError(t, err)
	assert.Empty(t, members)
}
