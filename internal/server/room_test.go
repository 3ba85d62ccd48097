package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/roshambo/internal/protocol"
)

// arenaWith puts fresh members into a new room called arena
func arenaWith(t *testing.T, r *Registry, names ...string) (*Room, []*fakeMember) {
	t.Helper()
	arena, err := r.CreateRoom("arena")
	require.NoError(t, err)

	members := make([]*fakeMember, len(names))
	for i, name := range names {
		members[i] = admit(r, name)
		r.Move(members[i], arena, false)
	}
	for _, m := range members {
		m.clearInbox()
	}
	return arena, members
}

func TestJoinSyncsExistingMembers(t *testing.T) {
	r := newTestRegistry(t)
	a := admit(r, "ana")
	a.clearInbox()

	b := admit(r, "bo")

	got := b.payloads(t)
	require.Len(t, got, 4)
	assert.Equal(t, protocol.ClientIDAssigned{ClientID: b.ID(), Name: "bo"}, got[0])
	assert.Equal(t, protocol.ResetUserList{}, got[1])
	assert.Equal(t, protocol.SyncClient{ClientID: a.ID(), Name: "ana"}, got[2])
	assert.Equal(t, protocol.RoomJoined{ClientID: b.ID(), Name: "bo", Room: LobbyName}, got[3])

	joined := received[protocol.RoomJoined](t, a)
	require.Len(t, joined, 1)
	assert.Equal(t, b.ID(), joined[0].ClientID)
	assert.Empty(t, received[protocol.SyncClient](t, a), "existing members are not re-synced")
}

func TestJoinTwiceIsNoop(t *testing.T) {
	r := newTestRegistry(t)
	a := admit(r, "ana")
	a.clearInbox()

	assert.True(t, r.Lobby().Join(a, false))
	assert.Empty(t, a.payloads(t))
	assert.Len(t, r.Lobby().Members(), 1)
}

func TestSpectateAnnouncesSpectatorFlag(t *testing.T) {
	r := newTestRegistry(t)
	arena, members := arenaWith(t, r, "ana")
	w := admit(r, "watcher")

	r.Lobby().Dispatch(w, protocol.RoomSpectate{Name: "ARENA"})

	assert.Equal(t, arena, w.Room())
	assert.True(t, w.Spectator())
	assert.Equal(t, protocol.StatusSpectating, w.User().Status)

	joined := received[protocol.RoomJoined](t, members[0])
	require.Len(t, joined, 1)
	assert.True(t, joined[0].Spectator)
}

func TestRelayFormatsSender(t *testing.T) {
	r := newTestRegistry(t)
	_, members := arenaWith(t, r, "ana", "bo")
	a, b := members[0], members[1]

	a.Room().Dispatch(a, protocol.Text{Text: "hi"})

	for _, m := range members {
		texts := received[protocol.Text](t, m)
		require.Len(t, texts, 1)
		assert.Equal(t, a.DisplayName()+": hi", texts[0].Text)
		assert.Equal(t, a.ID(), texts[0].ClientID)
	}

	b.clearInbox()
	b.Room().Relay(nil, "notice")
	texts := received[protocol.Text](t, b)
	require.Len(t, texts, 1)
	assert.Equal(t, "Room[arena]: notice", texts[0].Text)
	assert.Equal(t, protocol.SystemClientID, texts[0].ClientID)
}

func TestSpectatorCannotChat(t *testing.T) {
	r := newTestRegistry(t)
	arena, members := arenaWith(t, r, "ana")
	w := admit(r, "watcher")
	r.Move(w, arena, true)
	members[0].clearInbox()

	arena.Dispatch(w, protocol.Text{Text: "hello?"})

	assert.Equal(t, CodeSpectatorChat, lastError(t, w).Code)
	assert.Empty(t, received[protocol.Text](t, members[0]))
}

func TestFailedSendPrunesMember(t *testing.T) {
	r := newTestRegistry(t)
	arena, members := arenaWith(t, r, "ana", "bo", "cy")
	a, b, c := members[0], members[1], members[2]

	b.setFailSends(true)
	arena.Dispatch(a, protocol.Text{Text: "anyone there?"})

	assert.True(t, b.isClosed())
	assert.Nil(t, b.Room())
	assert.Len(t, arena.Members(), 2)

	for _, m := range []*fakeMember{a, c} {
		left := received[protocol.RoomLeft](t, m)
		require.Len(t, left, 1)
		assert.Equal(t, b.ID(), left[0].ClientID)

		gone := received[protocol.Disconnect](t, m)
		require.Len(t, gone, 1)
		assert.Equal(t, b.ID(), gone[0].ClientID)
	}
}

func TestFailedSendsEmptyRoomIsRemoved(t *testing.T) {
	r := newTestRegistry(t)
	arena, members := arenaWith(t, r, "ana", "bo")
	for _, m := range members {
		m.setFailSends(true)
	}

	arena.Relay(nil, "ping")

	assert.False(t, arena.Running())
	_, ok := r.Room("arena")
	assert.False(t, ok)
}

func TestGameThroughRoom(t *testing.T) {
	r := newTestRegistry(t)
	arena, members := arenaWith(t, r, "ana", "bo")
	a, b := members[0], members[1]

	arena.Dispatch(a, protocol.Ready{ExtraMoves: true})
	arena.Dispatch(b, protocol.Ready{})

	starts := received[protocol.SessionStart](t, a)
	require.Len(t, starts, 1)
	assert.True(t, starts[0].ExtraMoves)
	assert.Len(t, received[protocol.RoundStart](t, b), 1)

	arena.Dispatch(a, protocol.Pick{Move: "spock"})
	arena.Dispatch(b, protocol.Pick{Move: "Rock"})

	var aPoints []protocol.PointsUpdate
	for _, p := range received[protocol.PointsUpdate](t, b) {
		if p.ClientID == a.ID() && p.Points > 0 {
			aPoints = append(aPoints, p)
		}
	}
	require.Len(t, aPoints, 1)
	assert.Equal(t, 1, aPoints[0].Points)
	assert.Equal(t, 1, a.User().Points)

	snap := arena.GameSnapshot()
	assert.Equal(t, 2, snap.Round)

	arena.Dispatch(a, protocol.Pick{Move: "dynamite"})
	assert.Equal(t, "invalid_move", lastError(t, a).Code)
}

func TestGameActionFromNonMemberIgnored(t *testing.T) {
	r := newTestRegistry(t)
	arena, _ := arenaWith(t, r, "ana", "bo")
	outsider := admit(r, "zed")
	outsider.clearInbox()

	arena.Dispatch(outsider, protocol.Ready{})

	assert.Empty(t, outsider.payloads(t))
	assert.False(t, arena.GameSnapshot().InProgress)
}

func TestDisconnectMidRoundResolves(t *testing.T) {
	r := newTestRegistry(t)
	arena, members := arenaWith(t, r, "ana", "bo", "cy")
	a, b, c := members[0], members[1], members[2]

	for _, m := range members {
		arena.Dispatch(m, protocol.Ready{})
	}
	require.True(t, arena.GameSnapshot().InProgress)

	arena.Dispatch(a, protocol.Pick{Move: "paper"})
	c.setFailSends(true)
	arena.Dispatch(b, protocol.Pick{Move: "rock"})

	snap := arena.GameSnapshot()
	assert.Equal(t, 2, snap.Round, "round should resolve without the dropped player")
	for _, p := range snap.Players {
		assert.NotEqual(t, c.ID(), p.ID)
	}
	assert.True(t, c.isClosed())
	assert.Equal(t, 1, a.User().Points)
}

func TestReadyDuringGameRejected(t *testing.T) {
	r := newTestRegistry(t)
	arena, members := arenaWith(t, r, "ana", "bo")

	for _, m := range members {
		arena.Dispatch(m, protocol.Ready{})
	}
	arena.Dispatch(members[0], protocol.Ready{})

	assert.Equal(t, "game_in_progress", lastError(t, members[0]).Code)
}

func TestUnexpectedMessagesGetErrorReply(t *testing.T) {
	r := newTestRegistry(t)
	a := admit(r, "ana")

	r.Lobby().Dispatch(a, protocol.Connect{Name: "again"})
	assert.Equal(t, CodeUnexpectedMessage, lastError(t, a).Code)

	r.Lobby().Dispatch(a, protocol.GameResult{})
	assert.Equal(t, CodeUnexpectedMessage, lastError(t, a).Code)

	r.Lobby().Dispatch(a, protocol.Disconnect{})
	assert.True(t, a.isClosed())
}

func TestCloseMigratesStragglers(t *testing.T) {
	r := newTestRegistry(t)
	arena, members := arenaWith(t, r, "ana", "bo")

	arena.lock()
	arena.closeLocked()
	arena.unlock()

	_, ok := r.Room("arena")
	assert.False(t, ok)
	for _, m := range members {
		assert.Equal(t, r.Lobby(), m.Room())
		texts := received[protocol.Text](t, m)
		require.NotEmpty(t, texts)
		assert.Equal(t, "Room[arena]: Room is shutting down. Moving everyone to lobby.", texts[0].Text)
	}
}

func TestSpectatorJoinIsAnnounced(t *testing.T) {
	r := newTestRegistry(t)
	_, members := arenaWith(t, r, "ana")
	w := admit(r, "watcher")

	r.Lobby().Dispatch(w, protocol.RoomSpectate{Name: "arena"})

	var notices []string
	for _, msg := range received[protocol.Text](t, members[0]) {
		notices = append(notices, msg.Text)
	}
	assert.Contains(t, notices, "Room[arena]: "+w.DisplayName()+" is spectating")
}

func TestRoleSwitchStaysInRoom(t *testing.T) {
	r := newTestRegistry(t)
	arena, members := arenaWith(t, r, "ana", "bo")
	a, b := members[0], members[1]

	arena.Dispatch(a, protocol.RoomSpectate{Name: "arena"})

	assert.Equal(t, arena, a.Room())
	assert.Len(t, arena.Members(), 2)
	assert.Empty(t, received[protocol.RoomLeft](t, b), "switching role is not leaving")
	assert.Empty(t, received[protocol.Disconnect](t, b))

	joined := received[protocol.RoomJoined](t, b)
	require.Len(t, joined, 1)
	assert.Equal(t, a.ID(), joined[0].ClientID)
	assert.True(t, joined[0].Spectator)
}

func TestSpectatingCompletesReadyQuorum(t *testing.T) {
	r := newTestRegistry(t)
	arena, members := arenaWith(t, r, "ana", "bo", "cy")
	a, b, c := members[0], members[1], members[2]

	arena.Dispatch(a, protocol.Ready{})
	arena.Dispatch(b, protocol.Ready{})
	require.False(t, arena.GameSnapshot().InProgress)

	arena.Dispatch(c, protocol.RoomSpectate{Name: "arena"})

	snap := arena.GameSnapshot()
	assert.True(t, snap.InProgress)
	for _, p := range snap.Players {
		assert.NotEqual(t, c.ID(), p.ID)
	}
}
