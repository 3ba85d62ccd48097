package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/roshambo/internal/game"
	"github.com/lox/roshambo/internal/protocol"
)

// Member is a room occupant. *Connection is the production implementation.
type Member interface {
	ID() protocol.ClientID
	DisplayName() string
	User() protocol.User
	Spectator() bool
	SetSpectator(spectator bool)
	SetStanding(points int, status protocol.PlayerStatus)
	Room() *Room
	SetRoom(room *Room)
	// Send queues a message without blocking
	Send(msg *protocol.Message) error
	// Close is idempotent and never calls back into a room synchronously
	Close() error
}

// Room is a named area with its own members and game session.
//
// All state is guarded by mu. Members whose sends fail during a critical
// section are queued and dropped when the lock is released, so a dead peer
// never re-enters the session mid-operation.
type Room struct {
	name     string
	lobby    bool
	registry *Registry
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	members map[protocol.ClientID]Member
	dropped []Member
	session *game.Session
}

func newRoom(name string, lobby bool, registry *Registry, logger *log.Logger, clock quartz.Clock, rules game.Rules) *Room {
	r := &Room{
		name:     name,
		lobby:    lobby,
		registry: registry,
		logger:   logger.WithPrefix("room").With("room", name),
		running:  true,
		members:  make(map[protocol.ClientID]Member),
	}
	r.session = game.NewSession(roomHost{r}, roomLocker{r}, clock, r.logger, rules)
	return r
}

// roomLocker is the lock handed to the game session. Unlock drops members
// whose sends failed before releasing the mutex.
type roomLocker struct{ r *Room }

func (l roomLocker) Lock()   { l.r.mu.Lock() }
func (l roomLocker) Unlock() { l.r.flushLocked(); l.r.mu.Unlock() }

func (r *Room) lock()   { roomLocker{r}.Lock() }
func (r *Room) unlock() { roomLocker{r}.Unlock() }

// Name returns the room name as created
func (r *Room) Name() string {
	return r.name
}

// IsLobby reports whether this is the permanent lobby
func (r *Room) IsLobby() bool {
	return r.lobby
}

// Running reports whether the room still accepts members
func (r *Room) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Members returns the current members ordered by id
func (r *Room) Members() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedMembersLocked()
}

// GameSnapshot returns a copy of the game session state
func (r *Room) GameSnapshot() game.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Snapshot()
}

// Join adds a member. It returns false if the room has closed.
func (r *Room) Join(m Member, spectator bool) bool {
	r.lock()
	defer r.unlock()

	if !r.running {
		return false
	}
	if _, ok := r.members[m.ID()]; ok {
		return true
	}

	m.SetSpectator(spectator)
	existing := r.sortedMembersLocked()
	r.members[m.ID()] = m
	m.SetRoom(r)

	r.sendLocked(m, protocol.ResetUserList{})
	for _, other := range existing {
		r.sendLocked(m, protocol.SyncClient{
			ClientID:  other.ID(),
			Name:      other.User().Name,
			Spectator: other.Spectator(),
		})
	}
	r.broadcastLocked(protocol.RoomJoined{
		ClientID:  m.ID(),
		Name:      m.User().Name,
		Room:      r.name,
		Spectator: spectator,
	})
	if spectator {
		r.announceLocked(fmt.Sprintf("%s is spectating", m.DisplayName()))
	}

	r.logger.Info("Member joined", "client", m.DisplayName(), "spectator", spectator, "members", len(r.members))
	return true
}

// SetSpectator switches a member between playing and spectating without
// leaving the room. It returns false if m is not a member.
func (r *Room) SetSpectator(m Member, spectator bool) bool {
	r.lock()
	defer r.unlock()

	if _, ok := r.members[m.ID()]; !ok {
		return false
	}
	if m.Spectator() == spectator {
		return true
	}

	m.SetSpectator(spectator)
	if spectator {
		r.session.MemberLeft(m.ID())
	}

	r.broadcastLocked(protocol.RoomJoined{
		ClientID:  m.ID(),
		Name:      m.User().Name,
		Room:      r.name,
		Spectator: spectator,
	})
	if spectator {
		r.announceLocked(fmt.Sprintf("%s is spectating", m.DisplayName()))
	} else {
		r.announceLocked(fmt.Sprintf("%s is playing", m.DisplayName()))
	}

	r.logger.Info("Member changed role", "client", m.DisplayName(), "spectator", spectator)
	return true
}

// Leave removes a member and closes the room if it became empty
func (r *Room) Leave(m Member) {
	r.lock()
	defer r.unlock()

	if _, ok := r.members[m.ID()]; !ok {
		return
	}
	r.sendLocked(m, protocol.RoomLeft{ClientID: m.ID(), Name: m.User().Name, Room: r.name})
	r.removeLocked(m, false)
}

// Disconnect removes a member whose connection went away
func (r *Room) Disconnect(m Member) {
	r.lock()
	defer r.unlock()

	if _, ok := r.members[m.ID()]; !ok {
		return
	}
	r.removeLocked(m, true)
}

// Relay sends a chat line from sender to every member. A nil sender speaks
// as the room itself.
func (r *Room) Relay(sender Member, text string) {
	r.lock()
	defer r.unlock()

	if sender == nil {
		r.announceLocked(text)
		return
	}
	if _, ok := r.members[sender.ID()]; !ok {
		return
	}
	if sender.Spectator() {
		r.sendLocked(sender, protocol.Error{Code: CodeSpectatorChat, Message: "Spectators cannot chat"})
		return
	}
	r.broadcastLocked(protocol.Text{
		ClientID: sender.ID(),
		Text:     fmt.Sprintf("%s: %s", sender.DisplayName(), text),
	})
}

// Broadcast sends a payload verbatim to every member
func (r *Room) Broadcast(p protocol.Payload) {
	r.lock()
	defer r.unlock()
	r.broadcastLocked(p)
}

// Shutdown force-disconnects every member and abandons the game
func (r *Room) Shutdown() {
	r.lock()
	defer r.unlock()

	if !r.running {
		return
	}
	r.running = false
	r.session.Abandon()
	r.announceLocked("Server is shutting down")

	for _, m := range r.sortedMembersLocked() {
		delete(r.members, m.ID())
		m.SetRoom(nil)
		_ = m.Close()
	}
	r.dropped = nil

	if !r.lobby {
		r.registry.RemoveRoom(r)
	}
	r.logger.Info("Room shut down")
}

// Dispatch routes one decoded message from a member of this room
func (r *Room) Dispatch(m Member, payload protocol.Payload) {
	switch p := payload.(type) {
	case protocol.Text:
		r.Relay(m, p.Text)

	case protocol.RoomCreate:
		r.handleCreateRoom(m, p.Name)

	case protocol.RoomJoin:
		r.handleJoinRoom(m, p.Name, false)

	case protocol.RoomSpectate:
		r.handleJoinRoom(m, p.Name, true)

	case protocol.RoomLeave:
		r.handleLeaveRoom(m)

	case protocol.RoomList:
		r.handleListRooms(m, p.Query)

	case protocol.Ready:
		r.withMember(m, func() { r.session.MarkReady(m, p.ExtraMoves, p.Cooldown) })

	case protocol.ToggleAway:
		r.withMember(m, func() { r.session.ToggleAway(m) })

	case protocol.Pick:
		r.withMember(m, func() { r.session.RegisterPick(m, p.Move) })

	case protocol.Disconnect:
		r.logger.Debug("Client requested disconnect", "client", m.DisplayName())
		_ = m.Close()

	case protocol.Connect:
		reply(m, CodeUnexpectedMessage, "Already connected")

	case protocol.ClientIDAssigned, protocol.RoomJoined, protocol.RoomLeft, protocol.SyncClient,
		protocol.ResetUserList, protocol.RoomListResult, protocol.SessionStart, protocol.RoundStart,
		protocol.PlayerStatusUpdate, protocol.PointsUpdate, protocol.GameResult, protocol.ResetGameState,
		protocol.Error:
		reply(m, CodeUnexpectedMessage, "Unexpected message type: "+payload.MessageType().String())

	default:
		reply(m, CodeUnexpectedMessage, fmt.Sprintf("Unhandled payload %T", payload))
	}
}

func (r *Room) withMember(m Member, fn func()) {
	r.lock()
	defer r.unlock()

	if _, ok := r.members[m.ID()]; !ok {
		return
	}
	fn()
}

func (r *Room) handleCreateRoom(m Member, name string) {
	room, err := r.registry.CreateRoom(name)
	switch {
	case errors.Is(err, ErrRoomExists):
		reply(m, CodeRoomExists, fmt.Sprintf("Room %s already exists", name))
		return
	case errors.Is(err, ErrInvalidRoomName):
		reply(m, CodeInvalidRoomName, "Room name required")
		return
	case err != nil:
		r.logger.Error("Failed to create room", "room", name, "error", err)
		return
	}
	r.registry.Move(m, room, false)
}

func (r *Room) handleJoinRoom(m Member, name string, spectator bool) {
	if err := r.registry.JoinRoom(name, m, spectator); err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			reply(m, CodeRoomNotFound, fmt.Sprintf("Room %s does not exist", name))
			return
		}
		r.logger.Error("Failed to join room", "room", name, "error", err)
	}
}

func (r *Room) handleLeaveRoom(m Member) {
	if r.lobby {
		reply(m, CodeNotInRoom, "You are already in the lobby")
		return
	}
	r.registry.Move(m, r.registry.Lobby(), false)
}

func (r *Room) handleListRooms(m Member, query string) {
	msg := protocol.MustMessage(protocol.RoomListResult{Rooms: r.registry.ListRooms(query)})
	if err := m.Send(msg); err != nil {
		_ = m.Close()
	}
}

// reply sends an error straight to a member outside any room lock
func reply(m Member, code, text string) {
	if err := m.Send(protocol.MustMessage(protocol.Error{Code: code, Message: text})); err != nil {
		_ = m.Close()
	}
}

func (r *Room) sortedMembersLocked() []Member {
	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *Room) sendLocked(m Member, p protocol.Payload) {
	r.sendMessageLocked(m, protocol.MustMessage(p))
}

func (r *Room) sendMessageLocked(m Member, msg *protocol.Message) {
	if err := m.Send(msg); err != nil {
		r.logger.Debug("Send failed, dropping member", "client", m.DisplayName(), "type", msg.Type, "error", err)
		r.dropped = append(r.dropped, m)
	}
}

func (r *Room) broadcastLocked(p protocol.Payload) {
	msg := protocol.MustMessage(p)
	for _, m := range r.sortedMembersLocked() {
		r.sendMessageLocked(m, msg)
	}
}

func (r *Room) announceLocked(text string) {
	r.broadcastLocked(protocol.Text{
		ClientID: protocol.SystemClientID,
		Text:     fmt.Sprintf("Room[%s]: %s", r.name, text),
	})
}

// removeLocked takes a member out, tells everyone else and lets the session
// account for it.
func (r *Room) removeLocked(m Member, disconnected bool) {
	delete(r.members, m.ID())
	if m.Room() == r {
		m.SetRoom(nil)
	}

	r.broadcastLocked(protocol.RoomLeft{ClientID: m.ID(), Name: m.User().Name, Room: r.name})
	if disconnected {
		r.broadcastLocked(protocol.Disconnect{ClientID: m.ID()})
		r.announceLocked(fmt.Sprintf("%s disconnected", m.DisplayName()))
	}
	r.logger.Info("Member left", "client", m.DisplayName(), "disconnected", disconnected, "members", len(r.members))

	r.session.MemberLeft(m.ID())
	r.autoCleanupLocked()
}

// flushLocked drops members whose sends failed. Dropping can fail more sends,
// so it loops until the queue drains.
func (r *Room) flushLocked() {
	for len(r.dropped) > 0 {
		m := r.dropped[0]
		r.dropped = r.dropped[1:]

		if _, ok := r.members[m.ID()]; !ok {
			continue
		}
		r.logger.Warn("Dropping unreachable member", "client", m.DisplayName())
		r.removeLocked(m, true)
		_ = m.Close()
	}
}

func (r *Room) autoCleanupLocked() {
	if r.lobby || !r.running || len(r.members) > 0 {
		return
	}
	r.closeLocked()
}

// closeLocked deregisters the room and moves anyone still inside to the lobby
func (r *Room) closeLocked() {
	r.running = false
	r.session.Abandon()

	stragglers := r.sortedMembersLocked()
	if len(stragglers) > 0 {
		r.announceLocked("Room is shutting down. Moving everyone to lobby.")
	}
	for _, m := range stragglers {
		delete(r.members, m.ID())
		m.SetRoom(nil)
	}

	r.registry.RemoveRoom(r)
	r.logger.Info("Room closed", "migrated", len(stragglers))

	for _, m := range stragglers {
		r.registry.Lobby().Join(m, false)
	}
}

// roomHost adapts a room for its game session. The session only calls it
// with the room lock held.
type roomHost struct{ r *Room }

func (h roomHost) Broadcast(p protocol.Payload) { h.r.broadcastLocked(p) }
func (h roomHost) Announce(text string)         { h.r.announceLocked(text) }

func (h roomHost) Reply(to game.Participant, code, text string) {
	if m, ok := h.r.members[to.ID()]; ok {
		h.r.sendLocked(m, protocol.Error{Code: code, Message: text})
	}
}

func (h roomHost) Participants() []game.Participant {
	members := h.r.sortedMembersLocked()
	out := make([]game.Participant, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}
