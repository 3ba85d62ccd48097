package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/roshambo/internal/game"
	"github.com/lox/roshambo/internal/protocol"
)

// LobbyName is the permanent default room
const LobbyName = "lobby"

// maxListedRooms caps a room listing
const maxListedRooms = 10

// Registry assigns client ids and owns the set of rooms.
//
// The registry lock is a leaf: rooms call into the registry while holding
// their own lock, so the registry never calls a room while holding it.
type Registry struct {
	nextID atomic.Int64

	mu      sync.Mutex
	members map[protocol.ClientID]Member
	rooms   map[string]*Room
	lobby   *Room

	clock      quartz.Clock
	logger     *log.Logger
	baseLogger *log.Logger
	rules      game.Rules
}

// NewRegistry creates a registry with its lobby
func NewRegistry(logger *log.Logger, clock quartz.Clock, rules game.Rules) *Registry {
	r := &Registry{
		members:    make(map[protocol.ClientID]Member),
		rooms:      make(map[string]*Room),
		clock:      clock,
		logger:     logger.WithPrefix("registry"),
		baseLogger: logger,
		rules:      rules,
	}
	r.lobby = newRoom(LobbyName, true, r, logger, clock, rules)
	r.rooms[roomKey(LobbyName)] = r.lobby
	return r
}

func roomKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NextID returns a fresh client id. Ids start at 1 and are never reused.
func (r *Registry) NextID() protocol.ClientID {
	return protocol.ClientID(r.nextID.Add(1))
}

// Lobby returns the permanent lobby
func (r *Registry) Lobby() *Room {
	return r.lobby
}

// Admit registers a member that completed its handshake, tells it its id and
// places it in the lobby.
func (r *Registry) Admit(m Member) {
	r.mu.Lock()
	r.members[m.ID()] = m
	total := len(r.members)
	r.mu.Unlock()

	r.logger.Info("Client admitted", "client", m.DisplayName(), "total", total)

	if err := m.Send(protocol.MustMessage(protocol.ClientIDAssigned{ClientID: m.ID(), Name: m.User().Name})); err != nil {
		r.logger.Warn("Failed to send client id", "client", m.DisplayName(), "error", err)
		_ = m.Close()
		return
	}
	r.lobby.Join(m, false)
}

// Disconnect removes a member from its room and forgets it
func (r *Registry) Disconnect(m Member) {
	if room := m.Room(); room != nil {
		room.Disconnect(m)
	}

	r.mu.Lock()
	_, known := r.members[m.ID()]
	delete(r.members, m.ID())
	total := len(r.members)
	r.mu.Unlock()

	if known {
		r.logger.Info("Client disconnected", "client", m.DisplayName(), "total", total)
	}
}

// Member looks up a connected member by id
func (r *Registry) Member(id protocol.ClientID) (Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	return m, ok
}

// Counts returns the number of connected members and open rooms
func (r *Registry) Counts() (members, rooms int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members), len(r.rooms)
}

// CreateRoom creates a new room. Names are unique ignoring case.
func (r *Registry) CreateRoom(name string) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidRoomName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := roomKey(name)
	if _, ok := r.rooms[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomExists, name)
	}

	room := newRoom(name, false, r, r.baseLogger, r.clock, r.rules)
	r.rooms[key] = room
	r.logger.Info("Room created", "room", name, "rooms", len(r.rooms))
	return room, nil
}

// Room looks up a room by name, ignoring case
func (r *Registry) Room(name string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomKey(name)]
	return room, ok
}

// JoinRoom moves a member into the named room
func (r *Registry) JoinRoom(name string, m Member, spectator bool) error {
	room, ok := r.Room(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, strings.TrimSpace(name))
	}
	r.Move(m, room, spectator)
	return nil
}

// Move takes a member out of its current room and into target. Moving within
// the same room only switches the spectator flag. If target closed in the
// meantime the member lands in the lobby instead.
func (r *Registry) Move(m Member, target *Room, spectator bool) {
	current := m.Room()
	if current == target && target.SetSpectator(m, spectator) {
		return
	}
	if current != nil {
		current.Leave(m)
	}
	if target.Join(m, spectator) {
		return
	}

	r.logger.Debug("Target room closed during move, falling back to lobby", "room", target.Name(), "client", m.DisplayName())
	r.lobby.Join(m, false)
}

// ListRooms returns up to ten room names containing query, ignoring case,
// sorted alphabetically.
func (r *Registry) ListRooms(query string) []string {
	query = roomKey(query)

	r.mu.Lock()
	keys := make([]string, 0, len(r.rooms))
	names := make(map[string]string, len(r.rooms))
	for key, room := range r.rooms {
		if strings.Contains(key, query) {
			keys = append(keys, key)
			names[key] = room.Name()
		}
	}
	r.mu.Unlock()

	sort.Strings(keys)
	if len(keys) > maxListedRooms {
		keys = keys[:maxListedRooms]
	}

	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = names[key]
	}
	return out
}

// RemoveRoom deregisters a closed room
func (r *Registry) RemoveRoom(room *Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := roomKey(room.Name())
	if r.rooms[key] == room {
		delete(r.rooms, key)
		r.logger.Info("Room removed", "room", room.Name(), "rooms", len(r.rooms))
	}
}

// Shutdown force-disconnects every room, lobby last
func (r *Registry) Shutdown() {
	r.mu.Lock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		if room != r.lobby {
			rooms = append(rooms, room)
		}
	}
	r.mu.Unlock()

	r.logger.Info("Shutting down rooms", "rooms", len(rooms)+1)
	for _, room := range rooms {
		room.Shutdown()
	}
	r.lobby.Shutdown()
}
