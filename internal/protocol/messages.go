package protocol

import "fmt"

// MessageType identifies the kind of a message
type MessageType string

const (
	// Client -> Server
	TypeConnect      MessageType = "connect"
	TypeRoomCreate   MessageType = "room_create"
	TypeRoomJoin     MessageType = "room_join"
	TypeRoomSpectate MessageType = "room_spectate"
	TypeRoomLeave    MessageType = "room_leave"
	TypeRoomList     MessageType = "room_list"
	TypeReady        MessageType = "ready"
	TypeToggleAway   MessageType = "toggle_away"
	TypePick         MessageType = "pick"

	// Server -> Client
	TypeClientID       MessageType = "client_id"
	TypeRoomJoined     MessageType = "room_joined"
	TypeRoomLeft       MessageType = "room_left"
	TypeSyncClient     MessageType = "sync_client"
	TypeResetUserList  MessageType = "reset_user_list"
	TypeRoomListResult MessageType = "room_list_result"
	TypeSessionStart   MessageType = "session_start"
	TypeRoundStart     MessageType = "round_start"
	TypePlayerStatus   MessageType = "player_status"
	TypePoints         MessageType = "points"
	TypeGameResult     MessageType = "game_result"
	TypeResetGameState MessageType = "reset_game_state"
	TypeError          MessageType = "error"

	// Both directions
	TypeMessage    MessageType = "message"
	TypeDisconnect MessageType = "disconnect"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// ClientID identifies a connection for the lifetime of the process.
type ClientID int64

// SystemClientID is the sender id used for server/room generated text.
const SystemClientID ClientID = 0

// PlayerStatus is the display status of a player within a game session
type PlayerStatus string

const (
	StatusActive     PlayerStatus = "ACTIVE"
	StatusWaiting    PlayerStatus = "WAITING"
	StatusPicked     PlayerStatus = "PICKED"
	StatusAway       PlayerStatus = "AWAY"
	StatusSpectating PlayerStatus = "SPECTATING"
	StatusEliminated PlayerStatus = "ELIMINATED"
)

// User is the identity-adjacent record owned by a connection.
type User struct {
	ClientID  ClientID     `json:"clientId"`
	Name      string       `json:"name"`
	Points    int          `json:"points"`
	Status    PlayerStatus `json:"status"`
	Spectator bool         `json:"spectator"`
}

// DisplayName renders the user as name#id.
func (u User) DisplayName() string {
	return fmt.Sprintf("%s#%d", u.Name, u.ClientID)
}

// SetSpectator flips the spectator flag; spectators always show as SPECTATING.
func (u *User) SetSpectator(spectator bool) {
	u.Spectator = spectator
	if spectator {
		u.Status = StatusSpectating
	} else if u.Status == StatusSpectating {
		u.Status = StatusActive
	}
}

// Reset restores the record to its pre-handshake defaults.
func (u *User) Reset() {
	*u = User{Status: StatusActive}
}

// Payload is implemented by every message body. The set is closed: only the
// types in this file implement it, and Decode switches over all of them.
type Payload interface {
	MessageType() MessageType
}

// Client -> Server payloads

// Connect is the handshake sent right after the transport is established
type Connect struct {
	Name string `json:"name"`
}

// RoomCreate asks the server to create a room and move the sender into it
type RoomCreate struct {
	Name string `json:"name"`
}

// RoomJoin moves the sender into an existing room as a player
type RoomJoin struct {
	Name string `json:"name"`
}

// RoomSpectate moves the sender into an existing room as a spectator
type RoomSpectate struct {
	Name string `json:"name"`
}

// RoomLeave returns the sender to the lobby
type RoomLeave struct{}

// RoomList requests room names containing Query
type RoomList struct {
	Query string `json:"query"`
}

// Ready marks the sender ready. The toggles only bind when the sender is the
// first to ready up in an idle session.
type Ready struct {
	ExtraMoves bool `json:"extraMoves"`
	Cooldown   bool `json:"cooldown"`
}

// ToggleAway flips the sender's away flag
type ToggleAway struct{}

// Pick submits a move for the current round
type Pick struct {
	Move string `json:"move"`
}

// Server -> Client payloads

// ClientIDAssigned tells a client its identifier after the handshake
type ClientIDAssigned struct {
	ClientID ClientID `json:"clientId"`
	Name     string   `json:"name"`
}

// RoomJoined announces a member joining the recipient's room
type RoomJoined struct {
	ClientID  ClientID `json:"clientId"`
	Name      string   `json:"name"`
	Room      string   `json:"room"`
	Spectator bool     `json:"spectator"`
}

// RoomLeft announces a member leaving the recipient's room
type RoomLeft struct {
	ClientID ClientID `json:"clientId"`
	Name     string   `json:"name"`
	Room     string   `json:"room"`
}

// SyncClient silently adds an existing member to the recipient's view
type SyncClient struct {
	ClientID  ClientID `json:"clientId"`
	Name      string   `json:"name"`
	Spectator bool     `json:"spectator"`
}

// ResetUserList clears the recipient's known-members view
type ResetUserList struct{}

// RoomListResult answers a RoomList request
type RoomListResult struct {
	Rooms []string `json:"rooms"`
}

// SessionStart announces a new game session
type SessionStart struct {
	GameID      string `json:"gameId"`
	TotalRounds int    `json:"totalRounds"`
	ExtraMoves  bool   `json:"extraMoves"`
	Cooldown    bool   `json:"cooldown"`
}

// RoundStart announces a new round and how long players have to pick
type RoundStart struct {
	Round           int `json:"round"`
	DurationSeconds int `json:"durationSeconds"`
}

// PlayerStatusUpdate syncs one player's status
type PlayerStatusUpdate struct {
	ClientID ClientID     `json:"clientId"`
	Status   PlayerStatus `json:"status"`
}

// PointsUpdate syncs one player's point total
type PointsUpdate struct {
	ClientID ClientID `json:"clientId"`
	Name     string   `json:"name"`
	Points   int      `json:"points"`
}

// PlayerPoints is one row of a final result
type PlayerPoints struct {
	ClientID ClientID `json:"clientId"`
	Name     string   `json:"name"`
	Points   int      `json:"points"`
}

// GameResult is broadcast when a session ends
type GameResult struct {
	GameID  string         `json:"gameId"`
	Winners []string       `json:"winners"`
	Tie     bool           `json:"tie"`
	Points  []PlayerPoints `json:"points"`
}

// ResetGameState tells clients to re-enable their ready controls
type ResetGameState struct{}

// Error is a direct reply for a rejected request
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Payloads valid in both directions

// Text is a chat line. From the client only Text is read; the server fills in
// the sender.
type Text struct {
	ClientID ClientID `json:"clientId"`
	Text     string   `json:"text"`
}

// Disconnect is sent by a client that wants to leave, and by the server to
// announce a member's disconnect.
type Disconnect struct {
	ClientID ClientID `json:"clientId"`
}

func (Connect) MessageType() MessageType            { return TypeConnect }
func (RoomCreate) MessageType() MessageType         { return TypeRoomCreate }
func (RoomJoin) MessageType() MessageType           { return TypeRoomJoin }
func (RoomSpectate) MessageType() MessageType       { return TypeRoomSpectate }
func (RoomLeave) MessageType() MessageType          { return TypeRoomLeave }
func (RoomList) MessageType() MessageType           { return TypeRoomList }
func (Ready) MessageType() MessageType              { return TypeReady }
func (ToggleAway) MessageType() MessageType         { return TypeToggleAway }
func (Pick) MessageType() MessageType               { return TypePick }
func (ClientIDAssigned) MessageType() MessageType   { return TypeClientID }
func (RoomJoined) MessageType() MessageType         { return TypeRoomJoined }
func (RoomLeft) MessageType() MessageType           { return TypeRoomLeft }
func (SyncClient) MessageType() MessageType         { return TypeSyncClient }
func (ResetUserList) MessageType() MessageType      { return TypeResetUserList }
func (RoomListResult) MessageType() MessageType     { return TypeRoomListResult }
func (SessionStart) MessageType() MessageType       { return TypeSessionStart }
func (RoundStart) MessageType() MessageType         { return TypeRoundStart }
func (PlayerStatusUpdate) MessageType() MessageType { return TypePlayerStatus }
func (PointsUpdate) MessageType() MessageType       { return TypePoints }
func (GameResult) MessageType() MessageType         { return TypeGameResult }
func (ResetGameState) MessageType() MessageType     { return TypeResetGameState }
func (Error) MessageType() MessageType              { return TypeError }
func (Text) MessageType() MessageType               { return TypeMessage }
func (Disconnect) MessageType() MessageType         { return TypeDisconnect }
