package server

import "errors"

var (
	// ErrRoomExists is returned when creating a room whose name is taken
	ErrRoomExists = errors.New("room already exists")
	// ErrRoomNotFound is returned when joining a room that does not exist
	ErrRoomNotFound = errors.New("room not found")
	// ErrInvalidRoomName is returned for blank room names
	ErrInvalidRoomName = errors.New("invalid room name")
	// ErrConnectionClosed is returned by Send after the connection closed
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned by Send when the peer is not draining its queue
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrHandshakeTimeout is returned when no connect message arrives in time
	ErrHandshakeTimeout = errors.New("handshake timeout")
)

// Error reply codes
const (
	CodeInvalidMessage    = "invalid_message"
	CodeUnexpectedMessage = "unexpected_message"
	CodeRateLimited       = "rate_limited"
	CodeRoomExists        = "room_exists"
	CodeRoomNotFound      = "room_not_found"
	CodeInvalidRoomName   = "invalid_room_name"
	CodeNotInRoom         = "not_in_room"
	CodeSpectatorChat     = "spectator"
	CodeNotConnected      = "not_connected"
	CodeInvalidName       = "invalid_name"
)
