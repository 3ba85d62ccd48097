package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownMessageType is returned when a message kind is not part of the protocol
	ErrUnknownMessageType = errors.New("unknown message type")
	// ErrMalformedMessage is returned when a message body does not match its kind
	ErrMalformedMessage = errors.New("malformed message")
)

// Message is the envelope exchanged on every transport
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps a payload in an envelope stamped with the current time
func NewMessage(p Payload) (*Message, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.MessageType(), err)
	}

	return &Message{
		Type:      p.MessageType(),
		Data:      data,
		Timestamp: time.Now(),
	}, nil
}

// MustMessage is NewMessage for payloads that cannot fail to encode.
// Every payload in this package is plain data, so a failure is a programming error.
func MustMessage(p Payload) *Message {
	msg, err := NewMessage(p)
	if err != nil {
		panic(err)
	}
	return msg
}

// Decode recovers the typed payload carried by a message
func Decode(msg *Message) (Payload, error) {
	var p Payload
	switch msg.Type {
	case TypeConnect:
		p = &Connect{}
	case TypeRoomCreate:
		p = &RoomCreate{}
	case TypeRoomJoin:
		p = &RoomJoin{}
	case TypeRoomSpectate:
		p = &RoomSpectate{}
	case TypeRoomLeave:
		p = &RoomLeave{}
	case TypeRoomList:
		p = &RoomList{}
	case TypeReady:
		p = &Ready{}
	case TypeToggleAway:
		p = &ToggleAway{}
	case TypePick:
		p = &Pick{}
	case TypeClientID:
		p = &ClientIDAssigned{}
	case TypeRoomJoined:
		p = &RoomJoined{}
	case TypeRoomLeft:
		p = &RoomLeft{}
	case TypeSyncClient:
		p = &SyncClient{}
	case TypeResetUserList:
		p = &ResetUserList{}
	case TypeRoomListResult:
		p = &RoomListResult{}
	case TypeSessionStart:
		p = &SessionStart{}
	case TypeRoundStart:
		p = &RoundStart{}
	case TypePlayerStatus:
		p = &PlayerStatusUpdate{}
	case TypePoints:
		p = &PointsUpdate{}
	case TypeGameResult:
		p = &GameResult{}
	case TypeResetGameState:
		p = &ResetGameState{}
	case TypeError:
		p = &Error{}
	case TypeMessage:
		p = &Text{}
	case TypeDisconnect:
		p = &Disconnect{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}

	if len(msg.Data) > 0 && string(msg.Data) != "null" {
		if err := json.Unmarshal(msg.Data, p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, msg.Type, err)
		}
	}

	return deref(p), nil
}

// deref returns payloads by value so callers can type switch on the plain types.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *Connect:
		return *v
	case *RoomCreate:
		return *v
	case *RoomJoin:
		return *v
	case *RoomSpectate:
		return *v
	case *RoomLeave:
		return *v
	case *RoomList:
		return *v
	case *Ready:
		return *v
	case *ToggleAway:
		return *v
	case *Pick:
		return *v
	case *ClientIDAssigned:
		return *v
	case *RoomJoined:
		return *v
	case *RoomLeft:
		return *v
	case *SyncClient:
		return *v
	case *ResetUserList:
		return *v
	case *RoomListResult:
		return *v
	case *SessionStart:
		return *v
	case *RoundStart:
		return *v
	case *PlayerStatusUpdate:
		return *v
	case *PointsUpdate:
		return *v
	case *GameResult:
		return *v
	case *ResetGameState:
		return *v
	case *Error:
		return *v
	case *Text:
		return *v
	case *Disconnect:
		return *v
	}
	return p
}
