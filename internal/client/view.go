package client

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lox/roshambo/internal/protocol"
)

// KnownMember is a member of the client's current room
type KnownMember struct {
	ID        protocol.ClientID
	Name      string
	Spectator bool
}

// DisplayName renders the member as name#id
func (m KnownMember) DisplayName() string {
	return fmt.Sprintf("%s#%d", m.Name, m.ID)
}

// View tracks who is in the client's room, from the server's membership messages
type View struct {
	self    protocol.ClientID
	members map[protocol.ClientID]KnownMember
}

// NewView returns an empty view
func NewView() *View {
	return &View{members: make(map[protocol.ClientID]KnownMember)}
}

// Self returns our own id
func (v *View) Self() protocol.ClientID {
	return v.self
}

// Members returns known members ordered by id
func (v *View) Members() []KnownMember {
	out := make([]KnownMember, 0, len(v.members))
	for _, m := range v.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Apply updates the view from a server message
func (v *View) Apply(p protocol.Payload) {
	switch p := p.(type) {
	case protocol.ClientIDAssigned:
		v.self = p.ClientID
	case protocol.ResetUserList:
		clear(v.members)
	case protocol.SyncClient:
		v.members[p.ClientID] = KnownMember{ID: p.ClientID, Name: p.Name, Spectator: p.Spectator}
	case protocol.RoomJoined:
		v.members[p.ClientID] = KnownMember{ID: p.ClientID, Name: p.Name, Spectator: p.Spectator}
	case protocol.RoomLeft:
		if p.ClientID == v.self {
			clear(v.members)
			return
		}
		delete(v.members, p.ClientID)
	case protocol.Disconnect:
		delete(v.members, p.ClientID)
	}
}

func (v *View) name(id protocol.ClientID) string {
	if m, ok := v.members[id]; ok {
		return m.DisplayName()
	}
	return fmt.Sprintf("#%d", id)
}

// Render turns a server message into one console line. Silent messages
// render as "".
func (v *View) Render(p protocol.Payload) string {
	switch p := p.(type) {
	case protocol.ClientIDAssigned:
		return fmt.Sprintf("Connected as %s#%d", p.Name, p.ClientID)
	case protocol.RoomJoined:
		who := KnownMember{ID: p.ClientID, Name: p.Name}.DisplayName()
		if p.ClientID == v.self {
			who = "You"
		}
		if p.Spectator {
			return fmt.Sprintf("%s spectating %s", who, p.Room)
		}
		return fmt.Sprintf("%s joined %s", who, p.Room)
	case protocol.RoomLeft:
		if p.ClientID == v.self {
			return fmt.Sprintf("You left %s", p.Room)
		}
		return fmt.Sprintf("%s left %s", KnownMember{ID: p.ClientID, Name: p.Name}.DisplayName(), p.Room)
	case protocol.Text:
		return p.Text
	case protocol.RoomListResult:
		if len(p.Rooms) == 0 {
			return "No rooms found"
		}
		return "Rooms: " + strings.Join(p.Rooms, ", ")
	case protocol.SessionStart:
		return fmt.Sprintf("Game %s starting: %d rounds, extra moves %s, cooldown %s",
			shortID(p.GameID), p.TotalRounds, onOff(p.ExtraMoves), onOff(p.Cooldown))
	case protocol.RoundStart:
		return fmt.Sprintf("Round %d: you have %ds to /pick", p.Round, p.DurationSeconds)
	case protocol.PlayerStatusUpdate:
		return fmt.Sprintf("%s is %s", v.name(p.ClientID), p.Status)
	case protocol.PointsUpdate:
		return fmt.Sprintf("%s has %d points", p.Name, p.Points)
	case protocol.GameResult:
		return renderResult(p)
	case protocol.ResetGameState:
		return "Use /ready to play again"
	case protocol.Disconnect:
		return fmt.Sprintf("%s disconnected", v.name(p.ClientID))
	case protocol.Error:
		return fmt.Sprintf("Error (%s): %s", p.Code, p.Message)
	}
	return ""
}

func renderResult(p protocol.GameResult) string {
	var b strings.Builder
	switch {
	case len(p.Winners) == 0:
		b.WriteString("No winner")
	case p.Tie:
		b.WriteString("Tie: " + strings.Join(p.Winners, ", "))
	default:
		b.WriteString("Winner: " + p.Winners[0])
	}

	if len(p.Points) > 0 {
		scores := make([]string, len(p.Points))
		for i, pp := range p.Points {
			scores[i] = fmt.Sprintf("%s=%d", pp.Name, pp.Points)
		}
		b.WriteString(" (" + strings.Join(scores, ", ") + ")")
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
