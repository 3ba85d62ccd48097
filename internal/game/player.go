package game

import "github.com/lox/roshambo/internal/protocol"

// Participant is the view of a room member the session needs
type Participant interface {
	ID() protocol.ClientID
	DisplayName() string
	Spectator() bool
	// SetStanding mirrors session state onto the member's user record
	SetStanding(points int, status protocol.PlayerStatus)
}

// PlayerState holds one player's in-session attributes
type PlayerState struct {
	ID         protocol.ClientID
	Name       string
	Pick       Move // empty until picked this round
	LastPick   Move // previous round's pick, for the cooldown rule
	Points     int
	Ready      bool
	Eliminated bool
	Away       bool
	Spectator  bool
	Status     protocol.PlayerStatus

	member Participant
}

func newPlayerState(p Participant) *PlayerState {
	return &PlayerState{
		ID:        p.ID(),
		Name:      p.DisplayName(),
		Spectator: p.Spectator(),
		Status:    protocol.StatusActive,
		member:    p,
	}
}

// Active returns true if the player counts toward round completion
func (p *PlayerState) Active() bool {
	return !p.Eliminated && !p.Away && !p.Spectator
}

// HasPicked returns true if the player has a pick for the current round
func (p *PlayerState) HasPicked() bool {
	return p.Pick != ""
}
