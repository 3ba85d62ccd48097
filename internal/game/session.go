package game

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/roshambo/internal/protocol"
)

// Reply codes for rejected game actions
const (
	CodeSpectator      = "spectator"
	CodeGameInProgress = "game_in_progress"
	CodeGameNotStarted = "game_not_started"
	CodeAlreadyReady   = "already_ready"
	CodePlayerAway     = "player_away"
	CodeNotInGame      = "not_in_game"
	CodeInvalidMove    = "invalid_move"
	CodeAlreadyPicked  = "already_picked"
	CodePickCooldown   = "pick_cooldown"
)

// Host is the room side of a session. Every method is called with the
// session's lock held.
type Host interface {
	// Broadcast sends a structured payload to every member
	Broadcast(p protocol.Payload)
	// Announce sends a system chat line to every member
	Announce(text string)
	// Reply sends an error to a single member
	Reply(to Participant, code, text string)
	// Participants lists the members currently present
	Participants() []Participant
}

// Rules configures a session
type Rules struct {
	RoundDuration time.Duration
	TotalRounds   int
	MinPlayers    int
}

// DefaultRules returns the standard 30 second, five round game for two or more players
func DefaultRules() Rules {
	return Rules{
		RoundDuration: 30 * time.Second,
		TotalRounds:   5,
		MinPlayers:    2,
	}
}

// Session is the per-room game state machine.
//
// All exported methods must be called with mu held. The round timer acquires
// mu itself, so a timeout and an early resolution can never both resolve the
// same round.
type Session struct {
	mu     sync.Locker
	host   Host
	clock  quartz.Clock
	logger *log.Logger
	rules  Rules

	players    map[protocol.ClientID]*PlayerState
	inProgress bool
	round      int
	gameID     string

	extraMoves     bool
	cooldown       bool
	settingsChosen bool

	timer    *quartz.Timer
	timerSeq uint64 // bumped whenever the armed timer is superseded
}

// NewSession creates an idle session
func NewSession(host Host, mu sync.Locker, clock quartz.Clock, logger *log.Logger, rules Rules) *Session {
	return &Session{
		mu:      mu,
		host:    host,
		clock:   clock,
		logger:  logger.WithPrefix("session"),
		rules:   rules,
		players: make(map[protocol.ClientID]*PlayerState),
	}
}

// InProgress reports whether a game is running
func (s *Session) InProgress() bool {
	return s.inProgress
}

// MarkReady readies a player. The first player to ready after the session went
// idle chooses the rule toggles.
func (s *Session) MarkReady(p Participant, extra, cooldown bool) {
	if p.Spectator() {
		s.host.Reply(p, CodeSpectator, "Spectators cannot ready up")
		return
	}
	if s.inProgress {
		s.host.Reply(p, CodeGameInProgress, "A game is already in progress")
		return
	}

	state := s.player(p)
	if state.Away {
		s.host.Reply(p, CodePlayerAway, "You are away; toggle away off before readying")
		return
	}
	if state.Ready {
		s.host.Reply(p, CodeAlreadyReady, "You are already ready")
		return
	}

	if !s.settingsChosen {
		s.settingsChosen = true
		s.extraMoves = extra
		s.cooldown = cooldown
		s.host.Announce(fmt.Sprintf("Game settings set by host %s: extra moves %s, cooldown %s",
			p.DisplayName(), onOff(extra), onOff(cooldown)))
	}

	state.Ready = true

	eligible := s.eligible()
	ready := s.readyCount(eligible)
	s.host.Announce(fmt.Sprintf("%s is ready (%d/%d)", p.DisplayName(), ready, max(len(eligible), s.rules.MinPlayers)))
	s.logger.Debug("Player ready", "player", p.DisplayName(), "ready", ready, "eligible", len(eligible))

	s.checkQuorum()
}

// ToggleAway flips a player's away flag
func (s *Session) ToggleAway(p Participant) {
	if p.Spectator() {
		s.host.Reply(p, CodeSpectator, "Spectators cannot go away")
		return
	}

	state, ok := s.players[p.ID()]
	if !ok {
		if s.inProgress {
			s.host.Reply(p, CodeNotInGame, "You are not part of the current game")
			return
		}
		state = s.player(p)
	}

	state.Away = !state.Away
	state.Pick = ""
	state.Ready = false
	if state.Away {
		state.Status = protocol.StatusAway
		s.host.Announce(fmt.Sprintf("%s is away", state.Name))
	} else {
		state.Status = protocol.StatusActive
		if s.inProgress {
			state.Status = protocol.StatusWaiting
		}
		s.host.Announce(fmt.Sprintf("%s is back", state.Name))
	}
	s.syncStatus(state)

	if !s.inProgress {
		s.checkQuorum()
		return
	}
	if state.Away && s.roundComplete() {
		s.resolveRound()
	}
}

// RegisterPick records a player's move for the current round
func (s *Session) RegisterPick(p Participant, text string) {
	if !s.inProgress {
		s.host.Reply(p, CodeGameNotStarted, "The game has not started")
		return
	}
	state, ok := s.players[p.ID()]
	if !ok || p.Spectator() || !state.Active() {
		return
	}

	if state.HasPicked() {
		s.host.Reply(p, CodeAlreadyPicked, "You already picked this round")
		return
	}

	move, err := ParseMove(text, s.extraMoves)
	if err != nil {
		s.host.Reply(p, CodeInvalidMove,
			fmt.Sprintf("%q is not a legal move, pick one of: %s", text, formatMoves(LegalMoves(s.extraMoves))))
		return
	}

	if s.cooldown && move == state.LastPick {
		s.host.Reply(p, CodePickCooldown, fmt.Sprintf("Cooldown: you cannot pick %s two rounds in a row", move))
		return
	}

	state.Pick = move
	state.Status = protocol.StatusPicked
	s.syncStatus(state)
	s.host.Announce(fmt.Sprintf("%s locked in", state.Name))

	if s.roundComplete() {
		s.resolveRound()
	}
}

// RemovePlayer drops a player that left or disconnected. A running round
// resolves immediately if everyone still playing has picked.
func (s *Session) RemovePlayer(id protocol.ClientID) {
	state, ok := s.players[id]
	if !ok {
		return
	}
	delete(s.players, id)

	if !s.inProgress {
		return
	}

	state.Eliminated = true
	state.Status = protocol.StatusEliminated
	s.host.Broadcast(protocol.PlayerStatusUpdate{ClientID: id, Status: protocol.StatusEliminated})
	s.host.Announce(fmt.Sprintf("%s left the game", state.Name))
	s.logger.Info("Player removed mid-game", "game_id", s.gameID, "player", state.Name, "round", s.round)

	if s.roundComplete() {
		s.resolveRound()
	}
}

// MemberLeft is called by the room after a member left. It removes the
// player and re-checks the ready quorum of an idle session.
func (s *Session) MemberLeft(id protocol.ClientID) {
	s.RemovePlayer(id)
	if !s.inProgress {
		s.checkQuorum()
	}
}

// Abandon stops the session without announcing a result
func (s *Session) Abandon() {
	if s.inProgress {
		s.logger.Info("Session abandoned", "game_id", s.gameID, "round", s.round)
	}
	s.stopTimer()
	s.reset()
}

// Snapshot is a copy of the session state
type Snapshot struct {
	InProgress bool
	Round      int
	GameID     string
	ExtraMoves bool
	Cooldown   bool
	Players    []PlayerState
}

// Snapshot returns a copy of the session state with players ordered by id
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		InProgress: s.inProgress,
		Round:      s.round,
		GameID:     s.gameID,
		ExtraMoves: s.extraMoves,
		Cooldown:   s.cooldown,
	}
	for _, state := range s.sortedPlayers() {
		snap.Players = append(snap.Players, *state)
	}
	return snap
}

func (s *Session) player(p Participant) *PlayerState {
	state, ok := s.players[p.ID()]
	if !ok {
		state = newPlayerState(p)
		s.players[p.ID()] = state
	}
	return state
}

// eligible returns present non-spectators that are not away
func (s *Session) eligible() []Participant {
	var out []Participant
	for _, p := range s.host.Participants() {
		if p.Spectator() {
			continue
		}
		if state, ok := s.players[p.ID()]; ok && state.Away {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *Session) readyCount(eligible []Participant) int {
	n := 0
	for _, p := range eligible {
		if state, ok := s.players[p.ID()]; ok && state.Ready {
			n++
		}
	}
	return n
}

func (s *Session) checkQuorum() {
	if s.inProgress {
		return
	}
	eligible := s.eligible()
	if len(eligible) < s.rules.MinPlayers {
		return
	}
	if s.readyCount(eligible) == len(eligible) {
		s.start()
	}
}

func (s *Session) start() {
	present := make(map[protocol.ClientID]Participant)
	for _, p := range s.host.Participants() {
		if !p.Spectator() {
			present[p.ID()] = p
		}
	}
	for id := range s.players {
		if _, ok := present[id]; !ok {
			delete(s.players, id)
		}
	}

	s.inProgress = true
	s.round = 0
	s.gameID = uuid.NewString()

	s.host.Broadcast(protocol.SessionStart{
		GameID:      s.gameID,
		TotalRounds: s.rules.TotalRounds,
		ExtraMoves:  s.extraMoves,
		Cooldown:    s.cooldown,
	})
	s.host.Announce(fmt.Sprintf("Game starting: %d rounds, %d players", s.rules.TotalRounds, len(present)))

	for _, p := range present {
		state := s.player(p)
		state.Eliminated = false
		state.Points = 0
		state.Ready = false
		state.Pick = ""
		state.LastPick = ""
		state.Status = protocol.StatusActive
		if state.Away {
			state.Status = protocol.StatusAway
		}
	}
	for _, state := range s.sortedPlayers() {
		s.syncPoints(state)
		s.syncStatus(state)
	}

	s.logger.Info("Session started",
		"game_id", s.gameID,
		"players", len(present),
		"extra_moves", s.extraMoves,
		"cooldown", s.cooldown)

	s.startRound()
}

func (s *Session) startRound() {
	s.round++
	for _, state := range s.sortedPlayers() {
		if !state.Active() {
			continue
		}
		state.Pick = ""
		state.Status = protocol.StatusWaiting
		s.syncStatus(state)
	}

	s.host.Broadcast(protocol.RoundStart{
		Round:           s.round,
		DurationSeconds: int(s.rules.RoundDuration / time.Second),
	})
	s.host.Announce(fmt.Sprintf("Round %d of %d: pick %s", s.round, s.rules.TotalRounds, formatMoves(LegalMoves(s.extraMoves))))

	s.stopTimer()
	seq := s.timerSeq
	s.timer = s.clock.AfterFunc(s.rules.RoundDuration, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.roundTimeout(seq)
	}, "session", "round")

	s.logger.Debug("Round started", "game_id", s.gameID, "round", s.round)
}

func (s *Session) roundTimeout(seq uint64) {
	if !s.inProgress || seq != s.timerSeq {
		return
	}
	s.timer = nil

	for _, state := range s.sortedPlayers() {
		if state.Active() && !state.HasPicked() {
			s.host.Announce(fmt.Sprintf("%s did not make a pick", state.Name))
		}
	}
	s.logger.Debug("Round timed out", "game_id", s.gameID, "round", s.round)
	s.resolveRound()
}

// roundComplete reports whether the round can resolve without waiting for the timer
func (s *Session) roundComplete() bool {
	if !s.inProgress {
		return false
	}
	if s.activeCount() < 2 {
		return true
	}
	for _, state := range s.players {
		if state.Active() && !state.HasPicked() {
			return false
		}
	}
	return true
}

func (s *Session) resolveRound() {
	s.stopTimer()

	var plays []Play
	for _, state := range s.sortedPlayers() {
		if state.Active() && state.HasPicked() {
			plays = append(plays, Play{ID: state.ID, Name: state.Name, Move: state.Pick})
		}
	}

	result := Resolve(plays)
	for _, bout := range result.Bouts {
		s.host.Announce(bout.String())
	}
	for _, state := range s.sortedPlayers() {
		if wins := result.Wins[state.ID]; wins > 0 {
			state.Points += wins
			s.syncPoints(state)
		}
	}
	for _, state := range s.players {
		state.LastPick = state.Pick
		state.Pick = ""
	}

	s.logger.Debug("Round resolved",
		"game_id", s.gameID,
		"round", s.round,
		"plays", len(plays),
		"points", result.Points())

	if s.round >= s.rules.TotalRounds || s.activeCount() < 2 {
		s.end()
		return
	}
	s.startRound()
}

func (s *Session) end() {
	s.stopTimer()

	players := s.sortedPlayers()
	best := 0
	for _, state := range players {
		if !state.Spectator && state.Points > best {
			best = state.Points
		}
	}

	var winners []string
	points := make([]protocol.PlayerPoints, 0, len(players))
	for _, state := range players {
		if state.Spectator {
			continue
		}
		if best > 0 && state.Points == best {
			winners = append(winners, state.Name)
		}
		points = append(points, protocol.PlayerPoints{ClientID: state.ID, Name: state.Name, Points: state.Points})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Points > points[j].Points })

	tie := len(winners) > 1
	s.host.Broadcast(protocol.GameResult{
		GameID:  s.gameID,
		Winners: winners,
		Tie:     tie,
		Points:  points,
	})

	switch {
	case len(winners) == 0:
		s.host.Announce("Game over! No winner this time")
	case tie:
		s.host.Announce(fmt.Sprintf("Game over! Tie between %s with %d points", strings.Join(winners, ", "), best))
	default:
		s.host.Announce(fmt.Sprintf("Game over! %s wins with %d points", winners[0], best))
	}
	s.host.Broadcast(protocol.ResetGameState{})

	for _, state := range players {
		state.member.SetStanding(state.Points, protocol.StatusActive)
	}

	s.logger.Info("Session finished",
		"game_id", s.gameID,
		"rounds", s.round,
		"winners", winners,
		"tie", tie)

	s.reset()
}

func (s *Session) reset() {
	s.players = make(map[protocol.ClientID]*PlayerState)
	s.inProgress = false
	s.round = 0
	s.extraMoves = false
	s.cooldown = false
	s.settingsChosen = false
}

func (s *Session) stopTimer() {
	s.timerSeq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) activeCount() int {
	n := 0
	for _, state := range s.players {
		if state.Active() {
			n++
		}
	}
	return n
}

func (s *Session) sortedPlayers() []*PlayerState {
	out := make([]*PlayerState, 0, len(s.players))
	for _, state := range s.players {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Session) syncStatus(state *PlayerState) {
	state.member.SetStanding(state.Points, state.Status)
	s.host.Broadcast(protocol.PlayerStatusUpdate{ClientID: state.ID, Status: state.Status})
}

func (s *Session) syncPoints(state *PlayerState) {
	state.member.SetStanding(state.Points, state.Status)
	s.host.Broadcast(protocol.PointsUpdate{ClientID: state.ID, Name: state.Name, Points: state.Points})
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
