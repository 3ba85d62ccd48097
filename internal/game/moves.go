package game

import (
	"errors"
	"fmt"
	"strings"
)

// Move is a legal hand shape
type Move string

const (
	Rock     Move = "rock"
	Paper    Move = "paper"
	Scissors Move = "scissors"
	Lizard   Move = "lizard"
	Spock    Move = "spock"
)

// ErrIllegalMove is returned by ParseMove for anything outside the legal set
var ErrIllegalMove = errors.New("illegal move")

var (
	baseMoves  = []Move{Rock, Paper, Scissors}
	extraMoves = []Move{Rock, Paper, Scissors, Lizard, Spock}
)

// beats lists what each move defeats
var beats = map[Move][2]Move{
	Rock:     {Scissors, Lizard},
	Paper:    {Rock, Spock},
	Scissors: {Paper, Lizard},
	Lizard:   {Spock, Paper},
	Spock:    {Scissors, Rock},
}

// LegalMoves returns the move set for a session
func LegalMoves(extra bool) []Move {
	if extra {
		return append([]Move(nil), extraMoves...)
	}
	return append([]Move(nil), baseMoves...)
}

// ParseMove normalizes free text and validates it against the legal set
func ParseMove(text string, extra bool) (Move, error) {
	m := Move(strings.ToLower(strings.TrimSpace(text)))
	for _, legal := range LegalMoves(extra) {
		if m == legal {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrIllegalMove, text)
}

// Beats reports whether m defeats other
func (m Move) Beats(other Move) bool {
	losers, ok := beats[m]
	return ok && (losers[0] == other || losers[1] == other)
}

// Compare returns 1 if a wins, -1 if b wins and 0 on a tie
func Compare(a, b Move) int {
	switch {
	case a == b:
		return 0
	case a.Beats(b):
		return 1
	case b.Beats(a):
		return -1
	}
	return 0
}

func formatMoves(moves []Move) string {
	names := make([]string, len(moves))
	for i, m := range moves {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
