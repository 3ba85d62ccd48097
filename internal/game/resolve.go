package game

import (
	"fmt"
	"sort"

	"github.com/lox/roshambo/internal/protocol"
)

// Play is one player's pick for a round
type Play struct {
	ID   protocol.ClientID
	Name string
	Move Move
}

// Bout is the outcome of one pairing
type Bout struct {
	A, B   Play
	Result int // Compare(A.Move, B.Move)
}

// String renders the bout for the room log, e.g. "a#1 (rock) vs b#2 (scissors) -> a#1 wins!"
func (b Bout) String() string {
	prefix := fmt.Sprintf("%s (%s) vs %s (%s) -> ", b.A.Name, b.A.Move, b.B.Name, b.B.Move)
	switch b.Result {
	case 1:
		return prefix + b.A.Name + " wins!"
	case -1:
		return prefix + b.B.Name + " wins!"
	}
	return prefix + "Tie!"
}

// RoundResult is the outcome of a pairwise round robin
type RoundResult struct {
	Bouts []Bout
	Wins  map[protocol.ClientID]int
}

// Points returns the total points awarded in the round
func (r RoundResult) Points() int {
	total := 0
	for _, w := range r.Wins {
		total += w
	}
	return total
}

// Resolve compares every pair of plays once. Each bout win is worth one point.
// Plays are ordered by client id so the bout log is deterministic.
func Resolve(plays []Play) RoundResult {
	sorted := append([]Play(nil), plays...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	result := RoundResult{Wins: make(map[protocol.ClientID]int, len(sorted))}
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			b := Bout{A: sorted[i], B: sorted[j], Result: Compare(sorted[i].Move, sorted[j].Move)}
			switch b.Result {
			case 1:
				result.Wins[b.A.ID]++
			case -1:
				result.Wins[b.B.ID]++
			}
			result.Bouts = append(result.Bouts, b)
		}
	}
	return result
}
