// Package game implements the round-based rock-paper-scissors-lizard-spock
// session that runs inside a room.
//
// The main type is Session, a state machine that gates on readiness, runs
// timed rounds, collects picks, scores them and resets back to idle.
//
// # Basic Usage
//
// A Session never locks on its own behalf except from its round timer. The
// owner holds the same lock it passed to NewSession around every call:
//
//	var mu sync.Mutex
//	s := game.NewSession(host, &mu, quartz.NewReal(), logger, game.DefaultRules())
//
//	mu.Lock()
//	s.MarkReady(alice, false, false)
//	mu.Unlock()
//
// # Scoring
//
// Each round every pair of active players that picked is compared with the
// extended beats relation and the winner of a bout scores one point. Resolve
// is a pure function over the picks, so scoring can be tested without a
// session:
//
//	result := game.Resolve([]game.Play{{ID: 1, Name: "a#1", Move: game.Rock}, {ID: 2, Name: "b#2", Move: game.Paper}})
//	// result.Wins[2] == 1
//
// # Deterministic Testing
//
// Round timeouts run on an injected quartz.Clock. Tests pass quartz.NewMock
// and advance it to fire the round timer.
package game
