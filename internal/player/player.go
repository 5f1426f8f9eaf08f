// Player Records

// Package player holds one registered racer's state. Players are
// constructed only by Registry; the game controller also updates some
// fields (WAStreak, Disqualified) directly, under its own lock.
package player

import "time"

// Player is one registered racer. Fields are exported because the
// game controller reads and mutates them directly while holding the
// controller's lock; Registry only ever hands out the same *Player
// for a given nickname.
type Player struct {
	Nickname     string
	Position     int
	DiffPoints   int
	WAStreak     int
	Ready        bool
	Disqualified bool

	// AnswerSet is true once RecordAnswer has been called for the
	// current round; PendingAnswer/AnswerTime are only meaningful
	// when it is.
	AnswerSet     bool
	PendingAnswer int
	AnswerTime    time.Time
}
