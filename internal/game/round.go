// Round Loop

package game

import (
	"fmt"
	"strings"
	"time"

	"racearena/internal/player"
	"racearena/internal/question"
)

// runRoundLoop drives one match from its first PROCESSING round to
// GAME_OVER. It is spawned by HandleReady once CanStart fires, and
// exits only when the match ends or an internal error forces a
// reset. A panic anywhere in the loop is recovered here so the state
// machine is never left stuck mid-round.
func (g *Game) runRoundLoop() {
	defer func() {
		if r := recover(); r != nil {
			g.debugf("round loop: recovered from %v", r)
			g.mu.Lock()
			g.reset()
			g.mu.Unlock()
			g.clients.Broadcast("GAME_OVER;")
		}
	}()

	for {
		if !g.runOneRound() {
			return
		}
	}
}

// runOneRound runs the prepare/deal/collect/score/report/terminate
// sequence once, and reports whether the match continues (false
// means the loop already reset the game and broadcast GAME_OVER).
func (g *Game) runOneRound() bool {
	// 1. Prepare. Round numbering is 1-based, matching the reference
	// implementation's round_index, which is incremented before the
	// first question is ever dealt.
	g.mu.Lock()
	g.round++
	g.state = Processing
	// Reset every player, not just the qualified ones: a disqualified
	// player's diff_points from their last live round must not keep
	// reappearing in every subsequent SCORES broadcast.
	for _, p := range g.players.All() {
		g.players.ResetRound(p.Nickname)
	}
	prepare := g.conf.PrepareTime
	g.mu.Unlock()

	time.Sleep(prepare)

	// 2. Deal.
	g.mu.Lock()
	q := g.q.Generate()
	round := g.round
	g.state = WaitingForAnswers
	answerTime := g.conf.AnswerTime
	g.mu.Unlock()

	g.clients.Broadcast(fmt.Sprintf("QUESTION;%d;%s", round, q.String()))

	// 3. Collect. The sleep always runs to completion; early answers
	// are simply recorded, late ones arrive after the state has
	// already moved on and are rejected by HandleAnswer.
	time.Sleep(answerTime)

	// 4. Score, 5. Fastest bonus, 6. Disqualify, 7. Report, all
	// under the lock; the per-player replies and the broadcasts are
	// sent only after it is released.
	g.mu.Lock()
	var fastestNick string
	var fastestAt time.Time
	haveFastest := false
	fastestBonus := 0

	type reply struct{ nickname, message string }
	var replies []reply

	for _, p := range g.players.All() {
		if p.Disqualified {
			replies = append(replies, reply{p.Nickname, fmt.Sprintf("ANSWER;%d", q.Answer)})
			continue
		}
		if p.AnswerSet && question.Check(q, p.PendingAnswer) {
			g.players.ApplyDelta(p.Nickname, 1)
			p.WAStreak = 0
			replies = append(replies, reply{p.Nickname, fmt.Sprintf("ANSWER_CORRECT;%d", q.Answer)})
			if !haveFastest || p.AnswerTime.Before(fastestAt) {
				fastestNick = p.Nickname
				fastestAt = p.AnswerTime
				haveFastest = true
			}
		} else {
			g.players.ApplyDelta(p.Nickname, -1)
			p.WAStreak++
			fastestBonus++
			replies = append(replies, reply{p.Nickname, fmt.Sprintf("ANSWER_INCORRECT;%d", q.Answer)})
		}
	}

	if haveFastest {
		g.players.ApplyDelta(fastestNick, fastestBonus)
	}

	disqualified := g.players.DisqualifyStreakers()

	roundInfo := g.players.PackRoundInfo()
	qualified := g.players.Qualified()
	over, winner := gameOver(qualified, g.conf.RaceLength)
	g.mu.Unlock()

	for _, r := range replies {
		g.clients.Unicast(r.nickname, r.message)
	}

	if len(disqualified) > 0 {
		names := make([]string, len(disqualified))
		for i, p := range disqualified {
			names[i] = p.Nickname
		}
		g.clients.Broadcast("DISQUALIFICATION;" + strings.Join(names, ";"))
	}

	g.clients.Broadcast(fmt.Sprintf("SCORES;%s;%s", fastestNickOrEmpty(haveFastest, fastestNick), roundInfo))

	if !over {
		return true
	}

	g.mu.Lock()
	g.reset()
	g.mu.Unlock()

	g.clients.Broadcast("GAME_OVER;" + winner)
	return false
}

func fastestNickOrEmpty(have bool, nick string) string {
	if !have {
		return ""
	}
	return nick
}

// gameOver evaluates the termination predicate over the qualified
// players at the end of a round: the match ends when nobody
// qualifies any more, or when someone has reached the race length.
// Ties for the win are broken by the earliest answer_time recorded
// in the terminating round.
func gameOver(qualified []*player.Player, raceLength int) (over bool, winner string) {
	if len(qualified) == 0 {
		return true, ""
	}

	finished := false
	for _, p := range qualified {
		if p.Position >= raceLength {
			finished = true
			break
		}
	}
	if !finished {
		return false, ""
	}

	best := qualified[0]
	for _, p := range qualified[1:] {
		switch {
		case p.Position > best.Position:
			best = p
		case p.Position == best.Position && p.AnswerTime.Before(best.AnswerTime):
			best = p
		}
	}
	return true, best.Nickname
}

// reset tears the finished match down to a fresh LOBBY: a new player
// registry, a new question generator continuing the same underlying
// randomness stream, and cleared client bindings. Callers must hold
// g.mu.
func (g *Game) reset() {
	g.players = player.NewRegistry(g.conf.MaxPlayers)
	g.q = question.New(g.rng, g.conf.OperandMin, g.conf.OperandMax)
	g.state = Lobby
	g.round = 0
	g.clients.ResetBindings()
}
