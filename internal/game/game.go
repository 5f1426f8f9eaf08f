// Game Controller

// Package game owns the race's state machine and drives its round
// loop. A single mutex serializes every mutation of the state machine
// and the player registry; it is never held across a broadcast,
// unicast, or sleep, so a slow or malicious client can never stall
// the game for everyone else.
package game

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"racearena/internal/client"
	"racearena/internal/logging"
	"racearena/internal/player"
	"racearena/internal/question"
)

// State is one of the three phases the race can be in.
type State uint8

const (
	Lobby State = iota
	Processing
	WaitingForAnswers
)

func (s State) String() string {
	switch s {
	case Lobby:
		return "LOBBY"
	case Processing:
		return "PROCESSING"
	case WaitingForAnswers:
		return "WAITING_FOR_ANSWERS"
	default:
		return "UNKNOWN"
	}
}

// Config holds the tunables a Game is constructed with.
type Config struct {
	MaxPlayers  int
	RaceLength  int
	AnswerTime  time.Duration
	PrepareTime time.Duration
	OperandMin  int
	OperandMax  int
}

// Game is the authoritative race state machine. Construct one with
// New; all exported methods are safe for concurrent use.
type Game struct {
	mu sync.Mutex

	conf    Config
	state   State
	round   int
	players *player.Registry
	clients *client.Registry
	rng     question.Rand
	q       *question.Generator
}

// New constructs a Game in LOBBY, wired to clients for broadcast and
// unicast delivery, and seeded with rng for question generation.
func New(conf Config, clients *client.Registry, rng question.Rand) *Game {
	return &Game{
		conf:    conf,
		state:   Lobby,
		players: player.NewRegistry(conf.MaxPlayers),
		clients: clients,
		rng:     rng,
		q:       question.New(rng, conf.OperandMin, conf.OperandMax),
	}
}

// State reports the game's current phase.
func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// HandleRegister attempts to register nickname for connID. On
// success it binds connID in the client registry, replies with the
// current lobby roster, and announces the new player to everyone
// else.
func (g *Game) HandleRegister(connID, nickname string) error {
	g.mu.Lock()
	if g.state != Lobby {
		g.mu.Unlock()
		return &RegistrationError{Reason: "Cannot register. Game has already started."}
	}

	_, err := g.players.Register(nickname)
	if err != nil {
		g.mu.Unlock()
		return &RegistrationError{Reason: err.Error()}
	}
	g.clients.Bind(connID, nickname)
	roster := g.players.PackLobbyInfo()
	g.mu.Unlock()

	g.clients.Unicast(nickname, "REGISTRATION_SUCCESS;"+roster)
	g.clients.Broadcast("PLAYER_JOINED;"+nickname, nickname)
	return nil
}

// HandleReady marks nickname as ready, announces it, and starts the
// match if every registered player is now ready.
func (g *Game) HandleReady(nickname string) error {
	g.mu.Lock()
	if g.state != Lobby {
		g.mu.Unlock()
		return &WrongStateError{Command: "READY", State: g.state, Reason: "Cannot ready up. Game has already started."}
	}
	g.players.SetReady(nickname, true)
	start := g.players.CanStart()
	if start {
		g.state = Processing
		g.round = 0
	}
	race, answer, prepare := g.conf.RaceLength, g.conf.AnswerTime, g.conf.PrepareTime
	g.mu.Unlock()

	g.clients.Broadcast("PLAYER_READY;"+nickname, nickname)
	if start {
		g.clients.Broadcast(fmt.Sprintf("GAME_STARTING;%d;%s;%s",
			race, formatDuration(answer), formatDuration(prepare)))
		go g.runRoundLoop()
	}
	return nil
}

// HandleUnready clears nickname's readiness and announces it.
func (g *Game) HandleUnready(nickname string) error {
	g.mu.Lock()
	if g.state != Lobby {
		g.mu.Unlock()
		return &WrongStateError{Command: "UNREADY", State: g.state, Reason: "Cannot unready. Game has already started."}
	}
	g.players.SetReady(nickname, false)
	g.mu.Unlock()

	g.clients.Broadcast("PLAYER_UNREADY;"+nickname, nickname)
	return nil
}

// HandleAnswer records nickname's submitted value for the round in
// progress. A later call in the same round overwrites the earlier
// one (last-write-wins).
func (g *Game) HandleAnswer(nickname string, value int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != WaitingForAnswers {
		return &WrongStateError{Command: "ANSWER", State: g.state, Reason: "Not in answering phase."}
	}
	g.players.RecordAnswer(nickname, value, time.Now())
	return nil
}

// HandleDisconnect unregisters nickname if the game is still in
// LOBBY, or disqualifies it otherwise, and announces its departure.
// A nickname that never completed REGISTER is a no-op.
func (g *Game) HandleDisconnect(nickname string) {
	if nickname == "" {
		return
	}

	g.mu.Lock()
	p, ok := g.players.Get(nickname)
	if !ok {
		g.mu.Unlock()
		return
	}
	if g.state == Lobby {
		g.players.Remove(nickname)
	} else {
		p.Disqualified = true
	}
	g.mu.Unlock()

	g.clients.Broadcast("PLAYER_LEFT;" + nickname)
}

// ParseAnswer parses the wire argument of an ANSWER command. It is
// exported so the connection handler can validate the frame shape
// before ever calling into the controller, per the argument-error
// taxonomy in the spec's error handling design.
func ParseAnswer(arg string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(arg))
}

func formatDuration(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func (g *Game) debugf(format string, args ...interface{}) {
	logging.Debug.Printf(format, args...)
}
