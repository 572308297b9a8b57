// Package room implements the in-memory room model and the pure state
// machine that drives it. Nothing here touches the broker or the
// repository: the runtime actor owns those and translates their I/O into
// calls against Process.
package room

import (
	"encoding/base64"

	"github.com/gala377/Auster/internal/v1/codec"
)

// ID is the 12-byte opaque room identifier assigned by the document store.
type ID [12]byte

// Base64 renders the id the way it appears at every HTTP/MQTT boundary.
func (id ID) Base64() string {
	return base64.StdEncoding.EncodeToString(id[:])
}

// State is the room-level phase (spec.md §3).
type State int

const (
	AcceptingPlayers State = iota
	AcceptingQuestions
	Playing
	Dead
)

func (s State) String() string {
	switch s {
	case AcceptingPlayers:
		return "AcceptingPlayers"
	case AcceptingQuestions:
		return "AcceptingQuestions"
	case Playing:
		return "Playing"
	case Dead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// RoundState is the phase of the room's current round.
type RoundState int

const (
	AcceptingAnswers RoundState = iota
	Polling
)

// Player is a seated participant, identified by a small dense id.
type Player struct {
	ID     codec.PlayerID
	Token  string
	Name   string
	Points int
}

// Question is a player-authored prompt collected during AcceptingQuestions.
type Question struct {
	ID       int
	PlayerID codec.PlayerID
	Content  string
}

// Round is one question's answer/poll cycle. Answers and Polls are keyed
// by the authoring/voting player's id: because exactly one answer per
// player is allowed, a player's own id doubles as that answer's identity,
// so a poll's target (the wire's "answer_id") is simply the author's
// PlayerID.
type Round struct {
	RoundNum int
	State    RoundState
	Question Question
	Answers  map[codec.PlayerID]string
	Polls    map[codec.PlayerID]codec.PlayerID
}

// Room is the in-memory model exclusively owned by one runtime goroutine
// for the room's lifetime.
type Room struct {
	ID           ID
	Pass         int64
	PlayersLimit int
	RoundsLimit  int
	Players      []Player
	Questions    []Question
	CurrRound    *Round
	PastRounds   []Round
	State        State
}

// New constructs an empty room in AcceptingPlayers.
func New(id ID, pass int64, playersLimit, roundsLimit int) *Room {
	return &Room{
		ID:           id,
		Pass:         pass,
		PlayersLimit: playersLimit,
		RoundsLimit:  roundsLimit,
		State:        AcceptingPlayers,
	}
}

// QuestionThreshold is the number of questions collected before the room
// leaves AcceptingQuestions: one per seated player. This mirrors
// PlayersLimit rather than a separately configured value, since the
// original source never specifies a distinct threshold.
func (r *Room) QuestionThreshold() int {
	return r.PlayersLimit
}

func (r *Room) findPlayer(id codec.PlayerID) (*Player, bool) {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i], true
		}
	}
	return nil, false
}

// Scores returns the current points for every seated player, keyed by id.
func (r *Room) Scores() map[codec.PlayerID]int {
	out := make(map[codec.PlayerID]int, len(r.Players))
	for _, p := range r.Players {
		out[p.ID] = p.Points
	}
	return out
}
