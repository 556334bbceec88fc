// internal/game/types.go
//
// Core type definitions for the crocodile game engine.
// Defines:
//   - Player: a chat user as seen by the game.
//   - Verdict: the outcome of evaluating one guess.
//   - ChatInfo: display metadata of the chat hosting a game.
//   - Deps: collaborators injected into every Game.

package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robalobadob/crocodile-bot/internal/store"
)

var (
	// ErrNotActive is returned for round-only actions outside a round.
	ErrNotActive = errors.New("game: no active round")
	// ErrNotLeader is returned when someone other than the leader tries a leader action.
	ErrNotLeader = errors.New("game: not the leader")
	// ErrActive is returned by Claim while a round is running.
	ErrActive = errors.New("game: round already running")
)

// ExclusiveError is returned by Claim while another player's exclusive
// window is open.
type ExclusiveError struct {
	Holder    Player
	Remaining time.Duration
}

func (e *ExclusiveError) Error() string {
	return fmt.Sprintf("game: exclusive right held by %d for %s", e.Holder.ID, e.Remaining.Round(time.Second))
}

// Verdict is the result of evaluating one guess.
type Verdict int

const (
	Incorrect Verdict = iota
	Duplicate
	Correct
)

func (v Verdict) String() string {
	switch v {
	case Duplicate:
		return "duplicate"
	case Correct:
		return "correct"
	default:
		return "incorrect"
	}
}

// Player identifies a chat user.
type Player struct {
	ID       int64
	Name     string
	Username string // without '@', may be empty
}

// label is the informational players-set entry: "<id> <name> [@username]".
func (p Player) label() string {
	s := strconv.FormatInt(p.ID, 10) + " " + p.Name
	if p.Username != "" {
		s += " @" + p.Username
	}
	return s
}

// ChatInfo is refreshed from inbound messages; it never affects game rules.
type ChatInfo struct {
	ID        int64
	Title     string
	Username  string // without '@'
	TopicID   int64  // 0 outside forum topics
	TopicName string
}

// WordSource picks the next secret word. It may pop queue and may reset
// used; it must not add to used.
type WordSource interface {
	Next(used map[string]struct{}, queue *[]string) string
}

// Persister durably stores the record of one game.
type Persister interface {
	Save(ctx context.Context, key string, rec *store.Record) error
}

// RoundEndNotifier is told once per round that ended without a correct guess.
// word is the secret word of that round.
type RoundEndNotifier interface {
	RoundExpired(ctx context.Context, g *Game, word string)
}

// Deps are the collaborators and timings shared by all games.
type Deps struct {
	Words      WordSource
	Store      Persister
	Notifier   RoundEndNotifier
	Normalizer Normalizer // defaults to RussianNormalizer

	RoundTime     time.Duration
	ExclusiveTime time.Duration
}

func (d Deps) normalizer() Normalizer {
	if d.Normalizer == nil {
		return RussianNormalizer{}
	}
	return d.Normalizer
}
