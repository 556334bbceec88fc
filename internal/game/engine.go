// internal/game/engine.go
//
// Per-chat game state machine.
// Responsibilities:
//   - Start rounds: assign a leader, draw a word, arm the round timer.
//   - Evaluate guesses: duplicate suppression and lenient subset matching.
//   - Hand over leadership: a correct guess opens a timed exclusive window
//     for the guesser.
//   - Expire rounds on timeout or moderator stop, notifying exactly once.
//   - Persist after every state change.
//
// State transitions:
//   Idle --Start--> Active --correct guess--> ExclusivePending --Start--> Active
//   Active --timeout/stop--> Idle
//   ExclusivePending --window lapses--> (exclusive right kept, timer gone)
//
// Notes:
//   - All fields are guarded by mu. Timer callbacks run on their own
//     goroutines and carry the sequence number of the timer that armed them;
//     a callback whose sequence is stale is a no-op. This closes the race
//     between a timeout and a concurrent correct guess.
//   - Store writes happen under mu so records land in mutation order. A
//     failed write is logged and the in-memory state stays authoritative.
//     With a retrying store a failing backend holds mu for the whole
//     backoff, so every operation on that game (timer callbacks and Claim
//     included) waits for it. Other games are unaffected.
//   - Claim is the only start path for players: the active check, the
//     exclusive-window check and Start happen under one lock.
//   - Notifications run after mu is released.

package game

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crocodile-bot/internal/timer"
)

// Game holds all mutable state of one chat key.
type Game struct {
	key  ChatKey
	deps Deps

	mu             sync.Mutex
	chat           ChatInfo
	active         bool
	usedWords      map[string]struct{}
	word           string // "" when no round is running
	nextWords      []string
	answers        map[string]struct{}
	leader         *Player
	exclusive      *Player
	players        map[string]struct{}
	gameTimer      *timer.Timer
	exclusiveTimer *timer.Timer
	roundSeq       uint64
	exclusiveSeq   uint64
}

// New creates an idle game.
func New(key ChatKey, chat ChatInfo, deps Deps) *Game {
	return &Game{
		key:       key,
		deps:      deps,
		chat:      chat,
		usedWords: make(map[string]struct{}),
		answers:   make(map[string]struct{}),
		players:   make(map[string]struct{}),
	}
}

// Key returns the chat key of the game.
func (g *Game) Key() ChatKey { return g.key }

// Start makes user the leader of a fresh round. Callers reject Start while
// a round is active; Start itself does not. Use Claim for player requests.
func (g *Game) Start(ctx context.Context, user Player) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.startLocked(ctx, user)
}

// Claim starts a round led by user unless a round is running (ErrActive)
// or another player's exclusive window is still open (*ExclusiveError).
func (g *Game) Claim(ctx context.Context, user Player) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active {
		return ErrActive
	}
	if g.exclusive != nil && g.exclusive.ID != user.ID && g.exclusiveTimer != nil {
		if left := g.exclusiveTimer.Remaining(); left > 0 {
			return &ExclusiveError{Holder: *g.exclusive, Remaining: left}
		}
	}
	g.startLocked(ctx, user)
	return nil
}

func (g *Game) startLocked(ctx context.Context, user Player) {
	g.stopExclusiveTimerLocked()
	g.exclusive = nil
	g.active = true
	g.leader = &user
	g.drawWordLocked()

	g.gameTimer.Cancel()
	g.roundSeq++
	seq := g.roundSeq
	g.gameTimer = timer.Start(g.deps.RoundTime, func() { g.onRoundTimer(seq) })

	log.Info().Str("chat", string(g.key)).Int64("leader", user.ID).Msg("round started")
	g.persistLocked(ctx)
}

// Guess evaluates raw text from user against the secret word. On Correct
// the round is resolved and the guessed word is returned.
func (g *Game) Guess(ctx context.Context, raw string, user Player) (Verdict, string) {
	norm := g.deps.normalizer().Normalize(raw)

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active || (g.leader != nil && g.leader.ID == user.ID) {
		return Incorrect, ""
	}
	if _, dup := g.answers[norm]; dup {
		return Duplicate, ""
	}
	g.answers[norm] = struct{}{}

	if !g.matchesLocked(norm) {
		g.persistLocked(ctx)
		return Incorrect, ""
	}
	word := g.word
	g.resolveLocked(ctx, user)
	return Correct, word
}

func (g *Game) matchesLocked(norm string) bool {
	target := g.deps.normalizer().Normalize(g.word)
	want := Tokenize(target)
	if len(want) == 0 {
		return norm == target
	}
	return isSubset(want, Tokenize(norm))
}

// RecordCorrectGuess resolves the active round in favour of user.
func (g *Game) RecordCorrectGuess(ctx context.Context, user Player) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return ErrNotActive
	}
	g.resolveLocked(ctx, user)
	return nil
}

func (g *Game) resolveLocked(ctx context.Context, user Player) {
	g.active = false
	g.gameTimer.Cancel()
	g.gameTimer = nil
	g.roundSeq++

	g.stopExclusiveTimerLocked()
	g.exclusiveSeq++
	seq := g.exclusiveSeq
	g.exclusiveTimer = timer.Start(g.deps.ExclusiveTime, func() { g.onExclusiveTimer(seq) })
	g.exclusive = &user

	g.usedWords[g.word] = struct{}{}
	g.word = ""
	g.players[user.label()] = struct{}{}
	clear(g.answers)

	log.Info().Str("chat", string(g.key)).Int64("user", user.ID).Msg("word guessed")
	g.persistLocked(ctx)
}

// Reroll draws a new word for the running round. Only the leader may reroll.
func (g *Game) Reroll(ctx context.Context, by int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return "", ErrNotActive
	}
	if g.leader == nil || g.leader.ID != by {
		return "", ErrNotLeader
	}
	g.drawWordLocked()
	g.persistLocked(ctx)
	return g.word, nil
}

func (g *Game) drawWordLocked() {
	g.word = g.deps.Words.Next(g.usedWords, &g.nextWords)
	clear(g.answers)
}

// ExpireRound ends the current round as unguessed: the timeout path and
// the moderator stop. It reports whether a running round was ended; a
// second call is a no-op.
func (g *Game) ExpireRound(ctx context.Context) bool {
	g.mu.Lock()
	word, ended := g.expireLocked(ctx)
	g.mu.Unlock()

	if ended {
		g.notifyExpired(ctx, word)
	}
	return ended
}

func (g *Game) onRoundTimer(seq uint64) {
	ctx := context.Background()
	g.mu.Lock()
	if seq != g.roundSeq {
		g.mu.Unlock()
		return
	}
	word, ended := g.expireLocked(ctx)
	g.mu.Unlock()

	if ended {
		g.notifyExpired(ctx, word)
	}
}

func (g *Game) expireLocked(ctx context.Context) (string, bool) {
	wasActive := g.active
	word := g.word

	g.gameTimer.Cancel()
	g.gameTimer = nil
	g.roundSeq++
	g.exclusive = nil
	g.stopExclusiveTimerLocked()
	clear(g.answers)

	if wasActive {
		g.active = false
		g.word = ""
		g.leader = nil
		log.Info().Str("chat", string(g.key)).Msg("round expired")
	}
	g.persistLocked(ctx)
	return word, wasActive
}

func (g *Game) notifyExpired(ctx context.Context, word string) {
	if g.deps.Notifier != nil {
		g.deps.Notifier.RoundExpired(ctx, g, word)
	}
}

func (g *Game) onExclusiveTimer(seq uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seq != g.exclusiveSeq {
		return
	}
	g.exclusiveTimer = nil
	g.persistLocked(context.Background())
}

func (g *Game) stopExclusiveTimerLocked() {
	g.exclusiveTimer.Cancel()
	g.exclusiveTimer = nil
	g.exclusiveSeq++
}

// QueueWord appends a word that pre-empts the vocabulary for upcoming rounds.
func (g *Game) QueueWord(ctx context.Context, word string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextWords = append(g.nextWords, word)
	g.persistLocked(ctx)
}

// UpdateChat refreshes display metadata and persists if anything changed.
func (g *Game) UpdateChat(ctx context.Context, info ChatInfo) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if info.TopicName == "" && info.TopicID == g.chat.TopicID {
		// Topic names only arrive with the topic-created message.
		info.TopicName = g.chat.TopicName
	}
	if info == g.chat {
		return false
	}
	g.chat = info
	g.persistLocked(ctx)
	return true
}

// Flush writes the current record and returns the store error, if any.
func (g *Game) Flush(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deps.Store == nil {
		return nil
	}
	return g.deps.Store.Save(ctx, string(g.key), g.recordLocked())
}

// Close cancels both timers without running their callbacks.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gameTimer.Cancel()
	g.exclusiveTimer.Cancel()
	g.roundSeq++
	g.exclusiveSeq++
}

func (g *Game) persistLocked(ctx context.Context) {
	if g.deps.Store == nil {
		return
	}
	if err := g.deps.Store.Save(ctx, string(g.key), g.recordLocked()); err != nil {
		log.Error().Err(err).Str("chat", string(g.key)).Msg("persist game")
	}
}
