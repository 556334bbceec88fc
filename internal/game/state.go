// internal/game/state.go
//
// Read accessors, the persisted projection (Record/Restore) and the debug
// rendering of a Game. Record carries plain data only; Debug output is
// never persisted.

package game

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/robalobadob/crocodile-bot/internal/store"
	"github.com/robalobadob/crocodile-bot/internal/timer"
)

// Active reports whether a round is running.
func (g *Game) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Chat returns the chat metadata.
func (g *Game) Chat() ChatInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chat
}

// Leader returns the current (or last successful round's) leader.
func (g *Game) Leader() (Player, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.leader == nil {
		return Player{}, false
	}
	return *g.leader, true
}

// Word returns the secret word while a round is running.
func (g *Game) Word() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.word, g.word != ""
}

// RoundRemaining is the time left in the running round, 0 if none.
func (g *Game) RoundRemaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gameTimer == nil {
		return 0
	}
	return g.gameTimer.Remaining()
}

// Exclusive returns the holder of the exclusive right to lead next and the
// time left in their window (0 once the window lapsed). Callers decide
// whether to let someone else start.
func (g *Game) Exclusive() (Player, time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.exclusive == nil {
		return Player{}, 0, false
	}
	var left time.Duration
	if g.exclusiveTimer != nil {
		left = g.exclusiveTimer.Remaining()
	}
	return *g.exclusive, left, true
}

// UsedWords returns the guessed-word history, sorted.
func (g *Game) UsedWords() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return sortedKeys(g.usedWords)
}

// AnswerCount is the number of distinct guesses for the current word.
func (g *Game) AnswerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.answers)
}

// Players returns the informational list of successful guessers.
func (g *Game) Players() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return sortedKeys(g.players)
}

// Record returns the persisted projection of the game.
func (g *Game) Record() *store.Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.recordLocked()
}

func (g *Game) recordLocked() *store.Record {
	rec := &store.Record{
		Active:     g.active,
		UsedWords:  sortedKeys(g.usedWords),
		NextWords:  append([]string{}, g.nextWords...),
		AnswersSet: sortedKeys(g.answers),
		Players:    sortedKeys(g.players),
		ChatID:     g.chat.ID,
		ChatTitle:  g.chat.Title,
	}
	if g.gameTimer != nil {
		rec.GameTimer = store.NewTimerState(g.gameTimer.Interval(), g.gameTimer.EndTime())
	}
	if g.exclusiveTimer != nil {
		rec.ExclusiveTimer = store.NewTimerState(g.exclusiveTimer.Interval(), g.exclusiveTimer.EndTime())
	}
	if g.leader != nil {
		rec.CurrentLeader = ptr(g.leader.ID)
		rec.LeaderName = ptr(g.leader.Name)
	}
	if g.word != "" {
		rec.CurrentWord = ptr(g.word)
	}
	if g.exclusive != nil {
		rec.ExclusiveUser = ptr(g.exclusive.ID)
		rec.ExclusiveUserName = ptr(g.exclusive.Name)
	}
	if g.chat.Username != "" {
		rec.ChatUsername = ptr(g.chat.Username)
	}
	if g.chat.TopicID != 0 {
		rec.TopicID = ptr(g.chat.TopicID)
	}
	if g.chat.TopicName != "" {
		rec.TopicName = ptr(g.chat.TopicName)
	}
	return rec
}

// Restore rebuilds a game from its record and re-arms timers that are
// still running. The second result is true when the record describes a
// round whose timer lapsed while nobody was watching; the caller must then
// run ExpireRound synchronously.
func Restore(key ChatKey, rec *store.Record, deps Deps) (*Game, bool) {
	g := New(key, ChatInfo{
		ID:        rec.ChatID,
		Title:     rec.ChatTitle,
		Username:  deref(rec.ChatUsername),
		TopicID:   deref(rec.TopicID),
		TopicName: deref(rec.TopicName),
	}, deps)

	g.active = rec.Active
	g.word = deref(rec.CurrentWord)
	g.nextWords = append([]string{}, rec.NextWords...)
	addAll(g.usedWords, rec.UsedWords)
	addAll(g.answers, rec.AnswersSet)
	addAll(g.players, rec.Players)
	if rec.CurrentLeader != nil {
		g.leader = &Player{ID: *rec.CurrentLeader, Name: deref(rec.LeaderName)}
	}
	if rec.ExclusiveUser != nil {
		g.exclusive = &Player{ID: *rec.ExclusiveUser, Name: deref(rec.ExclusiveUserName)}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if ts := rec.GameTimer; ts != nil {
		g.roundSeq++
		seq := g.roundSeq
		g.gameTimer = timer.Restore(ts.IntervalDuration(), ts.Deadline(), func() { g.onRoundTimer(seq) })
	}
	if ts := rec.ExclusiveTimer; ts != nil {
		g.exclusiveSeq++
		seq := g.exclusiveSeq
		g.exclusiveTimer = timer.Restore(ts.IntervalDuration(), ts.Deadline(), func() { g.onExclusiveTimer(seq) })
	}
	lapsed := g.active && g.gameTimer == nil
	return g, lapsed
}

// Debug renders the game for operators. Large sets are sampled.
func (g *Game) Debug() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := map[string]any{
		"key":         string(g.key),
		"chat_id":     g.chat.ID,
		"chat_title":  g.chat.Title,
		"active":      g.active,
		"word":        g.word,
		"used_words":  sample(sortedKeys(g.usedWords)),
		"answers_set": sample(sortedKeys(g.answers)),
		"next_words":  g.nextWords,
		"players":     sample(sortedKeys(g.players)),
		"game_timer":  timerString(g.gameTimer),
	}
	if g.chat.TopicID != 0 {
		out["topic"] = fmt.Sprintf("%d %s", g.chat.TopicID, g.chat.TopicName)
	}
	if g.leader != nil {
		out["leader"] = g.leader.label()
	}
	if g.exclusive != nil {
		out["exclusive_user"] = g.exclusive.label()
		out["exclusive_timer"] = timerString(g.exclusiveTimer)
	}
	return out
}

// String is a short label for logs.
func (g *Game) String() string {
	c := g.Chat()
	return fmt.Sprintf("Game<%q, %s>", c.Title, g.key)
}

func timerString(t *timer.Timer) string {
	if t == nil {
		return "none"
	}
	return t.String()
}

func sample(items []string) []string {
	if len(items) <= 6 {
		return items
	}
	picked := make([]string, 0, 6)
	for _, i := range rand.Perm(len(items))[:5] {
		picked = append(picked, items[i])
	}
	return append(picked, fmt.Sprintf("… %d items", len(items)))
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func addAll(m map[string]struct{}, items []string) {
	for _, s := range items {
		m[s] = struct{}{}
	}
}

func ptr[T any](v T) *T { return &v }

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
