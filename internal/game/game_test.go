package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robalobadob/crocodile-bot/internal/store"
)

type fixedWords struct {
	words []string
	i     int
}

func (f *fixedWords) Next(used map[string]struct{}, queue *[]string) string {
	if len(*queue) > 0 {
		w := (*queue)[0]
		*queue = (*queue)[1:]
		return w
	}
	w := f.words[f.i%len(f.words)]
	f.i++
	return w
}

type expiredCall struct {
	key  ChatKey
	word string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []expiredCall
	ch    chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan struct{}, 16)}
}

func (n *recordingNotifier) RoundExpired(_ context.Context, g *Game, word string) {
	n.mu.Lock()
	n.calls = append(n.calls, expiredCall{g.Key(), word})
	n.mu.Unlock()
	n.ch <- struct{}{}
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

var (
	alice = Player{ID: 1, Name: "Alice", Username: "alice"}
	bob   = Player{ID: 2, Name: "Bob"}
)

type fixture struct {
	g        *Game
	store    store.Store
	notifier *recordingNotifier
}

func newFixture(t *testing.T, round, exclusive time.Duration, words ...string) *fixture {
	t.Helper()
	if len(words) == 0 {
		words = []string{"кот бежит"}
	}
	f := &fixture{store: store.NewMemoryStore(), notifier: newRecordingNotifier()}
	f.g = New("-100", ChatInfo{ID: -100, Title: "Test chat"}, Deps{
		Words:         &fixedWords{words: words},
		Store:         f.store,
		Notifier:      f.notifier,
		RoundTime:     round,
		ExclusiveTime: exclusive,
	})
	t.Cleanup(f.g.Close)
	return f
}

// checkInvariants asserts the structural rules that hold after every operation.
func checkInvariants(t *testing.T, g *Game) {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active != (g.word != "" && g.gameTimer != nil) {
		t.Fatalf("active=%v but word=%q timer=%v", g.active, g.word, g.gameTimer != nil)
	}
	if g.exclusiveTimer != nil && g.exclusive == nil {
		t.Fatal("exclusive timer without exclusive user")
	}
	if g.active {
		if _, used := g.usedWords[g.word]; used {
			t.Fatalf("current word %q already in used words", g.word)
		}
	}
}

func TestStartArmsRound(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	ctx := context.Background()

	f.g.Start(ctx, alice)
	checkInvariants(t, f.g)

	if !f.g.Active() {
		t.Fatal("expected active round")
	}
	if w, ok := f.g.Word(); !ok || w != "кот бежит" {
		t.Fatalf("word = %q, %v", w, ok)
	}
	if l, ok := f.g.Leader(); !ok || l.ID != alice.ID {
		t.Fatalf("leader = %+v, %v", l, ok)
	}
	if r := f.g.RoundRemaining(); r <= 59*time.Second {
		t.Fatalf("remaining = %v", r)
	}

	rec, err := f.store.Load(ctx, "-100")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Active || rec.CurrentWord == nil || rec.GameTimer == nil {
		t.Fatalf("persisted record not active: %+v", rec)
	}
}

func TestGuessVerdicts(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	ctx := context.Background()
	f.g.Start(ctx, alice)

	cases := []struct {
		name string
		user Player
		text string
		want Verdict
	}{
		{"leader never scores", alice, "кот бежит", Incorrect},
		{"partial", bob, "кот", Incorrect},
		{"resubmitted", bob, "  КОТ ", Duplicate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got, _ := f.g.Guess(ctx, tc.text, tc.user); got != tc.want {
				t.Fatalf("Guess(%q) = %v, want %v", tc.text, got, tc.want)
			}
			checkInvariants(t, f.g)
		})
	}
	if n := f.g.AnswerCount(); n != 1 {
		t.Fatalf("answers = %d, want 1", n)
	}

	got, word := f.g.Guess(ctx, "Бежит, кот, бежит!", bob)
	if got != Correct || word != "кот бежит" {
		t.Fatalf("Guess = %v %q, want correct", got, word)
	}
	checkInvariants(t, f.g)
}

func TestGuessFoldsYoAndLookalikes(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute, "ёжик")
	ctx := context.Background()
	f.g.Start(ctx, alice)

	// Latin "e" and "k" inside a Cyrillic word.
	if got, _ := f.g.Guess(ctx, "eжиk", bob); got != Correct {
		t.Fatalf("verdict = %v, want correct", got)
	}
}

func TestGuessWhenIdle(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	if got, _ := f.g.Guess(context.Background(), "кот бежит", bob); got != Incorrect {
		t.Fatalf("verdict = %v, want incorrect", got)
	}
	if f.g.AnswerCount() != 0 {
		t.Fatal("idle guess must not be recorded")
	}
}

func TestCorrectGuessOpensExclusiveWindow(t *testing.T) {
	f := newFixture(t, time.Minute, 20*time.Second)
	ctx := context.Background()
	f.g.Start(ctx, alice)

	if v, _ := f.g.Guess(ctx, "кот бежит", bob); v != Correct {
		t.Fatalf("verdict = %v", v)
	}
	checkInvariants(t, f.g)

	if f.g.Active() {
		t.Fatal("round should be resolved")
	}
	used := f.g.UsedWords()
	if len(used) != 1 || used[0] != "кот бежит" {
		t.Fatalf("used = %v", used)
	}
	p, left, ok := f.g.Exclusive()
	if !ok || p.ID != bob.ID {
		t.Fatalf("exclusive = %+v, %v", p, ok)
	}
	if left < 19*time.Second || left > 20*time.Second {
		t.Fatalf("exclusive remaining = %v", left)
	}
	if f.g.AnswerCount() != 0 {
		t.Fatal("answers must be cleared")
	}
	if players := f.g.Players(); len(players) != 1 || players[0] != "2 Bob" {
		t.Fatalf("players = %v", players)
	}
	if f.notifier.count() != 0 {
		t.Fatal("a guessed round must not be reported as expired")
	}
}

func TestRecordCorrectGuessRequiresRound(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	if err := f.g.RecordCorrectGuess(context.Background(), bob); err != ErrNotActive {
		t.Fatalf("err = %v, want ErrNotActive", err)
	}
}

func TestExpireRoundIsIdempotent(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	ctx := context.Background()
	f.g.Start(ctx, alice)

	if !f.g.ExpireRound(ctx) {
		t.Fatal("first expiry should end the round")
	}
	if f.g.ExpireRound(ctx) {
		t.Fatal("second expiry should be a no-op")
	}
	checkInvariants(t, f.g)
	if n := f.notifier.count(); n != 1 {
		t.Fatalf("notifications = %d, want 1", n)
	}
	if f.notifier.calls[0].word != "кот бежит" {
		t.Fatalf("notified word = %q", f.notifier.calls[0].word)
	}
	if _, ok := f.g.Leader(); ok {
		t.Fatal("leader should be cleared on expiry")
	}
}

func TestRoundTimerExpires(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond, time.Minute)
	f.g.Start(context.Background(), alice)

	select {
	case <-f.notifier.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("round did not expire")
	}
	checkInvariants(t, f.g)
	if f.g.Active() {
		t.Fatal("round still active after timeout")
	}
}

func TestGuessBeatsTimeout(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond, time.Minute)
	ctx := context.Background()
	f.g.Start(ctx, alice)

	if v, _ := f.g.Guess(ctx, "кот бежит", bob); v != Correct {
		t.Fatalf("verdict = %v", v)
	}
	time.Sleep(120 * time.Millisecond)
	if n := f.notifier.count(); n != 0 {
		t.Fatalf("stale timer notified %d times", n)
	}
	if _, _, ok := f.g.Exclusive(); !ok {
		t.Fatal("stale timer cleared the exclusive user")
	}
}

func TestExclusiveWindowLapses(t *testing.T) {
	f := newFixture(t, time.Minute, 30*time.Millisecond)
	ctx := context.Background()
	f.g.Start(ctx, alice)
	f.g.Guess(ctx, "кот бежит", bob)

	deadline := time.Now().Add(2 * time.Second)
	for {
		f.g.mu.Lock()
		gone := f.g.exclusiveTimer == nil
		f.g.mu.Unlock()
		if gone {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("exclusive timer never fired")
		}
		time.Sleep(10 * time.Millisecond)
	}
	p, left, ok := f.g.Exclusive()
	if !ok || p.ID != bob.ID || left != 0 {
		t.Fatalf("exclusive = %+v %v %v, want bob with no time left", p, left, ok)
	}
}

func TestRerollRules(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute, "кот бежит", "арбуз")
	ctx := context.Background()

	if _, err := f.g.Reroll(ctx, alice.ID); err != ErrNotActive {
		t.Fatalf("idle reroll err = %v", err)
	}
	f.g.Start(ctx, alice)
	f.g.Guess(ctx, "кот", bob)

	if _, err := f.g.Reroll(ctx, bob.ID); err != ErrNotLeader {
		t.Fatalf("non-leader reroll err = %v", err)
	}
	w, err := f.g.Reroll(ctx, alice.ID)
	if err != nil || w != "арбуз" {
		t.Fatalf("reroll = %q, %v", w, err)
	}
	if f.g.AnswerCount() != 0 {
		t.Fatal("reroll must clear answers")
	}
	checkInvariants(t, f.g)
}

func TestQueuedWordWins(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	ctx := context.Background()
	f.g.QueueWord(ctx, "самолет")
	f.g.Start(ctx, alice)
	if w, _ := f.g.Word(); w != "самолет" {
		t.Fatalf("word = %q", w)
	}
}

func TestRecordRestoreRoundTrip(t *testing.T) {
	f := newFixture(t, time.Minute, 20*time.Second, "кот бежит", "арбуз")
	ctx := context.Background()
	f.g.Start(ctx, alice)
	f.g.Guess(ctx, "кот бежит", bob)
	f.g.Start(ctx, bob)
	f.g.Guess(ctx, "дыня", alice)
	f.g.UpdateChat(ctx, ChatInfo{ID: -100, Title: "Renamed", Username: "club"})

	rec := f.g.Record()
	restored, lapsed := Restore("-100", rec, Deps{Words: &fixedWords{words: []string{"x"}}})
	t.Cleanup(restored.Close)
	if lapsed {
		t.Fatal("running round reported as lapsed")
	}
	checkInvariants(t, restored)

	if w, _ := restored.Word(); w != "арбуз" {
		t.Fatalf("word = %q", w)
	}
	if l, _ := restored.Leader(); l.ID != bob.ID || l.Name != "Bob" {
		t.Fatalf("leader = %+v", l)
	}
	if restored.AnswerCount() != 1 {
		t.Fatalf("answers = %d", restored.AnswerCount())
	}
	if c := restored.Chat(); c.Title != "Renamed" || c.Username != "club" {
		t.Fatalf("chat = %+v", c)
	}
	diff := restored.RoundRemaining() - f.g.RoundRemaining()
	if diff < -time.Second || diff > time.Second {
		t.Fatalf("remaining drifted by %v", diff)
	}
	if !restored.Active() {
		t.Fatal("restored game not active")
	}
	if got, want := restored.UsedWords(), f.g.UsedWords(); !equalStrings(got, want) || len(got) != 1 {
		t.Fatalf("used words = %v, want %v", got, want)
	}
	if got, want := restored.Players(), f.g.Players(); !equalStrings(got, want) || len(got) != 1 {
		t.Fatalf("players = %v, want %v", got, want)
	}
	if _, _, ok := restored.Exclusive(); ok {
		t.Fatal("exclusive right survived a new round")
	}
}

func TestRecordRestoreKeepsExclusiveWindow(t *testing.T) {
	f := newFixture(t, time.Minute, 20*time.Second)
	ctx := context.Background()
	f.g.Start(ctx, alice)
	f.g.Guess(ctx, "кот бежит", bob)

	restored, lapsed := Restore("-100", f.g.Record(), Deps{Words: &fixedWords{words: []string{"x"}}})
	t.Cleanup(restored.Close)
	if lapsed || restored.Active() {
		t.Fatalf("lapsed=%v active=%v, want idle game", lapsed, restored.Active())
	}
	checkInvariants(t, restored)

	if got, want := restored.UsedWords(), f.g.UsedWords(); !equalStrings(got, want) {
		t.Fatalf("used words = %v, want %v", got, want)
	}
	if got, want := restored.Players(), f.g.Players(); !equalStrings(got, want) {
		t.Fatalf("players = %v, want %v", got, want)
	}
	if _, ok := restored.Word(); ok {
		t.Fatal("resolved word restored as current")
	}
	p, left, ok := restored.Exclusive()
	_, origLeft, _ := f.g.Exclusive()
	if !ok || p.ID != bob.ID || p.Name != bob.Name {
		t.Fatalf("exclusive = %+v, %v", p, ok)
	}
	if d := left - origLeft; d < -time.Second || d > time.Second {
		t.Fatalf("exclusive remaining drifted by %v", d)
	}
}

func TestClaimRules(t *testing.T) {
	f := newFixture(t, time.Minute, 20*time.Second)
	ctx := context.Background()

	if err := f.g.Claim(ctx, alice); err != nil {
		t.Fatalf("claim on idle game: %v", err)
	}
	if err := f.g.Claim(ctx, bob); !errors.Is(err, ErrActive) {
		t.Fatalf("claim during round: %v, want ErrActive", err)
	}
	f.g.Guess(ctx, "кот бежит", bob)

	var excl *ExclusiveError
	if err := f.g.Claim(ctx, alice); !errors.As(err, &excl) {
		t.Fatalf("claim inside window: %v, want ExclusiveError", err)
	}
	if excl.Holder.ID != bob.ID || excl.Remaining <= 0 || excl.Remaining > 20*time.Second {
		t.Fatalf("exclusive error = %+v", excl)
	}
	if err := f.g.Claim(ctx, bob); err != nil {
		t.Fatalf("holder claim: %v", err)
	}
	if l, _ := f.g.Leader(); l.ID != bob.ID {
		t.Fatalf("leader = %+v", l)
	}
	checkInvariants(t, f.g)
}

func TestClaimAfterWindowLapses(t *testing.T) {
	f := newFixture(t, time.Minute, 20*time.Millisecond)
	ctx := context.Background()
	f.g.Start(ctx, alice)
	f.g.Guess(ctx, "кот бежит", bob)
	time.Sleep(60 * time.Millisecond)

	if err := f.g.Claim(ctx, alice); err != nil {
		t.Fatalf("claim after window: %v", err)
	}
}

func TestConcurrentClaimStartsOneRound(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	ctx := context.Background()

	const players = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
		start   = make(chan struct{})
	)
	for i := 1; i <= players; i++ {
		wg.Add(1)
		go func(p Player) {
			defer wg.Done()
			<-start
			err := f.g.Claim(ctx, p)
			if err == nil {
				mu.Lock()
				winners = append(winners, p.ID)
				mu.Unlock()
			} else if !errors.Is(err, ErrActive) {
				t.Errorf("claim by %d: %v", p.ID, err)
			}
		}(Player{ID: int64(i), Name: "p"})
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("%d claims started a round, want 1", len(winners))
	}
	if l, _ := f.g.Leader(); l.ID != winners[0] {
		t.Fatalf("leader %d, winner %d", l.ID, winners[0])
	}
	checkInvariants(t, f.g)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRestoreLapsedRound(t *testing.T) {
	end := time.Now().Add(-time.Minute)
	word := "арбуз"
	leader := alice.ID
	rec := &store.Record{
		Active:        true,
		CurrentWord:   &word,
		CurrentLeader: &leader,
		GameTimer:     store.NewTimerState(10*time.Minute, end),
		ChatID:        -100,
	}
	n := newRecordingNotifier()
	g, lapsed := Restore("-100", rec, Deps{Words: &fixedWords{words: []string{"x"}}, Notifier: n})
	if !lapsed {
		t.Fatal("expired round not reported")
	}
	if !g.ExpireRound(context.Background()) {
		t.Fatal("recovery expiry did nothing")
	}
	checkInvariants(t, g)
	if n.count() != 1 || n.calls[0].word != "арбуз" {
		t.Fatalf("notifications = %+v", n.calls)
	}
}

func TestDebugSamplesLargeSets(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute, "длинное слово")
	ctx := context.Background()
	f.g.Start(ctx, alice)
	for _, s := range []string{"а", "б", "в", "г", "д", "е", "ж", "з"} {
		f.g.Guess(ctx, s, bob)
	}
	d := f.g.Debug()
	answers := d["answers_set"].([]string)
	if len(answers) != 6 || answers[5] != "… 8 items" {
		t.Fatalf("answers = %v", answers)
	}
	if d["word"] != "длинное слово" {
		t.Fatalf("word = %v", d["word"])
	}
}
