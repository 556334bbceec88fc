package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robalobadob/crocodile-bot/internal/game"
	"github.com/robalobadob/crocodile-bot/internal/registry"
	"github.com/robalobadob/crocodile-bot/internal/store"
	"github.com/robalobadob/crocodile-bot/internal/telegram"
)

type sent struct {
	req    telegram.SendMessageRequest
	markup any
}

type answered struct {
	id, text string
	alert    bool
}

type fakeAPI struct {
	mu       sync.Mutex
	sent     []sent
	deleted  []int64
	answers  []answered
	adminIDs map[int64]bool
}

func (f *fakeAPI) SendMessage(_ context.Context, req telegram.SendMessageRequest, markup any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{req, markup})
	return int64(len(f.sent)), nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, _, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, id, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answered{id, text, alert})
	return nil
}

func (f *fakeAPI) GetChatMember(_ context.Context, _, userID int64) (*telegram.ChatMember, error) {
	status := "member"
	if f.adminIDs[userID] {
		status = "administrator"
	}
	return &telegram.ChatMember{Status: status, User: telegram.User{ID: userID}}, nil
}

func (f *fakeAPI) last() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type oneWord string

func (w oneWord) Next(map[string]struct{}, *[]string) string { return string(w) }

var (
	group = telegram.Chat{ID: -100, Type: "supergroup", Title: "Croco"}
	ann   = telegram.User{ID: 1, FirstName: "Ann"}
	ben   = telegram.User{ID: 2, FirstName: "Ben", Username: "ben"}
)

func newBot(t *testing.T) (*Bot, *fakeAPI, *registry.Registry) {
	t.Helper()
	api := &fakeAPI{adminIDs: map[int64]bool{1: true}}
	reg := registry.New(store.NewMemoryStore(), game.Deps{
		Words:         oneWord("арбуз"),
		RoundTime:     10 * time.Minute,
		ExclusiveTime: 20 * time.Second,
	})
	t.Cleanup(func() { reg.Close(context.Background()) })
	b := New(api, reg, Options{Username: "CrocoBot", Title: "Croco", OperatorChatID: 999, RoundTime: 10 * time.Minute})
	return b, api, reg
}

var nextID int64

func text(chat telegram.Chat, from telegram.User, s string) telegram.Update {
	nextID++
	m := &telegram.Message{MessageID: nextID, From: &from, Chat: chat, Text: s}
	if strings.HasPrefix(s, "/") {
		n := len(s)
		if i := strings.IndexByte(s, ' '); i > 0 {
			n = i
		}
		m.Entities = []telegram.MessageEntity{{Type: "bot_command", Length: n}}
	}
	return telegram.Update{UpdateID: nextID, Message: m}
}

func button(chat telegram.Chat, from telegram.User, data string) telegram.Update {
	nextID++
	return telegram.Update{UpdateID: nextID, CallbackQuery: &telegram.CallbackQuery{
		ID:      "cb",
		From:    from,
		Data:    data,
		Message: &telegram.Message{MessageID: nextID, Chat: chat},
	}}
}

func TestPrivateStartSendsWelcome(t *testing.T) {
	b, api, _ := newBot(t)
	b.Handle(context.Background(), text(telegram.Chat{ID: 5, Type: "private"}, ann, "/start"))
	if !strings.Contains(api.last().req.Text, "Добро пожаловать") {
		t.Fatalf("text = %q", api.last().req.Text)
	}
}

func TestRoundFlow(t *testing.T) {
	b, api, reg := newBot(t)
	ctx := context.Background()

	b.Handle(ctx, text(group, ann, "/start@CrocoBot"))
	g, ok := reg.Get("-100")
	if !ok || !g.Active() {
		t.Fatal("round not started")
	}
	if m, ok := api.last().markup.(*telegram.InlineKeyboardMarkup); !ok || m.InlineKeyboard[0][0].CallbackData != cbChangeWord {
		t.Fatalf("start markup = %#v", api.last().markup)
	}

	b.Handle(ctx, text(group, ben, "/start"))
	if api.last().req.Text != alreadyStartedText {
		t.Fatalf("second start reply = %q", api.last().req.Text)
	}

	b.Handle(ctx, text(group, ann, "арбуз"))
	if !g.Active() {
		t.Fatal("leader's own message resolved the round")
	}

	b.Handle(ctx, text(group, ben, "дыня"))
	dup := text(group, ben, "Дыня")
	b.Handle(ctx, dup)
	if len(api.deleted) != 1 || api.deleted[0] != dup.Message.MessageID {
		t.Fatalf("deleted = %v", api.deleted)
	}

	b.Handle(ctx, text(group, ben, "арбуз"))
	if g.Active() {
		t.Fatal("correct guess did not resolve the round")
	}
	if !strings.Contains(api.last().req.Text, "отгадал") {
		t.Fatalf("announce = %q", api.last().req.Text)
	}

	// Ann is inside Ben's exclusive window.
	b.Handle(ctx, button(group, ann, cbWantToLead))
	if a := api.answers[len(api.answers)-1]; !a.alert || !strings.Contains(a.text, "Ben") {
		t.Fatalf("claim answer = %+v", a)
	}
	b.Handle(ctx, button(group, ben, cbWantToLead))
	if l, _ := g.Leader(); !g.Active() || l.ID != ben.ID {
		t.Fatalf("ben should lead: active=%v leader=%+v", g.Active(), l)
	}
}

func TestLeaderButtons(t *testing.T) {
	b, api, _ := newBot(t)
	ctx := context.Background()
	b.Handle(ctx, text(group, ann, "/start"))

	b.Handle(ctx, button(group, ben, cbViewWord))
	if a := api.answers[len(api.answers)-1]; a.text != notLeaderText {
		t.Fatalf("non-leader view = %+v", a)
	}
	b.Handle(ctx, button(group, ann, cbViewWord))
	if a := api.answers[len(api.answers)-1]; a.text != "арбуз" || !a.alert {
		t.Fatalf("leader view = %+v", a)
	}
	b.Handle(ctx, button(group, ben, cbChangeWord))
	if a := api.answers[len(api.answers)-1]; a.text != notLeaderText {
		t.Fatalf("non-leader change = %+v", a)
	}
	b.Handle(ctx, button(group, ann, cbChangeWord))
	if a := api.answers[len(api.answers)-1]; a.text != "арбуз" {
		t.Fatalf("leader change = %+v", a)
	}
}

func TestStopRequiresAdmin(t *testing.T) {
	b, api, reg := newBot(t)
	ctx := context.Background()
	b.Handle(ctx, text(group, ben, "/start"))
	g, _ := reg.Get("-100")

	b.Handle(ctx, text(group, ben, "/stop"))
	if !g.Active() {
		t.Fatal("non-admin stopped the round")
	}
	b.Handle(ctx, text(group, ann, "/stop"))
	if g.Active() {
		t.Fatal("admin stop ignored")
	}
	if !strings.Contains(api.last().req.Text, "Игра завершена") {
		t.Fatalf("stop notice = %q", api.last().req.Text)
	}
}

func TestCommandForOtherBotIgnored(t *testing.T) {
	b, api, reg := newBot(t)
	b.Handle(context.Background(), text(group, ann, "/start@OtherBot"))
	if _, ok := reg.Get("-100"); ok || len(api.sent) != 0 {
		t.Fatal("command for another bot was handled")
	}
}

func TestTopicAndPostRouting(t *testing.T) {
	b, api, _ := newBot(t)
	ctx := context.Background()

	topic := text(group, ann, "/start")
	topic.Message.MessageThreadID = 42
	topic.Message.IsTopicMessage = true
	b.Handle(ctx, topic)
	if r := api.last().req; r.MessageThreadID != 42 || r.ReplyToMessageID != 0 {
		t.Fatalf("topic reply = %+v", r)
	}

	post := text(group, ann, "/start")
	post.Message.MessageThreadID = 77
	post.Message.ReplyToMessage = &telegram.Message{MessageID: 77, From: &telegram.User{ID: telegram.ChannelBotID}, Chat: group}
	b.Handle(ctx, post)
	if r := api.last().req; r.ReplyToMessageID != 77 || r.MessageThreadID != 0 {
		t.Fatalf("post reply = %+v", r)
	}
}

func TestAlertAndPanicRecovery(t *testing.T) {
	b, api, _ := newBot(t)
	b.Alert(context.Background(), "store", "disk <full>")
	r := api.last().req
	if r.ChatID != 999 || !strings.Contains(r.Text, "disk &lt;full&gt;") {
		t.Fatalf("alert = %+v", r)
	}

	b.api = panicAPI{api}
	b.Handle(context.Background(), text(telegram.Chat{ID: 5, Type: "private"}, ann, "/start"))
	if !strings.Contains(api.last().req.Text, "Ахтунг") {
		t.Fatal("panic not reported")
	}
}

type panicAPI struct{ *fakeAPI }

func (p panicAPI) SendMessage(ctx context.Context, req telegram.SendMessageRequest, markup any) (int64, error) {
	if req.ChatID != 999 {
		panic("boom")
	}
	return p.fakeAPI.SendMessage(ctx, req, markup)
}

func TestMinutesWord(t *testing.T) {
	for n, want := range map[int]string{1: "минута", 2: "минуты", 5: "минут", 11: "минут", 12: "минут", 21: "минута", 24: "минуты"} {
		if got := minutesWord(n); got != want {
			t.Fatalf("minutesWord(%d) = %q, want %q", n, got, want)
		}
	}
}

type slowAnswerAPI struct{ *fakeAPI }

func (s slowAnswerAPI) AnswerCallbackQuery(ctx context.Context, id, text string, alert bool) error {
	time.Sleep(5 * time.Millisecond)
	return s.fakeAPI.AnswerCallbackQuery(ctx, id, text, alert)
}

func TestConcurrentWantToLeadStartsOneRound(t *testing.T) {
	b, api, reg := newBot(t)
	b.api = slowAnswerAPI{api}
	ctx := context.Background()
	reg.GetOrCreate(ctx, game.MessageMeta{ChatID: group.ID, ChatTitle: group.Title})

	presses := make([]telegram.Update, 5)
	for i := range presses {
		presses[i] = button(group, telegram.User{ID: int64(10 + i), FirstName: "P"}, cbWantToLead)
	}
	var wg sync.WaitGroup
	for _, u := range presses {
		wg.Add(1)
		go func(u telegram.Update) {
			defer wg.Done()
			b.Handle(ctx, u)
		}(u)
	}
	wg.Wait()

	api.mu.Lock()
	defer api.mu.Unlock()
	starts := 0
	for _, s := range api.sent {
		if strings.Contains(s.req.Text, "Игра начинается") {
			starts++
		}
	}
	if starts != 1 {
		t.Fatalf("round-start announcements = %d, want 1", starts)
	}
	rejected := 0
	for _, a := range api.answers {
		if a.text == alreadyStartedText {
			rejected++
		}
	}
	if rejected != 4 {
		t.Fatalf("rejections = %d, want 4", rejected)
	}
}
