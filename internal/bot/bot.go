// internal/bot/bot.go
//
// Telegram update dispatch for the crocodile game.
// Responsibilities:
//   - /start: welcome text in private chats, claim-and-start in groups.
//   - /stop: administrators end the running round.
//   - Plain text in a group: evaluate as a guess.
//   - Inline buttons: want_to_lead, change_word, view_word.
//   - Route every reply into the topic or channel-post thread it belongs to.
//
// Failures talking to Telegram are logged and never roll back game state.
// A panic in a handler is recovered, logged and reported to the operator.

package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crocodile-bot/internal/game"
	"github.com/robalobadob/crocodile-bot/internal/registry"
	"github.com/robalobadob/crocodile-bot/internal/telegram"
)

// API is the subset of the Bot API client used by handlers.
type API interface {
	SendMessage(ctx context.Context, req telegram.SendMessageRequest, markup any) (int64, error)
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string, showAlert bool) error
	GetChatMember(ctx context.Context, chatID, userID int64) (*telegram.ChatMember, error)
}

type Options struct {
	Username       string // bot username without '@'
	Title          string // bot display name
	OperatorChatID int64  // 0 disables alerts
	RoundTime      time.Duration
}

type Bot struct {
	api   API
	games *registry.Registry
	opt   Options
}

// New wires the bot to the registry and installs itself as the round-end
// notifier. Call before Registry.LoadAll so recovered rounds are announced.
func New(api API, games *registry.Registry, opt Options) *Bot {
	b := &Bot{api: api, games: games, opt: opt}
	games.SetNotifier(b)
	return b
}

// Handle processes one update.
func (b *Bot) Handle(ctx context.Context, u telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int64("update", u.UpdateID).Bytes("stack", debug.Stack()).Msg("handler panic")
			b.Alert(ctx, "Handle", fmt.Sprint(r))
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || msg.From.ID == telegram.ChannelBotID || msg.IsAutomaticFwd {
		return
	}

	if cmd, target, ok := msg.Command(); ok {
		if target != "" && !strings.EqualFold(target, b.opt.Username) {
			return
		}
		switch cmd {
		case "start":
			b.cmdStart(ctx, msg)
		case "stop":
			b.cmdStop(ctx, msg)
		}
		return
	}

	if !msg.Chat.IsGroup() {
		return
	}
	g := b.games.GetOrCreate(ctx, metaOf(msg))
	if msg.ForumTopicCreated != nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	b.guess(ctx, g, msg)
}

func (b *Bot) cmdStart(ctx context.Context, msg *telegram.Message) {
	if !msg.Chat.IsGroup() {
		b.send(ctx, telegram.SendMessageRequest{
			ChatID:           msg.Chat.ID,
			ReplyToMessageID: msg.MessageID,
			Text:             welcomeText(b.opt.Title),
			ParseMode:        "HTML",
		}, nil)
		return
	}
	g := b.games.GetOrCreate(ctx, metaOf(msg))
	user := playerOf(*msg.From)
	if err := g.Claim(ctx, user); err != nil {
		b.send(ctx, b.reply(g.Key(), msg.Chat.ID, claimError(err)), nil)
		return
	}
	b.announceStart(ctx, g, user)
}

func (b *Bot) cmdStop(ctx context.Context, msg *telegram.Message) {
	if !msg.Chat.IsGroup() {
		return
	}
	member, err := b.api.GetChatMember(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("getChatMember")
		return
	}
	if !member.IsAdmin() {
		return
	}
	g := b.games.GetOrCreate(ctx, metaOf(msg))
	if !g.ExpireRound(ctx) {
		b.send(ctx, b.reply(g.Key(), msg.Chat.ID, notStartedText), nil)
		return
	}
	log.Info().Str("chat", string(g.Key())).Int64("by", msg.From.ID).Msg("round stopped")
}

func (b *Bot) guess(ctx context.Context, g *game.Game, msg *telegram.Message) {
	user := playerOf(*msg.From)
	verdict, word := g.Guess(ctx, msg.Text, user)
	switch verdict {
	case game.Duplicate:
		if err := b.api.DeleteMessage(ctx, msg.Chat.ID, msg.MessageID); err != nil {
			log.Warn().Err(err).Str("chat", string(g.Key())).Msg("delete duplicate guess")
		}
	case game.Correct:
		b.GuessScored(ctx, g, user, word)
	}
}

// GuessScored announces a correct guess and offers the next round.
func (b *Bot) GuessScored(ctx context.Context, g *game.Game, user game.Player, word string) {
	log.Info().Str("chat", string(g.Key())).Int64("user", user.ID).Str("word", word).Msg("guess scored")
	req := b.reply(g.Key(), g.Chat().ID, guessedText(user.ID, user.Name, word))
	req.ParseMode = "HTML"
	b.send(ctx, req, wantToLeadMarkup())
}

// RoundExpired announces a round that ended unguessed.
func (b *Bot) RoundExpired(ctx context.Context, g *game.Game, word string) {
	req := b.reply(g.Key(), g.Chat().ID, expiredText(word))
	req.ParseMode = "HTML"
	b.send(ctx, req, wantToLeadMarkup())
}

func (b *Bot) handleCallback(ctx context.Context, cq *telegram.CallbackQuery) {
	if cq.Message == nil {
		b.answer(ctx, cq.ID, "", false)
		return
	}
	g := b.games.GetOrCreate(ctx, metaOf(cq.Message))
	user := playerOf(cq.From)

	switch cq.Data {
	case cbWantToLead:
		if err := g.Claim(ctx, user); err != nil {
			b.answer(ctx, cq.ID, claimError(err), true)
			return
		}
		b.answer(ctx, cq.ID, "", false)
		b.announceStart(ctx, g, user)

	case cbChangeWord:
		word, err := g.Reroll(ctx, user.ID)
		if err != nil {
			b.answer(ctx, cq.ID, leaderError(err), false)
			return
		}
		b.answer(ctx, cq.ID, word, true)

	case cbViewWord:
		word, ok := g.Word()
		leader, _ := g.Leader()
		switch {
		case !ok:
			b.answer(ctx, cq.ID, notStartedText, false)
		case leader.ID != user.ID:
			b.answer(ctx, cq.ID, notLeaderText, false)
		default:
			b.answer(ctx, cq.ID, word, true)
		}

	default:
		b.answer(ctx, cq.ID, "", false)
	}
}

func (b *Bot) announceStart(ctx context.Context, g *game.Game, user game.Player) {
	req := b.reply(g.Key(), g.Chat().ID, startText(user.ID, user.Name, b.opt.RoundTime))
	req.ParseMode = "HTML"
	b.send(ctx, req, leaderMarkup())
}

// claimError turns a rejected Claim into the text shown to the player.
func claimError(err error) string {
	var excl *game.ExclusiveError
	switch {
	case errors.Is(err, game.ErrActive):
		return alreadyStartedText
	case errors.As(err, &excl):
		return exclusiveText(excl.Holder.Name, excl.Remaining)
	default:
		return err.Error()
	}
}

func leaderError(err error) string {
	switch {
	case errors.Is(err, game.ErrNotActive):
		return notStartedText
	case errors.Is(err, game.ErrNotLeader):
		return notLeaderText
	default:
		return err.Error()
	}
}

func (b *Bot) answer(ctx context.Context, id, text string, alert bool) {
	if err := b.api.AnswerCallbackQuery(ctx, id, text, alert); err != nil {
		log.Warn().Err(err).Msg("answerCallbackQuery")
	}
}

func (b *Bot) send(ctx context.Context, req telegram.SendMessageRequest, markup any) {
	if _, err := b.api.SendMessage(ctx, req, markup); err != nil {
		log.Error().Err(err).Int64("chat", req.ChatID).Msg("sendMessage")
	}
}

// Alert forwards a failure report to the operator chat, if configured.
func (b *Bot) Alert(ctx context.Context, place, msg string) {
	if b.opt.OperatorChatID == 0 {
		return
	}
	req := telegram.SendMessageRequest{ChatID: b.opt.OperatorChatID, Text: alertText(place, msg), ParseMode: "HTML"}
	if _, err := b.api.SendMessage(ctx, req, nil); err != nil {
		log.Error().Err(err).Msg("operator alert")
	}
}
