// internal/bot/route.go
//
// Message routing between Telegram and chat keys.
// Responsibilities:
//   - Address replies to the topic or channel-post thread a key names.
//   - Extract routing metadata (thread, topic name, post marker) from messages.
//   - Map Telegram users onto game players.

package bot

import (
	"github.com/robalobadob/crocodile-bot/internal/game"
	"github.com/robalobadob/crocodile-bot/internal/telegram"
)

// reply addresses text to the surface identified by key: forum topics by
// thread id, channel-post threads by replying to the post.
func (b *Bot) reply(key game.ChatKey, chatID int64, text string) telegram.SendMessageRequest {
	req := telegram.SendMessageRequest{ChatID: chatID, Text: text}
	if id, kind, thread, err := game.ParseKey(key); err == nil {
		req.ChatID = id
		switch kind {
		case game.KindTopic:
			req.MessageThreadID = thread
		case game.KindPost:
			req.ReplyToMessageID = thread
		}
	}
	return req
}

func metaOf(msg *telegram.Message) game.MessageMeta {
	m := game.MessageMeta{
		ChatID:         msg.Chat.ID,
		ThreadID:       msg.MessageThreadID,
		IsTopicMessage: msg.IsTopicMessage,
		ChatTitle:      msg.Chat.Title,
		ChatUsername:   msg.Chat.Username,
	}
	if r := msg.ReplyToMessage; r != nil {
		if (r.From != nil && r.From.ID == telegram.ChannelBotID) || r.IsAutomaticFwd {
			m.IsPostThread = true
		}
		if r.ForumTopicCreated != nil {
			m.TopicName = r.ForumTopicCreated.Name
		}
	}
	if msg.ForumTopicCreated != nil {
		m.TopicName = msg.ForumTopicCreated.Name
	}
	return m
}

func playerOf(u telegram.User) game.Player {
	return game.Player{ID: u.ID, Name: u.FullName(), Username: u.Username}
}
