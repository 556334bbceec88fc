// internal/telegram/types.go
//
// Bot API payloads: updates, messages with thread/topic fields, callback
// queries, chat members, keyboards and the response envelope.

package telegram

import (
	"encoding/json"
	"strings"
)

// ChannelBotID is the sender id Telegram uses for channel posts
// auto-forwarded into a linked discussion group.
const ChannelBotID = 777000

type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type Message struct {
	MessageID         int64              `json:"message_id"`
	MessageThreadID   int64              `json:"message_thread_id,omitempty"`
	IsTopicMessage    bool               `json:"is_topic_message,omitempty"`
	IsAutomaticFwd    bool               `json:"is_automatic_forward,omitempty"`
	From              *User              `json:"from,omitempty"`
	Chat              Chat               `json:"chat"`
	Text              string             `json:"text"`
	Entities          []MessageEntity    `json:"entities,omitempty"`
	ReplyToMessage    *Message           `json:"reply_to_message,omitempty"`
	ForumTopicCreated *ForumTopicCreated `json:"forum_topic_created,omitempty"`
}

// Command returns the bot command at the start of the message without the
// leading slash or any "@botname" suffix, plus the bot name if present.
func (m *Message) Command() (cmd, bot string, ok bool) {
	for _, e := range m.Entities {
		if e.Type != "bot_command" || e.Offset != 0 || e.Length > len(m.Text) {
			continue
		}
		text := strings.TrimPrefix(m.Text[:e.Length], "/")
		cmd, bot, _ = strings.Cut(text, "@")
		return cmd, bot, true
	}
	return "", "", false
}

type ForumTopicCreated struct {
	Name string `json:"name"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// IsGroup reports whether the chat is a group or supergroup.
func (c Chat) IsGroup() bool { return c.Type == "group" || c.Type == "supergroup" }

type MessageEntity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

type ChatMember struct {
	Status string `json:"status"`
	User   User   `json:"user"`
}

// IsAdmin reports creator or administrator status.
func (m ChatMember) IsAdmin() bool { return m.Status == "creator" || m.Status == "administrator" }

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

type SendMessageRequest struct {
	ChatID           int64           `json:"chat_id"`
	MessageThreadID  int64           `json:"message_thread_id,omitempty"`
	ReplyToMessageID int64           `json:"reply_to_message_id,omitempty"`
	Text             string          `json:"text"`
	ParseMode        string          `json:"parse_mode,omitempty"`
	ReplyMarkup      json.RawMessage `json:"reply_markup,omitempty"`
}

type AnswerCallbackQueryRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
}

type SetWebhookRequest struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

type GetUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

type APIResponse struct {
	OK          bool                `json:"ok"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Result      json.RawMessage     `json:"result,omitempty"`
	Parameters  *ResponseParameters `json:"parameters,omitempty"`
}

type ResponseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

type MessageResult struct {
	MessageID int64 `json:"message_id"`
}
