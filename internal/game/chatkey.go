// internal/game/chatkey.go
//
// Chat keys identify one playable surface:
//   - "<chat id>"                  ordinary chat (the chat's primary key)
//   - "<chat id>-<topic id>"       forum topic
//   - "<chat id>-post-<thread id>" discussion thread of a channel post
//
// Keys are derived from message metadata only and double as storage keys,
// so the sign of the chat id and the suffixes are kept verbatim.

package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ChatKey is the game identifier for a chat, topic or post thread.
type ChatKey string

// KeyKind tells which surface a key addresses.
type KeyKind int

const (
	KindChat KeyKind = iota
	KindTopic
	KindPost
)

const postSep = "-post-"

var errBadKey = errors.New("game: malformed chat key")

// MessageMeta is the subset of an inbound message needed to route it.
type MessageMeta struct {
	ChatID         int64
	ThreadID       int64 // 0 when the message is not in a thread
	IsTopicMessage bool
	// IsPostThread is set when the thread hangs off an automatically
	// forwarded channel post.
	IsPostThread bool

	ChatTitle    string
	ChatUsername string
	TopicName    string // only known from the topic-created service message
}

// PostLookup reports threads already known to be channel-post threads.
type PostLookup interface {
	IsPost(chatID, threadID int64) bool
}

// KeyFor derives the chat key for a message.
func KeyFor(m MessageMeta, posts PostLookup) ChatKey {
	if m.IsTopicMessage && m.ThreadID != 0 {
		return ChatKey(fmt.Sprintf("%d-%d", m.ChatID, m.ThreadID))
	}
	if m.ThreadID != 0 && (m.IsPostThread || (posts != nil && posts.IsPost(m.ChatID, m.ThreadID))) {
		return ChatKey(fmt.Sprintf("%d%s%d", m.ChatID, postSep, m.ThreadID))
	}
	return ChatKey(strconv.FormatInt(m.ChatID, 10))
}

// ParseKey splits a key into chat id, kind and thread id.
func ParseKey(k ChatKey) (chatID int64, kind KeyKind, threadID int64, err error) {
	s := string(k)
	if chat, thread, ok := strings.Cut(s, postSep); ok {
		if chatID, err = strconv.ParseInt(chat, 10, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %q", errBadKey, s)
		}
		if threadID, err = strconv.ParseInt(thread, 10, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %q", errBadKey, s)
		}
		return chatID, KindPost, threadID, nil
	}
	// The chat id itself may carry a leading minus.
	if i := strings.LastIndexByte(s, '-'); i > 0 {
		if chatID, err = strconv.ParseInt(s[:i], 10, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %q", errBadKey, s)
		}
		if threadID, err = strconv.ParseInt(s[i+1:], 10, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %q", errBadKey, s)
		}
		return chatID, KindTopic, threadID, nil
	}
	if chatID, err = strconv.ParseInt(s, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", errBadKey, s)
	}
	return chatID, KindChat, 0, nil
}

// IsPrimary reports whether k is the plain chat key rather than a topic or post.
func (k ChatKey) IsPrimary() bool {
	_, kind, _, err := ParseKey(k)
	return err == nil && kind == KindChat
}
