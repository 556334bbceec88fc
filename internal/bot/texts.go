// internal/bot/texts.go
//
// Chat texts and inline keyboards.
// Responsibilities:
//   - Round start, guessed and expired announcements (HTML, escaped).
//   - want_to_lead / change_word / view_word buttons.
//   - Operator alert formatting.

package bot

import (
	"fmt"
	"html"
	"time"

	"github.com/robalobadob/crocodile-bot/internal/telegram"
)

const (
	cbWantToLead = "want_to_lead"
	cbChangeWord = "change_word"
	cbViewWord   = "view_word"
)

func wantToLeadMarkup() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "Стать ведущим 🐳", CallbackData: cbWantToLead}},
	}}
}

func leaderMarkup() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "🔄 Сменить", CallbackData: cbChangeWord}, {Text: "🔎 Посмотреть", CallbackData: cbViewWord}},
	}}
}

func welcomeText(botTitle string) string {
	return fmt.Sprintf("🙋 <b>Добро пожаловать в бот \"%s\"!</b>\n\n"+
		"Это бот для игры в <b>Крокодила</b>, предназначенный для использования в <b>групповых чатах</b>.\n\n"+
		"🎮 <b>Как играть?</b>\n"+
		"1. Добавьте бота в группу.\n"+
		"2. Используйте команду <code>/start</code>, чтобы начать игру.",
		html.EscapeString(botTitle))
}

func userLink(id int64, name string) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, id, html.EscapeString(name))
}

// minutesWord picks the Russian plural form for a number of minutes.
func minutesWord(n int) string {
	switch {
	case n%10 == 1 && n%100 != 11:
		return "минута"
	case n%10 >= 2 && n%10 <= 4 && (n%100 < 12 || n%100 > 14):
		return "минуты"
	default:
		return "минут"
	}
}

func startText(leaderID int64, leaderName string, round time.Duration) string {
	m := int(round.Minutes())
	return fmt.Sprintf("🕹 <b>Игра начинается!</b>\n\n<b>%s</b> объясняет слово ⚡️\n"+
		"Время раунда <b>%d</b> %s\n\nВедущий, объясняй слово игрокам",
		userLink(leaderID, leaderName), m, minutesWord(m))
}

func guessedText(userID int64, name, word string) string {
	return fmt.Sprintf("⚡️ %s отгадал(-а) слово <b>%s</b>!\nКто хочет следующим ведущим?",
		userLink(userID, name), html.EscapeString(word))
}

func expiredText(word string) string {
	return fmt.Sprintf("<b>Игра завершена :(</b>\nЗагаданное слово было: <b>%s</b>.\n"+
		"Нажмите /start, чтобы возобновить игру.", html.EscapeString(word))
}

const (
	alreadyStartedText = "Игра уже запущена. Предыдущее слово еще не отгадано."
	notStartedText     = "Игра не запущена."
	notLeaderText      = "Вы не ведущий."
)

func exclusiveText(holder string, left time.Duration) string {
	return fmt.Sprintf("Право стать ведущим у %s ещё %d сек.", holder, int(left.Round(time.Second).Seconds()))
}

func alertText(place, msg string) string {
	text := "<b>Ахтунг</b>"
	if place != "" {
		text += "<b> в </b><code>" + html.EscapeString(place) + "</code>"
	}
	return text + ":\n\n<i>" + html.EscapeString(msg) + "</i>"
}
