// Package tgbot adapts the Telegram Bot API to the bot's transport boundary
// and runs the long-poll update loop.
package tgbot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/udisondev/sessionbot/internal/bot"
)

// Transport wraps one authorized Bot API connection.
type Transport struct {
	api *tgbotapi.BotAPI
}

// New authorizes against the Bot API with the given token.
func New(token string) (*Transport, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorizing bot: %w", err)
	}
	return &Transport{api: api}, nil
}

// Username returns the bot's own username.
func (t *Transport) Username() string {
	return t.api.Self.UserName
}

// Send delivers text to a chat and returns the message ID for later edits.
func (t *Transport) Send(chatID int64, text string) (int, error) {
	msg, err := t.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, fmt.Errorf("sending to chat %d: %w", chatID, err)
	}
	return msg.MessageID, nil
}

// Edit rewrites a previously sent message in place.
func (t *Transport) Edit(chatID int64, msgID int, text string) error {
	if _, err := t.api.Send(tgbotapi.NewEditMessageText(chatID, msgID, text)); err != nil {
		return fmt.Errorf("editing message %d in chat %d: %w", msgID, chatID, err)
	}
	return nil
}

// ChatInfo looks a chat up by ID.
func (t *Transport) ChatInfo(userID int64) (*bot.ChatInfo, error) {
	chat, err := t.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: userID},
	})
	if err != nil {
		return nil, fmt.Errorf("getting chat %d: %w", userID, err)
	}
	name := strings.TrimSpace(strings.Join([]string{chat.FirstName, chat.LastName}, " "))
	return &bot.ChatInfo{
		ID:       chat.ID,
		Name:     name,
		Username: chat.UserName,
	}, nil
}
