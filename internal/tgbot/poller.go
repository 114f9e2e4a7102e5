package tgbot

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/udisondev/sessionbot/internal/bot"
)

const pollTimeoutSeconds = 30

// Handler consumes one inbound update.
type Handler interface {
	HandleUpdate(ctx context.Context, upd bot.Update)
}

// Run long-polls for updates and dispatches them through a per-user queue:
// different users are handled concurrently, while one user's messages are
// processed strictly in the order they arrived. Returns when ctx is
// cancelled.
func (t *Transport) Run(ctx context.Context, handler Handler) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := t.api.GetUpdatesChan(cfg)
	queue := newUserQueue()

	go func() {
		<-ctx.Done()
		t.api.StopReceivingUpdates()
	}()

	slog.Info("update loop started", "bot", t.Username())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			upd, ok := convert(update)
			if !ok {
				continue
			}
			if queue.enqueue(upd) {
				go queue.drain(upd.UserID, func(u bot.Update) {
					handler.HandleUpdate(ctx, u)
				})
			}
		}
	}
}

// convert maps a raw Bot API update onto the transport-neutral event. Only
// plain text messages from identifiable users are of interest.
func convert(update tgbotapi.Update) (bot.Update, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return bot.Update{}, false
	}

	upd := bot.Update{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		FirstName: msg.From.FirstName,
		Text:      msg.Text,
	}
	if msg.IsCommand() {
		upd.Command = msg.Command()
		if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
			upd.Args = strings.Fields(args)
		}
	}
	return upd, true
}
