package bot

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

func (b *Bot) cmdStart(upd Update) {
	b.reply(upd.ChatID, fmt.Sprintf(
		"Hello %s!\nYour ID: %d\n\nUse /cmds for commands", upd.FirstName, upd.UserID))
}

func (b *Bot) cmdCmds(upd Update, isOwner bool) {
	commands := []string{
		"/start - Start bot",
		"/cmds - Command list",
		"/genstring - Generate session",
		"/revoke - Revoke session",
		"/resend - Resend OTP",
		"/cancel - Cancel current flow",
	}
	if isOwner {
		commands = append(commands,
			"",
			"Owner:",
			"/stats - Server status",
			"/ping - Check latency",
			"/usage - Session count",
			"/verify <id> - User info",
			"/maintenance [msg] - Toggle mode",
		)
	}
	b.reply(upd.ChatID, strings.Join(commands, "\n"))
}

// cmdPing measures the send + edit round trip and rewrites the message in
// place with the result.
func (b *Bot) cmdPing(upd Update) {
	start := time.Now()
	msgID, err := b.transport.Send(upd.ChatID, "Pong!")
	if err != nil {
		slog.Error("ping send failed", "err", err)
		return
	}
	latency := time.Since(start)
	text := fmt.Sprintf("%.2fms\n%s", float64(latency.Microseconds())/1000, time.Now().Format("15:04:05"))
	if err := b.transport.Edit(upd.ChatID, msgID, text); err != nil {
		slog.Error("ping edit failed", "err", err)
	}
}

func (b *Bot) cmdVerify(upd Update) {
	if len(upd.Args) != 1 {
		b.reply(upd.ChatID, "Use: /verify <user_id>")
		return
	}
	userID, err := strconv.ParseInt(upd.Args[0], 10, 64)
	if err != nil {
		b.reply(upd.ChatID, "Use: /verify <user_id>")
		return
	}

	info, err := b.transport.ChatInfo(userID)
	if err != nil {
		slog.Warn("chat lookup failed", "target", userID, "err", err)
		b.reply(upd.ChatID, "Use: /verify <user_id>")
		return
	}

	status := "Active"
	if info.Name == "" {
		status = "Deleted"
	}
	b.reply(upd.ChatID, fmt.Sprintf(
		"User:\nID: %d\nName: %s\nUsername: @%s\nStatus: %s",
		info.ID, info.Name, info.Username, status))
}

func (b *Bot) cmdMaintenance(upd Update) {
	msg := strings.Join(upd.Args, " ")
	on, err := b.store.ToggleMaintenance(msg)
	if err != nil {
		slog.Error("persisting maintenance toggle failed", "err", err)
	}
	mode := "DISABLED"
	if on {
		mode = "ENABLED"
	}
	b.reply(upd.ChatID, fmt.Sprintf("Maintenance %s\nMessage: %s", mode, msg))
}
