// Package bot implements the session-generator bot: command routing, the
// login state machine, the revocation flow and the owner command surface.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/udisondev/sessionbot/internal/audit"
	"github.com/udisondev/sessionbot/internal/config"
	"github.com/udisondev/sessionbot/internal/mtproto"
	"github.com/udisondev/sessionbot/internal/notify"
	"github.com/udisondev/sessionbot/internal/state"
)

// ChatInfo is what the transport can tell us about a chat/user.
type ChatInfo struct {
	ID       int64
	Name     string
	Username string
}

// Transport is the slice of the chat layer the bot needs: deliver a text,
// edit one in place, look a chat up.
type Transport interface {
	Send(chatID int64, text string) (int, error)
	Edit(chatID int64, msgID int, text string) error
	ChatInfo(userID int64) (*ChatInfo, error)
}

// Update is one inbound text event.
type Update struct {
	UserID    int64
	ChatID    int64
	FirstName string
	Text      string
	Command   string // empty when the message is plain text
	Args      []string
}

// Bot owns the process-wide pieces and routes updates into handlers.
type Bot struct {
	cfg       config.Bot
	transport Transport
	dialer    mtproto.Dialer
	store     *state.Store
	notifier  *notify.Notifier
	auditLog  *audit.Log
	registry  *Registry
	startedAt time.Time

	// sleep is swappable so retry backoffs don't slow tests down.
	sleep func(ctx context.Context, d time.Duration)
}

// New wires a Bot. auditLog may be nil (auditing disabled).
func New(
	cfg config.Bot,
	transport Transport,
	dialer mtproto.Dialer,
	store *state.Store,
	notifier *notify.Notifier,
	auditLog *audit.Log,
) *Bot {
	return &Bot{
		cfg:       cfg,
		transport: transport,
		dialer:    dialer,
		store:     store,
		notifier:  notifier,
		auditLog:  auditLog,
		registry:  NewRegistry(),
		startedAt: time.Now(),
		sleep:     sleepCtx,
	}
}

// Registry exposes the conversation registry (for the reaper and tests).
func (b *Bot) Registry() *Registry {
	return b.registry
}

// HandleUpdate routes one inbound event. It is the outermost error boundary:
// panics become a generic reply plus an owner notification.
func (b *Bot) HandleUpdate(ctx context.Context, upd Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("unhandled error", "user", upd.UserID, "panic", r)
			b.reply(upd.ChatID, b.contactReply("Something went wrong."))
			b.notifier.Notify(fmt.Sprintf(
				"Unhandled error for user %d:\n%v\n%s", upd.UserID, r, debug.Stack()))
		}
	}()

	if upd.Command != "" {
		b.handleCommand(ctx, upd)
		return
	}

	conv := b.registry.Get(upd.UserID)
	if conv == nil {
		return
	}
	b.stepConversation(ctx, conv, strings.TrimSpace(upd.Text))
}

// stepConversation locks conv and advances it by one input. Between the
// registry lookup and the lock another update may have replaced or removed
// the conversation; a stale one must not be revived, or its handle would
// outlive every reachable reference.
func (b *Bot) stepConversation(ctx context.Context, conv *conversation, text string) {
	conv.mu.Lock()
	defer conv.mu.Unlock()
	if b.registry.Get(conv.userID) != conv {
		conv.release()
		return
	}
	conv.touch()
	b.stepFlow(ctx, conv, text)
}

func (b *Bot) handleCommand(ctx context.Context, upd Update) {
	isOwner := upd.UserID == b.cfg.OwnerID

	if on, msg := b.store.Maintenance(); on && !isOwner {
		b.reply(upd.ChatID, "Maintenance: "+msg)
		return
	}

	switch upd.Command {
	case "start":
		b.cmdStart(upd)
	case "cmds":
		b.cmdCmds(upd, isOwner)
	case "genstring":
		conv := b.registry.Start(upd.UserID, upd.ChatID, StateAwaitAPIID)
		slog.Info("login flow started", "user", upd.UserID, "attempt", conv.attemptID)
		b.reply(upd.ChatID, "Enter API_ID:")
	case "revoke":
		b.registry.Start(upd.UserID, upd.ChatID, StateAwaitSession)
		b.reply(upd.ChatID, "Paste session to revoke:")
	case "resend":
		b.cmdResend(ctx, upd)
	case "cancel":
		// Explicit cancel: release and discard, no further replies.
		b.registry.Remove(upd.UserID)
	case "stats":
		if isOwner {
			b.cmdStats(ctx, upd)
		}
	case "ping":
		if isOwner {
			b.cmdPing(upd)
		}
	case "usage":
		if isOwner {
			b.reply(upd.ChatID, fmt.Sprintf("Sessions: %d", b.store.GenerationCount()))
		}
	case "verify":
		if isOwner {
			b.cmdVerify(upd)
		}
	case "maintenance":
		if isOwner {
			b.cmdMaintenance(upd)
		}
	default:
		// Unknown commands are ignored, same as unknown opcodes.
		slog.Debug("unknown command", "command", upd.Command, "user", upd.UserID)
	}
}

// stepFlow dispatches plain text into the active state machine. Caller holds
// conv.mu.
func (b *Bot) stepFlow(ctx context.Context, conv *conversation, text string) {
	switch conv.state {
	case StateAwaitAPIID:
		b.stepAPIID(conv, text)
	case StateAwaitAPIHash:
		b.stepAPIHash(conv, text)
	case StateAwaitPhone:
		b.stepPhone(ctx, conv, text)
	case StateAwaitCode:
		b.stepCode(ctx, conv, text)
	case StateAwaitPassword:
		b.stepPassword(ctx, conv, text)
	case StateAwaitSession:
		b.stepRevoke(ctx, conv, text)
	case StateDormant:
		// Flow ended; only /resend (or a new /genstring) moves it forward.
		b.reply(conv.chatID, "Use /resend for a new code or /genstring to start over")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.transport.Send(chatID, text); err != nil {
		slog.Error("sending reply failed", "chat", chatID, "err", err)
	}
}

func (b *Bot) contactReply(prefix string) string {
	return fmt.Sprintf("%s Contact %s", prefix, b.cfg.SupportContact)
}

// RunReaper periodically disconnects and removes idle conversations. An
// abandoned flow must not keep a live protocol connection forever.
func (b *Bot) RunReaper(ctx context.Context, interval time.Duration) error {
	ttl := time.Duration(b.cfg.IdleTimeoutMinutes) * time.Minute
	if ttl <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := b.registry.CleanExpired(ttl); n > 0 {
				slog.Info("idle conversations reaped", "count", n)
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
