package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/udisondev/sessionbot/internal/audit"
	"github.com/udisondev/sessionbot/internal/mtproto"
)

// stepRevoke authenticates the submitted session string on an independent
// handle, verifies it belongs to the requester and invalidates its own
// authorization record. The handle is disconnected exactly once on every
// exit path. Caller holds conv.mu.
func (b *Bot) stepRevoke(ctx context.Context, conv *conversation, text string) {
	// The revocation conversation is single-shot: whatever happens below,
	// it is over.
	defer func() {
		conv.release()
		b.registry.Drop(conv)
	}()

	client, err := b.dialer.DialSession(strings.TrimSpace(text))
	if err != nil {
		slog.Warn("restoring session failed", "user", conv.userID, "err", err)
		b.reply(conv.chatID, "Invalid session")
		return
	}

	disconnected := false
	release := func() {
		if disconnected {
			return
		}
		disconnected = true
		if err := client.Disconnect(); err != nil {
			slog.Warn("revoke handle disconnect failed", "user", conv.userID, "err", err)
		}
	}
	defer release()

	reply, phone, revoked := b.runRevoke(ctx, conv, client)
	b.reply(conv.chatID, reply)
	if revoked {
		release() // drop the connection before the best-effort tail work
		b.auditLog.Record(ctx, audit.Event{
			AttemptID: conv.attemptID,
			Kind:      audit.KindRevoked,
			UserID:    conv.userID,
			Phone:     phone,
		})
		b.notifier.Revoked(conv.userID, phone)
	}
}

// runRevoke walks the revocation steps and returns the user reply, the
// session's phone (set only on success) and whether a revocation actually
// happened. Expected outcomes (invalid, forbidden, not found) get specific
// replies; only real faults get the generic one.
func (b *Bot) runRevoke(ctx context.Context, conv *conversation, client mtproto.Client) (string, string, bool) {
	if err := client.Connect(ctx); err != nil {
		slog.Error("revoke connect failed", "user", conv.userID, "err", err)
		return b.contactReply("Failed!"), "", false
	}

	authorized, err := client.IsAuthorized(ctx)
	if err != nil {
		slog.Error("authorization check failed", "user", conv.userID, "err", err)
		return b.contactReply("Failed!"), "", false
	}
	if !authorized {
		return "Invalid session", "", false
	}

	me, err := client.Self(ctx)
	if err != nil {
		slog.Error("fetching self failed", "user", conv.userID, "err", err)
		return b.contactReply("Failed!"), "", false
	}
	if me.ID != conv.userID {
		slog.Warn("revoke identity mismatch", "requester", conv.userID, "session_owner", me.ID)
		return "Not your session!", "", false
	}

	records, err := client.Authorizations(ctx)
	if err != nil {
		slog.Error("listing authorizations failed", "user", conv.userID, "err", err)
		return b.contactReply("Failed!"), "", false
	}

	var current *mtproto.AuthorizationRecord
	for i := range records {
		if records[i].Current {
			current = &records[i]
			break
		}
	}
	if current == nil {
		return "Active session not found", "", false
	}

	if err := client.ResetAuthorization(ctx, current.Hash); err != nil {
		slog.Error("resetting authorization failed", "user", conv.userID, "err", err)
		return b.contactReply("Failed!"), "", false
	}
	if err := client.LogOut(ctx); err != nil {
		slog.Warn("logout after reset failed", "user", conv.userID, "err", err)
	}

	slog.Info("session revoked", "user", conv.userID, "phone", me.Phone)
	return "Revoked!", me.Phone, true
}
