package bot

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/sessionbot/internal/mtproto"
)

// conversation is the per-user login context: everything one in-flight
// attempt owns. Destroyed (and its handle disconnected) on every terminal
// transition. Never persisted.
type conversation struct {
	userID int64
	chatID int64

	// attemptID correlates log lines and audit rows of one attempt.
	attemptID uuid.UUID

	state FlowState

	apiID   int
	apiHash string
	phone   string

	// client is the owned protocol handle. Nil until AwaitPhone completes;
	// always nil for a revocation conversation, which opens its own handle.
	client mtproto.Client

	// originalDC is the binding the handle had when the code was requested.
	// Sign-in must happen against it; migration recovery moves it forward.
	originalDC mtproto.DataCenter

	codeHash     string
	codeIssuedAt time.Time

	lastActivity time.Time

	// mu serializes steps of this conversation; one user's inputs are
	// handled strictly in order.
	mu sync.Mutex
}

func newConversation(userID, chatID int64, st FlowState) *conversation {
	return &conversation{
		userID:       userID,
		chatID:       chatID,
		attemptID:    uuid.New(),
		state:        st,
		lastActivity: time.Now(),
	}
}

// touch refreshes the idle timer.
func (c *conversation) touch() {
	c.lastActivity = time.Now()
}

// release disconnects the owned handle, if any. Safe to call on every
// terminal path; the handle must never be leaked.
func (c *conversation) release() {
	if c.client == nil {
		return
	}
	if c.client.IsConnected() {
		c.client.Disconnect()
	}
	c.client = nil
}
