package bot

import (
	"log/slog"
	"sync"
	"time"
)

// Registry maps user IDs to their active conversation. Insertion is explicit
// on flow start, removal (with handle release) is explicit on every terminal
// transition — nothing lives in framework-managed storage.
// Thread-safe через sync.Map.
type Registry struct {
	convs sync.Map // map[int64]*conversation
}

// NewRegistry создаёт новый Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Start inserts a fresh conversation for userID, replacing any active one.
// The replaced conversation's handle is disconnected before being discarded.
func (r *Registry) Start(userID, chatID int64, st FlowState) *conversation {
	conv := newConversation(userID, chatID, st)
	if prev, ok := r.convs.Swap(userID, conv); ok {
		old := prev.(*conversation)
		old.mu.Lock()
		old.release()
		old.mu.Unlock()
		slog.Info("replaced active conversation", "user", userID, "oldState", old.state)
	}
	return conv
}

// Get returns the active conversation for userID, or nil.
func (r *Registry) Get(userID int64) *conversation {
	val, ok := r.convs.Load(userID)
	if !ok {
		return nil
	}
	return val.(*conversation)
}

// Remove deletes the conversation and disconnects its handle.
func (r *Registry) Remove(userID int64) {
	val, ok := r.convs.LoadAndDelete(userID)
	if !ok {
		return
	}
	conv := val.(*conversation)
	conv.mu.Lock()
	conv.release()
	conv.mu.Unlock()
}

// Drop removes conv from the registry without touching its lock; the caller
// holds conv.mu and has already released the handle. A conversation that was
// meanwhile replaced by a newer Start is left alone.
func (r *Registry) Drop(conv *conversation) {
	r.convs.CompareAndDelete(conv.userID, conv)
}

// CleanExpired reaps conversations idle longer than ttl, disconnecting their
// handles. Returns the number reaped.
func (r *Registry) CleanExpired(ttl time.Duration) int {
	now := time.Now()
	reaped := 0
	r.convs.Range(func(key, value any) bool {
		conv := value.(*conversation)
		conv.mu.Lock()
		idle := now.Sub(conv.lastActivity)
		if idle > ttl {
			conv.release()
			r.convs.Delete(key)
			reaped++
			slog.Info("reaped idle conversation", "user", conv.userID, "state", conv.state, "idle", idle)
		}
		conv.mu.Unlock()
		return true
	})
	return reaped
}

// Count возвращает количество активных диалогов.
func (r *Registry) Count() int {
	count := 0
	r.convs.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
