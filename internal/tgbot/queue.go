package tgbot

import (
	"sync"

	"github.com/udisondev/sessionbot/internal/bot"
)

// userQueue keeps one FIFO of pending updates per user. Updates of different
// users are handled concurrently, but within one user they run strictly in
// arrival order.
type userQueue struct {
	mu      sync.Mutex
	pending map[int64][]bot.Update
}

func newUserQueue() *userQueue {
	return &userQueue{pending: make(map[int64][]bot.Update)}
}

// enqueue appends upd to its user's queue. Returns true when the caller must
// start a drain worker for that user (none is running yet).
func (q *userQueue) enqueue(upd bot.Update) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	queued, running := q.pending[upd.UserID]
	q.pending[upd.UserID] = append(queued, upd)
	return !running
}

// next pops the oldest pending update for userID. When the queue is empty it
// is removed entirely, telling the worker to exit.
func (q *userQueue) next(userID int64) (bot.Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	queued := q.pending[userID]
	if len(queued) == 0 {
		delete(q.pending, userID)
		return bot.Update{}, false
	}
	q.pending[userID] = queued[1:]
	return queued[0], true
}

// drain handles the user's updates one by one until the queue empties.
func (q *userQueue) drain(userID int64, handle func(bot.Update)) {
	for {
		upd, ok := q.next(userID)
		if !ok {
			return
		}
		handle(upd)
	}
}
