package platform

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAwaitTimeout reports that no reply arrived inside the window.
var ErrAwaitTimeout = errors.New("timed out waiting for reply")

// ErrAwaitSuperseded reports that a newer Await for the same user
// replaced this one.
var ErrAwaitSuperseded = errors.New("superseded by a newer prompt")

// Waiters routes incoming records to operations blocked on a reply from
// a specific user. One pending wait per user: a second Await replaces
// the first.
type Waiters struct {
	mu     sync.Mutex
	byUser map[string]chan Record
}

func NewWaiters() *Waiters {
	return &Waiters{byUser: make(map[string]chan Record)}
}

// Handle feeds a record into the pending wait for its author, if any.
// Records written by bots are ignored. Register it with Gateway.OnMessage.
func (w *Waiters) Handle(rec Record) {
	if rec.Author.Bot {
		return
	}
	w.mu.Lock()
	ch, ok := w.byUser[rec.Author.ID]
	if ok {
		delete(w.byUser, rec.Author.ID)
	}
	w.mu.Unlock()
	if ok {
		ch <- rec
	}
}

// Await blocks until the user sends a record, the timeout passes, the
// context ends, or a newer Await for the same user takes over.
func (w *Waiters) Await(ctx context.Context, userID string, timeout time.Duration) (Record, error) {
	ch := make(chan Record, 1)
	w.mu.Lock()
	if old, ok := w.byUser[userID]; ok {
		close(old)
	}
	w.byUser[userID] = ch
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		if w.byUser[userID] == ch {
			delete(w.byUser, userID)
		}
		w.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case rec, ok := <-ch:
		if !ok {
			return Record{}, ErrAwaitSuperseded
		}
		return rec, nil
	case <-timer.C:
		return Record{}, ErrAwaitTimeout
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}
}
