package winfeed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Win is one validated winning ticket as shown to other players
type Win struct {
	TicketID string    `json:"ticketId"`
	DrawID   string    `json:"drawId"`
	Prize    string    `json:"prize"`
	At       time.Time `json:"at"`
}

// Feed fans validated wins out to every listener. Slow listeners miss wins
// rather than holding up the publisher.
type Feed struct {
	mu        sync.RWMutex
	listeners map[string]chan Win
	buffer    int

	recent    []Win
	maxRecent int
}

// New creates a feed. buffer is the per-listener queue, keep is the number
// of recent wins replayed to new listeners.
func New(buffer, keep int) *Feed {
	if buffer <= 0 {
		buffer = 16
	}
	return &Feed{
		listeners: make(map[string]chan Win),
		buffer:    buffer,
		maxRecent: keep,
	}
}

// Publish delivers a win to every listener (non-blocking, drops on full buffer)
// and reports how many listeners received it.
func (f *Feed) Publish(w Win) int {
	f.mu.Lock()
	if f.maxRecent > 0 {
		f.recent = append(f.recent, w)
		if len(f.recent) > f.maxRecent {
			f.recent = f.recent[len(f.recent)-f.maxRecent:]
		}
	}
	f.mu.Unlock()

	f.mu.RLock()
	defer f.mu.RUnlock()
	delivered := 0
	for _, ch := range f.listeners {
		select {
		case ch <- w:
			delivered++
		default:
		}
	}
	return delivered
}

// Recent returns the last wins, oldest first
func (f *Feed) Recent() []Win {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Win, len(f.recent))
	copy(out, f.recent)
	return out
}

// Listen returns a channel of wins plus a cancel function to stop listening.
// The channel is closed when ctx ends or cancel is called.
func (f *Feed) Listen(ctx context.Context) (<-chan Win, context.CancelFunc) {
	listenerCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	ch := make(chan Win, f.buffer)

	f.mu.Lock()
	f.listeners[id] = ch
	f.mu.Unlock()

	go func() {
		<-listenerCtx.Done()
		f.mu.Lock()
		delete(f.listeners, id)
		close(ch)
		f.mu.Unlock()
	}()

	return ch, cancel
}

// Listeners returns the number of active listeners
func (f *Feed) Listeners() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners)
}
