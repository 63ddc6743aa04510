// Package actor implements a named-actor message bus: a process-global
// registry mapping ActorName to an unbounded inbox, a BROADCAST fan-out
// receiver, and cooperative per-actor drain loops with best-effort
// graceful shutdown.
//
// Each inbox is an unbounded FIFO backed by a slice guarded by
// sync.Cond, with done/wg/sync.Once coordinating shutdown.
package actor

import (
	"sync"

	"github.com/openbms-io/supervisor/internal/model"
)

// Inbox is an unbounded, FIFO, single-consumer message queue. Send never
// blocks on consumption — it only blocks as long as it takes to acquire
// the internal lock (the design: "send_from... returning only when the
// message is enqueued, never when consumed").
type Inbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []model.ActorMessage
	closed bool
}

// NewInbox constructs an empty inbox.
func NewInbox() *Inbox {
	in := &Inbox{}
	in.cond = sync.NewCond(&in.mu)
	return in
}

// Send enqueues a message. Safe for concurrent callers. A Send after
// Close is a no-op (the message is dropped silently — shutdown has
// already begun).
func (in *Inbox) Send(msg model.ActorMessage) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	in.queue = append(in.queue, msg)
	in.cond.Signal()
}

// Receive blocks until a message is available or the inbox is closed. It
// returns ok=false once the inbox is closed and drained, signalling the
// actor loop to exit.
func (in *Inbox) Receive() (model.ActorMessage, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for len(in.queue) == 0 && !in.closed {
		in.cond.Wait()
	}
	if len(in.queue) == 0 {
		return model.ActorMessage{}, false
	}

	msg := in.queue[0]
	in.queue = in.queue[1:]
	return msg, true
}

// Len reports the current queue depth, useful for diagnostics.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.queue)
}

// Close marks the inbox closed and wakes any blocked Receive. Messages
// already queued are still delivered by subsequent Receive calls
// (the design: "in-flight bulk reads are allowed to finish"); once
// drained, Receive returns ok=false. Any Send racing with Close may still
// be dropped — shutdown is best-effort, matching this design's stated policy.
func (in *Inbox) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.closed = true
	in.cond.Broadcast()
}

// Drop discards all currently queued messages without delivering them,
// logging is the caller's responsibility. Used by graceful shutdown to
// implement "pending inbox messages beyond [in-flight work] are dropped
// with a warning log".
func (in *Inbox) Drop() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := len(in.queue)
	in.queue = nil
	return n
}
