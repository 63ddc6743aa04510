package actor

import (
	"context"
	"fmt"
	"sync"

	"github.com/openbms-io/supervisor/internal/model"
)

// Logger is the minimal logging surface the actor runtime depends on, a
// small per-package interface rather than a concrete logger type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Handler processes one message delivered to an actor's inbox.
type Handler func(ctx context.Context, msg model.ActorMessage)

// Registry is the process-global actor name -> inbox map, plus the
// per-actor drain loops and lifecycle.
type Registry struct {
	logger Logger

	mu       sync.RWMutex
	inboxes  map[model.ActorName]*Inbox
	handlers map[model.ActorName]Handler

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	started  bool
	stopOnce sync.Once
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Registry{
		logger:   logger,
		inboxes:  make(map[model.ActorName]*Inbox),
		handlers: make(map[model.ActorName]Handler),
	}
}

// Register adds an actor's inbox and handler. Must be called before
// Start. Registering model.ActorBroadcast is a programmer error — it is
// a fan-out target, never an addressable actor with its own loop.
func (r *Registry) Register(name model.ActorName, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == model.ActorBroadcast {
		panic("actor: BROADCAST cannot be registered as an actor")
	}
	r.inboxes[name] = NewInbox()
	r.handlers[name] = handler
}

// Names returns every registered actor name, in no particular order.
func (r *Registry) Names() []model.ActorName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ActorName, 0, len(r.inboxes))
	for n := range r.inboxes {
		out = append(out, n)
	}
	return out
}

// SendFrom enqueues a message from sender to receiver, returning once the
// message is enqueued — never once it is processed.
// receiver = BROADCAST expands to every registered actor except
// BROADCAST itself; broadcast delivery order across actors is undefined
//.
func (r *Registry) SendFrom(sender, receiver model.ActorName, msgType model.MessageType, payload model.CommandPayload) error {
	msg := model.ActorMessage{Sender: sender, Receiver: receiver, MessageType: msgType, Payload: payload}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if receiver == model.ActorBroadcast {
		for name, inbox := range r.inboxes {
			m := msg
			m.Receiver = name
			inbox.Send(m)
		}
		return nil
	}

	inbox, ok := r.inboxes[receiver]
	if !ok {
		return fmt.Errorf("actor: unknown receiver %q", receiver)
	}
	inbox.Send(msg)
	return nil
}

// Start spawns every registered actor's drain loop.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for name, inbox := range r.inboxes {
		handler := r.handlers[name]
		r.wg.Add(1)
		go r.runLoop(ctx, name, inbox, handler)
	}
}

func (r *Registry) runLoop(ctx context.Context, name model.ActorName, inbox *Inbox, handler Handler) {
	defer r.wg.Done()
	for {
		msg, ok := inbox.Receive()
		if !ok {
			return
		}
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("actor handler panicked", "actor", name, "panic", rec)
				}
			}()
			handler(ctx, msg)
		}()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// Stop signals cancellation and awaits in-flight work. Shutdown is
// best-effort: each inbox is closed and the messages still queued in it
// are dropped, with a warning giving the count per actor; a handler
// already running finishes before Stop returns. Messages sent after
// Close are discarded by the inbox.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		r.mu.RLock()
		inboxes := make([]*Inbox, 0, len(r.inboxes))
		names := make([]model.ActorName, 0, len(r.inboxes))
		for name, inbox := range r.inboxes {
			inboxes = append(inboxes, inbox)
			names = append(names, name)
		}
		cancel := r.cancel
		r.mu.RUnlock()

		if cancel != nil {
			cancel()
		}
		for i, inbox := range inboxes {
			inbox.Close()
			if dropped := inbox.Drop(); dropped > 0 {
				r.logger.Warn("dropped pending inbox messages on shutdown", "actor", names[i], "count", dropped)
			}
		}
		r.wg.Wait()
	})
}
