package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ai-council/councild/pkg/config"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber
// that falls this far behind is closed; it recovers by resubscribing
// from its last acked seq.
const subscriberBuffer = 64

// Subscription is one live attachment to a request's stream.
type Subscription struct {
	requestID string
	bus       *Bus

	ch     chan *Message
	closed chan struct{}

	mu           sync.Mutex
	lastActivity time.Time
	lastAcked    int64
	closeOnce    sync.Once
}

// Messages returns the ordered message channel. It is closed when the
// subscription ends.
func (s *Subscription) Messages() <-chan *Message { return s.ch }

// Done reports subscription termination.
func (s *Subscription) Done() <-chan struct{} { return s.closed }

// Touch records inbound subscriber activity (acks, heartbeat responses)
// for idle tracking.
func (s *Subscription) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Ack confirms receipt through seq. Acked messages may be pruned and are
// never redelivered.
func (s *Subscription) Ack(ctx context.Context, seq int64) error {
	s.Touch()
	s.mu.Lock()
	if seq <= s.lastAcked {
		s.mu.Unlock()
		return nil
	}
	s.lastAcked = seq
	s.mu.Unlock()
	return s.bus.store.Prune(ctx, s.requestID, seq)
}

// Close detaches the subscription.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

func (s *Subscription) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Subscription) terminate() {
	s.closeOnce.Do(func() {
		close(s.closed)
		close(s.ch)
	})
}

// requestState serializes publishes and tracks subscribers for one
// request id.
type requestState struct {
	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
}

// Bus is the per-request mailbox: it assigns sequence numbers through
// the Store, fans out to live subscribers, replays history on subscribe,
// and emits heartbeats on active subscriptions.
type Bus struct {
	store Store
	cfg   *config.ProgressConfig

	mu       sync.Mutex
	requests map[string]*requestState
}

// NewBus creates a bus over a store.
func NewBus(store Store, cfg *config.ProgressConfig) *Bus {
	return &Bus{
		store:    store,
		cfg:      cfg,
		requests: make(map[string]*requestState),
	}
}

func (b *Bus) state(requestID string) *requestState {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.requests[requestID]
	if !ok {
		st = &requestState{subscribers: make(map[*Subscription]struct{})}
		b.requests[requestID] = st
	}
	return st
}

// Publish persists a message with the next sequence number and pushes it
// to live subscribers. payload is JSON-marshalled; nil is allowed.
func (b *Bus) Publish(ctx context.Context, requestID string, kind Kind, payload any) (*Message, error) {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
		}
	}

	st := b.state(requestID)
	st.mu.Lock()
	defer st.mu.Unlock()

	msg, err := b.store.Append(ctx, requestID, kind, data)
	if err != nil {
		return nil, err
	}

	for sub := range st.subscribers {
		b.deliver(st, sub, msg)
	}
	return msg, nil
}

// deliver pushes one message to one subscriber without blocking the
// publisher. Overflow closes the subscriber; replay-on-resubscribe makes
// the drop lossless. Caller holds st.mu.
func (b *Bus) deliver(st *requestState, sub *Subscription, msg *Message) {
	select {
	case sub.ch <- msg:
	default:
		slog.Warn("Progress subscriber overflowed, closing",
			"request_id", sub.requestID)
		delete(st.subscribers, sub)
		sub.terminate()
	}
}

// Subscribe attaches to a request's stream, replaying persisted messages
// with seq > sinceSeq before any live message. Attachment and replay are
// atomic with respect to Publish, so no message is missed or duplicated
// across the replay/live boundary.
func (b *Bus) Subscribe(ctx context.Context, requestID string, sinceSeq int64) (*Subscription, error) {
	sub := &Subscription{
		requestID:    requestID,
		bus:          b,
		ch:           make(chan *Message, subscriberBuffer),
		closed:       make(chan struct{}),
		lastActivity: time.Now(),
		lastAcked:    sinceSeq,
	}

	st := b.state(requestID)
	st.mu.Lock()
	defer st.mu.Unlock()

	// Page through the backlog until it is drained. CatchupLimit bounds
	// one store read, not the total replay.
	var history []*Message
	cursor := sinceSeq
	for {
		page, err := b.store.ListSince(ctx, requestID, cursor, b.cfg.CatchupLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to replay progress history: %w", err)
		}
		history = append(history, page...)
		if len(page) == 0 || b.cfg.CatchupLimit <= 0 || len(page) < b.cfg.CatchupLimit {
			break
		}
		cursor = page[len(page)-1].Seq
	}
	if len(history) > subscriberBuffer {
		// The buffer must hold the full replay; grow it.
		sub.ch = make(chan *Message, len(history)+subscriberBuffer)
	}
	for _, msg := range history {
		sub.ch <- msg
	}

	st.subscribers[sub] = struct{}{}
	return sub, nil
}

func (b *Bus) unsubscribe(sub *Subscription) {
	st := b.state(sub.requestID)
	st.mu.Lock()
	delete(st.subscribers, sub)
	st.mu.Unlock()
	sub.terminate()

	// Drop empty request states to bound memory on long uptimes.
	b.mu.Lock()
	st.mu.Lock()
	if len(st.subscribers) == 0 {
		delete(b.requests, sub.requestID)
	}
	st.mu.Unlock()
	b.mu.Unlock()
}

// SubscriberCount reports live subscribers for a request.
func (b *Bus) SubscriberCount(requestID string) int {
	b.mu.Lock()
	st, ok := b.requests[requestID]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.subscribers)
}

// Run drives heartbeats, idle reaping, and TTL cleanup until ctx is
// cancelled.
func (b *Bus) Run(ctx context.Context) {
	heartbeat := time.NewTicker(b.cfg.HeartbeatInterval)
	cleanup := time.NewTicker(b.cfg.MessageTTL / 24)
	defer heartbeat.Stop()
	defer cleanup.Stop()

	slog.Info("Progress bus started",
		"heartbeat_interval", b.cfg.HeartbeatInterval,
		"idle_timeout", b.cfg.IdleTimeout,
		"message_ttl", b.cfg.MessageTTL)

	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			slog.Info("Progress bus stopped")
			return
		case <-heartbeat.C:
			b.sweep()
		case <-cleanup.C:
			deleted, err := b.store.DeleteExpired(ctx, time.Now().Add(-b.cfg.MessageTTL))
			if err != nil {
				slog.Error("Progress TTL cleanup failed", "error", err)
			} else if deleted > 0 {
				slog.Info("Pruned expired progress messages", "deleted", deleted)
			}
		}
	}
}

// sweep sends heartbeats to live subscribers and closes idle ones.
// Heartbeats are ephemeral: no seq, not persisted.
func (b *Bus) sweep() {
	b.mu.Lock()
	states := make(map[string]*requestState, len(b.requests))
	for id, st := range b.requests {
		states[id] = st
	}
	b.mu.Unlock()

	idleCutoff := time.Now().Add(-b.cfg.IdleTimeout)
	hb := &Message{Kind: KindHeartbeat, Timestamp: time.Now()}

	for _, st := range states {
		st.mu.Lock()
		for sub := range st.subscribers {
			if sub.idleSince().Before(idleCutoff) {
				slog.Info("Closing idle progress subscriber", "request_id", sub.requestID)
				delete(st.subscribers, sub)
				sub.terminate()
				continue
			}
			b.deliver(st, sub, hb)
		}
		st.mu.Unlock()
	}
}

func (b *Bus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, st := range b.requests {
		st.mu.Lock()
		for sub := range st.subscribers {
			sub.terminate()
		}
		st.subscribers = make(map[*Subscription]struct{})
		st.mu.Unlock()
	}
}
