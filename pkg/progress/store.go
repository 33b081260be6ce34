package progress

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists progress messages and owns sequence assignment.
// Implementations must assign dense per-request sequence numbers
// starting at 1.
type Store interface {
	// Append persists a message and returns its assigned seq.
	Append(ctx context.Context, requestID string, kind Kind, data []byte) (*Message, error)

	// ListSince returns messages with seq > sinceSeq in order, at most
	// limit entries (0 means no limit).
	ListSince(ctx context.Context, requestID string, sinceSeq int64, limit int) ([]*Message, error)

	// Prune removes messages with seq <= uptoSeq.
	Prune(ctx context.Context, requestID string, uptoSeq int64) error

	// DeleteExpired removes messages older than the cutoff, across all
	// requests. Returns the number deleted.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// MemoryStore is the in-process Store used by tests and single-node
// development runs.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[string][]*Message
	lastSeq  map[string]int64
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]*Message),
		lastSeq:  make(map[string]int64),
		now:      time.Now,
	}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, requestID string, kind Kind, data []byte) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.lastSeq[requestID] + 1
	s.lastSeq[requestID] = seq

	msg := &Message{
		Seq:       seq,
		RequestID: requestID,
		Kind:      kind,
		Timestamp: s.now(),
		Data:      data,
	}
	s.messages[requestID] = append(s.messages[requestID], msg)
	return msg, nil
}

// ListSince implements Store.
func (s *MemoryStore) ListSince(_ context.Context, requestID string, sinceSeq int64, limit int) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Message
	for _, m := range s.messages[requestID] {
		if m.Seq > sinceSeq {
			out = append(out, m)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Prune implements Store. Sequence counters are retained so later
// appends stay strictly increasing.
func (s *MemoryStore) Prune(_ context.Context, requestID string, uptoSeq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[requestID]
	idx := sort.Search(len(msgs), func(i int) bool { return msgs[i].Seq > uptoSeq })
	s.messages[requestID] = msgs[idx:]
	return nil
}

// DeleteExpired implements Store.
func (s *MemoryStore) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for requestID, msgs := range s.messages {
		kept := msgs[:0]
		for _, m := range msgs {
			if m.Timestamp.Before(cutoff) {
				deleted++
			} else {
				kept = append(kept, m)
			}
		}
		if len(kept) == 0 {
			delete(s.messages, requestID)
		} else {
			s.messages[requestID] = kept
		}
	}
	return deleted, nil
}
