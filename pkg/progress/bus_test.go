package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-council/councild/pkg/config"
)

func testBus() *Bus {
	return NewBus(NewMemoryStore(), &config.ProgressConfig{
		HeartbeatInterval: 30 * time.Second,
		IdleTimeout:       300 * time.Second,
		MessageTTL:        24 * time.Hour,
		CatchupLimit:      200,
	})
}

func collect(t *testing.T, sub *Subscription, n int) []*Message {
	t.Helper()
	out := make([]*Message, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case m, ok := <-sub.Messages():
			require.True(t, ok, "subscription closed early")
			out = append(out, m)
		case <-timeout:
			t.Fatalf("timed out after %d of %d messages", len(out), n)
		}
	}
	return out
}

func TestBus_DenseSequencing(t *testing.T) {
	bus := testBus()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		msg, err := bus.Publish(ctx, "req-1", KindExecutionProgress, map[string]int{"i": i})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), msg.Seq)
	}

	// An unrelated request has its own sequence space.
	msg, err := bus.Publish(ctx, "req-2", KindAnalysisStarted, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.Seq)
}

func TestBus_LiveDelivery(t *testing.T) {
	bus := testBus()
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "req-1", 0)
	require.NoError(t, err)
	defer sub.Close()

	_, err = bus.Publish(ctx, "req-1", KindAnalysisStarted, nil)
	require.NoError(t, err)
	_, err = bus.Publish(ctx, "req-1", KindAnalysisComplete, AnalysisPayload{Intent: "greet", Complexity: "TRIVIAL"})
	require.NoError(t, err)

	msgs := collect(t, sub, 2)
	assert.Equal(t, KindAnalysisStarted, msgs[0].Kind)
	assert.Equal(t, int64(1), msgs[0].Seq)
	assert.Equal(t, KindAnalysisComplete, msgs[1].Kind)
	assert.Equal(t, int64(2), msgs[1].Seq)
	assert.JSONEq(t, `{"intent":"greet","complexity":"TRIVIAL"}`, string(msgs[1].Data))
}

func TestBus_ReplayFromSinceSeq(t *testing.T) {
	bus := testBus()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := bus.Publish(ctx, "req-1", KindExecutionProgress, nil)
		require.NoError(t, err)
	}

	// Resuming from seq 2 yields exactly 3,4,5,6 in order.
	sub, err := bus.Subscribe(ctx, "req-1", 2)
	require.NoError(t, err)
	defer sub.Close()

	msgs := collect(t, sub, 4)
	for i, m := range msgs {
		assert.Equal(t, int64(i+3), m.Seq)
	}
}

func TestBus_ReplayPagesThroughLongBacklog(t *testing.T) {
	bus := NewBus(NewMemoryStore(), &config.ProgressConfig{
		HeartbeatInterval: 30 * time.Second,
		IdleTimeout:       300 * time.Second,
		MessageTTL:        24 * time.Hour,
		CatchupLimit:      100,
	})
	ctx := context.Background()

	const total = 250
	for i := 0; i < total; i++ {
		_, err := bus.Publish(ctx, "req-1", KindExecutionProgress, nil)
		require.NoError(t, err)
	}

	// A backlog larger than CatchupLimit replays in full, in order.
	sub, err := bus.Subscribe(ctx, "req-1", 0)
	require.NoError(t, err)
	defer sub.Close()

	msgs := collect(t, sub, total)
	for i, m := range msgs {
		require.Equal(t, int64(i+1), m.Seq)
	}

	// Live delivery follows the drained replay without a gap.
	_, err = bus.Publish(ctx, "req-1", KindFinalResponse, nil)
	require.NoError(t, err)
	tail := collect(t, sub, 1)
	assert.Equal(t, int64(total+1), tail[0].Seq)
}

func TestBus_ReplayThenLiveWithoutGap(t *testing.T) {
	bus := testBus()
	ctx := context.Background()

	_, err := bus.Publish(ctx, "req-1", KindAnalysisStarted, nil)
	require.NoError(t, err)

	sub, err := bus.Subscribe(ctx, "req-1", 0)
	require.NoError(t, err)
	defer sub.Close()

	_, err = bus.Publish(ctx, "req-1", KindAnalysisComplete, nil)
	require.NoError(t, err)

	msgs := collect(t, sub, 2)
	assert.Equal(t, int64(1), msgs[0].Seq)
	assert.Equal(t, int64(2), msgs[1].Seq)
}

func TestBus_AckPrunesAndNeverRedelivers(t *testing.T) {
	bus := testBus()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := bus.Publish(ctx, "req-1", KindExecutionProgress, nil)
		require.NoError(t, err)
	}

	sub, err := bus.Subscribe(ctx, "req-1", 0)
	require.NoError(t, err)
	msgs := collect(t, sub, 4)
	require.NoError(t, sub.Ack(ctx, msgs[2].Seq)) // ack through 3
	sub.Close()

	// Resubscribing from the acked seq delivers only seq 4.
	sub2, err := bus.Subscribe(ctx, "req-1", 3)
	require.NoError(t, err)
	defer sub2.Close()
	remaining := collect(t, sub2, 1)
	assert.Equal(t, int64(4), remaining[0].Seq)

	// Acked messages are gone from the store entirely.
	left, err := bus.store.ListSince(ctx, "req-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, int64(4), left[0].Seq)
}

func TestBus_SequenceSurvivesPrune(t *testing.T) {
	bus := testBus()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := bus.Publish(ctx, "req-1", KindExecutionProgress, nil)
		require.NoError(t, err)
	}
	require.NoError(t, bus.store.Prune(ctx, "req-1", 3))

	msg, err := bus.Publish(ctx, "req-1", KindFinalResponse, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), msg.Seq, "pruning must not rewind sequence assignment")
}

func TestBus_SubscriberOverflowCloses(t *testing.T) {
	bus := testBus()
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "req-1", 0)
	require.NoError(t, err)

	// Nobody drains; the buffer fills and the subscriber is dropped.
	for i := 0; i < subscriberBuffer+2; i++ {
		_, err := bus.Publish(ctx, "req-1", KindExecutionProgress, nil)
		require.NoError(t, err)
	}

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("expected overflowed subscriber to be closed")
	}

	// Recovery path: resubscribe from zero replays everything.
	sub2, err := bus.Subscribe(ctx, "req-1", 0)
	require.NoError(t, err)
	defer sub2.Close()
	msgs := collect(t, sub2, subscriberBuffer+2)
	assert.Equal(t, int64(1), msgs[0].Seq)
}

func TestBus_IdleSubscriberReaped(t *testing.T) {
	bus := NewBus(NewMemoryStore(), &config.ProgressConfig{
		HeartbeatInterval: 10 * time.Millisecond,
		IdleTimeout:       30 * time.Millisecond,
		MessageTTL:        24 * time.Hour,
		CatchupLimit:      200,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	sub, err := bus.Subscribe(ctx, "req-1", 0)
	require.NoError(t, err)

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected idle subscriber to be closed")
	}
	assert.Equal(t, 0, bus.SubscriberCount("req-1"))
}

func TestBus_HeartbeatKeepsActiveSubscriberAlive(t *testing.T) {
	bus := NewBus(NewMemoryStore(), &config.ProgressConfig{
		HeartbeatInterval: 10 * time.Millisecond,
		IdleTimeout:       time.Hour,
		MessageTTL:        24 * time.Hour,
		CatchupLimit:      200,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	sub, err := bus.Subscribe(ctx, "req-1", 0)
	require.NoError(t, err)
	defer sub.Close()

	select {
	case m := <-sub.Messages():
		assert.Equal(t, KindHeartbeat, m.Kind)
		assert.Zero(t, m.Seq, "heartbeats carry no sequence number")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a heartbeat")
	}
}

func TestMemoryStore_TTLCleanup(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	old := time.Now().Add(-25 * time.Hour)
	store.now = func() time.Time { return old }
	_, err := store.Append(ctx, "req-1", KindAnalysisStarted, nil)
	require.NoError(t, err)

	store.now = time.Now
	_, err = store.Append(ctx, "req-1", KindAnalysisComplete, nil)
	require.NoError(t, err)

	deleted, err := store.DeleteExpired(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	left, err := store.ListSince(ctx, "req-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, KindAnalysisComplete, left[0].Kind)
}
