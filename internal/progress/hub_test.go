package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestHubBatchBySize verifies the hub flushes immediately once the batch size limit is reached.
func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     8,
		MaxBatchEvents: 2,
		MaxBatchWait:   time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageAdapterStart))
	hub.Emit(sampleEvent(StageAdapterDone))
	require.Eventually(t, func() bool {
		batches := sink.Batches()
		return len(batches) == 1 && len(batches[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHubBatchByTimer verifies the deadline flush kicks in when the batch is small.
func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 10,
		MaxBatchWait:   25 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageAggregateStart))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubEmitNonBlockingWhenFull asserts Emit never blocks callers and counts drops.
func TestHubEmitNonBlockingWhenFull(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		events: make(chan Event),
		logger: zap.NewNop(),
	}
	start := time.Now()
	hub.Emit(sampleEvent(StageAdapterStart))
	hub.Emit(sampleEvent(StageAdapterStart))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.LessOrEqual(t, hub.Dropped(), int64(2))
}

// TestHubFlushOnClose ensures Close drains buffered events before returning.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 100,
		MaxBatchWait:   time.Minute,
	}, sink)

	hub.Emit(sampleEvent(StageAdapterDone))

	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 1)
	require.True(t, sink.closed)

	hub.Emit(sampleEvent(StageAdapterDone))
	require.Len(t, sink.Batches(), 1)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatchEvents: 1}, sink)

	hub.Emit(Event{TS: time.Now(), Stage: StageAdapterDone, Retailer: "walmart"})
	hub.Emit(Event{Stage: StageAdapterStart, Retailer: "walmart"})
	hub.Emit(Event{TS: time.Now(), Stage: "BOGUS"})

	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	id := UUIDToBytes(uuid.New())
	now := time.Now()
	require.NoError(t, Event{QueryID: id, TS: now, Stage: StageAggregateStart}.Validate())
	require.Error(t, Event{TS: now, Stage: StageAggregateDone}.Validate())
	require.NoError(t, Event{TS: now, Stage: StageAdapterDone, Retailer: "target", Outcome: "ok"}.Validate())
	require.Error(t, Event{TS: now, Stage: StageAdapterStart}.Validate())
	require.Error(t, Event{TS: now, Stage: StageAdapterStart, Retailer: "x", Dur: -time.Second}.Validate())
}

func TestParseQueryIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	evt := Event{QueryID: ParseQueryID(id.String())}
	require.Equal(t, id, evt.QueryUUID())
	require.Equal(t, [16]byte{}, ParseQueryID("not-a-uuid"))
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func newStubSink() *stubSink {
	return &stubSink{batches: [][]Event{}}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	for i, b := range s.batches {
		out[i] = append([]Event(nil), b...)
	}
	return out
}

func sampleEvent(stage Stage) Event {
	evt := Event{
		QueryID:  UUIDToBytes(uuid.New()),
		TS:       time.Now(),
		Stage:    stage,
		Retailer: "walmart",
	}
	if stage == StageAdapterDone {
		evt.Outcome = "ok"
		evt.Price = "4.99"
	}
	return evt
}
