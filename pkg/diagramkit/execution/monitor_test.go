package execution_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/execution"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type countingMetrics struct {
	mu    sync.Mutex
	kinds map[string]int
}

func (m *countingMetrics) RecordConvert(context.Context, string, string, time.Duration, error) {}
func (m *countingMetrics) RecordArrowsSkipped(context.Context, string, int) {}
func (m *countingMetrics) RecordExecutionUpdate(_ context.Context, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kinds == nil {
		m.kinds = make(map[string]int)
	}
	m.kinds[kind]++
}

func newMonitor(opts ...execution.Option) *execution.Monitor {
	clock := &stepClock{now: epoch}
	return execution.NewMonitor(append([]execution.Option{execution.WithClock(clock.Now)}, opts...)...)
}

func TestMonitor_Lifecycle(t *testing.T) {
	ctx := context.Background()
	metrics := &countingMetrics{}
	mon := newMonitor(execution.WithMetrics(metrics))

	e, err := mon.Start("exec-1", "diag-1")
	require.NoError(t, err)
	assert.Equal(t, execution.StatusRunning, e.Status)
	assert.Equal(t, epoch.Add(time.Second), e.Started)

	updates := []execution.Update{
		{ExecutionID: "exec-1", Kind: execution.KindNodeStatus, NodeID: "ask-1", Status: execution.StatusRunning},
		{ExecutionID: "exec-1", Kind: execution.KindTokenUsage, NodeID: "ask-1", Tokens: execution.TokenUsage{Input: 10, Output: 5}},
		{ExecutionID: "exec-1", Kind: execution.KindMessage, NodeID: "ask-1",
			Message: &execution.Message{PersonID: "p1", Role: "assistant", Content: "hello"}},
		{ExecutionID: "exec-1", Kind: execution.KindNodeStatus, NodeID: "ask-1", Status: execution.StatusCompleted, Output: "hello"},
		{ExecutionID: "exec-1", Kind: execution.KindTokenUsage, Tokens: execution.TokenUsage{Input: 1, Output: 1, Cached: 3}},
		{ExecutionID: "exec-1", Kind: execution.KindExecutionStatus, Status: execution.StatusCompleted},
	}
	for _, u := range updates {
		_, err := mon.Apply(ctx, u)
		require.NoError(t, err)
	}

	snap, ok := mon.Snapshot("exec-1")
	require.True(t, ok)
	assert.Equal(t, execution.StatusCompleted, snap.Status)
	assert.False(t, snap.Ended.IsZero())
	assert.Equal(t, execution.TokenUsage{Input: 11, Output: 6, Cached: 3}, snap.Tokens)
	assert.Equal(t, 17, snap.Tokens.Total())
	assert.Equal(t, len(updates), snap.Updates)

	node := snap.Nodes["ask-1"]
	assert.Equal(t, execution.StatusCompleted, node.Status)
	assert.Equal(t, 1, node.Iterations)
	assert.Equal(t, "hello", node.Output)
	assert.Equal(t, execution.TokenUsage{Input: 10, Output: 5}, node.Tokens)
	assert.True(t, node.Ended.After(node.Started))

	transcript := snap.Transcript("p1")
	require.Len(t, transcript, 1)
	assert.Equal(t, "hello", transcript[0].Content)
	assert.Equal(t, "ask-1", string(transcript[0].NodeID))
	assert.False(t, transcript[0].Timestamp.IsZero())

	assert.Equal(t, map[execution.Status]int{execution.StatusCompleted: 1}, snap.Counts())
	assert.Empty(t, mon.Active())
	assert.Equal(t, map[string]int{
		"node_status": 2, "token_usage": 2, "message": 1, "execution_status": 1,
	}, metrics.kinds)
}

func TestMonitor_Start(t *testing.T) {
	ctx := context.Background()
	mon := newMonitor()

	_, err := mon.Start("exec-1", "diag-1")
	require.NoError(t, err)

	_, err = mon.Start("exec-1", "diag-1")
	assert.ErrorIs(t, err, execution.ErrAlreadyActive)

	_, err = mon.Start("bad id!", "diag-1")
	assert.ErrorIs(t, err, execution.ErrInvalidExecutionID)

	// A finished run can be restarted under the same id.
	_, err = mon.Apply(ctx, execution.Update{ExecutionID: "exec-1", Kind: execution.KindExecutionStatus, Status: execution.StatusFailed, Error: "boom"})
	require.NoError(t, err)
	snap, _ := mon.Snapshot("exec-1")
	assert.Equal(t, "boom", snap.Error)

	e, err := mon.Start("exec-1", "diag-2")
	require.NoError(t, err)
	assert.Equal(t, execution.StatusRunning, e.Status)
	assert.Empty(t, e.Error)
	assert.Equal(t, "diag-2", string(e.DiagramID))
}

func TestMonitor_ApplyRegistersUnknownExecution(t *testing.T) {
	mon := newMonitor()

	e, err := mon.Apply(context.Background(), execution.Update{
		ExecutionID: "late", Kind: execution.KindNodeStatus, NodeID: "n1", Status: execution.StatusRunning,
	})
	require.NoError(t, err)
	assert.Equal(t, execution.StatusRunning, e.Status)
	assert.Len(t, mon.Active(), 1)
}

func TestMonitor_InvalidUpdates(t *testing.T) {
	mon := newMonitor()
	tests := []struct {
		name string
		u    execution.Update
	}{
		{"missing execution", execution.Update{Kind: execution.KindTokenUsage}},
		{"unknown kind", execution.Update{ExecutionID: "e", Kind: "bogus"}},
		{"node status without node", execution.Update{ExecutionID: "e", Kind: execution.KindNodeStatus, Status: execution.StatusRunning}},
		{"unknown status", execution.Update{ExecutionID: "e", Kind: execution.KindExecutionStatus, Status: "exploded"}},
		{"negative tokens", execution.Update{ExecutionID: "e", Kind: execution.KindTokenUsage, Tokens: execution.TokenUsage{Input: -1}}},
		{"message without body", execution.Update{ExecutionID: "e", Kind: execution.KindMessage}},
		{"message without person", execution.Update{ExecutionID: "e", Kind: execution.KindMessage, Message: &execution.Message{Content: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mon.Apply(context.Background(), tt.u)
			assert.ErrorIs(t, err, execution.ErrInvalidUpdate)
		})
	}
	assert.Empty(t, mon.All())
}

func TestMonitor_SequenceIgnoresStaleUpdates(t *testing.T) {
	ctx := context.Background()
	mon := newMonitor()

	_, err := mon.Apply(ctx, execution.Update{ExecutionID: "e1", Kind: execution.KindTokenUsage, Sequence: 2, Tokens: execution.TokenUsage{Input: 5}})
	require.NoError(t, err)
	e, err := mon.Apply(ctx, execution.Update{ExecutionID: "e1", Kind: execution.KindTokenUsage, Sequence: 2, Tokens: execution.TokenUsage{Input: 5}})
	require.NoError(t, err)
	assert.Equal(t, 5, e.Tokens.Input, "duplicate sequence is ignored")

	e, err = mon.Apply(ctx, execution.Update{ExecutionID: "e1", Kind: execution.KindTokenUsage, Sequence: 1, Tokens: execution.TokenUsage{Input: 5}})
	require.NoError(t, err)
	assert.Equal(t, 5, e.Tokens.Input, "older sequence is ignored")

	e, err = mon.Apply(ctx, execution.Update{ExecutionID: "e1", Kind: execution.KindTokenUsage, Tokens: execution.TokenUsage{Input: 1}})
	require.NoError(t, err)
	assert.Equal(t, 6, e.Tokens.Input, "unsequenced updates always apply")
	assert.Equal(t, int64(2), e.Sequence)
}

func TestMonitor_TranscriptLimit(t *testing.T) {
	ctx := context.Background()
	mon := newMonitor(execution.WithTranscriptLimit(2))

	for _, content := range []string{"one", "two", "three"} {
		_, err := mon.Apply(ctx, execution.Update{ExecutionID: "e1", Kind: execution.KindMessage,
			Message: &execution.Message{PersonID: "p1", Role: "user", Content: content}})
		require.NoError(t, err)
	}

	snap, _ := mon.Snapshot("e1")
	transcript := snap.Transcript("p1")
	require.Len(t, transcript, 2)
	assert.Equal(t, "two", transcript[0].Content)
	assert.Equal(t, "three", transcript[1].Content)
}

func TestMonitor_SnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	mon := newMonitor()

	_, err := mon.Apply(ctx, execution.Update{ExecutionID: "e1", Kind: execution.KindNodeStatus, NodeID: "n1", Status: execution.StatusRunning})
	require.NoError(t, err)

	snap, _ := mon.Snapshot("e1")
	snap.Nodes["n1"] = execution.NodeState{Status: execution.StatusFailed}
	delete(snap.Nodes, "n1")

	again, _ := mon.Snapshot("e1")
	assert.Equal(t, execution.StatusRunning, again.Nodes["n1"].Status)
}

func TestMonitor_ActiveAndForget(t *testing.T) {
	ctx := context.Background()
	mon := newMonitor()

	for _, id := range []string{"b", "a", "c"} {
		_, err := mon.Start(diagramkit.ExecutionID("x-"+id), "")
		require.NoError(t, err)
	}
	_, err := mon.Apply(ctx, execution.Update{ExecutionID: "x-c", Kind: execution.KindExecutionStatus, Status: execution.StatusAborted})
	require.NoError(t, err)

	active := mon.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "x-a", string(active[0].ID))
	assert.Equal(t, "x-b", string(active[1].ID))
	assert.Len(t, mon.All(), 3)

	assert.True(t, mon.Forget("x-a"))
	assert.False(t, mon.Forget("x-a"))
	_, ok := mon.Snapshot("x-a")
	assert.False(t, ok)
}

func TestMonitor_Consume(t *testing.T) {
	mon := newMonitor()
	ch := make(chan execution.Update, 4)
	ch <- execution.Update{ExecutionID: "e1", Kind: execution.KindNodeStatus, NodeID: "n1", Status: execution.StatusRunning}
	ch <- execution.Update{ExecutionID: "e1", Kind: "bogus"}
	ch <- execution.Update{ExecutionID: "e1", Kind: execution.KindExecutionStatus, Status: execution.StatusCompleted}
	close(ch)

	require.NoError(t, mon.Consume(context.Background(), ch))

	snap, ok := mon.Snapshot("e1")
	require.True(t, ok)
	assert.Equal(t, execution.StatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.Updates, "invalid update is skipped")
}

func TestMonitor_ConsumeCancel(t *testing.T) {
	mon := newMonitor()
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan execution.Update)

	done := make(chan error, 1)
	go func() { done <- mon.Consume(ctx, ch) }()

	ch <- execution.Update{ExecutionID: "e1", Kind: execution.KindExecutionStatus, Status: execution.StatusRunning}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Consume did not return after cancel")
	}
	_, ok := mon.Snapshot("e1")
	assert.True(t, ok)
}

func TestMonitor_Watch(t *testing.T) {
	ctx := context.Background()
	mon := newMonitor(execution.WithWatchBuffer(8))

	_, err := mon.Start("e1", "d1")
	require.NoError(t, err)

	sub := mon.Watch("e1")
	first := <-sub.C
	assert.Equal(t, execution.StatusRunning, first.Status)

	_, err = mon.Apply(ctx, execution.Update{ExecutionID: "e1", Kind: execution.KindNodeStatus, NodeID: "n1", Status: execution.StatusRunning})
	require.NoError(t, err)
	next := <-sub.C
	assert.Equal(t, 1, next.Updates)

	// Updates for other executions are not delivered.
	_, err = mon.Apply(ctx, execution.Update{ExecutionID: "e2", Kind: execution.KindExecutionStatus, Status: execution.StatusRunning})
	require.NoError(t, err)
	select {
	case e := <-sub.C:
		t.Fatalf("unexpected snapshot for %s", e.ID)
	default:
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	_, open := <-sub.C
	assert.False(t, open)
}

func TestMonitor_WatchDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	mon := newMonitor(execution.WithWatchBuffer(1))

	sub := mon.Watch("e1")
	for i := 0; i < 5; i++ {
		_, err := mon.Apply(ctx, execution.Update{ExecutionID: "e1", Kind: execution.KindTokenUsage, Tokens: execution.TokenUsage{Input: 1}})
		require.NoError(t, err)
	}

	got := <-sub.C
	assert.Equal(t, 1, got.Tokens.Input, "only the first snapshot fit the buffer")

	assert.True(t, mon.Forget("e1"))
	_, open := <-sub.C
	assert.False(t, open, "Forget closes subscriptions")
}

func TestMonitor_WatchDeliversInApplyOrder(t *testing.T) {
	ctx := context.Background()
	const writers, perWriter = 8, 50
	mon := newMonitor(execution.WithWatchBuffer(writers * perWriter * 2))

	_, err := mon.Start("e1", "d1")
	require.NoError(t, err)
	sub := mon.Watch("e1")
	<-sub.C

	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWriter {
				_, err := mon.Apply(ctx, execution.Update{ExecutionID: "e1", Kind: execution.KindTokenUsage, Tokens: execution.TokenUsage{Input: 1}})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	sub.Unsubscribe()

	last := 0
	for snap := range sub.C {
		assert.Greater(t, snap.Updates, last, "snapshots arrive in apply order")
		last = snap.Updates
	}
	assert.Equal(t, writers*perWriter, last, "the final snapshot is never superseded by an older one")
}
