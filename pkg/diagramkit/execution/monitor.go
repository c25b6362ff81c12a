package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/observability"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/registry"
)

// DefaultTranscriptLimit caps the messages kept per person.
const DefaultTranscriptLimit = 500

// Monitor tracks the executions a client is watching. Create one per
// application and pass it to whatever receives subscription updates.
// A Monitor is safe for concurrent use.
type Monitor struct {
	executions *registry.Registry[diagramkit.ExecutionID, Execution]

	logger          *slog.Logger
	metrics         observability.MetricsRecorder
	now             func() time.Time
	transcriptLimit int
	bufferSize      int

	// rev orders snapshots. It is bumped inside the registry update, so
	// snapshots of one execution carry increasing revs.
	rev atomic.Uint64

	watchMu  sync.Mutex
	watchers map[diagramkit.ExecutionID]map[int64]*Subscription
	nextID   int64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger for update and drop messages.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithMetrics sets the recorder counting applied updates.
func WithMetrics(r observability.MetricsRecorder) Option {
	return func(m *Monitor) { m.metrics = r }
}

// WithClock replaces time.Now for update timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithTranscriptLimit caps the messages kept per person; older messages
// are dropped first. Zero or less keeps everything.
func WithTranscriptLimit(n int) Option {
	return func(m *Monitor) { m.transcriptLimit = n }
}

// WithWatchBuffer sets the channel buffer of each Watch subscription.
func WithWatchBuffer(n int) Option {
	return func(m *Monitor) { m.bufferSize = n }
}

// NewMonitor creates an empty monitor.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		executions:      registry.New[diagramkit.ExecutionID, Execution](),
		metrics:         observability.NoopMetrics{},
		now:             time.Now,
		transcriptLimit: DefaultTranscriptLimit,
		bufferSize:      16,
		watchers:        make(map[diagramkit.ExecutionID]map[int64]*Subscription),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.bufferSize <= 0 {
		m.bufferSize = 1
	}
	return m
}

// Start registers an execution as running. Starting an id whose previous
// run has finished replaces it.
func (m *Monitor) Start(id diagramkit.ExecutionID, diagramID diagramkit.DiagramID) (Execution, error) {
	if !diagramkit.IsExecutionID(string(id)) {
		return Execution{}, fmt.Errorf("%w: %q", ErrInvalidExecutionID, id)
	}

	var active bool
	e := m.executions.Update(id, func(old Execution, exists bool) Execution {
		if exists && !old.Status.Terminal() {
			active = true
			return old
		}
		e := newExecution(id, diagramID, m.now().UTC())
		e.rev = m.rev.Add(1)
		return e
	})
	if active {
		return Execution{}, fmt.Errorf("%w: %s", ErrAlreadyActive, id)
	}

	observability.LogExecutionUpdate(m.logger, string(id), "start", "")
	out := e.Clone()
	m.notify(out)
	return out, nil
}

// Apply folds one update into its execution and returns the new snapshot.
// Updates for an execution never started register it on the fly, since a
// subscription may attach to a run that is already under way. Updates
// older than the last applied Sequence leave the snapshot unchanged.
func (m *Monitor) Apply(ctx context.Context, u Update) (Execution, error) {
	if err := u.Validate(); err != nil {
		return Execution{}, err
	}

	at := u.Timestamp
	if at.IsZero() {
		at = m.now().UTC()
	}

	var stale bool
	e := m.executions.Update(u.ExecutionID, func(old Execution, exists bool) Execution {
		if !exists {
			old = newExecution(u.ExecutionID, "", at)
		}
		if u.Sequence > 0 && u.Sequence <= old.Sequence {
			stale = true
			return old
		}
		// Stored snapshots are never mutated; readers may hold them.
		next := old.Clone()
		u.apply(&next, at, m.transcriptLimit)
		next.rev = m.rev.Add(1)
		return next
	})
	out := e.Clone()
	if stale {
		return out, nil
	}

	m.metrics.RecordExecutionUpdate(ctx, string(u.Kind))
	observability.LogExecutionUpdate(m.logger, string(u.ExecutionID), string(u.Kind), string(u.NodeID))
	m.notify(out)
	return out, nil
}

// Snapshot returns a copy of the execution's current state.
func (m *Monitor) Snapshot(id diagramkit.ExecutionID) (Execution, bool) {
	e, ok := m.executions.Get(id)
	if !ok {
		return Execution{}, false
	}
	return e.Clone(), true
}

// Active returns the executions that have not reached a terminal status,
// ordered by id.
func (m *Monitor) Active() []Execution {
	var out []Execution
	m.executions.Range(func(_ diagramkit.ExecutionID, e Execution) bool {
		if !e.Status.Terminal() {
			out = append(out, e.Clone())
		}
		return true
	})
	return out
}

// All returns every tracked execution ordered by id.
func (m *Monitor) All() []Execution {
	values := m.executions.Values()
	out := make([]Execution, len(values))
	for i, e := range values {
		out[i] = e.Clone()
	}
	return out
}

// Forget drops an execution and closes its Watch subscriptions.
// It reports whether the execution was tracked.
func (m *Monitor) Forget(id diagramkit.ExecutionID) bool {
	ok := m.executions.Has(id)
	m.executions.Delete(id)

	m.watchMu.Lock()
	for _, sub := range m.watchers[id] {
		sub.close()
	}
	delete(m.watchers, id)
	m.watchMu.Unlock()

	return ok
}

// Consume applies updates from ch until it is closed or ctx is done.
// Invalid updates are logged and skipped. It returns ctx.Err() on
// cancellation and nil when ch is closed.
func (m *Monitor) Consume(ctx context.Context, ch <-chan Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := m.Apply(ctx, u); err != nil {
				if m.logger != nil {
					m.logger.Warn("execution update rejected",
						slog.String("execution_id", string(u.ExecutionID)),
						slog.String("kind", string(u.Kind)),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
}
