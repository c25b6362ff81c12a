package execution

import (
	"log/slog"
	"sync"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
)

// Subscription delivers snapshots of one execution after every applied
// update. Delivery never blocks the monitor: when C is full the snapshot
// is dropped and the next one supersedes it. Snapshots arrive in the order
// they were applied; one that lost a race to a newer one is not sent.
type Subscription struct {
	// C receives snapshots. It is closed by Unsubscribe or Monitor.Forget.
	C <-chan Execution

	ch   chan Execution
	id   int64
	exec diagramkit.ExecutionID
	mon  *Monitor
	once sync.Once

	// last is the rev of the newest snapshot offered to ch. Guarded by watchMu.
	last uint64
}

// Watch subscribes to an execution. The current snapshot, if any, is
// delivered first.
func (m *Monitor) Watch(id diagramkit.ExecutionID) *Subscription {
	ch := make(chan Execution, m.bufferSize)
	sub := &Subscription{C: ch, ch: ch, exec: id, mon: m}

	m.watchMu.Lock()
	m.nextID++
	sub.id = m.nextID
	if m.watchers[id] == nil {
		m.watchers[id] = make(map[int64]*Subscription)
	}
	m.watchers[id][sub.id] = sub
	if e, ok := m.executions.Get(id); ok {
		sub.last = e.rev
		ch <- e.Clone()
	}
	m.watchMu.Unlock()

	return sub
}

// Unsubscribe stops delivery and closes C. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.mon.watchMu.Lock()
	defer s.mon.watchMu.Unlock()

	if subs, ok := s.mon.watchers[s.exec]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.mon.watchers, s.exec)
		}
	}
	s.close()
}

// close requires watchMu.
func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

func (m *Monitor) notify(e Execution) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	for _, sub := range m.watchers[e.ID] {
		if e.rev <= sub.last {
			continue
		}
		sub.last = e.rev
		select {
		case sub.ch <- e.Clone():
		default:
			if m.logger != nil {
				m.logger.Debug("execution snapshot dropped",
					slog.String("execution_id", string(e.ID)),
					slog.Int64("subscription", sub.id),
				)
			}
		}
	}
}
