package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit/execution"
)

// BenchmarkMonitor_Apply measures folding token updates into a snapshot
// that already tracks 100 nodes.
func BenchmarkMonitor_Apply(b *testing.B) {
	mon := execution.NewMonitor()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_, _ = mon.Apply(ctx, execution.Update{
			ExecutionID: "bench", Kind: execution.KindNodeStatus, NodeID: nodeID(i), Status: execution.StatusRunning,
		})
	}
	u := execution.Update{ExecutionID: "bench", Kind: execution.KindTokenUsage, NodeID: nodeID(7),
		Tokens: execution.TokenUsage{Input: 10, Output: 20}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = mon.Apply(ctx, u)
	}
}
