package benchmarks

import (
	"context"
	"os"
	"testing"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/repository"
)

// BenchmarkMemoryStore_Save measures encoding plus in-memory save.
func BenchmarkMemoryStore_Save(b *testing.B) {
	s := repository.NewMemoryStore()
	d := chainDiagram(50)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Save(ctx, "diag-1", d)
	}
}

// BenchmarkMemoryStore_Load measures in-memory load plus decoding.
func BenchmarkMemoryStore_Load(b *testing.B) {
	s := repository.NewMemoryStore()
	ctx := context.Background()
	_ = s.Save(ctx, "diag-1", chainDiagram(50))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Load(ctx, "diag-1")
	}
}

// BenchmarkSQLiteStore_Save measures SQLite save across 100 ids.
func BenchmarkSQLiteStore_Save(b *testing.B) {
	s, cleanup := createSQLiteStore(b)
	defer cleanup()
	d := chainDiagram(50)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Save(ctx, diagramkit.DiagramID(nodeID(i%100)), d)
	}
}

// BenchmarkSQLiteStore_Load measures SQLite load.
func BenchmarkSQLiteStore_Load(b *testing.B) {
	s, cleanup := createSQLiteStore(b)
	defer cleanup()
	ctx := context.Background()
	_ = s.Save(ctx, "diag-1", chainDiagram(50))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Load(ctx, "diag-1")
	}
}

func createSQLiteStore(b *testing.B) (*repository.SQLiteStore, func()) {
	b.Helper()
	tmpFile, err := os.CreateTemp("", "bench-*.db")
	if err != nil {
		b.Fatal(err)
	}
	tmpFile.Close()

	s, err := repository.NewSQLiteStore(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		b.Fatal(err)
	}

	return s, func() {
		s.Close()
		os.Remove(tmpFile.Name())
	}
}
