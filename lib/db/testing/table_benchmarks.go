package testing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/fbkv/lib/db"
)

// RunKVTableBenchmarks runs all benchmarks for a KVTable implementation
func RunKVTableBenchmarks(b *testing.B, name string, factory TableFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Put", func(b *testing.B) {
			benchmarkPut(b, factory(b, nil))
		})

		b.Run("PutExisting", func(b *testing.B) {
			benchmarkPutExisting(b, factory(b, nil))
		})

		b.Run("PutBatch", func(b *testing.B) {
			benchmarkPutBatch(b, factory(b, nil))
		})

		b.Run("PutWithExtraColumns", func(b *testing.B) {
			benchmarkPutWithExtraColumns(b, factory(b, []db.Column{
				{Name: "n", Affinity: db.AffinityINTEGER},
				{Name: "label", Affinity: db.AffinityTEXT},
			}))
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory(b, nil))
		})

		b.Run("RangeKeys", func(b *testing.B) {
			benchmarkRangeKeys(b, factory(b, nil))
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func fill(b *testing.B, table db.KVTable, n int) {
	b.Helper()
	rows := make([]db.Row, n)
	for i := range rows {
		rows[i] = db.Row{Key: fmt.Sprintf("key-%d", i), Value: int64(i)}
	}
	if err := table.PutBatch(rows); err != nil {
		b.Fatalf("PutBatch failed: %v", err)
	}
}

func benchmarkPut(b *testing.B, table db.KVTable) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := table.Put(db.Row{Key: fmt.Sprintf("key-%d", i), Value: "value"}); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkPutExisting(b *testing.B, table db.KVTable) {
	fill(b, table, 100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := table.Put(db.Row{Key: fmt.Sprintf("key-%d", i%100), Value: int64(i)}); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkPutBatch(b *testing.B, table db.KVTable) {
	const batchSize = 200
	rows := make([]db.Row, batchSize)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := range rows {
			rows[j] = db.Row{Key: fmt.Sprintf("key-%d-%d", i, j), Value: int64(j)}
		}
		if err := table.PutBatch(rows); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkPutWithExtraColumns(b *testing.B, table db.KVTable) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		row := db.Row{Key: fmt.Sprintf("key-%d", i), Value: "value", Extra: []any{i, "label"}}
		if err := table.Put(row); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkGet(b *testing.B, table db.KVTable) {
	const n = 1000
	fill(b, table, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := table.Get(fmt.Sprintf("key-%d", rand.Intn(n))); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkRangeKeys(b *testing.B, table db.KVTable) {
	fill(b, table, 5000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := table.RangeKeys(func(string) bool { return true }); err != nil {
			b.Fatal(err)
		}
	}
}
