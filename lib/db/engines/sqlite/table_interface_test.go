package sqlite

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/fbkv/lib/db"
	dbtesting "github.com/ValentinKolb/fbkv/lib/db/testing"
)

var tableCounter atomic.Int64

// newTestTable creates a table in a temporary store released on cleanup.
func newTestTable(tb testing.TB, cols []db.Column) db.KVTable {
	tb.Helper()
	reg := NewRegistry()
	conn, err := reg.Acquire("", false)
	if err != nil {
		tb.Fatalf("Acquire failed: %v", err)
	}
	tb.Cleanup(func() {
		if err := reg.Release(conn); err != nil {
			tb.Errorf("Release failed: %v", err)
		}
	})

	table, err := conn.CreateTable(fmt.Sprintf("t%d", tableCounter.Add(1)), cols)
	if err != nil {
		tb.Fatalf("CreateTable failed: %v", err)
	}
	return table
}

func Test(t *testing.T) {
	dbtesting.RunKVTableTests(t, "SQLiteTable", newTestTable)
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVTableBenchmarks(b, "SQLiteTable", newTestTable)
}
