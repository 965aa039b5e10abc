package testing

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/ValentinKolb/fbkv/lib/db"
)

// TableFactory creates a new, empty table with the given extra columns.
// The factory is responsible for cleaning up (e.g. via tb.Cleanup).
type TableFactory func(tb testing.TB, cols []db.Column) db.KVTable

// RunKVTableTests runs a comprehensive test suite for a KVTable implementation.
func RunKVTableTests(t *testing.T, name string, factory TableFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory(t, nil))
		})

		t.Run("Upsert", func(t *testing.T) {
			testUpsert(t, factory(t, nil))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t, nil))
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory(t, nil))
		})

		t.Run("PutBatch", func(t *testing.T) {
			testPutBatch(t, factory(t, nil))
		})

		t.Run("PutBatchAtomic", func(t *testing.T) {
			testPutBatchAtomic(t, factory(t, []db.Column{{Name: "n", Affinity: db.AffinityINTEGER}}))
		})

		t.Run("RangeKeys", func(t *testing.T) {
			testRangeKeys(t, factory(t, nil))
		})

		t.Run("ExtraColumns", func(t *testing.T) {
			testExtraColumns(t, factory(t, []db.Column{
				{Name: "n", Affinity: db.AffinityINTEGER},
				{Name: "label", Affinity: db.AffinityTEXT},
				{Name: "score", Affinity: db.AffinityREAL},
			}))
		})

		t.Run("ScalarValues", func(t *testing.T) {
			testScalarValues(t, factory(t, nil))
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory(t, []db.Column{{Name: "bucket", Affinity: db.AffinityINTEGER}}))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustCount(t *testing.T, table db.KVTable) int {
	t.Helper()
	n, err := table.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	return n
}

func mustPut(t *testing.T, table db.KVTable, row db.Row) {
	t.Helper()
	if err := table.Put(row); err != nil {
		t.Fatalf("Put(%s) failed: %v", row.Key, err)
	}
}

func mustGet(t *testing.T, table db.KVTable, key string) any {
	t.Helper()
	value, found, err := table.Get(key)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", key, err)
	}
	if !found {
		t.Fatalf("Expected key %s to exist", key)
	}
	return value
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, table db.KVTable) {
	mustPut(t, table, db.Row{Key: "test-key", Value: "test-value"})

	if got := mustGet(t, table, "test-key"); got != "test-value" {
		t.Errorf("Expected value %q, got %v", "test-value", got)
	}

	_, found, err := table.Get("nonexistent-key")
	if err != nil {
		t.Fatalf("Get(nonexistent-key) failed: %v", err)
	}
	if found {
		t.Errorf("Expected nonexistent key to return found=false")
	}

	if n := mustCount(t, table); n != 1 {
		t.Errorf("Expected 1 row, got %d", n)
	}
}

func testUpsert(t *testing.T, table db.KVTable) {
	mustPut(t, table, db.Row{Key: "a", Value: "1"})
	mustPut(t, table, db.Row{Key: "b", Value: "2"})
	mustPut(t, table, db.Row{Key: "a", Value: "3"})

	if got := mustGet(t, table, "a"); got != "3" {
		t.Errorf("Expected overwritten value 3, got %v", got)
	}
	if n := mustCount(t, table); n != 2 {
		t.Errorf("Expected 2 rows after overwrite, got %d", n)
	}

	// an overwrite keeps the insertion position
	var keys []string
	if err := table.RangeKeys(func(key string) bool {
		keys = append(keys, key)
		return true
	}); err != nil {
		t.Fatalf("RangeKeys failed: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"a", "b"}) {
		t.Errorf("Expected keys [a b], got %v", keys)
	}
}

func testDelete(t *testing.T, table db.KVTable) {
	mustPut(t, table, db.Row{Key: "delete-me", Value: "value"})

	deleted, err := table.Delete("delete-me")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Errorf("Expected Delete to report a removed row")
	}

	if _, found, _ := table.Get("delete-me"); found {
		t.Errorf("Expected key to be gone after Delete")
	}

	deleted, err = table.Delete("delete-me")
	if err != nil {
		t.Fatalf("Second Delete failed: %v", err)
	}
	if deleted {
		t.Errorf("Expected second Delete to report nothing removed")
	}

	if n := mustCount(t, table); n != 0 {
		t.Errorf("Expected empty table, got %d rows", n)
	}
}

func testHas(t *testing.T, table db.KVTable) {
	if found, err := table.Has("k"); err != nil || found {
		t.Fatalf("Expected Has on empty table to be false, got %v (err %v)", found, err)
	}
	mustPut(t, table, db.Row{Key: "k", Value: nil})
	if found, err := table.Has("k"); err != nil || !found {
		t.Errorf("Expected Has to be true for a row with NULL value, got %v (err %v)", found, err)
	}
}

func testPutBatch(t *testing.T, table db.KVTable) {
	rows := make([]db.Row, 100)
	for i := range rows {
		rows[i] = db.Row{Key: fmt.Sprintf("key-%d", i), Value: int64(i)}
	}
	if err := table.PutBatch(rows); err != nil {
		t.Fatalf("PutBatch failed: %v", err)
	}
	if err := table.PutBatch(nil); err != nil {
		t.Fatalf("Empty PutBatch failed: %v", err)
	}

	if n := mustCount(t, table); n != 100 {
		t.Errorf("Expected 100 rows, got %d", n)
	}
	for i := range rows {
		if got := mustGet(t, table, rows[i].Key); got != int64(i) {
			t.Errorf("Expected %d for %s, got %v", i, rows[i].Key, got)
		}
	}
}

func testPutBatchAtomic(t *testing.T, table db.KVTable) {
	rows := []db.Row{
		{Key: "ok-1", Value: "v", Extra: []any{1}},
		{Key: "ok-2", Value: "v", Extra: []any{2}},
		{Key: "broken", Value: "v"}, // missing extra value
	}
	err := table.PutBatch(rows)
	if err == nil {
		t.Fatalf("Expected PutBatch with a malformed row to fail")
	}
	if !errors.Is(err, db.ErrInvalidOperation) {
		t.Errorf("Expected ErrInvalidOperation, got %v", err)
	}
	if n := mustCount(t, table); n != 0 {
		t.Errorf("Expected failed batch to write nothing, got %d rows", n)
	}
}

func testRangeKeys(t *testing.T, table db.KVTable) {
	const n = 1500 // spans several pages
	rows := make([]db.Row, n)
	for i := range rows {
		rows[i] = db.Row{Key: fmt.Sprintf("k%04d", n-i), Value: int64(i)}
	}
	if err := table.PutBatch(rows); err != nil {
		t.Fatalf("PutBatch failed: %v", err)
	}

	collect := func() []string {
		var keys []string
		if err := table.RangeKeys(func(key string) bool {
			keys = append(keys, key)
			return true
		}); err != nil {
			t.Fatalf("RangeKeys failed: %v", err)
		}
		return keys
	}

	keys := collect()
	if len(keys) != n {
		t.Fatalf("Expected %d keys, got %d", n, len(keys))
	}
	for i, key := range keys {
		if key != rows[i].Key {
			t.Fatalf("Expected insertion order, key %d is %s, want %s", i, key, rows[i].Key)
		}
	}

	// restartable
	if again := collect(); !reflect.DeepEqual(keys, again) {
		t.Errorf("Expected a second RangeKeys to yield the same keys")
	}

	// early stop and nested table access
	seen := 0
	if err := table.RangeKeys(func(key string) bool {
		seen++
		if _, found, err := table.Get(key); err != nil || !found {
			t.Errorf("Nested Get(%s) failed: found=%v err=%v", key, found, err)
		}
		return seen < 10
	}); err != nil {
		t.Fatalf("RangeKeys failed: %v", err)
	}
	if seen != 10 {
		t.Errorf("Expected RangeKeys to stop after 10 keys, got %d", seen)
	}
}

func testExtraColumns(t *testing.T, table db.KVTable) {
	if cols := table.Columns(); len(cols) != 3 || cols[0].Name != "n" {
		t.Fatalf("Unexpected columns %v", cols)
	}

	mustPut(t, table, db.Row{Key: "a", Value: "x", Extra: []any{3, "l1", 1}})
	mustPut(t, table, db.Row{Key: "b", Value: "y", Extra: []any{"100", 7, float32(2.5)}})

	q := fmt.Sprintf("SELECT sum(n), typeof(label), sum(score) FROM %s WHERE key = ?", table.Name())
	rows, err := table.Query(q, "b")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	want := [][]any{{int64(100), "text", 2.5}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("Expected coerced extra values %v, got %v", want, rows)
	}

	// extra columns are recomputed on overwrite
	mustPut(t, table, db.Row{Key: "a", Value: "x", Extra: []any{4, "l1", 1}})
	rows, err = table.Query(fmt.Sprintf("SELECT sum(n) FROM %s", table.Name()))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if rows[0][0] != int64(104) {
		t.Errorf("Expected sum 104 after overwrite, got %v", rows[0][0])
	}

	rows, err = table.Query(fmt.Sprintf("SELECT key FROM %s WHERE n < ? ORDER BY key", table.Name()), 50)
	if err != nil {
		t.Fatalf("Query with params failed: %v", err)
	}
	if !reflect.DeepEqual(rows, [][]any{{"a"}}) {
		t.Errorf("Expected [[a]], got %v", rows)
	}
}

func testScalarValues(t *testing.T, table db.KVTable) {
	values := map[string]any{
		"int":    int64(42),
		"float":  3.25,
		"string": "hello",
		"bytes":  []byte{0, 1, 2},
		"null":   nil,
	}
	for k, v := range values {
		mustPut(t, table, db.Row{Key: k, Value: v})
	}
	for k, v := range values {
		if got := mustGet(t, table, k); !reflect.DeepEqual(got, v) {
			t.Errorf("Expected %s to round trip as %#v, got %#v", k, v, got)
		}
	}

	if err := table.Put(db.Row{Key: "bad", Value: struct{}{}}); !errors.Is(err, db.ErrInvalidOperation) {
		t.Errorf("Expected ErrInvalidOperation for a non scalar value, got %v", err)
	}
}

func testRealisticUsage(t *testing.T, table db.KVTable) {
	inMemory := make(map[int64]int64)
	for i := 0; i < 300; i++ {
		bucket := int64(i % 7)
		if err := table.Put(db.Row{Key: fmt.Sprintf("item-%d", i), Value: int64(i), Extra: []any{bucket}}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		inMemory[bucket] += int64(i)
	}
	for i := 0; i < 300; i += 3 {
		if _, err := table.Delete(fmt.Sprintf("item-%d", i)); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		inMemory[int64(i%7)] -= int64(i)
	}

	rows, err := table.Query(fmt.Sprintf("SELECT bucket, sum(value) FROM %s GROUP BY bucket ORDER BY bucket", table.Name()))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("Expected 7 buckets, got %d", len(rows))
	}
	for _, row := range rows {
		bucket, sum := row[0].(int64), row[1].(int64)
		if inMemory[bucket] != sum {
			t.Errorf("Bucket %d: expected sum %d, got %d", bucket, inMemory[bucket], sum)
		}
	}

	if n := mustCount(t, table); n != 200 {
		t.Errorf("Expected 200 rows, got %d", n)
	}
	if info := table.GetInfo(); info.Rows != 200 || info.Name != table.Name() {
		t.Errorf("Unexpected table info %+v", info)
	}
}
