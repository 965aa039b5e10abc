// Package testing provides standardised tests and benchmarks for
// table implementations that satisfy the db.KVTable interface.
//
// The package contains:
//   - RunKVTableTests: a test suite validating the KVTable contract
//     (upsert, batch atomicity, deletion, key order, extra column coercion,
//     queries)
//   - RunKVTableBenchmarks: throughput of the common table operations
//
// Example usage:
//
//	factory := func(tb testing.TB, cols []db.Column) db.KVTable {
//		return newMyTable(tb, cols)
//	}
//
//	dbtesting.RunKVTableTests(t, "MyTable", factory)
//	dbtesting.RunKVTableBenchmarks(b, "MyTable", factory)
package testing
