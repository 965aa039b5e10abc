// Package db defines the storage table abstraction used by the file-backed
// collections. A table is a namespaced key-value area inside a physical
// store: a primary key column holding the logical key, a value column holding
// the serialized value and zero or more extra columns derived from the value
// for query acceleration.
//
// The package focuses on:
//   - A unified interface (KVTable) for row level operations
//   - A typed error taxonomy shared by all layers (Error, RetCode)
//   - SQLite compatible type affinity for extra columns
//   - Standardized metadata reporting (TableInfo)
//
// Key Components:
//
//   - KVTable Interface: upsert, batch upsert, lookup, delete, key iteration in
//     insertion order, row count and raw read-only SQL queries. Implementations
//     perform one logical write per call; batching is the caller's job.
//
//   - Errors: every error returned by this module is an *Error carrying a
//     RetCode. The sentinels (ErrKeyNotFound, ErrIndexOutOfRange,
//     ErrSchemaConflict, ErrSerialization, ErrStorageIO, ErrInvalidOperation)
//     match by code with errors.Is, and Unwrap exposes the underlying cause.
//
//   - Affinity: extra column values are normalized to scalars and coerced by
//     the declared affinity of their column, exactly as SQLite would store them.
//
// Related Packages:
//
// The engines/sqlite package (github.com/ValentinKolb/fbkv/lib/db/engines/sqlite)
// implements KVTable on top of an embedded SQLite file and owns the connection
// registry that lets several tables share one physical file.
//
// The testing package (github.com/ValentinKolb/fbkv/lib/db/testing) provides a
// standardized test suite and benchmarks for KVTable implementations.
//
// The util package (github.com/ValentinKolb/fbkv/lib/db/util) provides the size
// histogram used to estimate table sizes and basic sample statistics.
package db
