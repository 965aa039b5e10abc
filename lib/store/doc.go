// Package store provides the file-backed collections: Dict, a mapping from
// string keys to values, and List, an append-only sequence. Both keep a
// bounded working set of decoded values in memory and persist everything else
// in a table of an embedded SQLite file, so that millions of entries can be
// tracked without holding them in memory while still allowing relational
// queries (grouping, joins, filters) over the persisted data.
//
// Key Components:
//
//   - Dict / List: the public containers. Both embed the same collection
//     machinery and differ only in how keys are formed (List stores elements
//     under their offset).
//
//   - Cache: an LRU of decoded values with a dirty flag (lib/cache). Reads
//     hit the cache or repopulate it from the store (clean), writes mark the
//     value dirty without touching the store. Once the cache holds more than
//     CacheMaxSize values, the EvictionBatchSize least recently used values
//     are evicted together; their dirty values are written in one
//     transaction first. Flush writes all dirty values and keeps them cached.
//     A failed write (codec or store) leaves every entry as it was, dirty
//     values stay dirty and in memory.
//
//   - Codec: every container is bound to a codec.Codec[V] that converts
//     values to the scalar stored in the value column.
//
//   - Extra columns: named projections of the value, recomputed on every
//     write and stored in indexed columns next to the value for queries.
//
//   - Query interface: SQLQuery flushes the container and all referenced
//     containers and runs a read-only statement on their physical store.
//
// Physical stores:
//
//	A physical store is shared by all containers opened with the same
//	sqlite.Registry and path; it is closed (and removed, for temporary stores
//	and DeleteOnClose) when the last of them is closed. Containers must be
//	closed (or flushed) before the process exits, values still dirty in memory
//	are lost otherwise. A container that becomes unreachable without Close is
//	closed by a finalizer.
//
// Usage Example:
//
//	reg := sqlite.NewRegistry()
//	opts := store.DefaultOptions[Pair]()
//	opts.Registry, opts.Path, opts.TableName = reg, "/tmp/pairs.db", "pairs"
//	opts.ExtraColumns = []store.ExtraColumn[Pair]{
//	    {Name: "x", Affinity: db.AffinityINTEGER, Extract: func(p Pair) any { return p.X }},
//	}
//
//	pairs, err := store.NewDict(codec.NewJSONCodec[Pair](), opts)
//	if err != nil { ... }
//	defer pairs.Close()
//
//	_ = pairs.Set("first", Pair{X: 3, Y: "a"})
//	rows, err := pairs.SQLQuery("SELECT sum(x) FROM pairs WHERE x < ?", []any{50})
//
// Disabled cache:
//
//	With CacheMaxSize 0 every write is encoded and persisted immediately and
//	every read decodes from the store. WriteBackOnRead additionally persists
//	each value read (encoding it again), which keeps values that callers
//	mutate in place in sync with the store.
package store
