// Package cache provides the bounded in-memory layer of the file-backed
// collections: a generic LRU mapping from key to Entry (deserialized value
// plus dirty and persisted flags).
//
// Recency is kept by an ordered map (github.com/wk8/go-ordered-map/v2), giving
// O(1) lookup, move-to-back on access and access to the least recently used
// entry.
//
// The package only tracks state. The write-back policy (evicting a batch of
// least recently used entries once the cache overflows, persisting the dirty
// ones in one transaction, flushing) is implemented by the containers in the
// store package, which know how to serialize and persist values.
//
// Per key state machine as driven by the containers:
//
//	ABSENT ─write─▶ CACHED_DIRTY ─flush─▶ CACHED_CLEAN ─evict─▶ PERSISTED_ONLY
//	PERSISTED_ONLY ─read─▶ CACHED_CLEAN ─write─▶ CACHED_DIRTY
//	any ─delete─▶ ABSENT
package cache
