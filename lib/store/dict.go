package store

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/ValentinKolb/fbkv/lib/codec"
	"github.com/ValentinKolb/fbkv/lib/db"
	"github.com/ValentinKolb/fbkv/lib/db/engines/sqlite"
)

// Dict is a mapping from string keys to values of type V, persisted in a
// table of a physical store with a bounded LRU cache of decoded values in
// front of it.
//
// Reads consult the cache first and fall back to the store. Writes only mark
// the cached value dirty; dirty values reach the store when they are evicted
// (in batches of the least recently used entries) or on Flush. Without a
// cache (CacheMaxSize 0) every write goes straight to the store.
//
// Thread-safety: all methods are safe for concurrent use.
type Dict[V any] struct {
	*collection[V]
}

// NewDict opens (or creates) the table described by opts and returns a Dict
// on it. opts may be nil, see DefaultOptions.
func NewDict[V any](c codec.Codec[V], opts *Options[V]) (*Dict[V], error) {
	col, err := newCollection(c, opts)
	if err != nil {
		return nil, err
	}
	d := &Dict[V]{col}
	runtime.SetFinalizer(d, (*Dict[V]).finalize)
	return d, nil
}

// finalize releases a Dict that was dropped without Close.
func (d *Dict[V]) finalize() {
	if err := d.Close(); err != nil {
		plog.Errorf("closing unreachable dict %s failed, dirty values are lost: %v", d.table.Name(), err)
	}
}

// --------------------------------------------------------------------------
// Mapping Operations
// --------------------------------------------------------------------------

// Get returns the value for key or db.ErrKeyNotFound.
func (d *Dict[V]) Get(key string) (V, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		var zero V
		return zero, err
	}
	return d.get(key)
}

// Set stores value for key. It may evict other values as a side effect.
// An error from that eviction does not roll back the write: value stays
// cached and dirty, counts towards Len and is written by a later eviction
// or Flush.
func (d *Dict[V]) Set(key string, value V) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	return d.set(key, value, presenceUnknown)
}

// SetMany stores all values. It stops at the first error, values stored
// before it are kept (see Set).
func (d *Dict[V]) SetMany(values map[string]V) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	for key, value := range values {
		if err := d.set(key, value, presenceUnknown); err != nil {
			return err
		}
	}
	return nil
}

// Update replaces the value of key with the result of fn, which receives the
// current value (found reports whether there was one). An error returned by
// fn aborts the update and is returned unchanged.
func (d *Dict[V]) Update(key string, fn func(old V, found bool) (V, error)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}

	known := presenceExisting
	old, err := d.get(key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		known = presenceNew
	case err != nil:
		return err
	}

	value, err := fn(old, known == presenceExisting)
	if err != nil {
		return err
	}
	return d.set(key, value, known)
}

// MarkDirty schedules the cached value of key for write-back. Use it after
// mutating a value obtained from Get in place. It fails with
// db.ErrKeyNotFound for unknown keys.
func (d *Dict[V]) MarkDirty(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	if entry, ok := d.cache.Peek(key); ok {
		entry.Dirty = true
		return nil
	}
	// not cached: the store holds the authoritative value already
	found, err := d.table.Has(key)
	if err != nil {
		return err
	}
	if !found {
		return db.NewError(db.RetCKeyNotFound, fmt.Sprintf("key %q not found in %s", key, d.table.Name()))
	}
	return nil
}

// Delete removes key or fails with db.ErrKeyNotFound.
func (d *Dict[V]) Delete(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return err
	}
	return d.del(key)
}

// Has reports whether key exists.
func (d *Dict[V]) Has(key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return false, err
	}
	return d.has(key)
}

// Len returns the number of distinct keys.
func (d *Dict[V]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.length
}

// --------------------------------------------------------------------------
// Iteration
// --------------------------------------------------------------------------

// Range calls fn for every key until fn returns false. Cached keys come
// first, followed by keys only found in the store. Keys added or removed
// while ranging may or may not be visited; no key is visited twice.
func (d *Dict[V]) Range(fn func(key string) bool) error {
	return d.rangeKeys(fn)
}

// Items calls fn for every key and its value until fn returns false.
// Values are read through the cache, as with Get.
func (d *Dict[V]) Items(fn func(key string, value V) bool) error {
	var itemErr error
	err := d.rangeKeys(func(key string) bool {
		value, err := d.Get(key)
		switch {
		case errors.Is(err, db.ErrKeyNotFound):
			return true // deleted while ranging
		case err != nil:
			itemErr = err
			return false
		}
		return fn(key, value)
	})
	if err != nil {
		return err
	}
	return itemErr
}

// Keys returns all keys, see Range.
func (d *Dict[V]) Keys() ([]string, error) {
	var keys []string
	err := d.Range(func(key string) bool {
		keys = append(keys, key)
		return true
	})
	return keys, err
}

// Snapshot flushes the Dict and calls fn for every persisted key and value
// matching the SQL condition where (all rows if empty), in insertion order.
// Extra columns can be used in the condition.
func (d *Dict[V]) Snapshot(where string, args []any, fn func(key string, value V) bool) error {
	return d.snapshot(where, args, fn)
}

// --------------------------------------------------------------------------
// Queries and Lifecycle
// --------------------------------------------------------------------------

// SQLQuery flushes the Dict and every ref, then runs a read-only query on
// the physical store. The tables of the refs can be referenced by name.
func (d *Dict[V]) SQLQuery(query string, args []any, refs ...Ref) ([][]any, error) {
	return d.sqlQuery(query, args, refs)
}

// Flush writes all dirty values to the store. Values stay cached.
func (d *Dict[V]) Flush() error {
	return d.lockedFlush()
}

// Close flushes the Dict and releases the physical store. If the flush
// fails the Dict stays open. Closing twice is a no-op.
func (d *Dict[V]) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.close()
	if err == nil {
		runtime.SetFinalizer(d, nil)
	}
	return err
}

// TableName returns the name of the backing table.
func (d *Dict[V]) TableName() string {
	return d.table.Name()
}

// Conn returns the physical store of the Dict.
func (d *Dict[V]) Conn() *sqlite.Conn {
	return d.conn
}

// GetInfo returns metadata and cache statistics.
func (d *Dict[V]) GetInfo() Info {
	return d.info()
}
