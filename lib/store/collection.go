package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/fbkv/lib/cache"
	"github.com/ValentinKolb/fbkv/lib/codec"
	"github.com/ValentinKolb/fbkv/lib/common"
	"github.com/ValentinKolb/fbkv/lib/db"
	"github.com/ValentinKolb/fbkv/lib/db/engines/sqlite"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger(common.LoggerStore)

// presence tells set what is already known about a key in the store.
type presence int

const (
	presenceUnknown  presence = iota // look it up
	presenceNew                      // the key is known to be absent
	presenceExisting                 // the key is known to exist (cache or store)
)

// collection is the machinery shared by Dict and List: a table in a
// physical store, an LRU cache of decoded values in front of it and a
// running count of distinct keys.
//
// Thread-safety: methods starting with a lower case letter expect the
// caller to hold mu.
type collection[V any] struct {
	mu sync.Mutex

	codec           codec.Codec[V]
	extra           []ExtraColumn[V]
	writeBackOnRead bool

	registry *sqlite.Registry
	conn     *sqlite.Conn
	table    db.KVTable
	cache    *cache.LRU[string, V]
	metrics  *collectionMetrics

	// length is the number of distinct keys in cache ∪ store
	length int
	closed bool
}

func newCollection[V any](c codec.Codec[V], opts *Options[V]) (*collection[V], error) {
	if c == nil {
		return nil, db.NewError(db.RetCInvalidOperation, "codec must not be nil")
	}
	if opts == nil {
		opts = DefaultOptions[V]()
	}
	if opts.CacheMaxSize < 0 || opts.EvictionBatchSize < 0 {
		return nil, db.NewError(db.RetCInvalidOperation,
			fmt.Sprintf("cache sizes must be >= 0, got max %d batch %d", opts.CacheMaxSize, opts.EvictionBatchSize))
	}

	cols := make([]db.Column, len(opts.ExtraColumns))
	for i, col := range opts.ExtraColumns {
		if col.Extract == nil {
			return nil, db.NewError(db.RetCInvalidOperation, fmt.Sprintf("extra column %q has no extract function", col.Name))
		}
		cols[i] = db.Column{Name: col.Name, Affinity: col.Affinity}
	}

	registry := opts.Registry
	if registry == nil {
		registry = sqlite.NewRegistry()
	}
	name := opts.TableName
	if name == "" {
		name = "fbkv_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	conn, err := registry.Acquire(opts.Path, opts.DeleteOnClose)
	if err != nil {
		return nil, err
	}

	// construction aborts before any write on a schema conflict
	table, err := conn.CreateTable(name, cols)
	if err != nil {
		_ = registry.Release(conn)
		return nil, err
	}
	if err := conn.HoldTable(name); err != nil {
		_ = registry.Release(conn)
		return nil, err
	}
	length, err := table.Count()
	if err != nil {
		conn.UnholdTable(name)
		_ = registry.Release(conn)
		return nil, err
	}

	batch := opts.EvictionBatchSize
	if batch == 0 {
		batch = max(1, opts.CacheMaxSize/10)
	}

	plog.Infof("opened collection %s in %s (cache %d/%d, %d rows)", name, conn.Path(), opts.CacheMaxSize, batch, length)
	return &collection[V]{
		codec:           c,
		extra:           append([]ExtraColumn[V](nil), opts.ExtraColumns...),
		writeBackOnRead: opts.WriteBackOnRead,
		registry:        registry,
		conn:            conn,
		table:           table,
		cache:           cache.NewLRU[string, V](opts.CacheMaxSize, batch),
		metrics:         newCollectionMetrics(conn.Path(), name),
		length:          length,
	}, nil
}

// --------------------------------------------------------------------------
// Cache / Store Operations (caller holds mu)
// --------------------------------------------------------------------------

func (c *collection[V]) checkOpen() error {
	if c.closed {
		return db.NewError(db.RetCInvalidOperation, fmt.Sprintf("collection %s is closed", c.table.Name()))
	}
	return nil
}

// get returns the value for key from the cache or, on a miss, from the store.
func (c *collection[V]) get(key string) (V, error) {
	var zero V

	if entry, ok := c.cache.Get(key); ok {
		c.metrics.hit()
		if c.writeBackOnRead {
			entry.Dirty = true
		}
		return entry.Value, nil
	}
	c.metrics.miss()

	stored, found, err := c.table.Get(key)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, db.NewError(db.RetCKeyNotFound, fmt.Sprintf("key %q not found in %s", key, c.table.Name()))
	}
	v, err := c.codec.Decode(stored)
	if err != nil {
		return zero, db.WrapError(db.RetCSerialization, err, "decode %s/%s", c.table.Name(), key)
	}

	if !c.cache.Enabled() {
		if c.writeBackOnRead {
			if err := c.persist(key, v); err != nil {
				return zero, err
			}
		}
		return v, nil
	}

	c.cache.Put(key, &cache.Entry[V]{Value: v, Dirty: c.writeBackOnRead, Persisted: true})
	if err := c.evictIfNeeded(); err != nil {
		return zero, err
	}
	return v, nil
}

// set stores v for key. With a cache the value is only marked dirty,
// without one it is written immediately.
func (c *collection[V]) set(key string, v V, known presence) error {
	existed := known == presenceExisting
	persisted := false

	if entry, ok := c.cache.Peek(key); ok {
		existed = true
		persisted = entry.Persisted
	} else if known == presenceUnknown {
		found, err := c.table.Has(key)
		if err != nil {
			return err
		}
		existed, persisted = found, found
	} else if known == presenceExisting {
		// an uncached existing key lives in the store
		persisted = true
	}

	if !c.cache.Enabled() {
		if err := c.persist(key, v); err != nil {
			return err
		}
	} else {
		c.cache.Put(key, &cache.Entry[V]{Value: v, Dirty: true, Persisted: persisted})
	}
	if !existed {
		c.length++
	}
	if c.cache.Enabled() {
		return c.evictIfNeeded()
	}
	return nil
}

// del removes key from the cache and the store.
func (c *collection[V]) del(key string) error {
	entry, cached := c.cache.Peek(key)

	deleted := false
	if !cached || entry.Persisted {
		var err error
		if deleted, err = c.table.Delete(key); err != nil {
			return err
		}
	}
	if !cached && !deleted {
		return db.NewError(db.RetCKeyNotFound, fmt.Sprintf("key %q not found in %s", key, c.table.Name()))
	}

	c.cache.Remove(key)
	c.length--
	return nil
}

// has reports whether key exists in the cache or the store.
func (c *collection[V]) has(key string) (bool, error) {
	if c.cache.Has(key) {
		return true, nil
	}
	return c.table.Has(key)
}

// row encodes v and computes its extra columns.
func (c *collection[V]) row(key string, v V) (db.Row, error) {
	stored, err := c.codec.Encode(v)
	if err != nil {
		return db.Row{}, db.WrapError(db.RetCSerialization, err, "encode %s/%s", c.table.Name(), key)
	}
	extra := make([]any, len(c.extra))
	for i, col := range c.extra {
		extra[i] = col.Extract(v)
	}
	return db.Row{Key: key, Value: stored, Extra: extra}, nil
}

// persist writes a single value straight to the store.
func (c *collection[V]) persist(key string, v V) error {
	row, err := c.row(key, v)
	if err != nil {
		return err
	}
	if err := c.table.Put(row); err != nil {
		return err
	}
	c.metrics.written(1)
	return nil
}

// writeBack persists the dirty entries of items in one transaction and marks
// them clean. On failure no entry changes state.
func (c *collection[V]) writeBack(items []cache.Item[string, V]) error {
	rows := make([]db.Row, 0, len(items))
	for _, item := range items {
		if !item.Entry.Dirty {
			continue
		}
		row, err := c.row(item.Key, item.Entry.Value)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := c.table.PutBatch(rows); err != nil {
		return err
	}

	for _, item := range items {
		item.Entry.Dirty = false
		item.Entry.Persisted = true
	}
	c.metrics.written(len(rows))
	return nil
}

// evictIfNeeded evicts batches of least recently used entries while the
// cache holds more than its maximum size. Dirty entries of a batch are
// written in one transaction before the batch is dropped.
func (c *collection[V]) evictIfNeeded() error {
	for c.cache.Overflowing() {
		batch := c.cache.EvictionCandidates()
		if err := c.writeBack(batch); err != nil {
			plog.Warningf("eviction on %s failed, %d entries kept: %v", c.table.Name(), len(batch), err)
			return err
		}
		for _, item := range batch {
			c.cache.Remove(item.Key)
		}
		c.metrics.evict(len(batch))
		plog.Debugf("evicted %d entries from %s", len(batch), c.table.Name())
	}
	return nil
}

// flush writes every dirty entry and keeps all entries cached.
func (c *collection[V]) flush() error {
	start := time.Now()
	if err := c.writeBack(c.cache.DirtyItems()); err != nil {
		return err
	}
	c.metrics.flushed(start)
	return nil
}

// close flushes and releases the physical store. A failed flush keeps the
// collection open so that it can be retried.
func (c *collection[V]) close() error {
	if c.closed {
		return nil
	}
	if err := c.flush(); err != nil {
		return err
	}
	c.closed = true
	c.cache.Clear()
	c.metrics.unregister()
	c.conn.UnholdTable(c.table.Name())
	plog.Infof("closed collection %s", c.table.Name())
	return c.registry.Release(c.conn)
}

// --------------------------------------------------------------------------
// Iteration and Queries (lock handling inside)
// --------------------------------------------------------------------------

// rangeKeys calls fn for every key: cached keys first, then keys only found
// in the store. fn runs without the lock held and may use the collection.
func (c *collection[V]) rangeKeys(fn func(key string) bool) error {
	c.mu.Lock()
	if err := c.checkOpen(); err != nil {
		c.mu.Unlock()
		return err
	}
	cached := c.cache.Keys()
	c.mu.Unlock()

	seen := make(map[string]struct{}, len(cached))
	for _, key := range cached {
		seen[key] = struct{}{}
		if !fn(key) {
			return nil
		}
	}
	return c.table.RangeKeys(func(key string) bool {
		if _, ok := seen[key]; ok {
			return true
		}
		return fn(key)
	})
}

// lockedFlush is Flush for the public types.
func (c *collection[V]) lockedFlush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.flush()
}

// sqlQuery flushes the collection and every ref, then runs query on the
// shared physical store.
func (c *collection[V]) sqlQuery(query string, args []any, refs []Ref) ([][]any, error) {
	for _, ref := range refs {
		if ref.Conn() != c.conn {
			return nil, db.NewError(db.RetCInvalidOperation,
				fmt.Sprintf("table %s is not stored in %s", ref.TableName(), c.conn.Path()))
		}
	}
	if err := c.lockedFlush(); err != nil {
		return nil, err
	}
	for _, ref := range refs {
		if err := ref.Flush(); err != nil {
			return nil, err
		}
	}
	return c.conn.Query(query, args...)
}

// snapshot flushes and decodes every persisted row matching where (all rows
// if where is empty).
func (c *collection[V]) snapshot(where string, args []any, fn func(key string, v V) bool) error {
	if err := c.lockedFlush(); err != nil {
		return err
	}
	query := fmt.Sprintf(`SELECT %s, %s FROM "%s"`, db.KeyColumn, db.ValueColumn, c.table.Name())
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY rowid"

	rows, err := c.conn.Query(query, args...)
	if err != nil {
		return err
	}
	for _, row := range rows {
		key, _ := row[0].(string)
		v, err := c.codec.Decode(row[1])
		if err != nil {
			return db.WrapError(db.RetCSerialization, err, "decode %s/%s", c.table.Name(), key)
		}
		if !fn(key, v) {
			return nil
		}
	}
	return nil
}

// info collects metadata of the collection.
func (c *collection[V]) info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	dirty := 0
	if !c.closed {
		dirty = len(c.cache.DirtyItems())
	}
	return Info{
		Table:        c.table.GetInfo(),
		Length:       c.length,
		Cached:       c.cache.Len(),
		Dirty:        dirty,
		CacheMaxSize: c.cache.MaxSize(),
		Stats:        c.metrics.stats(),
	}
}

// Info reports the state of a container.
type Info struct {
	Table        db.TableInfo `json:"table"`
	Length       int          `json:"length"`
	Cached       int          `json:"cached"`
	Dirty        int          `json:"dirty"`
	CacheMaxSize int          `json:"cache_max_size"`
	Stats        CacheStats   `json:"stats"`
}
