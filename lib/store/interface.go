package store

import (
	"github.com/ValentinKolb/fbkv/lib/common"
	"github.com/ValentinKolb/fbkv/lib/db"
	"github.com/ValentinKolb/fbkv/lib/db/engines/sqlite"
)

// --------------------------------------------------------------------------
// Construction Options
// --------------------------------------------------------------------------

// ExtraColumn is a derived, indexed projection of a value. Extract is applied
// on every write of the owning key and must be a pure function returning a
// scalar (any integer or float kind, bool, string, []byte, time.Time, a
// fmt.Stringer or nil).
type ExtraColumn[V any] struct {
	Name     string
	Affinity db.Affinity // zero value (BLOB) stores the scalar as returned
	Extract  func(v V) any
}

// Options configures a Dict or a List.
//
// The zero value is valid but disables the in-memory cache; use
// DefaultOptions to start from the library defaults.
type Options[V any] struct {
	// Registry hands out the physical store. Containers only share a file
	// (and can be joined in queries) when built with the same Registry.
	// nil = private registry owned by the container.
	Registry *sqlite.Registry

	// Path of the physical store. Empty allocates a temporary file that is
	// removed on close.
	Path string

	// TableName of the container. Empty generates a unique name.
	TableName string

	// CacheMaxSize bounds the number of values held in memory at rest.
	// 0 disables the cache: every read and write goes to the store.
	CacheMaxSize int

	// EvictionBatchSize is the number of least recently used values evicted
	// at once when the cache overflows. 0 = CacheMaxSize / 10 (at least 1).
	EvictionBatchSize int

	// ExtraColumns are persisted next to the value, in order.
	ExtraColumns []ExtraColumn[V]

	// DeleteOnClose removes the physical file once the last container using
	// it is closed.
	DeleteOnClose bool

	// WriteBackOnRead persists values on every read, also when they did not
	// change. Without a cache the codec's Encode runs on each Get; with a
	// cache, read values are marked dirty. Use it for values that callers
	// mutate in place (maps, pointers).
	WriteBackOnRead bool
}

// DefaultOptions returns options with the library defaults: a temporary
// store, a generated table name and a cache of common.DefaultCacheMaxSize
// values.
func DefaultOptions[V any]() *Options[V] {
	return &Options[V]{
		CacheMaxSize:      common.DefaultCacheMaxSize,
		EvictionBatchSize: common.DefaultEvictionBatchSize,
	}
}

// FromConfig builds options from a store configuration.
func FromConfig[V any](cfg *common.StoreConfig, registry *sqlite.Registry) *Options[V] {
	return &Options[V]{
		Registry:          registry,
		Path:              cfg.Path,
		TableName:         cfg.Table,
		CacheMaxSize:      cfg.CacheMaxSize,
		EvictionBatchSize: cfg.EvictionBatchSize,
		DeleteOnClose:     cfg.DeleteOnClose,
		WriteBackOnRead:   cfg.WriteBackOnRead,
	}
}

// --------------------------------------------------------------------------
// Query References
// --------------------------------------------------------------------------

// Ref is a container that can be referenced in the SQL text of another
// container's query. Both must live in the same physical store.
type Ref interface {
	// Flush writes all dirty values to the store.
	Flush() error
	// Conn returns the physical store of the container.
	Conn() *sqlite.Conn
	// TableName returns the name of the container's table.
	TableName() string
}
