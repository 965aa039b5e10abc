package db

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplSQLite Implementation = "sqlite"
)

// Reserved column names used by every table.
const (
	KeyColumn   = "key"
	ValueColumn = "value"
)

// Column describes an extra (denormalized, indexed) column of a table.
// The value stored in the column is coerced according to its affinity.
type Column struct {
	Name     string   `json:"name"`
	Affinity Affinity `json:"affinity"`
}

// Row is a single persisted record: the logical key, the serialized value
// and one value per extra column (in the order of the table's columns).
type Row struct {
	Key   string
	Value any
	Extra []any
}

// TableInfo reports metadata about a table.
type TableInfo struct {
	Name           string         `json:"name"`
	Path           string         `json:"path"`
	DbType         Implementation `json:"db_type"`
	Rows           int            `json:"rows"`
	Columns        []Column       `json:"columns"`
	SizeBytes      int            `json:"size_bytes"`
	MedianRowBytes int            `json:"median_row_bytes"`
}

// --------------------------------------------------------------------------
// Table Interface
// --------------------------------------------------------------------------

// KVTable is a namespaced key-value area inside a physical store.
// Every row consists of a unique string key, a serialized value and zero or
// more extra columns derived from the value.
//
// Implementations perform one logical write per call. Callers that need
// throughput should use PutBatch, which writes all rows in one transaction.
type KVTable interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put inserts the row if the key is absent and updates all columns otherwise.
	Put(row Row) (err error)

	// PutBatch upserts all rows inside a single transaction.
	// Either all rows are written or none.
	PutBatch(rows []Row) (err error)

	// Delete removes the row for key. The boolean reports whether a row was removed.
	Delete(key string) (deleted bool, err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns the serialized value for key.
	// The boolean return value indicates whether the key was found.
	Get(key string) (value any, found bool, err error)

	// Has reports whether a row for key exists.
	Has(key string) (found bool, err error)

	// RangeKeys calls fn for every key in insertion order until fn returns false.
	// Each call re-reads the table, so a RangeKeys can be restarted at any time.
	// fn may call other methods of the table.
	RangeKeys(fn func(key string) bool) (err error)

	// Count returns the number of rows.
	Count() (n int, err error)

	// Query executes a read-only SQL statement. Tables sharing the same
	// physical store can be referenced by name in the statement.
	Query(query string, args ...any) (rows [][]any, err error)

	// --------------------------------------------------------------------------
	// Metadata
	// --------------------------------------------------------------------------

	// Name returns the table name.
	Name() string

	// Columns returns the extra columns in declaration order.
	Columns() []Column

	// GetInfo returns information about the table. Size fields are estimates.
	GetInfo() (info TableInfo)
}
