// Package sqlite implements db.KVTable on an embedded SQLite database
// (modernc.org/sqlite, pure Go) and provides the connection registry that lets
// several tables share one physical file.
//
// Key Features:
//   - One physical connection per file: every Conn wraps a database/sql handle
//     limited to a single connection, so all tables of a file see one
//     consistent view and can be joined in queries
//   - Reference counting: a Registry hands out Conns keyed by absolute path and
//     closes a Conn (removing the file if requested) when the last holder
//     releases it
//   - Temporary stores: an empty path allocates a private temporary directory
//     that is removed together with the store
//   - Relaxed durability: synchronous=OFF and an in-memory journal, the store is
//     a process local cache whose content can be rebuilt from its sources
//   - Read-only queries: Conn.Query runs statements inside a transaction that is
//     always rolled back
//
// Table Layout:
//
//	CREATE TABLE <name> (
//	    key   TEXT PRIMARY KEY NOT NULL,
//	    value,                      -- no affinity, the codec's scalar is kept as-is
//	    <extra> <affinity>, ...     -- one indexed column per extra column
//	)
//
// Writes are upserts (INSERT ... ON CONFLICT(key) DO UPDATE) and keep the
// rowid of existing keys, so iteration by rowid yields keys in insertion order.
//
// Thread Safety:
//
//	Registry, Conn and tables are safe for concurrent use. Statements are
//	serialized by the single connection; containers sharing a file therefore
//	block each other while writing.
//
// Usage Example:
//
//	reg := sqlite.NewRegistry()
//	conn, err := reg.Acquire("/tmp/cache.db", false)
//	if err != nil { ... }
//	defer reg.Release(conn)
//
//	table, err := conn.CreateTable("lineage", []db.Column{{Name: "urn", Affinity: db.AffinityTEXT}})
//	_ = table.Put(db.Row{Key: "a", Value: `{"x":1}`, Extra: []any{"urn:li:a"}})
//	rows, err := conn.Query(`SELECT urn, count(*) FROM lineage GROUP BY urn`)
package sqlite
