package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/fbkv/lib/common"
	"github.com/ValentinKolb/fbkv/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	_ "modernc.org/sqlite"
)

var plog = logger.GetLogger(common.LoggerSQLite)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	driverName   = "sqlite"
	tempFileName = "store.db"
)

// pragmas are applied to every connection opened by the driver.
// The store is a process local cache whose content can be rebuilt from the
// source systems, so durability is traded for write throughput.
var pragmas = []string{
	"synchronous(OFF)",
	"journal_mode(MEMORY)",
	"temp_store(MEMORY)",
	"busy_timeout(5000)",
}

// identRegex restricts table and column names to plain SQL identifiers,
// they are interpolated into statements.
var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// --------------------------------------------------------------------------
// Physical store connection
// --------------------------------------------------------------------------

// Conn is the single connection to one physical store file. Conns are
// handed out and reference counted by a Registry; all tables created on a
// Conn share the connection and can be joined in queries.
//
// Thread-safety: all methods are safe for concurrent use. Statements are
// serialized by the underlying single connection.
type Conn struct {
	path          string
	tmpDir        string // non-empty if the store lives in a private temp dir
	deleteOnClose bool
	refs          atomic.Int32 // mutated only inside Registry.Compute

	mu     sync.RWMutex // guards closed against in-flight statements
	closed bool
	db     *sql.DB

	tablesMu sync.Mutex
	tables   map[string][]db.Column
	held     map[string]bool // tables bound by an open container
}

// dsn builds the driver data source name for path.
func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// openConn opens the physical store at path.
func openConn(path, tmpDir string, deleteOnClose bool) (*Conn, error) {
	sqlDB, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, db.WrapError(db.RetCStorageIO, err, "open %s", path)
	}

	// one physical connection, never recycled
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	// touch the file so that permission problems surface here and not on first write
	if _, err := sqlDB.Exec("PRAGMA user_version"); err != nil {
		_ = sqlDB.Close()
		return nil, db.WrapError(db.RetCStorageIO, err, "open %s", path)
	}

	plog.Infof("opened physical store %s", path)
	return &Conn{
		path:          path,
		tmpDir:        tmpDir,
		deleteOnClose: deleteOnClose,
		db:            sqlDB,
		tables:        make(map[string][]db.Column),
		held:          make(map[string]bool),
	}, nil
}

// Path returns the absolute path of the physical store file.
func (c *Conn) Path() string {
	return c.path
}

// RefCount returns the number of containers currently holding this Conn.
func (c *Conn) RefCount() int {
	return int(c.refs.Load())
}

// IsTemporary reports whether the store lives in a private temporary location.
func (c *Conn) IsTemporary() bool {
	return c.tmpDir != ""
}

// Closed reports whether the connection has been closed.
func (c *Conn) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// do runs fn with the open database handle. It fails if the Conn is closed.
func (c *Conn) do(fn func(sqlDB *sql.DB) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return db.NewError(db.RetCStorageIO, fmt.Sprintf("connection to %s is closed", c.path))
	}
	return fn(c.db)
}

// close closes the connection and removes the backing files if requested.
// Only the Registry calls this, once the last reference is released.
func (c *Conn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if err := c.db.Close(); err != nil {
		errs = append(errs, err)
	}

	if c.deleteOnClose {
		for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
			if err := os.Remove(c.path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
		if c.tmpDir != "" {
			if err := os.RemoveAll(c.tmpDir); err != nil {
				errs = append(errs, err)
			}
		}
		plog.Infof("closed and removed physical store %s", c.path)
	} else {
		plog.Infof("closed physical store %s", c.path)
	}

	if err := errors.Join(errs...); err != nil {
		return db.WrapError(db.RetCStorageIO, err, "close %s", c.path)
	}
	return nil
}

// --------------------------------------------------------------------------
// Tables
// --------------------------------------------------------------------------

// Tables returns the names of all key-value tables in the physical store.
func (c *Conn) Tables() ([]string, error) {
	rows, err := c.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row[0].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// CreateTable creates (or binds to) the table name with the given extra
// columns and returns a handle to it.
//
// Binding is idempotent: a table that already exists with the same columns,
// either created earlier in this process or persisted in a reopened file,
// is reused. A table with different columns fails with db.ErrSchemaConflict
// before anything is written.
func (c *Conn) CreateTable(name string, cols []db.Column) (db.KVTable, error) {
	if err := validateSchema(name, cols); err != nil {
		return nil, err
	}
	cols = append([]db.Column(nil), cols...)

	c.tablesMu.Lock()
	defer c.tablesMu.Unlock()

	key := strings.ToLower(name)
	if known, ok := c.tables[key]; ok {
		if !sameColumns(known, cols) {
			return nil, db.NewError(db.RetCSchemaConflict,
				fmt.Sprintf("table %s already registered with columns %v, requested %v", name, known, cols))
		}
		return newTable(c, name, cols), nil
	}

	existing, found, err := c.tableColumns(name)
	if err != nil {
		return nil, err
	}
	if found {
		if !sameColumns(existing, cols) {
			return nil, db.NewError(db.RetCSchemaConflict,
				fmt.Sprintf("table %s exists in %s with columns %v, requested %v", name, c.path, existing, cols))
		}
		plog.Debugf("bound to existing table %s in %s", name, c.path)
	} else if err := c.createTable(name, cols); err != nil {
		return nil, err
	}

	c.tables[key] = cols
	return newTable(c, name, cols), nil
}

// OpenTable binds to an existing table with whatever extra columns it was
// created with. It fails with db.ErrKeyNotFound if the table does not exist.
func (c *Conn) OpenTable(name string) (db.KVTable, error) {
	if err := validateSchema(name, nil); err != nil {
		return nil, err
	}

	c.tablesMu.Lock()
	defer c.tablesMu.Unlock()

	key := strings.ToLower(name)
	if known, ok := c.tables[key]; ok {
		return newTable(c, name, known), nil
	}
	cols, found, err := c.tableColumns(name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, db.NewError(db.RetCKeyNotFound, fmt.Sprintf("table %s not found in %s", name, c.path))
	}
	if err := validateSchema(name, cols); err != nil {
		// not a table created by this package
		return nil, db.WrapError(db.RetCSchemaConflict, err, "table %s", name)
	}
	c.tables[key] = cols
	return newTable(c, name, cols), nil
}

// HoldTable marks the table name as bound by an open container. A table can
// be held by one container at a time, a second hold fails with
// db.ErrInvalidOperation until the first holder calls UnholdTable.
func (c *Conn) HoldTable(name string) error {
	c.tablesMu.Lock()
	defer c.tablesMu.Unlock()

	key := strings.ToLower(name)
	if c.held[key] {
		return db.NewError(db.RetCInvalidOperation,
			fmt.Sprintf("table %s in %s is already bound by an open container", name, c.path))
	}
	c.held[key] = true
	return nil
}

// UnholdTable releases a hold taken by HoldTable.
func (c *Conn) UnholdTable(name string) {
	c.tablesMu.Lock()
	defer c.tablesMu.Unlock()
	delete(c.held, strings.ToLower(name))
}

// createTable issues the schema definition statements inside one transaction.
func (c *Conn) createTable(name string, cols []db.Column) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CREATE TABLE %s (%s TEXT PRIMARY KEY NOT NULL, %s", quote(name), db.KeyColumn, db.ValueColumn))
	for _, col := range cols {
		sb.WriteString(fmt.Sprintf(", %s %s", quote(col.Name), col.Affinity.SQLType()))
	}
	sb.WriteString(")")

	stmts := []string{sb.String()}
	for _, col := range cols {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
			quote(name+"_"+col.Name), quote(name), quote(col.Name)))
	}

	return c.do(func(sqlDB *sql.DB) error {
		tx, err := sqlDB.Begin()
		if err != nil {
			return db.WrapError(db.RetCStorageIO, err, "create table %s", name)
		}
		defer tx.Rollback()

		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				return db.WrapError(db.RetCStorageIO, err, "create table %s", name)
			}
		}
		if err := tx.Commit(); err != nil {
			return db.WrapError(db.RetCStorageIO, err, "create table %s", name)
		}
		plog.Debugf("created table %s in %s", name, c.path)
		return nil
	})
}

// tableColumns reads the extra columns of an existing table.
// A table whose first two columns are not key and value is reported with a
// nil column slice that never matches a requested schema.
func (c *Conn) tableColumns(name string) (cols []db.Column, found bool, err error) {
	rows, err := c.Query(fmt.Sprintf("PRAGMA table_info(%s)", quote(name)))
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	// rows: cid, name, type, notnull, dflt_value, pk
	if len(rows) < 2 || !strings.EqualFold(asString(rows[0][1]), db.KeyColumn) || !strings.EqualFold(asString(rows[1][1]), db.ValueColumn) {
		return []db.Column{{Name: "<foreign schema>"}}, true, nil
	}
	cols = make([]db.Column, 0, len(rows)-2)
	for _, row := range rows[2:] {
		cols = append(cols, db.Column{Name: asString(row[1]), Affinity: db.ParseAffinity(asString(row[2]))})
	}
	return cols, true, nil
}

// --------------------------------------------------------------------------
// Query Interface
// --------------------------------------------------------------------------

// Query executes a read-only statement and returns all result rows.
// All tables of this physical store can be referenced by name.
//
// The statement runs inside a transaction that is always rolled back, so it
// cannot change the store. Query does not know about container caches:
// callers must flush every container involved first.
func (c *Conn) Query(query string, args ...any) ([][]any, error) {
	var result [][]any
	err := c.QueryFunc(func(row []any) bool {
		result = append(result, row)
		return true
	}, query, args...)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// QueryFunc executes a read-only statement and streams every result row to fn
// until fn returns false.
//
// fn runs while the connection is in use and must not call back into any
// table or container of this physical store.
func (c *Conn) QueryFunc(fn func(row []any) bool, query string, args ...any) error {
	return c.do(func(sqlDB *sql.DB) error {
		tx, err := sqlDB.Begin()
		if err != nil {
			return db.WrapError(db.RetCStorageIO, err, "begin query")
		}
		defer tx.Rollback()

		rows, err := tx.Query(query, args...)
		if err != nil {
			return db.WrapError(db.RetCInvalidOperation, err, "query failed")
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			return db.WrapError(db.RetCStorageIO, err, "read columns")
		}

		for rows.Next() {
			values := make([]any, len(columns))
			ptrs := make([]any, len(columns))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return db.WrapError(db.RetCStorageIO, err, "scan row")
			}
			if !fn(values) {
				break
			}
		}
		if err := rows.Err(); err != nil {
			return db.WrapError(db.RetCInvalidOperation, err, "query failed")
		}
		return nil
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// quote quotes a validated identifier.
func quote(ident string) string {
	return `"` + ident + `"`
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}

// validateSchema checks the table and column names.
func validateSchema(name string, cols []db.Column) error {
	if !identRegex.MatchString(name) || strings.HasPrefix(strings.ToLower(name), "sqlite_") {
		return db.NewError(db.RetCInvalidOperation, fmt.Sprintf("invalid table name %q", name))
	}
	seen := map[string]bool{db.KeyColumn: true, db.ValueColumn: true}
	for _, col := range cols {
		if !identRegex.MatchString(col.Name) {
			return db.NewError(db.RetCInvalidOperation, fmt.Sprintf("invalid column name %q", col.Name))
		}
		lower := strings.ToLower(col.Name)
		if seen[lower] {
			return db.NewError(db.RetCInvalidOperation, fmt.Sprintf("duplicate or reserved column name %q", col.Name))
		}
		seen[lower] = true
	}
	return nil
}

// sameColumns compares two column lists by name (case-insensitive) and affinity.
func sameColumns(a, b []db.Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i].Name, b[i].Name) || a[i].Affinity != b[i].Affinity {
			return false
		}
	}
	return true
}
