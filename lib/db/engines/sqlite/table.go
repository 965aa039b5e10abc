package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ValentinKolb/fbkv/lib/db"
	"github.com/ValentinKolb/fbkv/lib/db/util"
)

// keyPageSize is the number of keys fetched per statement by RangeKeys.
const keyPageSize = 512

// tableImpl implements db.KVTable on a table of a physical store
type tableImpl struct {
	conn  *Conn
	name  string
	cols  []db.Column
	sizes *util.SizeHistogram

	// prepared statement texts
	upsertSQL string
	getSQL    string
	hasSQL    string
	deleteSQL string
	countSQL  string
	pageSQL   string
}

func newTable(c *Conn, name string, cols []db.Column) *tableImpl {
	t := quote(name)

	names := []string{db.KeyColumn, db.ValueColumn}
	updates := []string{fmt.Sprintf("%s = excluded.%s", db.ValueColumn, db.ValueColumn)}
	for _, col := range cols {
		names = append(names, quote(col.Name))
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", quote(col.Name), quote(col.Name)))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")

	return &tableImpl{
		conn:  c,
		name:  name,
		cols:  cols,
		sizes: util.NewSizeHistogram(),
		upsertSQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
			t, strings.Join(names, ", "), placeholders, db.KeyColumn, strings.Join(updates, ", ")),
		getSQL:    fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", db.ValueColumn, t, db.KeyColumn),
		hasSQL:    fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", t, db.KeyColumn),
		deleteSQL: fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t, db.KeyColumn),
		countSQL:  fmt.Sprintf("SELECT COUNT(*) FROM %s", t),
		pageSQL:   fmt.Sprintf("SELECT rowid, %s FROM %s WHERE rowid > ? ORDER BY rowid LIMIT ?", db.KeyColumn, t),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.KVTable)
// --------------------------------------------------------------------------

func (t *tableImpl) Name() string {
	return t.name
}

func (t *tableImpl) Columns() []db.Column {
	return append([]db.Column(nil), t.cols...)
}

func (t *tableImpl) Put(row db.Row) error {
	args, err := t.args(row)
	if err != nil {
		return err
	}
	return t.conn.do(func(sqlDB *sql.DB) error {
		if _, err := sqlDB.Exec(t.upsertSQL, args...); err != nil {
			return db.WrapError(db.RetCStorageIO, err, "put %s/%s", t.name, row.Key)
		}
		return nil
	})
}

func (t *tableImpl) PutBatch(rows []db.Row) error {
	if len(rows) == 0 {
		return nil
	}

	// convert everything before touching the store, a bad row aborts the batch
	batch := make([][]any, len(rows))
	for i, row := range rows {
		args, err := t.args(row)
		if err != nil {
			return err
		}
		batch[i] = args
	}

	return t.conn.do(func(sqlDB *sql.DB) error {
		tx, err := sqlDB.Begin()
		if err != nil {
			return db.WrapError(db.RetCStorageIO, err, "begin batch on %s", t.name)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(t.upsertSQL)
		if err != nil {
			return db.WrapError(db.RetCStorageIO, err, "prepare batch on %s", t.name)
		}
		defer stmt.Close()

		for i, args := range batch {
			if _, err := stmt.Exec(args...); err != nil {
				return db.WrapError(db.RetCStorageIO, err, "put %s/%s", t.name, rows[i].Key)
			}
		}
		if err := tx.Commit(); err != nil {
			return db.WrapError(db.RetCStorageIO, err, "commit batch on %s", t.name)
		}
		return nil
	})
}

func (t *tableImpl) Delete(key string) (bool, error) {
	var deleted bool
	err := t.conn.do(func(sqlDB *sql.DB) error {
		res, err := sqlDB.Exec(t.deleteSQL, key)
		if err != nil {
			return db.WrapError(db.RetCStorageIO, err, "delete %s/%s", t.name, key)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return db.WrapError(db.RetCStorageIO, err, "delete %s/%s", t.name, key)
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

func (t *tableImpl) Get(key string) (any, bool, error) {
	var (
		value any
		found bool
	)
	err := t.conn.do(func(sqlDB *sql.DB) error {
		err := sqlDB.QueryRow(t.getSQL, key).Scan(&value)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil
		case err != nil:
			return db.WrapError(db.RetCStorageIO, err, "get %s/%s", t.name, key)
		}
		found = true
		return nil
	})
	return value, found, err
}

func (t *tableImpl) Has(key string) (bool, error) {
	var found bool
	err := t.conn.do(func(sqlDB *sql.DB) error {
		var one int
		err := sqlDB.QueryRow(t.hasSQL, key).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil
		case err != nil:
			return db.WrapError(db.RetCStorageIO, err, "has %s/%s", t.name, key)
		}
		found = true
		return nil
	})
	return found, err
}

func (t *tableImpl) RangeKeys(fn func(key string) bool) error {
	var lastRowID int64
	for {
		page := make([]string, 0, keyPageSize)
		err := t.conn.do(func(sqlDB *sql.DB) error {
			rows, err := sqlDB.Query(t.pageSQL, lastRowID, keyPageSize)
			if err != nil {
				return db.WrapError(db.RetCStorageIO, err, "list keys of %s", t.name)
			}
			defer rows.Close()
			for rows.Next() {
				var key string
				if err := rows.Scan(&lastRowID, &key); err != nil {
					return db.WrapError(db.RetCStorageIO, err, "list keys of %s", t.name)
				}
				page = append(page, key)
			}
			if err := rows.Err(); err != nil {
				return db.WrapError(db.RetCStorageIO, err, "list keys of %s", t.name)
			}
			return nil
		})
		if err != nil {
			return err
		}

		// the connection is free again, fn may use the table
		for _, key := range page {
			if !fn(key) {
				return nil
			}
		}
		if len(page) < keyPageSize {
			return nil
		}
	}
}

func (t *tableImpl) Count() (int, error) {
	var n int
	err := t.conn.do(func(sqlDB *sql.DB) error {
		if err := sqlDB.QueryRow(t.countSQL).Scan(&n); err != nil {
			return db.WrapError(db.RetCStorageIO, err, "count %s", t.name)
		}
		return nil
	})
	return n, err
}

func (t *tableImpl) Query(query string, args ...any) ([][]any, error) {
	return t.conn.Query(query, args...)
}

func (t *tableImpl) GetInfo() db.TableInfo {
	// a failing count is reported as zero rows, info is best effort
	rows, _ := t.Count()
	return db.TableInfo{
		Name:           t.name,
		Path:           t.conn.Path(),
		DbType:         db.ImplSQLite,
		Rows:           rows,
		Columns:        t.Columns(),
		SizeBytes:      t.sizes.AverageSize() * rows,
		MedianRowBytes: t.sizes.MedianEstimate(),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// args converts a row to statement arguments (key, value, extra...) and
// records its size.
func (t *tableImpl) args(row db.Row) ([]any, error) {
	if len(row.Extra) != len(t.cols) {
		return nil, db.NewError(db.RetCInvalidOperation,
			fmt.Sprintf("table %s expects %d extra values, got %d", t.name, len(t.cols), len(row.Extra)))
	}

	value, err := db.Normalize(row.Value)
	if err != nil {
		return nil, db.WrapError(db.RetCInvalidOperation, err, "value of %s/%s", t.name, row.Key)
	}

	args := make([]any, 0, 2+len(t.cols))
	args = append(args, row.Key, value)
	size := len(row.Key) + scalarSize(value)

	for i, col := range t.cols {
		v, err := db.Normalize(row.Extra[i])
		if err != nil {
			return nil, db.WrapError(db.RetCInvalidOperation, err, "column %s of %s/%s", col.Name, t.name, row.Key)
		}
		v = db.CoerceValue(v, col.Affinity)
		args = append(args, v)
		size += scalarSize(v)
	}

	t.sizes.AddSample(size)
	return args, nil
}

// scalarSize estimates the stored size of a scalar.
func scalarSize(v any) int {
	switch s := v.(type) {
	case string:
		return len(s)
	case []byte:
		return len(s)
	case nil:
		return 0
	default:
		return 8
	}
}
