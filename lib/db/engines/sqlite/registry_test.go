package sqlite

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/ValentinKolb/fbkv/lib/db"
)

func TestAcquireSamePathSharesConn(t *testing.T) {
	reg := NewRegistry()
	path := filepath.Join(t.TempDir(), "shared.db")

	const workers = 8
	conns := make([]*Conn, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := reg.Acquire(path, false)
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			conns[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if conns[i] != conns[0] {
			t.Fatalf("Expected all acquires to return the same Conn")
		}
	}
	if got := conns[0].RefCount(); got != workers {
		t.Errorf("Expected ref count %d, got %d", workers, got)
	}
	if reg.Len() != 1 {
		t.Errorf("Expected one open store, got %d", reg.Len())
	}

	// Lookup resolves the path without taking a reference
	if lookup, ok := reg.Lookup(path); !ok || lookup != conns[0] {
		t.Errorf("Expected Lookup to find the shared Conn")
	}

	for i := 0; i < workers; i++ {
		if err := reg.Release(conns[i]); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
	}
	if !conns[0].Closed() {
		t.Errorf("Expected Conn to be closed after the last release")
	}
	if reg.Len() != 0 {
		t.Errorf("Expected registry to be empty, got %d", reg.Len())
	}

	// the file was not requested to be deleted
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected store file to survive, got %v", err)
	}
}

func TestTemporaryStoreIsRemoved(t *testing.T) {
	reg := NewRegistry()
	conn, err := reg.Acquire("", false)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !conn.IsTemporary() {
		t.Errorf("Expected a temporary store")
	}

	table, err := conn.CreateTable("data", nil)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := table.Put(db.Row{Key: "a", Value: int64(1)}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	path := conn.Path()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected temporary file to exist, got %v", err)
	}

	if err := reg.Release(conn); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected temporary directory to be removed, got %v", err)
	}
}

func TestDeleteOnClose(t *testing.T) {
	reg := NewRegistry()
	path := filepath.Join(t.TempDir(), "gone.db")

	first, err := reg.Acquire(path, false)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	second, err := reg.Acquire(path, true)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := reg.Release(second); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected file to exist while still referenced, got %v", err)
	}

	if err := reg.Release(first); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected file to be removed, got %v", err)
	}
}

func TestReleaseForeignConn(t *testing.T) {
	reg := NewRegistry()
	other := NewRegistry()
	conn, err := other.Acquire("", false)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer other.Release(conn)

	if err := reg.Release(conn); !errors.Is(err, db.ErrInvalidOperation) {
		t.Errorf("Expected ErrInvalidOperation, got %v", err)
	}
}

func TestUnwritablePath(t *testing.T) {
	reg := NewRegistry()
	path := filepath.Join(t.TempDir(), "missing", "dir", "store.db")

	_, err := reg.Acquire(path, false)
	if !errors.Is(err, db.ErrStorageIO) {
		t.Fatalf("Expected ErrStorageIO, got %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("Expected failed open to leave no entry, got %d", reg.Len())
	}
}

func TestClosedConn(t *testing.T) {
	reg := NewRegistry()
	conn, err := reg.Acquire("", false)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	table, err := conn.CreateTable("data", nil)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := reg.CloseAll(); err != nil {
		t.Fatalf("CloseAll failed: %v", err)
	}

	if _, err := conn.Query("SELECT 1"); !errors.Is(err, db.ErrStorageIO) {
		t.Errorf("Expected ErrStorageIO from closed Conn, got %v", err)
	}
	if err := table.Put(db.Row{Key: "a"}); !errors.Is(err, db.ErrStorageIO) {
		t.Errorf("Expected ErrStorageIO from table on closed Conn, got %v", err)
	}
}

func TestCreateTableSchema(t *testing.T) {
	reg := NewRegistry()
	path := filepath.Join(t.TempDir(), "schema.db")
	conn, err := reg.Acquire(path, false)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	cols := []db.Column{{Name: "x", Affinity: db.AffinityINTEGER}}
	if _, err := conn.CreateTable("items", cols); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}

	t.Run("Idempotent", func(t *testing.T) {
		if _, err := conn.CreateTable("items", cols); err != nil {
			t.Errorf("Expected identical schema to be accepted, got %v", err)
		}
	})

	t.Run("Conflict", func(t *testing.T) {
		_, err := conn.CreateTable("items", []db.Column{{Name: "y", Affinity: db.AffinityTEXT}})
		if !errors.Is(err, db.ErrSchemaConflict) {
			t.Errorf("Expected ErrSchemaConflict, got %v", err)
		}
	})

	t.Run("InvalidNames", func(t *testing.T) {
		for _, tc := range []struct {
			table string
			cols  []db.Column
		}{
			{"bad name", nil},
			{"drop;table", nil},
			{"sqlite_master", nil},
			{"ok", []db.Column{{Name: "key"}}},
			{"ok", []db.Column{{Name: "a"}, {Name: "A"}}},
			{"ok", []db.Column{{Name: "x y"}}},
		} {
			if _, err := conn.CreateTable(tc.table, tc.cols); !errors.Is(err, db.ErrInvalidOperation) {
				t.Errorf("Expected ErrInvalidOperation for %q %v, got %v", tc.table, tc.cols, err)
			}
		}
	})

	if err := reg.Release(conn); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// reopen: the persisted schema is recognized
	reg = NewRegistry()
	conn, err = reg.Acquire(path, false)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer reg.Release(conn)

	if _, err := conn.CreateTable("items", cols); err != nil {
		t.Errorf("Expected persisted table to be reused, got %v", err)
	}
	if _, err := conn.CreateTable("items", nil); !errors.Is(err, db.ErrSchemaConflict) {
		t.Errorf("Expected ErrSchemaConflict against persisted schema, got %v", err)
	}

	tables, err := conn.Tables()
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}
	if !reflect.DeepEqual(tables, []string{"items"}) {
		t.Errorf("Expected [items], got %v", tables)
	}
}

func TestQueryIsReadOnly(t *testing.T) {
	reg := NewRegistry()
	conn, err := reg.Acquire("", false)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer reg.Release(conn)

	table, err := conn.CreateTable("data", nil)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := table.Put(db.Row{Key: "a", Value: int64(1)}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	_, _ = conn.Query("DELETE FROM data RETURNING key")
	if n, _ := table.Count(); n != 1 {
		t.Errorf("Expected a query to leave the table untouched, got %d rows", n)
	}

	if _, err := conn.Query("SELECT * FROM does_not_exist"); !errors.Is(err, db.ErrInvalidOperation) {
		t.Errorf("Expected ErrInvalidOperation for a bad query, got %v", err)
	}

	var streamed int
	err = conn.QueryFunc(func(row []any) bool {
		streamed++
		return false
	}, "SELECT value FROM data UNION ALL SELECT 2")
	if err != nil {
		t.Fatalf("QueryFunc failed: %v", err)
	}
	if streamed != 1 {
		t.Errorf("Expected QueryFunc to stop after the first row, got %d", streamed)
	}
}

func TestOpenTable(t *testing.T) {
	reg := NewRegistry()
	conn, err := reg.Acquire("", false)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer reg.Release(conn)

	cols := []db.Column{{Name: "x", Affinity: db.AffinityINTEGER}}
	created, err := conn.CreateTable("pairs", cols)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	_ = created.Put(db.Row{Key: "a", Value: "v", Extra: []any{"7"}})

	opened, err := conn.OpenTable("pairs")
	if err != nil {
		t.Fatalf("OpenTable failed: %v", err)
	}
	if !reflect.DeepEqual(opened.Columns(), cols) {
		t.Errorf("Expected columns %v, got %v", cols, opened.Columns())
	}
	if v, found, _ := opened.Get("a"); !found || v != "v" {
		t.Errorf("Expected value v, got %v (found=%v)", v, found)
	}

	if _, err := conn.OpenTable("missing"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	// tables not created by this package are rejected
	if err := conn.do(func(sqlDB *sql.DB) error {
		_, err := sqlDB.Exec("CREATE TABLE other (id INTEGER, name TEXT)")
		return err
	}); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if _, err := conn.OpenTable("other"); !errors.Is(err, db.ErrSchemaConflict) {
		t.Errorf("Expected ErrSchemaConflict for a foreign table, got %v", err)
	}
}

func TestHoldTable(t *testing.T) {
	reg := NewRegistry()
	conn, err := reg.Acquire("", false)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer reg.Release(conn)

	if err := conn.HoldTable("items"); err != nil {
		t.Fatalf("HoldTable failed: %v", err)
	}
	// names are case insensitive in SQLite
	if err := conn.HoldTable("ITEMS"); !errors.Is(err, db.ErrInvalidOperation) {
		t.Errorf("Expected ErrInvalidOperation for a held table, got %v", err)
	}
	if err := conn.HoldTable("other"); err != nil {
		t.Errorf("Expected an unrelated table to be free, got %v", err)
	}

	conn.UnholdTable("items")
	if err := conn.HoldTable("items"); err != nil {
		t.Errorf("Expected the table to be free after UnholdTable, got %v", err)
	}
}
