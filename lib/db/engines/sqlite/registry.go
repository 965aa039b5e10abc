package sqlite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ValentinKolb/fbkv/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Connection Registry
// --------------------------------------------------------------------------

// Registry hands out one Conn per physical store file and reference counts
// it. A Registry is an explicit object: containers that should share a file
// must be constructed with the same Registry.
//
// Thread-safety: all methods are safe for concurrent use. Concurrent
// Acquire calls for the same path return the same Conn.
type Registry struct {
	conns *xsync.MapOf[string, *Conn]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: xsync.NewMapOf[string, *Conn](),
	}
}

// Acquire returns the Conn for path, opening it on first use, and takes a
// reference on it. An empty path allocates a private temporary store that is
// always removed when its last reference is released. For other paths,
// deleteOnClose requests removal of the file on last release; one request
// is enough.
func (r *Registry) Acquire(path string, deleteOnClose bool) (*Conn, error) {
	if path == "" {
		return r.acquireTemp()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, db.WrapError(db.RetCStorageIO, err, "resolve %s", path)
	}
	return r.acquire(abs, "", deleteOnClose)
}

// acquireTemp creates a private directory holding a fresh store file.
func (r *Registry) acquireTemp() (*Conn, error) {
	dir, err := os.MkdirTemp("", "fbkv-*")
	if err != nil {
		return nil, db.WrapError(db.RetCStorageIO, err, "create temporary directory")
	}
	c, err := r.acquire(filepath.Join(dir, tempFileName), dir, true)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return c, nil
}

func (r *Registry) acquire(path, tmpDir string, deleteOnClose bool) (*Conn, error) {
	var openErr error
	conn, _ := r.conns.Compute(path, func(old *Conn, loaded bool) (*Conn, bool) {
		if loaded {
			old.refs.Add(1)
			old.deleteOnClose = old.deleteOnClose || deleteOnClose
			return old, false
		}

		c, err := openConn(path, tmpDir, deleteOnClose)
		if err != nil {
			openErr = err
			return nil, true
		}
		c.refs.Store(1)
		return c, false
	})
	if openErr != nil {
		return nil, openErr
	}
	return conn, nil
}

// Release drops one reference on c. The last release closes the connection
// and, if requested, removes the backing file.
//
// Callers must flush their caches before releasing, dirty data held in
// memory is not written by the registry.
func (r *Registry) Release(c *Conn) error {
	var (
		owned    bool
		closeErr error
	)
	r.conns.Compute(c.path, func(old *Conn, loaded bool) (*Conn, bool) {
		if !loaded || old != c {
			return old, !loaded
		}
		owned = true
		if old.refs.Add(-1) > 0 {
			return old, false
		}
		closeErr = old.close()
		return nil, true
	})
	if !owned {
		return db.NewError(db.RetCInvalidOperation, fmt.Sprintf("connection %s is not held by this registry", c.path))
	}
	return closeErr
}

// Len returns the number of open physical stores.
func (r *Registry) Len() int {
	return r.conns.Size()
}

// Lookup returns the open Conn for path, if any. It does not take a reference.
func (r *Registry) Lookup(path string) (*Conn, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}
	return r.conns.Load(abs)
}

// CloseAll force-closes every open Conn regardless of its reference count.
// It is meant for process shutdown; containers still holding a Conn fail
// with db.ErrStorageIO afterwards.
func (r *Registry) CloseAll() error {
	var errs []error
	r.conns.Range(func(path string, _ *Conn) bool {
		r.conns.Compute(path, func(old *Conn, loaded bool) (*Conn, bool) {
			if loaded {
				if err := old.close(); err != nil {
					errs = append(errs, err)
				}
			}
			return nil, true
		})
		return true
	})
	return errors.Join(errs...)
}
