package store

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/ValentinKolb/fbkv/lib/codec"
	"github.com/ValentinKolb/fbkv/lib/db"
	"github.com/ValentinKolb/fbkv/lib/db/engines/sqlite"
)

// List is an append-only sequence of values of type V on the same machinery
// as Dict. Elements are stored under their offset ("0", "1", ...), offsets
// always form the range [0, Len()). Elements can be replaced but not removed.
//
// Thread-safety: all methods are safe for concurrent use.
type List[V any] struct {
	*collection[V]
}

// NewList opens (or creates) the table described by opts and returns a List
// on it. A reopened table is expected to hold the offsets [0, rows).
func NewList[V any](c codec.Codec[V], opts *Options[V]) (*List[V], error) {
	col, err := newCollection(c, opts)
	if err != nil {
		return nil, err
	}
	l := &List[V]{col}
	runtime.SetFinalizer(l, (*List[V]).finalize)
	return l, nil
}

func (l *List[V]) finalize() {
	if err := l.Close(); err != nil {
		plog.Errorf("closing unreachable list %s failed, dirty values are lost: %v", l.table.Name(), err)
	}
}

// offset resolves a possibly negative index against the current length.
func (l *List[V]) offset(index int) (string, error) {
	i := index
	if i < 0 {
		i += l.length
	}
	if i < 0 || i >= l.length {
		return "", db.NewError(db.RetCIndexOutOfRange,
			fmt.Sprintf("index %d out of range for list %s of length %d", index, l.table.Name(), l.length))
	}
	return strconv.Itoa(i), nil
}

// --------------------------------------------------------------------------
// Sequence Operations
// --------------------------------------------------------------------------

// Append adds value at offset Len(). Like Dict.Set, a failed eviction is
// reported but the element stays appended.
func (l *List[V]) Append(value V) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkOpen(); err != nil {
		return err
	}
	return l.set(strconv.Itoa(l.length), value, presenceNew)
}

// Get returns the element at index. Negative indices count from the end;
// out of range indices fail with db.ErrIndexOutOfRange.
func (l *List[V]) Get(index int) (V, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero V
	if err := l.checkOpen(); err != nil {
		return zero, err
	}
	key, err := l.offset(index)
	if err != nil {
		return zero, err
	}
	return l.get(key)
}

// Set replaces the element at index. It never extends the list.
func (l *List[V]) Set(index int, value V) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkOpen(); err != nil {
		return err
	}
	key, err := l.offset(index)
	if err != nil {
		return err
	}
	return l.set(key, value, presenceExisting)
}

// Len returns the number of elements.
func (l *List[V]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.length
}

// Range calls fn for every element in offset order until fn returns false.
// Each call starts again at offset 0 and reflects the current state.
func (l *List[V]) Range(fn func(index int, value V) bool) error {
	for i := 0; i < l.Len(); i++ {
		value, err := l.Get(i)
		if err != nil {
			return err
		}
		if !fn(i, value) {
			return nil
		}
	}
	return nil
}

// Values returns all elements in offset order.
func (l *List[V]) Values() ([]V, error) {
	values := make([]V, 0, l.Len())
	err := l.Range(func(_ int, value V) bool {
		values = append(values, value)
		return true
	})
	return values, err
}

// --------------------------------------------------------------------------
// Queries and Lifecycle
// --------------------------------------------------------------------------

// SQLQuery flushes the List and every ref, then runs a read-only query on
// the physical store. Offsets are stored as text in the key column.
func (l *List[V]) SQLQuery(query string, args []any, refs ...Ref) ([][]any, error) {
	return l.sqlQuery(query, args, refs)
}

// Flush writes all dirty elements to the store.
func (l *List[V]) Flush() error {
	return l.lockedFlush()
}

// Close flushes the List and releases the physical store.
func (l *List[V]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.close()
	if err == nil {
		runtime.SetFinalizer(l, nil)
	}
	return err
}

// TableName returns the name of the backing table.
func (l *List[V]) TableName() string {
	return l.table.Name()
}

// Conn returns the physical store of the List.
func (l *List[V]) Conn() *sqlite.Conn {
	return l.conn
}

// GetInfo returns metadata and cache statistics.
func (l *List[V]) GetInfo() Info {
	return l.info()
}
