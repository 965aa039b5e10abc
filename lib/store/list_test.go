package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ValentinKolb/fbkv/lib/codec"
	"github.com/ValentinKolb/fbkv/lib/db"
)

func newTestList[V any](t *testing.T, c codec.Codec[V], configure func(opts *Options[V])) *List[V] {
	t.Helper()
	opts := DefaultOptions[V]()
	opts.Path = filepath.Join(t.TempDir(), "test.db")
	if configure != nil {
		configure(opts)
	}
	l, err := NewList(c, opts)
	if err != nil {
		t.Fatalf("NewList failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestList(t *testing.T) {
	l := newTestList(t, codec.NewIntCodec(), func(opts *Options[int]) {
		opts.CacheMaxSize = 5
		opts.EvictionBatchSize = 5
	})

	for i := 0; i < 10; i++ {
		if err := l.Append(i); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if l.Len() != 10 {
		t.Fatalf("Expected length 10, got %d", l.Len())
	}
	for _, tc := range []struct{ index, want int }{{0, 0}, {9, 9}, {-1, 9}, {-10, 0}} {
		if v, err := l.Get(tc.index); err != nil || v != tc.want {
			t.Errorf("Get(%d): expected %d, got %d (%v)", tc.index, tc.want, v, err)
		}
	}

	if err := l.Set(0, 100); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	want := []int{100, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	values, err := l.Values()
	if err != nil || !reflect.DeepEqual(values, want) {
		t.Fatalf("Expected %v, got %v (%v)", want, values, err)
	}

	if err := l.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if l.Len() != 10 {
		t.Errorf("Expected length 10 after flush, got %d", l.Len())
	}
	// iteration is restartable and reflects the current state
	values, _ = l.Values()
	if !reflect.DeepEqual(values, want) {
		t.Errorf("Expected %v after flush, got %v", want, values)
	}

	rows, err := l.SQLQuery(fmt.Sprintf("SELECT sum(value) FROM %s", l.TableName()), nil)
	if err != nil {
		t.Fatalf("SQLQuery failed: %v", err)
	}
	if rows[0][0] != int64(145) {
		t.Errorf("Expected sum 145, got %v", rows[0][0])
	}

	t.Run("OutOfRange", func(t *testing.T) {
		for _, index := range []int{10, 100, -11, -100} {
			if _, err := l.Get(index); !errors.Is(err, db.ErrIndexOutOfRange) {
				t.Errorf("Get(%d): expected ErrIndexOutOfRange, got %v", index, err)
			}
		}
		if err := l.Set(100, 100); !errors.Is(err, db.ErrIndexOutOfRange) {
			t.Errorf("Set(100): expected ErrIndexOutOfRange, got %v", err)
		}
		if l.Len() != 10 {
			t.Errorf("Expected Set not to extend the list, got length %d", l.Len())
		}
	})

	t.Run("RangeStops", func(t *testing.T) {
		var seen []int
		err := l.Range(func(i int, _ int) bool {
			seen = append(seen, i)
			return i < 2
		})
		if err != nil || !reflect.DeepEqual(seen, []int{0, 1, 2}) {
			t.Errorf("Expected offsets [0 1 2], got %v (%v)", seen, err)
		}
	})
}

func TestListNegativeSet(t *testing.T) {
	l := newTestList(t, codec.NewStringCodec(), func(opts *Options[string]) {
		opts.CacheMaxSize = 0
	})
	for _, s := range []string{"a", "b", "c"} {
		_ = l.Append(s)
	}
	if err := l.Set(-1, "z"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	values, _ := l.Values()
	if !reflect.DeepEqual(values, []string{"a", "b", "z"}) {
		t.Errorf("Unexpected values %v", values)
	}
	if l.Len() != 3 {
		t.Errorf("Expected length 3, got %d", l.Len())
	}
}

func TestListReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.db")
	open := func() *List[int] {
		opts := DefaultOptions[int]()
		opts.Path, opts.TableName = path, "numbers"
		l, err := NewList(codec.NewIntCodec(), opts)
		if err != nil {
			t.Fatalf("NewList failed: %v", err)
		}
		return l
	}

	l := open()
	for i := 0; i < 4; i++ {
		_ = l.Append(i * 10)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	l = open()
	defer l.Close()
	if l.Len() != 4 {
		t.Fatalf("Expected length 4 after reopening, got %d", l.Len())
	}
	_ = l.Append(40)
	if v, _ := l.Get(-1); v != 40 {
		t.Errorf("Expected appended value at the end, got %d", v)
	}
	if v, _ := l.Get(2); v != 20 {
		t.Errorf("Expected persisted value 20, got %d", v)
	}
}
