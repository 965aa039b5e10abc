package codec

import "fmt"

// Codec converts values of type V to the scalar persisted in the value
// column of a table and back.
//
// Encode must return one of nil, int64, float64, string or []byte (other
// integer and float kinds are widened by the table). Decode receives exactly
// what the store returns for that scalar: int64 for integers, float64 for
// reals, string for text, []byte for blobs and nil for NULL.
type Codec[V any] interface {
	// Encode serializes v into a persisted scalar.
	Encode(v V) (stored any, err error)
	// Decode deserializes a persisted scalar into a value.
	Decode(stored any) (v V, err error)
}

// --------------------------------------------------------------------------
// Function pair codec
// --------------------------------------------------------------------------

// Funcs builds a codec from a serializer/deserializer function pair.
func Funcs[V any](encode func(V) (any, error), decode func(any) (V, error)) Codec[V] {
	return &funcCodec[V]{encode: encode, decode: decode}
}

type funcCodec[V any] struct {
	encode func(V) (any, error)
	decode func(any) (V, error)
}

func (f *funcCodec[V]) Encode(v V) (any, error) {
	return f.encode(v)
}

func (f *funcCodec[V]) Decode(stored any) (V, error) {
	return f.decode(stored)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// asBytes returns text and blob scalars as a byte slice.
func asBytes(stored any) ([]byte, error) {
	switch s := stored.(type) {
	case []byte:
		return s, nil
	case string:
		return []byte(s), nil
	default:
		return nil, fmt.Errorf("expected text or blob, got %T", stored)
	}
}
