package codec

import (
	"bytes"
	"encoding/gob"
)

// NewGOBCodec creates a codec storing values as blobs in Go's binary gob format
func NewGOBCodec[V any]() Codec[V] {
	return &gobCodecImpl[V]{}
}

// gobCodecImpl implements the Codec interface using gob encoding
type gobCodecImpl[V any] struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.Codec)
// --------------------------------------------------------------------------

func (g gobCodecImpl[V]) Encode(v V) (any, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobCodecImpl[V]) Decode(stored any) (V, error) {
	var v V
	b, err := asBytes(stored)
	if err != nil {
		return v, err
	}
	dec := gob.NewDecoder(bytes.NewReader(b))
	err = dec.Decode(&v)
	return v, err
}
