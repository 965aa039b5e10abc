package codec

import (
	"encoding/json"
)

// NewJSONCodec creates a codec storing values as JSON text
func NewJSONCodec[V any]() Codec[V] {
	return &jsonCodecImpl[V]{}
}

// jsonCodecImpl implements the Codec interface using json encoding
type jsonCodecImpl[V any] struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.Codec)
// --------------------------------------------------------------------------

func (j jsonCodecImpl[V]) Encode(v V) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j jsonCodecImpl[V]) Decode(stored any) (V, error) {
	var v V
	b, err := asBytes(stored)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(b, &v)
	return v, err
}
