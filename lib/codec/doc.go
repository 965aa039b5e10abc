// Package codec provides the serializer/deserializer pairs used by the
// file-backed collections to persist values.
//
// Every container is bound to one Codec[V] at construction; the codec's
// concrete types are fixed per container instance, no run-time type
// inspection is involved. Available implementations:
//   - NewJSONCodec: JSON text, readable with SQLite's json functions
//   - NewGOBCodec: gob encoded blobs, for Go-only data
//   - NewIntCodec, NewInt64Codec, NewFloat64Codec, NewStringCodec,
//     NewBytesCodec: the value itself, queryable and aggregatable in SQL
//   - NewRawCodec: persisted scalars as-is (used by inspection tools)
//   - Funcs: any function pair
package codec
