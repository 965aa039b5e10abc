package db

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code (of type RetCode), a message and an optional cause.
//
// Errors compare by code with errors.Is, so callers can test against the
// sentinels below:
//
//	if errors.Is(err, db.ErrKeyNotFound) { ... }
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The underlying cause (may be nil)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("fbkv error (code %s)", e.Code)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code, message and cause.
func WrapError(code RetCode, err error, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
		Err:  err,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                   // 1: Operation failed due to an internal error.
	RetCKeyNotFound                     // 2: Key is absent from cache and storage.
	RetCIndexOutOfRange                 // 3: List index outside [-len, len).
	RetCSchemaConflict                  // 4: Table exists with an incompatible schema.
	RetCSerialization                   // 5: The codec failed to encode or decode a value.
	RetCStorageIO                       // 6: The physical store failed (or is closed).
	RetCInvalidOperation                // 7: Invalid argument or operation.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCKeyNotFound:
		return "KeyNotFound"
	case RetCIndexOutOfRange:
		return "IndexOutOfRange"
	case RetCSchemaConflict:
		return "SchemaConflict"
	case RetCSerialization:
		return "Serialization"
	case RetCStorageIO:
		return "StorageIO"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrKeyNotFound      = NewError(RetCKeyNotFound, "")
	ErrIndexOutOfRange  = NewError(RetCIndexOutOfRange, "")
	ErrSchemaConflict   = NewError(RetCSchemaConflict, "")
	ErrSerialization    = NewError(RetCSerialization, "")
	ErrStorageIO        = NewError(RetCStorageIO, "")
	ErrInvalidOperation = NewError(RetCInvalidOperation, "")
)
