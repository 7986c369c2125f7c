package message

import "errors"

// ErrKeyNotFound is returned when a key was never defined on the board.
var ErrKeyNotFound = errors.New("message key not found")

// ErrKeyDefined is returned by Define when the key already exists.
var ErrKeyDefined = errors.New("message key already defined")

// ErrTypeMismatch is returned when the requested or supplied type does not
// match the type the key was defined with.
var ErrTypeMismatch = errors.New("message type mismatch")

// ErrConsumed is returned when reading a key whose value was consumed and
// not re-set since.
var ErrConsumed = errors.New("message value consumed")

// ErrNilValue is returned by Define when the initial value is a nil
// interface; a key must be born with a usable value.
var ErrNilValue = errors.New("message value must not be nil")

// ErrNotSerializable is returned on boards with a serialization check when
// a value cannot survive a JSON round trip. It is deliberately distinct
// from ErrTypeMismatch so IPC constraints are diagnosable.
var ErrNotSerializable = errors.New("message value not serializable")

// ErrValue is returned by the string views when a validator rejects the
// value or a conversion fails.
var ErrValue = errors.New("message value invalid")
