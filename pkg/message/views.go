package message

import (
	"fmt"
	"reflect"
)

// Reader is the read-only capability over a channel.
type Reader interface {
	// Exists reports whether the key was ever defined.
	Exists(key string) bool
	// Consumed reports whether the key exists with its value consumed.
	Consumed(key string) bool
	// Keys returns all defined key names in stable order.
	Keys() []string

	board() *Board
}

// Updater can read and mutate existing keys but not define new ones.
type Updater interface {
	Reader

	// Offer sets value only when the slot is currently consumed.
	// Returns true when the value was installed.
	Offer(key string, value any) (bool, error)
	// Ensure sets value only when a value is currently present.
	// Returns true when the value was installed.
	Ensure(key string, value any) (bool, error)
	// Batch runs fn while holding the channel lock so the operations
	// inside observe one consistent snapshot. Calling any other method of
	// this channel from inside fn deadlocks by design.
	Batch(fn func(*BatchOp) error) error

	canUpdate()
}

// Definer can read and define new keys but not mutate existing values.
type Definer interface {
	Reader

	canDefine()
}

// Manager is the full-control union of Updater and Definer.
type Manager interface {
	Updater
	Definer
}

type readerView struct{ b *Board }

func (v readerView) board() *Board { return v.b }

func (v readerView) Exists(key string) bool {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	_, ok := v.b.entries[key]
	return ok
}

func (v readerView) Consumed(key string) bool {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	e, ok := v.b.entries[key]
	return ok && e.consumed
}

func (v readerView) Keys() []string {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	return v.b.keys()
}

type updaterView struct{ readerView }

func (updaterView) canUpdate() {}

func (v updaterView) Offer(key string, value any) (bool, error) {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	e, err := v.b.load(key)
	if err != nil {
		return false, err
	}
	if !e.consumed {
		return false, nil
	}
	if err := v.b.store(key, e, value); err != nil {
		return false, err
	}
	return true, nil
}

func (v updaterView) Ensure(key string, value any) (bool, error) {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	e, err := v.b.load(key)
	if err != nil {
		return false, err
	}
	if e.consumed {
		return false, nil
	}
	if err := v.b.store(key, e, value); err != nil {
		return false, err
	}
	return true, nil
}

func (v updaterView) Batch(fn func(*BatchOp) error) error {
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	return fn(&BatchOp{b: v.b})
}

type definerView struct{ readerView }

func (definerView) canDefine() {}

type managerView struct{ updaterView }

func (managerView) canDefine() {}

// Define creates key with declared type T and an initial value. A second
// Define on the same key fails with ErrKeyDefined.
func Define[T any](d Definer, key string, value T) error {
	b := d.board()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.define(key, reflect.TypeOf((*T)(nil)).Elem(), value)
}

// DefineValue creates key with the dynamic type of value. It is the
// untyped companion of Define, used when keys come from maps or decoded
// configuration.
func DefineValue(d Definer, key string, value any) error {
	if value == nil {
		return fmt.Errorf("key %q: %w", key, ErrNilValue)
	}
	b := d.board()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.define(key, reflect.TypeOf(value), value)
}

// Get returns the value of key. The requested type must be the key's
// declared type.
func Get[T any](r Reader, key string) (T, error) {
	var zero T
	b := r.board()
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.load(key)
	if err != nil {
		return zero, err
	}
	if err := matchType[T](key, e); err != nil {
		return zero, err
	}
	if e.consumed {
		return zero, fmt.Errorf("key %q: %w", key, ErrConsumed)
	}
	return e.value.(T), nil
}

// GetOr returns the value of key, or def when the key is missing or its
// value is consumed. A present value of the wrong type is still an error.
func GetOr[T any](r Reader, key string, def T) (T, error) {
	b := r.board()
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok || e.consumed {
		return def, nil
	}
	if err := matchType[T](key, e); err != nil {
		return def, err
	}
	return e.value.(T), nil
}

// Set installs value unconditionally, clearing a consumed state.
func Set[T any](u Updater, key string, value T) error {
	b := u.board()
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.load(key)
	if err != nil {
		return err
	}
	if err := matchType[T](key, e); err != nil {
		return err
	}
	return b.store(key, e, value)
}

// Swap installs value and returns the previous one. Fails on a consumed
// slot.
func Swap[T any](u Updater, key string, value T) (T, error) {
	var zero T
	b := u.board()
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.load(key)
	if err != nil {
		return zero, err
	}
	if err := matchType[T](key, e); err != nil {
		return zero, err
	}
	if e.consumed {
		return zero, fmt.Errorf("key %q: %w", key, ErrConsumed)
	}
	prev := e.value.(T)
	if err := b.store(key, e, value); err != nil {
		return zero, err
	}
	return prev, nil
}

// Apply feeds the current value through fn and installs the result,
// returning it. Read and write happen under one lock acquisition.
func Apply[T any](u Updater, key string, fn func(T) T) (T, error) {
	var zero T
	b := u.board()
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.load(key)
	if err != nil {
		return zero, err
	}
	if err := matchType[T](key, e); err != nil {
		return zero, err
	}
	if e.consumed {
		return zero, fmt.Errorf("key %q: %w", key, ErrConsumed)
	}
	next := fn(e.value.(T))
	if err := b.store(key, e, next); err != nil {
		return zero, err
	}
	return next, nil
}

// Consume removes the value, retaining the key and its type binding, and
// returns the removed value.
func Consume[T any](u Updater, key string) (T, error) {
	var zero T
	b := u.board()
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.load(key)
	if err != nil {
		return zero, err
	}
	if err := matchType[T](key, e); err != nil {
		return zero, err
	}
	if e.consumed {
		return zero, fmt.Errorf("key %q: %w", key, ErrConsumed)
	}
	prev := e.value.(T)
	e.value = nil
	e.consumed = true
	return prev, nil
}

// ConsumeAnd removes the current value and installs next in one step,
// returning the removed value.
func ConsumeAnd[T any](u Updater, key string, next T) (T, error) {
	var zero T
	b := u.board()
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.load(key)
	if err != nil {
		return zero, err
	}
	if err := matchType[T](key, e); err != nil {
		return zero, err
	}
	if e.consumed {
		return zero, fmt.Errorf("key %q: %w", key, ErrConsumed)
	}
	prev := e.value.(T)
	if err := b.store(key, e, next); err != nil {
		return zero, err
	}
	return prev, nil
}

// matchType validates the call-site type against the declared key type.
func matchType[T any](key string, e *entry) error {
	if want := reflect.TypeOf((*T)(nil)).Elem(); want != e.typ {
		return fmt.Errorf("key %q: declared %v, requested %v: %w", key, e.typ, want, ErrTypeMismatch)
	}
	return nil
}
