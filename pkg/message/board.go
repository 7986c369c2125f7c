package message

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// entry is one key slot. The type binding outlives the value: consuming a
// key clears value and sets consumed, but typ never changes.
type entry struct {
	typ      reflect.Type
	value    any
	consumed bool
}

// Board is the shared key/value store behind one channel. All public
// access goes through capability views; the Board itself only exposes
// construction, role flags and IPC snapshots.
type Board struct {
	mu        sync.Mutex
	entries   map[string]*entry
	serialize bool
}

// BoardOption configures a new Board.
type BoardOption func(*Board)

// WithSerializationCheck makes every write verify the value survives a
// JSON round trip. Used for channels that may cross a process boundary.
func WithSerializationCheck() BoardOption {
	return func(b *Board) {
		b.serialize = true
	}
}

// NewBoard creates an empty Board.
func NewBoard(opts ...BoardOption) *Board {
	b := &Board{entries: make(map[string]*entry)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RequireSerializable retroactively enables the serialization check and
// validates values already present. It is used when a subprocess-bound
// frame joins a tree whose shared boards were created without the check.
func (b *Board) RequireSerializable() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.serialize = true
	for key, e := range b.entries {
		if e.consumed {
			continue
		}
		if err := checkSerializable(e.value); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
	}
	return nil
}

// checkSerializable verifies a single value survives json.Marshal.
func checkSerializable(value any) error {
	if _, err := json.Marshal(value); err != nil {
		return fmt.Errorf("%w: %v", ErrNotSerializable, err)
	}
	return nil
}

// define creates the key slot. Caller must hold b.mu.
func (b *Board) define(key string, typ reflect.Type, value any) error {
	if _, exists := b.entries[key]; exists {
		return fmt.Errorf("key %q: %w", key, ErrKeyDefined)
	}
	if value == nil {
		return fmt.Errorf("key %q: %w", key, ErrNilValue)
	}
	if b.serialize {
		if err := checkSerializable(value); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
	}
	b.entries[key] = &entry{typ: typ, value: value}
	return nil
}

// load fetches the slot for key. Caller must hold b.mu.
func (b *Board) load(key string) (*entry, error) {
	e, ok := b.entries[key]
	if !ok {
		return nil, fmt.Errorf("key %q: %w", key, ErrKeyNotFound)
	}
	return e, nil
}

// store writes a value into an existing slot after the type and
// serialization checks. Caller must hold b.mu. A store always clears the
// consumed flag.
func (b *Board) store(key string, e *entry, value any) error {
	if err := checkAssignable(key, e.typ, value); err != nil {
		return err
	}
	if b.serialize {
		if err := checkSerializable(value); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
	}
	e.value = value
	e.consumed = false
	return nil
}

// checkAssignable verifies a value is an instance of the declared type.
// Interface-typed keys accept any implementation; concrete keys demand the
// exact type.
func checkAssignable(key string, typ reflect.Type, value any) error {
	vt := reflect.TypeOf(value)
	if typ.Kind() == reflect.Interface {
		if vt == nil || !vt.Implements(typ) {
			return fmt.Errorf("key %q: declared %v, got %v: %w", key, typ, vt, ErrTypeMismatch)
		}
		return nil
	}
	if vt != typ {
		return fmt.Errorf("key %q: declared %v, got %v: %w", key, typ, vt, ErrTypeMismatch)
	}
	return nil
}

// keys returns the defined key names in stable order. Caller must hold b.mu.
func (b *Board) keys() []string {
	out := make([]string, 0, len(b.entries))
	for k := range b.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Reader returns a read-only view of the board.
func (b *Board) Reader() Reader { return readerView{b} }

// Updater returns a read/update view (no key definition rights).
func (b *Board) Updater() Updater { return updaterView{readerView{b}} }

// Definer returns a read/define view (no update rights).
func (b *Board) Definer() Definer { return definerView{readerView{b}} }

// Manager returns the full-control view.
func (b *Board) Manager() Manager { return managerView{updaterView{readerView{b}}} }
