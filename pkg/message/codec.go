package message

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// SnapshotEntry is the wire form of one key slot. Kind preserves the
// declared type across the process boundary for the common scalar kinds;
// everything else travels as raw JSON and lands as generic containers.
type SnapshotEntry struct {
	Key      string          `json:"key"`
	Kind     string          `json:"kind"`
	Consumed bool            `json:"consumed,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}

const (
	kindBool    = "bool"
	kindInt     = "int"
	kindInt64   = "int64"
	kindFloat64 = "float64"
	kindString  = "string"
	kindJSON    = "json"
)

func kindFor(typ reflect.Type) string {
	switch typ.Kind() {
	case reflect.Bool:
		return kindBool
	case reflect.Int:
		return kindInt
	case reflect.Int64:
		return kindInt64
	case reflect.Float64:
		return kindFloat64
	case reflect.String:
		return kindString
	default:
		return kindJSON
	}
}

// Snapshot serializes every slot for transfer to a subprocess.
func (b *Board) Snapshot() ([]SnapshotEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SnapshotEntry, 0, len(b.entries))
	for _, key := range b.keys() {
		e := b.entries[key]
		se := SnapshotEntry{Key: key, Kind: kindFor(e.typ), Consumed: e.consumed}
		if !e.consumed {
			raw, err := json.Marshal(e.value)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w: %v", key, ErrNotSerializable, err)
			}
			se.Value = raw
		}
		out = append(out, se)
	}
	return out, nil
}

// FromSnapshot rebuilds a Board on the far side of a process boundary.
// The resulting board always carries the serialization check, since it
// exists only because the channel crossed a boundary once already.
func FromSnapshot(entries []SnapshotEntry) (*Board, error) {
	b := NewBoard(WithSerializationCheck())
	for _, se := range entries {
		value, typ, err := decodeKind(se)
		if err != nil {
			return nil, err
		}
		slot := &entry{typ: typ, consumed: se.Consumed}
		if !se.Consumed {
			slot.value = value
		}
		b.entries[se.Key] = slot
	}
	return b, nil
}

// decodeKind materializes a wire value with the declared scalar kind, or
// as a generic JSON container.
func decodeKind(se SnapshotEntry) (any, reflect.Type, error) {
	decode := func(dst any) error {
		if se.Consumed {
			return nil
		}
		if err := json.Unmarshal(se.Value, dst); err != nil {
			return fmt.Errorf("key %q: decode %s: %w", se.Key, se.Kind, err)
		}
		return nil
	}
	switch se.Kind {
	case kindBool:
		var v bool
		return v, reflect.TypeOf((*bool)(nil)).Elem(), decode(&v)
	case kindInt:
		var v int
		return v, reflect.TypeOf((*int)(nil)).Elem(), decode(&v)
	case kindInt64:
		var v int64
		return v, reflect.TypeOf((*int64)(nil)).Elem(), decode(&v)
	case kindFloat64:
		var v float64
		return v, reflect.TypeOf((*float64)(nil)).Elem(), decode(&v)
	case kindString:
		var v string
		return v, reflect.TypeOf((*string)(nil)).Elem(), decode(&v)
	default:
		var v any
		if err := decode(&v); err != nil {
			return nil, nil, err
		}
		typ := reflect.TypeOf(v)
		if typ == nil {
			typ = reflect.TypeOf((*any)(nil)).Elem()
		}
		return v, typ, nil
	}
}

// ApplyRemote installs an update that arrived over IPC into an existing
// slot, decoding the payload against the declared key type.
func (b *Board) ApplyRemote(se SnapshotEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, err := b.load(se.Key)
	if err != nil {
		return err
	}
	if se.Consumed {
		e.value = nil
		e.consumed = true
		return nil
	}
	dst := reflect.New(e.typ)
	if err := json.Unmarshal(se.Value, dst.Interface()); err != nil {
		return fmt.Errorf("key %q: decode remote value: %w", se.Key, err)
	}
	e.value = dst.Elem().Interface()
	e.consumed = false
	return nil
}

// Changed reports the slots whose content differs from a reference
// snapshot taken earlier with Snapshot. It is how a subprocess computes
// the updates to stream back to its parent.
func (b *Board) Changed(base []SnapshotEntry) ([]SnapshotEntry, error) {
	ref := make(map[string]SnapshotEntry, len(base))
	for _, se := range base {
		ref[se.Key] = se
	}
	current, err := b.Snapshot()
	if err != nil {
		return nil, err
	}
	var out []SnapshotEntry
	for _, se := range current {
		prev, ok := ref[se.Key]
		if !ok || prev.Consumed != se.Consumed || string(prev.Value) != string(se.Value) {
			out = append(out, se)
		}
	}
	return out, nil
}
