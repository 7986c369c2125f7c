package message

import "fmt"

// BatchOp operates on a channel whose lock is already held by the
// enclosing Batch call. It works on existing keys only; defining keys is
// a Definer operation outside the batch scope.
type BatchOp struct {
	b *Board
}

// ExistsKey reports whether the key is defined.
func (op *BatchOp) ExistsKey(key string) bool {
	_, ok := op.b.entries[key]
	return ok
}

// Consumed reports whether the key's value is currently consumed.
func (op *BatchOp) Consumed(key string) (bool, error) {
	e, err := op.b.load(key)
	if err != nil {
		return false, err
	}
	return e.consumed, nil
}

// GetValue returns the current value of key.
func (op *BatchOp) GetValue(key string) (any, error) {
	e, err := op.b.load(key)
	if err != nil {
		return nil, err
	}
	if e.consumed {
		return nil, fmt.Errorf("key %q: %w", key, ErrConsumed)
	}
	return e.value, nil
}

// SetValue installs value, which must be an instance of the key's
// declared type.
func (op *BatchOp) SetValue(key string, value any) error {
	e, err := op.b.load(key)
	if err != nil {
		return err
	}
	return op.b.store(key, e, value)
}

// ConsumeValue removes and returns the current value, leaving the key
// defined but consumed.
func (op *BatchOp) ConsumeValue(key string) (any, error) {
	e, err := op.b.load(key)
	if err != nil {
		return nil, err
	}
	if e.consumed {
		return nil, fmt.Errorf("key %q: %w", key, ErrConsumed)
	}
	prev := e.value
	e.value = nil
	e.consumed = true
	return prev, nil
}
