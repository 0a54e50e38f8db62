package state

import (
	"fmt"
	"strconv"
)

// Key builds a state key from namespace segments. Each segment is length
// prefixed so that segments containing '/' cannot collide with neighbouring
// keys.
func Key(parts ...string) []byte {
	size := 0
	for _, part := range parts {
		size += len(part) + 8
	}
	buf := make([]byte, 0, size)
	for _, part := range parts {
		buf = append(buf, '/')
		buf = strconv.AppendInt(buf, int64(len(part)), 10)
		buf = append(buf, ':')
		buf = append(buf, part...)
	}
	return buf
}

// GetUint64 reads a counter, returning zero when unset.
func (tx *Tx) GetUint64(key []byte) (uint64, error) {
	var value uint64
	if _, err := tx.Get(key, &value); err != nil {
		return 0, err
	}
	return value, nil
}

// Increment bumps the counter at key by delta and returns the new value.
func (tx *Tx) Increment(key []byte, delta uint64) (uint64, error) {
	current, err := tx.GetUint64(key)
	if err != nil {
		return 0, err
	}
	next := current + delta
	if next < current {
		return 0, fmt.Errorf("state: counter %q overflow", key)
	}
	if err := tx.Put(key, next); err != nil {
		return 0, err
	}
	return next, nil
}

func listLenKey(prefix []byte) []byte {
	return append(append([]byte(nil), prefix...), "/len"...)
}

func listItemKey(prefix []byte, index uint64) []byte {
	out := append(append([]byte(nil), prefix...), '/')
	return strconv.AppendUint(out, index, 10)
}

// Append stores value as the next element of the append-only list rooted at
// prefix and returns its zero-based index.
func (tx *Tx) Append(prefix []byte, value interface{}) (uint64, error) {
	length, err := tx.GetUint64(listLenKey(prefix))
	if err != nil {
		return 0, err
	}
	if err := tx.Put(listItemKey(prefix, length), value); err != nil {
		return 0, err
	}
	if err := tx.Put(listLenKey(prefix), length+1); err != nil {
		return 0, err
	}
	return length, nil
}

// ListLen reports the number of elements appended under prefix.
func (tx *Tx) ListLen(prefix []byte) (uint64, error) {
	return tx.GetUint64(listLenKey(prefix))
}

// ListItem decodes element index of the list rooted at prefix into out.
func (tx *Tx) ListItem(prefix []byte, index uint64, out interface{}) (bool, error) {
	return tx.Get(listItemKey(prefix, index), out)
}
