package dval

import (
	"encoding/json"
	"fmt"
)

// HoleID is the stable identity of an editable slot.
type HoleID int64

// Hole is a user-editable slot that is either empty or filled with a value.
// The ID is assigned when the slot is created and survives every edit.
type Hole[T any] struct {
	id    HoleID
	value T
	full  bool
}

// Empty returns an unfilled hole with the given identity.
func Empty[T any](id HoleID) Hole[T] {
	return Hole[T]{id: id}
}

// Full returns a filled hole with the given identity.
func Full[T any](id HoleID, v T) Hole[T] {
	return Hole[T]{id: id, value: v, full: true}
}

// ID returns the slot identity.
func (h Hole[T]) ID() HoleID { return h.id }

// IsFull reports whether the slot holds a value.
func (h Hole[T]) IsFull() bool { return h.full }

// Get returns the value and whether the slot is filled.
// This is holeToOption: Empty maps to (zero, false), Full(v) to (v, true).
func (h Hole[T]) Get() (T, bool) {
	return h.value, h.full
}

// Fill returns the hole with its payload replaced, keeping its identity.
func (h Hole[T]) Fill(v T) Hole[T] {
	return Hole[T]{id: h.id, value: v, full: true}
}

// Clear returns the hole emptied, keeping its identity.
func (h Hole[T]) Clear() Hole[T] {
	return Hole[T]{id: h.id}
}

func (h Hole[T]) String() string {
	if !h.full {
		return fmt.Sprintf("Empty(%d)", h.id)
	}
	return fmt.Sprintf("Full(%d, %v)", h.id, h.value)
}

// holeJSON is the wire shape of a hole: {"id": 3} or {"id": 3, "value": ...}.
type holeJSON[T any] struct {
	ID    HoleID `json:"id"`
	Value *T     `json:"value,omitempty"`
}

// MarshalJSON implements json.Marshaler for Hole.
func (h Hole[T]) MarshalJSON() ([]byte, error) {
	out := holeJSON[T]{ID: h.id}
	if h.full {
		v := h.value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for Hole.
func (h *Hole[T]) UnmarshalJSON(data []byte) error {
	var in holeJSON[T]
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("hole: %w", err)
	}
	if in.Value == nil {
		*h = Empty[T](in.ID)
		return nil
	}
	*h = Full(in.ID, *in.Value)
	return nil
}
