// Package ordering certifies reorder mutations against persisted ordering
// arrays. A client submits a full replacement sequence; the only legal change
// is a permutation of the current one.
package ordering

import (
	"errors"

	"taskboard/api/internal/util"
)

var (
	// ErrReorderOnly is returned when the proposed sequence adds or removes
	// ids instead of permuting the current ones.
	ErrReorderOnly = errors.New("ordering: sequence may only be reordered, not changed")
	// ErrInvalidID is returned when the proposed sequence contains a
	// syntactically invalid identifier.
	ErrInvalidID = errors.New("ordering: invalid id in proposed sequence")
)

// Validate checks a proposed replacement sequence against the current one.
// It accepts proposed iff it is a set-permutation of current (duplicates
// count), or both are empty.
func Validate(current, proposed []string) error {
	if len(proposed) != len(current) {
		return ErrReorderOnly
	}
	for _, id := range proposed {
		if !util.ValidID(id) {
			return ErrInvalidID
		}
	}

	counts := make(map[string]int, len(current))
	for _, id := range current {
		counts[id]++
	}
	for _, id := range proposed {
		counts[id]--
		if counts[id] < 0 {
			return ErrReorderOnly
		}
	}
	for _, n := range counts {
		if n != 0 {
			return ErrReorderOnly
		}
	}
	return nil
}
