// Package store holds what every goblin store implementation shares.
package store

import "errors"

var (
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a write violates a uniqueness rule,
	// such as a second transaction with an existing import hash.
	ErrDuplicate = errors.New("duplicate")
)

// MaxCategoryDepth bounds hierarchy walks so a parent cycle cannot loop forever.
const MaxCategoryDepth = 64
