// Package errors holds the sentinel errors shared by the repositories and
// the HTTP layer.
package errors

import "errors"

var (
	ErrNotFound     = errors.New("entity not found")
	ErrEmptyKey     = errors.New("empty key")
	ErrInvalidData  = errors.New("invalid data")
	ErrEntityExists = errors.New("entity already exists")
	ErrDecode       = errors.New("failed to decode stored record")
)
