// Package store persists observed flight prices in an append-only SQL table.
package store

import "errors"

var (
	// ErrStorage indicates a schema, read or write failure of the price store.
	ErrStorage = errors.New("storage error")
	// ErrUnsupportedDriver indicates a storage driver other than sqlite or postgres.
	ErrUnsupportedDriver = errors.New("unsupported storage driver")
)
