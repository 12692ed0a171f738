// Package kv is the device-local durable key/value store shared by the
// surfaces running on one device.
package kv

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("kv store closed")

// UpdateFunc receives the current value (nil, false when absent) and returns
// the value to store. Returning a nil slice leaves the key untouched.
type UpdateFunc func(current []byte, ok bool) ([]byte, error)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	// Update reads and writes a key atomically with respect to other writers
	// of the same store.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Delete(ctx context.Context, key string) error
	Close() error
}
