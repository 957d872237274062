// Package kv persists the console's per-browser key-value area. A namespace
// is one browser id and stands in for that browser's local storage.
package kv

import (
	"context"
	"errors"
	"time"
)

var ErrEmptyNamespace = errors.New("kv: empty namespace")

// Store is an opaque get/set/remove key-value area partitioned by namespace.
// A missing key is reported through ok, never as an error.
type Store interface {
	Get(ctx context.Context, namespace, key string) (value string, ok bool, err error)
	Set(ctx context.Context, namespace, key, value string) error
	Remove(ctx context.Context, namespace, key string) error
	Clear(ctx context.Context, namespace string) error
}

// Sweeper is implemented by backends that cannot expire namespaces on their own.
type Sweeper interface {
	Sweep(ctx context.Context, idle time.Duration) (int, error)
}

func checkNamespace(namespace string) error {
	if namespace == "" {
		return ErrEmptyNamespace
	}
	return nil
}
