package kv

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded is returned by Set when the value does not fit in the
	// store's configured quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrClosed is returned when a store is used after Close.
	ErrClosed = errors.New("store closed")
)

// Store is a string-keyed blob store.
type Store interface {
	// Get returns the value for key. The boolean is false when the key is
	// absent; err is reserved for read failures.
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// GetJSON reads key and decodes it into a T.
func GetJSON[T any](s Store, key string) (T, bool, error) {
	var v T
	data, ok, err := s.Get(key)
	if err != nil || !ok {
		return v, ok, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("decode %q: %w", key, err)
	}
	return v, true, nil
}

// SetJSON encodes v and writes it under key.
func SetJSON(s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(key, data)
}

// Stats holds usage counters for a store.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
	Size    int64 // bytes currently stored
	Quota   int64 // 0 means unlimited
}
