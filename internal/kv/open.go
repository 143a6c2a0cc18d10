package kv

import (
	"fmt"
	"io"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
	BackendSQLite = "sqlite"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the store selected by backend. dir is the data directory
// for the persistent backends. The returned closer must be called on exit.
func Open(backend, dir string, quota int64) (Store, io.Closer, error) {
	switch backend {
	case BackendMemory:
		return NewMemory(quota), nopCloser{}, nil
	case BackendDisk, "":
		d, err := NewDisk(filepath.Join(dir, "store"), quota)
		if err != nil {
			return nil, nil, err
		}
		return d, d, nil
	case BackendSQLite:
		s, err := OpenSQLite(filepath.Join(dir, "hub.db"), quota)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
