package kv

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	indexFile = "index.gob"

	// values smaller than this are stored raw
	compressThreshold = 1024
)

// Disk is a persistent Store keeping one file per key under a directory.
// Large values are zstd-compressed. Unlike Memory, Disk never evicts: a
// write that would exceed the quota fails with ErrQuotaExceeded.
type Disk struct {
	dir   string
	quota int64
	size  int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu     sync.Mutex
	stats  Stats
	closed bool
}

type diskEntry struct {
	Key        string
	File       string
	Size       int64 // bytes on disk
	Compressed bool
	Updated    time.Time
}

// NewDisk opens (or creates) a disk store rooted at dir. A quota of 0
// means unlimited.
func NewDisk(dir string, quota int64) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	d := &Disk{
		dir:     dir,
		quota:   quota,
		encoder: enc,
		decoder: dec,
		index:   make(map[string]*diskEntry),
	}
	if err := d.loadIndex(); err != nil {
		return nil, err
	}
	return d, nil
}

// Get implements Store.
func (d *Disk) Get(key string) ([]byte, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, false, ErrClosed
	}

	entry, ok := d.index[key]
	if !ok {
		d.stats.Misses++
		return nil, false, nil
	}

	data, err := os.ReadFile(filepath.Join(d.dir, entry.File))
	if errors.Is(err, fs.ErrNotExist) {
		// file vanished behind our back
		d.size -= entry.Size
		delete(d.index, key)
		d.stats.Misses++
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}

	if entry.Compressed {
		data, err = d.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, false, fmt.Errorf("decompress %q: %w", key, err)
		}
	}

	d.stats.Hits++
	return data, true, nil
}

// Set implements Store.
func (d *Disk) Set(key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	data := value
	compressed := false
	if len(value) >= compressThreshold {
		data = d.encoder.EncodeAll(value, make([]byte, 0, len(value)/2))
		compressed = true
	}

	n := int64(len(data))
	var previous int64
	if old, ok := d.index[key]; ok {
		previous = old.Size
	}
	if d.quota > 0 && d.size-previous+n > d.quota {
		return ErrQuotaExceeded
	}

	name := fileName(key)
	if err := writeFileAtomic(filepath.Join(d.dir, name), data); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}

	d.index[key] = &diskEntry{
		Key:        key,
		File:       name,
		Size:       n,
		Compressed: compressed,
		Updated:    time.Now(),
	}
	d.size += n - previous
	return d.saveIndex()
}

// Delete implements Store.
func (d *Disk) Delete(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	entry, ok := d.index[key]
	if !ok {
		return nil
	}
	if err := os.Remove(filepath.Join(d.dir, entry.File)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	d.size -= entry.Size
	delete(d.index, key)
	return d.saveIndex()
}

// Stats returns a snapshot of the usage counters.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.Entries = len(d.index)
	s.Size = d.size
	s.Quota = d.quota
	return s
}

// Close releases the codec resources. The store can't be used afterwards.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.encoder.Close()
	d.decoder.Close()
	return nil
}

func fileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + ".kv"
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (d *Disk) loadIndex() error {
	f, err := os.Open(filepath.Join(d.dir, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := gob.NewDecoder(f).Decode(&d.index); err != nil {
		// A damaged index loses the entries but keeps the store usable.
		d.index = make(map[string]*diskEntry)
		return nil
	}
	for _, e := range d.index {
		d.size += e.Size
	}
	return nil
}

func (d *Disk) saveIndex() error {
	tmp := filepath.Join(d.dir, indexFile+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(d.index); err != nil {
		_ = f.Close()
		return fmt.Errorf("save index: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return os.Rename(tmp, filepath.Join(d.dir, indexFile))
}
