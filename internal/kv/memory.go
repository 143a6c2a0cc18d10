package kv

import (
	"container/list"
	"sync"
)

// Memory is an in-memory Store with LRU eviction. When a quota is set,
// least recently used entries are evicted to make room, and values larger
// than the whole quota are rejected with ErrQuotaExceeded.
type Memory struct {
	quota int64
	size  int64

	items    map[string]*list.Element
	eviction *list.List

	mu    sync.Mutex
	stats Stats
}

type memoryEntry struct {
	key   string
	value []byte
}

// NewMemory returns a memory store. A quota of 0 disables eviction.
func NewMemory(quota int64) *Memory {
	return &Memory{
		quota:    quota,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
	}
}

// Get implements Store.
func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		m.stats.Misses++
		return nil, false, nil
	}
	m.eviction.MoveToFront(elem)
	m.stats.Hits++

	entry := elem.Value.(*memoryEntry)
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

// Set implements Store.
func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(value))
	if m.quota > 0 && n > m.quota {
		return ErrQuotaExceeded
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	if elem, ok := m.items[key]; ok {
		entry := elem.Value.(*memoryEntry)
		m.size += n - int64(len(entry.value))
		entry.value = stored
		m.eviction.MoveToFront(elem)
	} else {
		m.items[key] = m.eviction.PushFront(&memoryEntry{key: key, value: stored})
		m.size += n
	}

	// The entry just written sits at the front, so it is never the victim.
	for m.quota > 0 && m.size > m.quota && m.eviction.Len() > 1 {
		m.remove(m.eviction.Back())
	}
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		m.remove(elem)
	}
	return nil
}

// Stats returns a snapshot of the usage counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats
	s.Entries = len(m.items)
	s.Size = m.size
	s.Quota = m.quota
	return s
}

func (m *Memory) remove(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	m.eviction.Remove(elem)
	delete(m.items, entry.key)
	m.size -= int64(len(entry.value))
}
