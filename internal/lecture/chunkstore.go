package lecture

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/ailearninghub/hub/internal/kv"
	"github.com/ailearninghub/hub/internal/pages"
	"github.com/ailearninghub/hub/internal/remote"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// NoDataText is shown in place of a summary when no pages are loaded.
const NoDataText = "No lecture content yet. Upload a PDF or slide deck and open it with `hub FILE` to start the lecture."

// CachedChunk is the lecture board content of one chunk.
type CachedChunk struct {
	Resp   string   `json:"resp"`
	Images []string `json:"images"`

	// NoData marks the placeholder returned when there are no pages.
	NoData bool `json:"-"`
}

// NoDataChunk is returned by LoadOrFetch when the document has no pages.
var NoDataChunk = CachedChunk{Resp: NoDataText, Images: []string{}, NoData: true}

// Summarizer produces a lecture summary from a chunk prompt.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (remote.Summary, error)
}

// ChunkStore fetches chunk summaries and caches them, in memory and in a
// kv.Store. A cached entry is authoritative: it is never re-fetched.
type ChunkStore struct {
	doc        pages.Document
	summarizer Summarizer
	kv         kv.Store
	key        string

	mu    sync.Mutex
	cache map[int]CachedChunk
	group singleflight.Group
}

// CacheKey is the storage key of a document's summary cache.
func CacheKey(doc pages.Document) string {
	return "lecture_cache:" + doc.Fingerprint()
}

// NewChunkStore returns a store for doc. Previously cached summaries are
// loaded from s; an unreadable cache is logged and ignored.
func NewChunkStore(doc pages.Document, summarizer Summarizer, s kv.Store) *ChunkStore {
	cs := &ChunkStore{
		doc:        doc,
		summarizer: summarizer,
		kv:         s,
		key:        CacheKey(doc),
		cache:      make(map[int]CachedChunk),
	}

	stored, ok, err := kv.GetJSON[map[int]CachedChunk](s, cs.key)
	switch {
	case err != nil:
		log.Warn("ignoring unreadable lecture cache", "key", cs.key, "error", err)
	case ok:
		for i, c := range stored {
			cs.cache[i] = c
		}
		log.Debug("lecture cache loaded", "key", cs.key, "chunks", len(stored))
	}
	return cs
}

// Document returns the document the store serves.
func (cs *ChunkStore) Document() pages.Document {
	return cs.doc
}

// Cached returns the cached entry for chunk i without fetching.
func (cs *ChunkStore) Cached(i int) (CachedChunk, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	c, ok := cs.cache[i]
	return c, ok
}

// LoadOrFetch returns chunk i's summary, fetching it on a cache miss.
// Concurrent calls for the same chunk share one request. Failures are
// returned and nothing is cached.
func (cs *ChunkStore) LoadOrFetch(ctx context.Context, i int) (CachedChunk, error) {
	if c, ok := cs.Cached(i); ok {
		log.Debug("chunk cache hit", "chunk", i)
		return c, nil
	}

	if len(cs.doc.Pages) == 0 {
		return NoDataChunk, nil
	}

	chunk := pages.GetChunk(cs.doc.Pages, i)
	if chunk.Empty() {
		return CachedChunk{}, fmt.Errorf("chunk %d out of range (total %d)", i, cs.doc.TotalChunks())
	}

	v, err, _ := cs.group.Do(strconv.Itoa(i), func() (any, error) {
		// another caller may have filled the cache while we waited
		if c, ok := cs.Cached(i); ok {
			return c, nil
		}

		log.Debug("summarizing chunk", "chunk", i, "label", chunk.Label())
		sum, err := cs.summarizer.Summarize(ctx, chunk.Prompt())
		if err != nil {
			return nil, err
		}

		c := CachedChunk{Resp: sum.Resp, Images: sum.Images}
		if c.Images == nil {
			c.Images = []string{}
		}
		cs.store(i, c)
		return c, nil
	})
	if err != nil {
		log.Error("chunk summary failed", "chunk", i, "error", err)
		return CachedChunk{}, fmt.Errorf("summarize %s: %w", chunk.Label(), err)
	}
	return v.(CachedChunk), nil
}

func (cs *ChunkStore) store(i int, c CachedChunk) {
	cs.mu.Lock()
	cs.cache[i] = c
	snapshot := make(map[int]CachedChunk, len(cs.cache))
	for k, v := range cs.cache {
		snapshot[k] = v
	}
	cs.mu.Unlock()

	if err := kv.SetJSON(cs.kv, cs.key, snapshot); err != nil {
		if errors.Is(err, kv.ErrQuotaExceeded) {
			log.Warn("lecture cache not persisted: storage full", "chunk", i)
			return
		}
		log.Warn("lecture cache not persisted", "chunk", i, "error", err)
	}
}
