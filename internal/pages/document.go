package pages

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ailearninghub/hub/internal/kv"
)

// DocumentKey is the storage key of the current document.
const DocumentKey = "uploadedContent"

// ErrNoDocument is returned when nothing has been ingested yet.
var ErrNoDocument = errors.New("no document loaded")

// Document is an ingested file.
type Document struct {
	FileName string `json:"fileName"`
	Pages    []Page `json:"pages"`
}

// Fingerprint identifies the document content. Storage keys derived from
// it keep summaries and chat logs of different documents apart.
func (d Document) Fingerprint() string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s\x00%d\x00", d.FileName, len(d.Pages))
	for _, p := range d.Pages {
		_, _ = fmt.Fprintf(h, "%d\x00%s\x00", p.Page, p.Text)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// TotalChunks is shorthand for TotalChunks(len(d.Pages)).
func (d Document) TotalChunks() int {
	return TotalChunks(len(d.Pages))
}

// DocumentStore persists the current document in a kv.Store.
type DocumentStore struct {
	kv kv.Store
}

// NewDocumentStore returns a DocumentStore over s.
func NewDocumentStore(s kv.Store) *DocumentStore {
	return &DocumentStore{kv: s}
}

// Save replaces the stored document.
func (s *DocumentStore) Save(d Document) error {
	if err := kv.SetJSON(s.kv, DocumentKey, d); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// Load returns the stored document, or ErrNoDocument.
func (s *DocumentStore) Load() (Document, error) {
	d, ok, err := kv.GetJSON[Document](s.kv, DocumentKey)
	if err != nil {
		return Document{}, fmt.Errorf("load document: %w", err)
	}
	if !ok {
		return Document{}, ErrNoDocument
	}
	return d, nil
}
