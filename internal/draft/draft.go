// Package draft persists in-progress receipts per client and template
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/thereceipt/receipt-studio/pkg/receiptformat"
)

// ErrNotFound is returned when no draft exists for a key.
var ErrNotFound = errors.New("draft not found")

// Key identifies one draft. A client keeps one draft per template.
type Key struct {
	ClientID   string
	TemplateID string
}

func (k Key) String() string {
	return k.ClientID + "/" + k.TemplateID
}

// Entry is a stored draft
type Entry struct {
	ClientID   string          `json:"client_id"`
	TemplateID string          `json:"template_id"`
	Revision   uint64          `json:"revision"`
	SavedAt    time.Time       `json:"saved_at"`
	Document   json.RawMessage `json:"document"`
}

// Decode parses the stored document. A draft that no longer validates is
// reported as receiptformat.ErrInvalidDocument.
func (e *Entry) Decode() (*receiptformat.Document, error) {
	return receiptformat.Parse(e.Document)
}

// Store reads and writes drafts.
type Store interface {
	Load(ctx context.Context, key Key) (*Entry, error)
	Save(ctx context.Context, key Key, doc *receiptformat.Document, revision uint64) error
	Delete(ctx context.Context, key Key) error
}

func newEntry(key Key, doc *receiptformat.Document, revision uint64) (*Entry, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode draft: %w", err)
	}
	return &Entry{
		ClientID:   key.ClientID,
		TemplateID: key.TemplateID,
		Revision:   revision,
		SavedAt:    time.Now().UTC(),
		Document:   data,
	}, nil
}

// FileStore keeps every draft in one JSON file.
type FileStore struct {
	filePath string
	data     map[string]*Entry
	mu       sync.RWMutex
}

// NewFileStore opens the draft file at filePath, creating it on first save.
func NewFileStore(filePath string) (*FileStore, error) {
	s := &FileStore{
		filePath: filePath,
		data:     make(map[string]*Entry),
	}

	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load drafts: %w", err)
		}
	}

	return s, nil
}

func (s *FileStore) Load(ctx context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[key.String()]
	if !ok {
		return nil, ErrNotFound
	}
	entryCopy := *entry
	return &entryCopy, nil
}

// Save replaces the draft for key. Older revisions never overwrite newer ones.
func (s *FileStore) Save(ctx context.Context, key Key, doc *receiptformat.Document, revision uint64) error {
	entry, err := newEntry(key, doc, revision)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.data[key.String()]; ok && cur.Revision > revision {
		return nil
	}
	prev := s.data[key.String()]
	s.data[key.String()] = entry

	if err := s.save(); err != nil {
		if prev != nil {
			s.data[key.String()] = prev
		} else {
			delete(s.data, key.String())
		}
		return err
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key.String()]; !ok {
		return nil
	}
	delete(s.data, key.String())
	return s.save()
}

// Len returns the number of stored drafts.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &s.data)
}

// save writes through a temp file so a crash never leaves half a file.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create draft directory: %w", err)
		}
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write drafts: %w", err)
	}
	return os.Rename(tmp, s.filePath)
}

// MemoryStore keeps drafts in memory. Used when no draft path is configured
// and in tests.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Entry)}
}

func (s *MemoryStore) Load(ctx context.Context, key Key) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key.String()]
	if !ok {
		return nil, ErrNotFound
	}
	entryCopy := *entry
	return &entryCopy, nil
}

func (s *MemoryStore) Save(ctx context.Context, key Key, doc *receiptformat.Document, revision uint64) error {
	entry, err := newEntry(key, doc, revision)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.data[key.String()]; ok && cur.Revision > revision {
		return nil
	}
	s.data[key.String()] = entry
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key.String())
	return nil
}
