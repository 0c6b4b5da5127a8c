package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// DefaultFilePath is used when the file driver has no path configured.
const DefaultFilePath = "data/threats.json"

// fileDocument is the on-disk layout. Threats keeps the local-storage JSON
// shape so exported browser data can be dropped in directly.
type fileDocument struct {
	Threats json.RawMessage `json:"biosec_threats"`
	Seeded  bool            `json:"biosec_seeded"`
}

// FileStore keeps the snapshot in a single JSON file. Writes go to a
// temporary file that is renamed over the original.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates the parent directory of path if needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultFilePath
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) read() (fileDocument, error) {
	var doc fileDocument
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) write(doc fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Load implements Repository.
func (s *FileStore) Load(_ context.Context) ([]*threat.Threat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	threats, err := decodeSnapshot(doc.Threats)
	if err != nil {
		return nil, err
	}
	return normalizeLoaded(threats), nil
}

// Save implements Repository.
func (s *FileStore) Save(_ context.Context, threats []*threat.Threat) error {
	data, err := encodeSnapshot(threats)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Threats = data
	return s.write(doc)
}

// IsSeeded implements Repository.
func (s *FileStore) IsSeeded(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return false, err
	}
	return doc.Seeded, nil
}

// MarkSeeded implements Repository.
func (s *FileStore) MarkSeeded(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Seeded = true
	return s.write(doc)
}

// Close implements Repository.
func (s *FileStore) Close() error { return nil }
