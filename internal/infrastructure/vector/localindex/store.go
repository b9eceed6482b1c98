// Package localindex keeps the similarity index as a single file inside the
// index directory. Every successful build replaces the file atomically.
package localindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

const indexFileName = "index.bin"

type Store struct {
	dir string

	mu       sync.RWMutex
	cached   *index
	cachedAt time.Time
	cachedSz int64
}

func New(dir string) *Store {
	if dir == "" {
		dir = "./vector_store/faiss_index"
	}
	return &Store{dir: dir}
}

func (s *Store) Replace(ctx context.Context, entries []domain.IndexedChunk) error {
	idx, err := newIndex(entries)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "build index", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, indexFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := idx.writeTo(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path()); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}
	s.cached = nil
	return nil
}

func (s *Store) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, err := s.load()
	if err != nil {
		return nil, err
	}
	return idx.search(queryVector, limit)
}

// load returns the cached index unless the file on disk changed, which
// happens when another process rebuilt it.
func (s *Store) load() (*index, error) {
	info, err := os.Stat(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrIndexNotFound, "load index", err)
		}
		return nil, fmt.Errorf("stat index file: %w", err)
	}

	s.mu.RLock()
	if s.cached != nil && s.cachedAt.Equal(info.ModTime()) && s.cachedSz == info.Size() {
		idx := s.cached
		s.mu.RUnlock()
		return idx, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrIndexNotFound, "load index", err)
		}
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	idx, err := readIndex(f)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	s.cached = idx
	s.cachedAt = info.ModTime()
	s.cachedSz = info.Size()
	return idx, nil
}

func (s *Store) path() string {
	return filepath.Join(s.dir, indexFileName)
}
