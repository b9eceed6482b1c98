package localindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

func TestSearchBeforeReplaceReturnsIndexNotFound(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "index"))
	_, err := s.Search(context.Background(), []float32{1, 0}, 4)
	if !domain.IsKind(err, domain.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestReplaceThenSearchRanksByCosine(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "index"))
	ctx := context.Background()

	err := s.Replace(ctx, []domain.IndexedChunk{
		{Text: "paris", Vector: []float32{10, 0, 0}},
		{Text: "lyon", Vector: []float32{0.7, 0.7, 0}},
		{Text: "tokyo", Vector: []float32{0, 0, 3}},
	})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	got, err := s.Search(ctx, []float32{1, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 || got[0].Text != "paris" || got[1].Text != "lyon" {
		t.Fatalf("unexpected ranking: %+v", got)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("expected descending scores: %+v", got)
	}
}

func TestReplaceOverwritesPreviousIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	s := New(dir)
	ctx := context.Background()

	if err := s.Replace(ctx, []domain.IndexedChunk{{Text: "old", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if _, err := s.Search(ctx, []float32{1, 0}, 4); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if err := s.Replace(ctx, []domain.IndexedChunk{{Text: "new", Vector: []float32{0, 1, 0}}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	got, err := s.Search(ctx, []float32{0, 1, 0}, 4)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Text != "new" {
		t.Fatalf("expected only the new entry, got %+v", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != indexFileName {
		t.Fatalf("expected a single index file, got %v", entries)
	}
}

func TestIndexSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	ctx := context.Background()
	if err := New(dir).Replace(ctx, []domain.IndexedChunk{{Text: "The capital of France is Paris.", Vector: []float32{0.2, 0.4}}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	got, err := New(dir).Search(ctx, []float32{0.2, 0.4}, 4)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Text != "The capital of France is Paris." {
		t.Fatalf("unexpected result after reopen: %+v", got)
	}
}

func TestReplaceRejectsInvalidEntries(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	s := New(dir)
	ctx := context.Background()

	if err := s.Replace(ctx, nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty index, got %v", err)
	}
	err := s.Replace(ctx, []domain.IndexedChunk{
		{Text: "a", Vector: []float32{1, 0}},
		{Text: "b", Vector: []float32{1}},
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for mismatched dims, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, indexFileName)); !os.IsNotExist(err) {
		t.Fatalf("expected no index file written, stat err = %v", err)
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "index"))
	ctx := context.Background()
	_ = s.Replace(ctx, []domain.IndexedChunk{{Text: "a", Vector: []float32{1, 0}}})

	if _, err := s.Search(ctx, []float32{1, 0, 0}, 1); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}
