package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-qa-assistant/internal/core/ports"
)

const maxPDFBytes = 200 << 20

// Extractor concatenates the plain text of stored PDFs. A file that cannot be
// read is logged and recorded as a failure; the others still contribute.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, keys []string) (domain.Extraction, error) {
	var (
		text     bytes.Buffer
		failures []domain.FileFailure
	)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return domain.Extraction{}, err
		}

		fileText, err := e.extractFile(ctx, key)
		if err != nil {
			slog.Warn("pdf_extract_failed", "file", key, "error", err)
			failures = append(failures, domain.FileFailure{Filename: key, Error: err.Error()})
			continue
		}
		text.WriteString(fileText)
	}
	return domain.Extraction{Text: text.String(), Failures: failures}, nil
}

func (e *Extractor) extractFile(ctx context.Context, key string) (string, error) {
	reader, err := e.storage.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, maxPDFBytes+1))
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	if len(raw) > maxPDFBytes {
		return "", fmt.Errorf("pdf too large for in-memory extraction")
	}
	return pageText(raw)
}

// pageText recovers from parser panics, which ledongthuc/pdf raises on some
// malformed inputs.
func pageText(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var buf bytes.Buffer
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		plain, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(plain)
	}
	return buf.String(), nil
}
