package localindex

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
)

const (
	fileMagic   = "PQAI"
	fileVersion = 1
)

// index is a brute-force cosine similarity index. Vectors are normalized on
// insert so search is a dot product.
type index struct {
	dimensions int
	texts      []string
	vectors    [][]float32
}

func newIndex(entries []domain.IndexedChunk) (*index, error) {
	if len(entries) == 0 {
		return nil, errors.New("index has no entries")
	}
	idx := &index{dimensions: len(entries[0].Vector)}
	if idx.dimensions == 0 {
		return nil, errors.New("index vectors are empty")
	}
	for i, entry := range entries {
		if len(entry.Vector) != idx.dimensions {
			return nil, fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(entry.Vector), idx.dimensions)
		}
		idx.texts = append(idx.texts, entry.Text)
		idx.vectors = append(idx.vectors, normalize(entry.Vector))
	}
	return idx, nil
}

func (idx *index) search(query []float32, k int) ([]domain.RetrievedChunk, error) {
	if len(query) != idx.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), idx.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	q := normalize(query)

	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(idx.vectors))
	for i, vec := range idx.vectors {
		var dot float64
		for j := range vec {
			dot += float64(q[j]) * float64(vec[j])
		}
		scores[i] = scored{pos: i, score: dot}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if k > len(scores) {
		k = len(scores)
	}

	out := make([]domain.RetrievedChunk, k)
	for i := 0; i < k; i++ {
		out[i] = domain.RetrievedChunk{Text: idx.texts[scores[i].pos], Score: scores[i].score}
	}
	return out, nil
}

// Layout, little endian: magic, version, dimensions, count, then per entry the
// text length, the UTF-8 text and the vector.
func (idx *index) writeTo(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(fileMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	header := []uint32{fileVersion, uint32(idx.dimensions), uint32(len(idx.texts))}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, text := range idx.texts {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(text))); err != nil {
			return fmt.Errorf("write text len: %w", err)
		}
		if _, err := bw.WriteString(text); err != nil {
			return fmt.Errorf("write text: %w", err)
		}
		if err := binary.Write(bw, binary.LittleEndian, idx.vectors[i]); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return bw.Flush()
}

func readIndex(r io.Reader) (*index, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != fileMagic {
		return nil, errors.New("not an index file")
	}
	var header [3]uint32
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if header[0] != fileVersion {
		return nil, fmt.Errorf("unsupported index version %d", header[0])
	}

	idx := &index{
		dimensions: int(header[1]),
		texts:      make([]string, 0, header[2]),
		vectors:    make([][]float32, 0, header[2]),
	}
	for i := uint32(0); i < header[2]; i++ {
		var textLen uint32
		if err := binary.Read(br, binary.LittleEndian, &textLen); err != nil {
			return nil, fmt.Errorf("read text len: %w", err)
		}
		text := make([]byte, textLen)
		if _, err := io.ReadFull(br, text); err != nil {
			return nil, fmt.Errorf("read text: %w", err)
		}
		vec := make([]float32, idx.dimensions)
		if err := binary.Read(br, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("read vector: %w", err)
		}
		idx.texts = append(idx.texts, string(text))
		idx.vectors = append(idx.vectors, vec)
	}
	return idx, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
