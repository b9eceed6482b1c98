package domain

// IndexedChunk is one entry of the similarity index.
type IndexedChunk struct {
	Text   string
	Vector []float32
}

type RetrievedChunk struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type Answer struct {
	Question string           `json:"question"`
	Text     string           `json:"answer"`
	Sources  []RetrievedChunk `json:"-"`
}
