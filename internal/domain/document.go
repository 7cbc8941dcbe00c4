package domain

// Document — один документ на входе pipeline индексации.
type Document struct {
	// ID — идентификатор документа.
	ID string `json:"id"`

	// Text — полный текст документа.
	Text string `json:"text"`

	// Metadata — произвольные атрибуты документа (источник, заголовок и т.д.).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Chunk — фрагмент документа, пригодный для индексации.
type Chunk struct {
	// DocumentID — документ-источник.
	DocumentID string `json:"document_id"`

	// ChunkID — идентификатор фрагмента ("{document_id}:{index}").
	ChunkID string `json:"chunk_id"`

	// Index — порядковый номер фрагмента внутри документа.
	Index int `json:"index"`

	// Text — текст фрагмента.
	Text string `json:"text"`
}

// ScoredChunk — фрагмент с оценкой релевантности из векторного поиска.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}
