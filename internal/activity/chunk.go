package activity

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
)

// Параметры разбиения по умолчанию.
const (
	defaultMaxChunkChars     = 1000
	defaultSentencesPerChunk = 5
)

var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// ChunkDocuments разбивает документы на фрагменты.
//
// Каждый аргумент — одна запись документа (map с полями id/text).
// Текст сначала режется на абзацы по пустой строке; абзац становится
// одним фрагментом, слишком длинные абзацы дорезаются по предложениям.
type ChunkDocuments struct {
	log               *slog.Logger
	maxChunkChars     int
	sentencesPerChunk int
}

// NewChunkDocuments создаёт chunking activity.
func NewChunkDocuments(log *slog.Logger) *ChunkDocuments {
	return &ChunkDocuments{
		log:               log,
		maxChunkChars:     defaultMaxChunkChars,
		sentencesPerChunk: defaultSentencesPerChunk,
	}
}

// Name возвращает имя activity.
func (c *ChunkDocuments) Name() string { return domain.ActivityChunkDocuments }

// Metadata возвращает самоописание activity.
func (c *ChunkDocuments) Metadata() domain.ActivityMetadata {
	return domain.ActivityMetadata{
		Name:           domain.ActivityChunkDocuments,
		Description:    "Splits documents into paragraph and sentence chunks",
		TimeoutSeconds: int(domain.DefaultTimeout.Seconds()),
		RetryAttempts:  domain.DefaultMaxAttempts,
		Parameters: []domain.ParameterSpec{
			{Name: "documents", Type: "list", Description: "document records with id and text", Required: true},
		},
		Returns: &domain.ReturnSpec{Type: "list", Description: "chunk records"},
	}
}

// Execute разбивает все документы из args и возвращает плоский список
// chunk-записей.
func (c *ChunkDocuments) Execute(ctx context.Context, args []any) (any, error) {
	chunks := make([]any, 0, len(args))

	for i, arg := range args {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrActivityCancelled, err)
		}

		doc, err := documentFromArg(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: arg %d: %w", ErrInvalidArgs, i, err)
		}

		for _, chunk := range c.chunkDocument(doc) {
			chunks = append(chunks, map[string]any{
				"document_id": chunk.DocumentID,
				"chunk_id":    chunk.ChunkID,
				"index":       chunk.Index,
				"text":        chunk.Text,
			})
		}
	}

	c.log.Debug("documents chunked",
		slog.Int("documents", len(args)),
		slog.Int("chunks", len(chunks)),
	)
	return chunks, nil
}

// chunkDocument режет один документ на фрагменты.
func (c *ChunkDocuments) chunkDocument(doc domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	idx := 0

	for _, paragraph := range splitParagraphs(doc.Text) {
		if len(paragraph) <= c.maxChunkChars {
			chunks = append(chunks, c.newChunk(doc.ID, idx, paragraph))
			idx++
			continue
		}
		// Длинный абзац — группируем предложения.
		for _, text := range groupSentences(paragraph, c.sentencesPerChunk) {
			chunks = append(chunks, c.newChunk(doc.ID, idx, text))
			idx++
		}
	}
	return chunks
}

func (c *ChunkDocuments) newChunk(docID string, idx int, text string) domain.Chunk {
	return domain.Chunk{
		DocumentID: docID,
		ChunkID:    docID + ":" + strconv.Itoa(idx),
		Index:      idx,
		Text:       text,
	}
}

// splitParagraphs разбивает текст на непустые абзацы по пустой строке.
func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, part := range strings.Split(text, "\n\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			paragraphs = append(paragraphs, part)
		}
	}
	return paragraphs
}

// groupSentences режет текст на группы по perChunk предложений.
func groupSentences(text string, perChunk int) []string {
	sentences := sentenceSplitter.FindAllString(text, -1)
	if len(sentences) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	var groups []string
	for i := 0; i < len(sentences); i += perChunk {
		end := i + perChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		groups = append(groups, strings.Join(sentences[i:end], " "))
	}
	return groups
}

// documentFromArg читает запись документа из аргумента.
// Принимает map с полями id/text (content как синоним text) или голую строку.
func documentFromArg(arg any) (domain.Document, error) {
	switch v := arg.(type) {
	case map[string]any:
		doc := domain.Document{}
		if id, ok := v["id"].(string); ok {
			doc.ID = id
		}
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		if text, ok := v["text"].(string); ok {
			doc.Text = text
		} else if content, ok := v["content"].(string); ok {
			doc.Text = content
		} else {
			return domain.Document{}, fmt.Errorf("document record has no text field")
		}
		if meta, ok := v["metadata"].(map[string]any); ok {
			doc.Metadata = meta
		}
		return doc, nil

	case string:
		return domain.Document{ID: uuid.NewString(), Text: v}, nil

	case domain.Document:
		return v, nil

	default:
		return domain.Document{}, fmt.Errorf("unexpected document type %T", arg)
	}
}
