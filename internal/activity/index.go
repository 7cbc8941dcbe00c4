package activity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/embedding"
	"github.com/shaiso/Cascade/internal/vectorstore"
)

// EmbedAndIndex вычисляет embeddings фрагментов и пишет их в
// векторное хранилище.
//
// Аргументы: [chunkList, collectionName].
type EmbedAndIndex struct {
	log      *slog.Logger
	embedder embedding.Embedder
	store    vectorstore.Store
}

// NewEmbedAndIndex создаёт indexing activity.
func NewEmbedAndIndex(log *slog.Logger, embedder embedding.Embedder, store vectorstore.Store) *EmbedAndIndex {
	return &EmbedAndIndex{
		log:      log,
		embedder: embedder,
		store:    store,
	}
}

// Name возвращает имя activity.
func (e *EmbedAndIndex) Name() string { return domain.ActivityEmbedAndIndex }

// Metadata возвращает самоописание activity.
func (e *EmbedAndIndex) Metadata() domain.ActivityMetadata {
	return domain.ActivityMetadata{
		Name:           domain.ActivityEmbedAndIndex,
		Description:    "Embeds chunks and upserts them into the vector store",
		TimeoutSeconds: int(domain.DefaultTimeout.Seconds()),
		RetryAttempts:  domain.DefaultMaxAttempts,
		Parameters: []domain.ParameterSpec{
			{Name: "chunks", Type: "list", Description: "chunk records to index", Required: true},
			{Name: "collection", Type: "string", Description: "target collection name", Required: true},
		},
		Returns: &domain.ReturnSpec{Type: "object", Description: "indexing summary with indexed_count"},
	}
}

// Execute индексирует фрагменты.
func (e *EmbedAndIndex) Execute(ctx context.Context, args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: want [chunks, collection], got %d args", ErrInvalidArgs, len(args))
	}

	chunks, ok := args[0].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: chunks must be a list, got %T", ErrInvalidArgs, args[0])
	}
	collection, ok := args[1].(string)
	if !ok || collection == "" {
		return nil, fmt.Errorf("%w: collection must be a non-empty string", ErrInvalidArgs)
	}

	if err := e.store.EnsureCollection(ctx, collection, e.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("ensure collection %q: %w", collection, err)
	}

	points := make([]vectorstore.Point, 0, len(chunks))
	for i, raw := range chunks {
		chunk, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: chunk %d must be an object, got %T", ErrInvalidArgs, i, raw)
		}
		text, _ := chunk["text"].(string)
		if text == "" {
			continue
		}

		vector, err := e.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", i, err)
		}

		id, _ := chunk["chunk_id"].(string)
		if id == "" {
			id = fmt.Sprintf("chunk:%d", i)
		}
		points = append(points, vectorstore.Point{
			ID:     id,
			Vector: vector,
			Payload: map[string]any{
				"document_id": chunk["document_id"],
				"chunk_id":    id,
				"text":        text,
			},
		})
	}

	if len(points) > 0 {
		if err := e.store.Upsert(ctx, collection, points); err != nil {
			return nil, fmt.Errorf("upsert into %q: %w", collection, err)
		}
	}

	e.log.Info("chunks indexed",
		slog.String("collection", collection),
		slog.Int("indexed_count", len(points)),
	)
	return map[string]any{
		"status":        "success",
		"indexed_count": len(points),
		"collection":    collection,
	}, nil
}
