package activity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/embedding"
	"github.com/shaiso/Cascade/internal/vectorstore"
)

// SearchDocuments ищет релевантные фрагменты в векторном хранилище.
//
// Аргументы: [query, collection, topK].
type SearchDocuments struct {
	log      *slog.Logger
	embedder embedding.Embedder
	store    vectorstore.Store
}

// NewSearchDocuments создаёт search activity.
func NewSearchDocuments(log *slog.Logger, embedder embedding.Embedder, store vectorstore.Store) *SearchDocuments {
	return &SearchDocuments{
		log:      log,
		embedder: embedder,
		store:    store,
	}
}

// Name возвращает имя activity.
func (s *SearchDocuments) Name() string { return domain.ActivitySearchDocuments }

// Metadata возвращает самоописание activity.
func (s *SearchDocuments) Metadata() domain.ActivityMetadata {
	return domain.ActivityMetadata{
		Name:           domain.ActivitySearchDocuments,
		Description:    "Searches the vector store for chunks relevant to a query",
		TimeoutSeconds: int(domain.DefaultTimeout.Seconds()),
		RetryAttempts:  domain.DefaultMaxAttempts,
		Parameters: []domain.ParameterSpec{
			{Name: "query", Type: "string", Description: "search query", Required: true},
			{Name: "collection", Type: "string", Description: "collection to search", Required: true},
			{Name: "top_k", Type: "int", Description: "number of results", Required: false},
		},
		Returns: &domain.ReturnSpec{Type: "object", Description: "retrieved_documents with scores"},
	}
}

// Execute выполняет поиск.
func (s *SearchDocuments) Execute(ctx context.Context, args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: want [query, collection, topK], got %d args", ErrInvalidArgs, len(args))
	}

	query, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: query must be a string, got %T", ErrInvalidArgs, args[0])
	}
	collection, ok := args[1].(string)
	if !ok || collection == "" {
		return nil, fmt.Errorf("%w: collection must be a non-empty string", ErrInvalidArgs)
	}

	topK := 10
	if len(args) >= 3 {
		if k, ok := intArg(args[2]); ok && k > 0 {
			topK = k
		}
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored, err := s.store.Search(ctx, collection, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", collection, err)
	}

	retrieved := make([]any, 0, len(scored))
	for _, point := range scored {
		record := map[string]any{
			"id":    point.ID,
			"score": point.Score,
		}
		if point.Payload != nil {
			record["text"] = point.Payload["text"]
			record["document_id"] = point.Payload["document_id"]
		}
		retrieved = append(retrieved, record)
	}

	s.log.Debug("search finished",
		slog.String("collection", collection),
		slog.Int("results", len(retrieved)),
	)
	return map[string]any{
		"query":               query,
		"collection":          collection,
		"retrieved_documents": retrieved,
		"count":               len(retrieved),
	}, nil
}

// intArg читает целочисленный аргумент из любой числовой формы,
// в которой он мог приехать из JSON.
func intArg(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
