package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

// --- ChunkDocuments Tests ---

func TestChunkDocuments_ParagraphsBecomeChunks(t *testing.T) {
	chunker := NewChunkDocuments(slog.Default())

	doc := map[string]any{
		"id":   "doc1",
		"text": "Paragraph one.\n\nParagraph two.",
	}

	result, err := chunker.Execute(context.Background(), []any{doc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks, ok := result.([]any)
	if !ok {
		t.Fatalf("result must be a list, got %T", result)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	wantTexts := []string{"Paragraph one.", "Paragraph two."}
	for i, raw := range chunks {
		chunk, ok := raw.(map[string]any)
		if !ok {
			t.Fatalf("chunk %d must be an object, got %T", i, raw)
		}
		if chunk["document_id"] != "doc1" {
			t.Errorf("chunk %d: document_id = %v, want doc1", i, chunk["document_id"])
		}
		wantID := fmt.Sprintf("doc1:%d", i)
		if chunk["chunk_id"] != wantID {
			t.Errorf("chunk %d: chunk_id = %v, want %s", i, chunk["chunk_id"], wantID)
		}
		if chunk["index"] != i {
			t.Errorf("chunk %d: index = %v, want %d", i, chunk["index"], i)
		}
		if chunk["text"] != wantTexts[i] {
			t.Errorf("chunk %d: text = %v, want %q", i, chunk["text"], wantTexts[i])
		}
	}
}

func TestChunkDocuments_LongParagraphSplitBySentences(t *testing.T) {
	chunker := NewChunkDocuments(slog.Default())

	// Один абзац из 12 предложений, заведомо длиннее maxChunkChars
	sentence := strings.Repeat("x", 100) + ". "
	text := strings.TrimSpace(strings.Repeat(sentence, 12))

	result, err := chunker.Execute(context.Background(), []any{
		map[string]any{"id": "long", "text": text},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks := result.([]any)
	// 12 предложений по 5 на фрагмент → 3 фрагмента
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	first := chunks[0].(map[string]any)["text"].(string)
	if got := strings.Count(first, "."); got != 5 {
		t.Errorf("first chunk has %d sentences, want 5", got)
	}
	last := chunks[2].(map[string]any)["text"].(string)
	if got := strings.Count(last, "."); got != 2 {
		t.Errorf("last chunk has %d sentences, want 2", got)
	}
}

func TestChunkDocuments_MultipleDocuments(t *testing.T) {
	chunker := NewChunkDocuments(slog.Default())

	result, err := chunker.Execute(context.Background(), []any{
		map[string]any{"id": "a", "text": "One.\n\nTwo."},
		map[string]any{"id": "b", "text": "Three."},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks := result.([]any)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks total, got %d", len(chunks))
	}

	// Индексация per-document: первый фрагмент b снова с index 0
	third := chunks[2].(map[string]any)
	if third["document_id"] != "b" || third["chunk_id"] != "b:0" {
		t.Errorf("chunk 2: got document_id=%v chunk_id=%v, want b/b:0", third["document_id"], third["chunk_id"])
	}
}

func TestChunkDocuments_AcceptedArgShapes(t *testing.T) {
	chunker := NewChunkDocuments(slog.Default())

	t.Run("bare string gets generated id", func(t *testing.T) {
		result, err := chunker.Execute(context.Background(), []any{"Plain text."})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		chunks := result.([]any)
		if len(chunks) != 1 {
			t.Fatalf("expected 1 chunk, got %d", len(chunks))
		}
		chunk := chunks[0].(map[string]any)
		if chunk["document_id"] == "" {
			t.Error("document_id must be generated for a bare string")
		}
	})

	t.Run("content as text synonym", func(t *testing.T) {
		result, err := chunker.Execute(context.Background(), []any{
			map[string]any{"id": "c", "content": "Body."},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		chunk := result.([]any)[0].(map[string]any)
		if chunk["text"] != "Body." {
			t.Errorf("text = %v, want Body.", chunk["text"])
		}
	})

	t.Run("record without text fails", func(t *testing.T) {
		_, err := chunker.Execute(context.Background(), []any{
			map[string]any{"id": "broken"},
		})
		if !errors.Is(err, ErrInvalidArgs) {
			t.Errorf("expected ErrInvalidArgs, got %v", err)
		}
	})

	t.Run("unexpected type fails", func(t *testing.T) {
		_, err := chunker.Execute(context.Background(), []any{42})
		if !errors.Is(err, ErrInvalidArgs) {
			t.Errorf("expected ErrInvalidArgs, got %v", err)
		}
	})
}

func TestChunkDocuments_EmptyInput(t *testing.T) {
	chunker := NewChunkDocuments(slog.Default())

	result, err := chunker.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks := result.([]any); len(chunks) != 0 {
		t.Errorf("expected empty chunk list, got %v", chunks)
	}
}

func TestChunkDocuments_CancelledContext(t *testing.T) {
	chunker := NewChunkDocuments(slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chunker.Execute(ctx, []any{map[string]any{"id": "x", "text": "t"}})
	if !errors.Is(err, ErrActivityCancelled) {
		t.Errorf("expected ErrActivityCancelled, got %v", err)
	}
}
