package embedding

import (
	"context"
	"math"
	"testing"
)

// --- Hashing Tests ---

func TestHashing_Deterministic(t *testing.T) {
	embedder := NewHashing(64)

	a, err := embedder.Embed(context.Background(), "machine learning basics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := embedder.Embed(context.Background(), "machine learning basics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a) != 64 {
		t.Fatalf("dimension = %d, want 64", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestHashing_Normalized(t *testing.T) {
	embedder := NewHashing(0) // default dimension

	vector, err := embedder.Embed(context.Background(), "one two three four")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var norm float64
	for _, v := range vector {
		norm += v * v
	}
	if diff := math.Sqrt(norm) - 1; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("vector norm = %v, want 1", math.Sqrt(norm))
	}
}

func TestHashing_CaseAndPunctuationInsensitive(t *testing.T) {
	embedder := NewHashing(64)

	a, _ := embedder.Embed(context.Background(), "Machine Learning!")
	b, _ := embedder.Embed(context.Background(), "machine, learning")

	for i := range a {
		if a[i] != b[i] {
			t.Fatal("tokenization must ignore case and punctuation")
		}
	}
}

func TestHashing_EmptyText(t *testing.T) {
	embedder := NewHashing(16)

	vector, err := embedder.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, v := range vector {
		if v != 0 {
			t.Fatal("empty text must give a zero vector")
		}
	}
}

func TestHashing_DefaultDimension(t *testing.T) {
	if got := NewHashing(0).Dimension(); got != 256 {
		t.Errorf("Dimension = %d, want 256", got)
	}
	if got := NewHashing(-5).Dimension(); got != 256 {
		t.Errorf("Dimension = %d, want 256", got)
	}
}
