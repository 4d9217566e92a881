package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"pulse/internal/store"
)

// fakeEmbedder returns a deterministic vector derived from the text length.
type fakeEmbedder struct {
	calls   atomic.Int64
	failOn  string
	failErr error
}

func (f *fakeEmbedder) Model() string { return "fake-model" }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls.Add(1)
	if f.failOn != "" && text == f.failOn {
		return nil, f.failErr
	}
	return []float64{float64(len(text)), 1}, nil
}

func TestEmbedBatchOrder(t *testing.T) {
	texts := make([]string, 50)
	for i := range texts {
		texts[i] = fmt.Sprintf("%0*d", i+1, 0) // lengths 1..50
	}

	embedder := &fakeEmbedder{}
	results, err := EmbedBatch(context.Background(), embedder, texts, 8)
	if err != nil {
		t.Fatalf("EmbedBatch() error: %v", err)
	}
	if len(results) != len(texts) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(texts))
	}
	for i, vec := range results {
		if int(vec[0]) != len(texts[i]) {
			t.Errorf("results[%d][0] = %g, want %d", i, vec[0], len(texts[i]))
		}
	}
}

func TestEmbedBatchEmpty(t *testing.T) {
	results, err := EmbedBatch(context.Background(), &fakeEmbedder{}, nil, 4)
	if err != nil || results != nil {
		t.Errorf("got %v, %v; want nil, nil", results, err)
	}
}

func TestEmbedBatchFailureIsUnavailable(t *testing.T) {
	cause := errors.New("model down")
	embedder := &fakeEmbedder{failOn: "bad", failErr: cause}

	texts := []string{"ok-1", "bad", "ok-2", "ok-3"}
	_, err := EmbedBatch(context.Background(), embedder, texts, 2)
	if err == nil {
		t.Fatal("expected error")
	}

	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error %T is not UnavailableError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("UnavailableError should wrap the cause")
	}
}

func TestEmbedBatchSingleWorker(t *testing.T) {
	embedder := &fakeEmbedder{}
	results, err := EmbedBatch(context.Background(), embedder, []string{"a", "bb"}, 0)
	if err != nil {
		t.Fatalf("EmbedBatch() error: %v", err)
	}
	if results[0][0] != 1 || results[1][0] != 2 {
		t.Errorf("results = %v", results)
	}
}

func TestCachedEmbedderHitsSkipModel(t *testing.T) {
	cache, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	embedder := &fakeEmbedder{}
	cached := NewCached(embedder, cache)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	second, err := cached.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("second Embed() error: %v", err)
	}

	if embedder.calls.Load() != 1 {
		t.Errorf("model calls = %d, want 1 (second should hit cache)", embedder.calls.Load())
	}
	if first[0] != second[0] || first[1] != second[1] {
		t.Errorf("cache returned different vector: %v vs %v", first, second)
	}
}

func TestCachedEmbedderPropagatesFailure(t *testing.T) {
	cache, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	cause := errors.New("quota exceeded")
	cached := NewCached(&fakeEmbedder{failOn: "x", failErr: cause}, cache)

	if _, err := cached.Embed(context.Background(), "x"); !errors.Is(err, cause) {
		t.Errorf("err = %v, want wrapped %v", err, cause)
	}
}

func TestClipRunesKeepsMultiByteCharactersWhole(t *testing.T) {
	long := strings.Repeat("héllo wörld ", 900) // well past the input cap
	clipped := clipRunes(long, maxEmbedChars)

	if got := len([]rune(clipped)); got != maxEmbedChars {
		t.Errorf("clipped to %d runes, want %d", got, maxEmbedChars)
	}
	if !utf8.ValidString(clipped) {
		t.Error("clipping split a multi-byte character")
	}
	if short := "short"; clipRunes(short, maxEmbedChars) != short {
		t.Error("text under the cap must pass through unchanged")
	}
}
