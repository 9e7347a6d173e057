package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryrouter/models"
)

// keywordEmbedding maps text onto one axis per keyword.
func keywordEmbedding(_ context.Context, text string) ([]float32, error) {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "rust"):
		return []float32{0, 1, 0}, nil
	case strings.Contains(text, "python"):
		return []float32{0, 0, 1}, nil
	default:
		return []float32{1, 0, 0}, nil
	}
}

var rankSources = []models.RetrievedSource{
	{Title: "Go", SourceURL: "https://go.dev", Content: "All about Go and goroutines."},
	{Title: "Rust", SourceURL: "https://rust-lang.org", Content: "Rust ownership explained."},
	{Title: "Python", SourceURL: "https://python.org", Content: "Python typing hints."},
}

func TestSourceRanker_Rank(t *testing.T) {
	ranker := NewSourceRanker(keywordEmbedding, zerolog.Nop())
	require.True(t, ranker.Enabled())

	ranked := ranker.Rank(context.Background(), "learning rust", rankSources)

	require.Len(t, ranked, 3)
	assert.Equal(t, "https://rust-lang.org", ranked[0].SourceURL)
	assert.ElementsMatch(t, rankSources, ranked)
}

func TestSourceRanker_FallsBackToInputOrder(t *testing.T) {
	failing := func(context.Context, string) ([]float32, error) {
		return nil, errors.New("embedding endpoint down")
	}

	ranked := NewSourceRanker(failing, zerolog.Nop()).Rank(context.Background(), "rust", rankSources)

	assert.Equal(t, rankSources, ranked)
}

func TestSourceRanker_Disabled(t *testing.T) {
	var nilRanker *SourceRanker
	assert.False(t, nilRanker.Enabled())
	assert.Equal(t, rankSources, nilRanker.Rank(context.Background(), "rust", rankSources))

	disabled := NewOllamaSourceRanker("http://localhost:11434", "", zerolog.Nop())
	assert.False(t, disabled.Enabled())
	assert.Equal(t, rankSources, disabled.Rank(context.Background(), "rust", rankSources))
}

func TestSourceRanker_SingleSource(t *testing.T) {
	calls := 0
	counting := func(ctx context.Context, text string) ([]float32, error) {
		calls++
		return keywordEmbedding(ctx, text)
	}

	one := rankSources[:1]
	assert.Equal(t, one, NewSourceRanker(counting, zerolog.Nop()).Rank(context.Background(), "go", one))
	assert.Zero(t, calls)
}
