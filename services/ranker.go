package services

import (
	"context"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"

	"queryrouter/models"
)

// SourceRanker orders retrieved sources by semantic similarity to the query.
// Each call builds a throwaway in-memory collection; nothing is persisted.
type SourceRanker struct {
	embed  chromem.EmbeddingFunc
	logger zerolog.Logger
}

// NewSourceRanker creates a ranker over an embedding function. A nil function
// disables ranking.
func NewSourceRanker(embed chromem.EmbeddingFunc, logger zerolog.Logger) *SourceRanker {
	return &SourceRanker{
		embed:  embed,
		logger: logger.With().Str("component", "ranker").Logger(),
	}
}

// NewOllamaSourceRanker embeds with an Ollama embedding model at baseURL.
// An empty model disables ranking.
func NewOllamaSourceRanker(baseURL, model string, logger zerolog.Logger) *SourceRanker {
	if model == "" {
		return NewSourceRanker(nil, logger)
	}
	apiURL := ""
	if baseURL != "" {
		apiURL = endpoint(baseURL, "/api")
	}
	return NewSourceRanker(chromem.NewEmbeddingFuncOllama(model, apiURL), logger)
}

// Enabled reports whether an embedding function is configured.
func (s *SourceRanker) Enabled() bool {
	return s != nil && s.embed != nil
}

// Rank returns sources most-similar first. On any failure, or with fewer than
// two sources, the input order is returned unchanged.
func (s *SourceRanker) Rank(ctx context.Context, query string, sources []models.RetrievedSource) []models.RetrievedSource {
	if !s.Enabled() || len(sources) < 2 {
		return sources
	}
	ranked, err := s.rank(ctx, query, sources)
	if err != nil {
		s.logger.Warn().Err(err).Int("sources", len(sources)).Msg("ranking failed, keeping retrieval order")
		return sources
	}
	return ranked
}

func (s *SourceRanker) rank(ctx context.Context, query string, sources []models.RetrievedSource) ([]models.RetrievedSource, error) {
	db := chromem.NewDB()
	name := "sources-" + uuid.NewString()
	collection, err := db.CreateCollection(name, nil, s.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	defer db.DeleteCollection(name)

	byID := make(map[string]models.RetrievedSource, len(sources))
	docs := make([]chromem.Document, 0, len(sources))
	for i, source := range sources {
		id := fmt.Sprintf("%d", i)
		byID[id] = source
		text := source.Content
		if text == "" {
			text = source.Title
		}
		docs = append(docs, chromem.Document{
			ID:       id,
			Content:  text,
			Metadata: map[string]string{"url": source.SourceURL},
		})
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to embed sources: %w", err)
	}

	results, err := collection.Query(ctx, query, len(docs), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}

	ranked := make([]models.RetrievedSource, 0, len(results))
	for _, result := range results {
		if source, ok := byID[result.ID]; ok {
			ranked = append(ranked, source)
		}
	}
	return ranked, nil
}
