package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"queryrouter/models"
)

// DefaultAnswerTimeout bounds answer generation on the conversational path.
const DefaultAnswerTimeout = 60 * time.Second

const answerSystemPrompt = `You are a helpful assistant. When web sources are provided, ground your answer in them and cite them as [Source N]. If they do not answer the question, say so.`

// Assistant routes a query to search or to the conversational path and
// assembles the grounding context for it.
type Assistant struct {
	classifier    *IntentClassifier
	retrieval     *RetrievalService
	ranker        *SourceRanker
	llm           *LLMService
	model         *models.ModelConfig
	answerTimeout time.Duration
	startTime     time.Time
	logger        zerolog.Logger
}

// AssistantConfig wires the assistant's collaborators. Model may be nil, in
// which case classification is heuristic and no answer is generated.
type AssistantConfig struct {
	Classifier    *IntentClassifier
	Retrieval     *RetrievalService
	Ranker        *SourceRanker
	LLM           *LLMService
	Model         *models.ModelConfig
	AnswerTimeout time.Duration
}

// NewAssistant creates a new assistant instance
func NewAssistant(cfg AssistantConfig, logger zerolog.Logger) *Assistant {
	if cfg.AnswerTimeout <= 0 {
		cfg.AnswerTimeout = DefaultAnswerTimeout
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewIntentClassifier(nil, cfg.LLM, logger)
	}
	if cfg.Retrieval == nil {
		cfg.Retrieval = NewRetrievalService(nil, RetrievalConfig{}, logger)
	}

	a := &Assistant{
		classifier:    cfg.Classifier,
		retrieval:     cfg.Retrieval,
		ranker:        cfg.Ranker,
		llm:           cfg.LLM,
		model:         cfg.Model,
		answerTimeout: cfg.AnswerTimeout,
		startTime:     time.Now(),
		logger:        logger.With().Str("component", "assistant").Logger(),
	}
	a.logger.Info().
		Bool("model", a.model.Usable()).
		Bool("ranking", a.ranker.Enabled()).
		Msg("assistant initialized")
	return a
}

// Classifier exposes the classifier used for routing.
func (a *Assistant) Classifier() *IntentClassifier { return a.classifier }

// Retrieval exposes the retrieval service used for grounding.
func (a *Assistant) Retrieval() *RetrievalService { return a.retrieval }

// Model returns the configured model endpoint, or nil.
func (a *Assistant) Model() *models.ModelConfig { return a.model }

// Ask classifies the query and runs the matching path. Retrieval errors on the
// search path are returned; on the conversational path they become warnings.
func (a *Assistant) Ask(ctx context.Context, req models.AskRequest) (models.AskResponse, error) {
	start := time.Now()
	query := strings.TrimSpace(req.Query)

	resp := models.AskResponse{
		BaseResponse: models.NewBaseResponse(req.RequestID),
		Query:        query,
	}
	resp.Intent, _ = a.classifier.ClassifyWithSource(ctx, query, a.model)

	var err error
	if resp.Intent == models.IntentSearch {
		err = a.search(ctx, query, req.MaxResults, &resp)
	} else {
		a.converse(ctx, query, req, &resp)
	}

	resp.Duration = time.Since(start).String()
	a.logger.Info().
		Str("request_id", req.RequestID).
		Str("intent", string(resp.Intent)).
		Int("sources", len(resp.Sources)).
		Bool("answered", resp.Answer != "").
		Dur("took", time.Since(start)).
		Msg("ask handled")
	return resp, err
}

func (a *Assistant) search(ctx context.Context, query string, maxResults int, resp *models.AskResponse) error {
	sources, err := a.retrieval.SearchAndFetch(ctx, query, maxResults)
	if err != nil {
		return err
	}
	resp.Sources = sources
	resp.Context = FormatSourcesAsContext(sources)
	return nil
}

func (a *Assistant) converse(ctx context.Context, query string, req models.AskRequest, resp *models.AskResponse) {
	var sources []models.RetrievedSource
	if urls := ExtractURLs(query); len(urls) > 0 {
		sources = a.retrieval.FetchURLs(ctx, urls)
		if len(sources) < len(urls) {
			resp.Warnings = append(resp.Warnings, "some linked pages could not be fetched")
		}
	} else if req.Ground {
		grounded, err := a.retrieval.SearchAndFetch(ctx, query, req.MaxResults)
		if err != nil {
			a.logger.Warn().Err(err).Str("query", query).Msg("grounding search failed")
			resp.Warnings = append(resp.Warnings, "web grounding failed: "+err.Error())
		}
		sources = grounded
	}

	sources = a.ranker.Rank(ctx, query, sources)
	resp.Sources = sources
	resp.Context = FormatSourcesAsContext(sources)

	if !a.model.Usable() || a.llm == nil {
		return
	}
	genCtx, cancel := context.WithTimeout(ctx, a.answerTimeout)
	defer cancel()
	answer, err := a.llm.Generate(genCtx, *a.model, GenerateRequest{
		System: answerSystemPrompt,
		Prompt: BuildAnswerPrompt(query, resp.Context),
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("model", a.model.Model).Msg("answer generation failed")
		resp.Warnings = append(resp.Warnings, "answer generation failed")
		return
	}
	resp.Answer = strings.TrimSpace(answer)
}

// Status summarizes the assistant for health reporting.
func (a *Assistant) Status(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"uptime":  time.Since(a.startTime).String(),
		"ranking": a.ranker.Enabled(),
	}
	if !a.model.Usable() || a.llm == nil {
		status["model"] = map[string]interface{}{"configured": false}
		return status
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultClassifyTimeout)
	defer cancel()
	status["model"] = map[string]interface{}{
		"configured": true,
		"base_url":   a.model.BaseURL,
		"model":      a.model.Model,
		"available":  a.llm.IsAvailable(ctx, *a.model),
	}
	return status
}
