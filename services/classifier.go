package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"queryrouter/models"
)

// DefaultClassifyTimeout bounds the model-assisted classification call.
const DefaultClassifyTimeout = 2 * time.Second

// Word-count bands used by the cascade.
const (
	shortQueryWords    = 3
	mediumQueryWords   = 6
	longQueryWords     = 8
	maxTopicQueryWords = 2
	maxKnownSiteWords  = 2
)

const classifySystemPrompt = `You route browser queries. Decide whether the user's text is a web search (looking up a site, a fact, a place, a product) or a request for an AI assistant (explaining, writing, reasoning, advice).
Answer with exactly one word: search, ai, or ambiguous. No explanation.`

var urlPrefixes = []string{"http://", "https://", "www."}

// punctuationReplacer blanks punctuation before phrase matching.
var punctuationReplacer = strings.NewReplacer(
	",", " ", ".", " ", ";", " ", ":", " ", "!", " ", "?", " ",
	`"`, " ", "(", " ", ")", " ", "[", " ", "]", " ",
)

// IntentClassifier decides whether a query should go to search or to the
// conversational path. Classification never fails: every model-path problem
// falls back to the local heuristic.
type IntentClassifier struct {
	index   *lexiconIndex
	llm     *LLMService
	timeout time.Duration
	logger  zerolog.Logger
}

// NewIntentClassifier builds a classifier over lexicon. A nil lexicon uses the
// defaults; a nil llm restricts it to the heuristic.
func NewIntentClassifier(lexicon *Lexicon, llm *LLMService, logger zerolog.Logger) *IntentClassifier {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	return &IntentClassifier{
		index:   lexicon.index(),
		llm:     llm,
		timeout: DefaultClassifyTimeout,
		logger:  logger.With().Str("component", "classifier").Logger(),
	}
}

// SetTimeout changes the model-call budget.
func (c *IntentClassifier) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.timeout = timeout
	}
}

var (
	defaultClassifier     *IntentClassifier
	defaultClassifierOnce sync.Once
)

// ClassifyHeuristic classifies with the built-in lexicon and no network.
func ClassifyHeuristic(query string) models.QueryIntent {
	defaultClassifierOnce.Do(func() {
		defaultClassifier = NewIntentClassifier(nil, nil, zerolog.Nop())
	})
	return defaultClassifier.ClassifyHeuristic(query)
}

// Classify returns the query's intent, consulting the model when cfg names
// both an endpoint and a model.
func (c *IntentClassifier) Classify(ctx context.Context, query string, cfg *models.ModelConfig) models.QueryIntent {
	intent, _ := c.ClassifyWithSource(ctx, query, cfg)
	return intent
}

// ClassifyWithSource is Classify that also reports which procedure decided.
func (c *IntentClassifier) ClassifyWithSource(ctx context.Context, query string, cfg *models.ModelConfig) (models.QueryIntent, string) {
	if !cfg.Usable() || c.llm == nil || strings.TrimSpace(query) == "" {
		return c.ClassifyHeuristic(query), models.ClassifiedByHeuristic
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	answer, err := c.llm.Generate(ctx, *cfg, GenerateRequest{
		System:  classifySystemPrompt,
		Prompt:  query,
		Options: map[string]any{"temperature": 0, "num_predict": 4},
	})
	if err != nil {
		c.logger.Debug().Err(err).Str("model", cfg.Model).Msg("model classification failed, using heuristic")
		return c.ClassifyHeuristic(query), models.ClassifiedByHeuristic
	}
	intent, ok := parseModelIntent(answer)
	if !ok {
		c.logger.Debug().Str("model", cfg.Model).Str("answer", answer).Msg("unrecognized model answer, using heuristic")
		return c.ClassifyHeuristic(query), models.ClassifiedByHeuristic
	}
	return intent, models.ClassifiedByModel
}

// parseModelIntent matches the model's answer by prefix.
func parseModelIntent(answer string) (models.QueryIntent, bool) {
	answer = strings.ToLower(strings.TrimSpace(answer))
	switch {
	case strings.HasPrefix(answer, "search"):
		return models.IntentSearch, true
	case strings.HasPrefix(answer, "ambiguous"):
		return models.IntentAmbiguous, true
	case strings.HasPrefix(answer, "ai"):
		return models.IntentAIChat, true
	}
	return "", false
}

// ClassifyHeuristic runs the lexical rule cascade. The first matching rule
// wins; the length prior at the end makes it total.
func (c *IntentClassifier) ClassifyHeuristic(query string) models.QueryIntent {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		// Empty input is Ambiguous, not the length prior's Search.
		return models.IntentAmbiguous
	}
	q := strings.Join(words, " ")
	n := len(words)
	padded := " " + strings.Join(strings.Fields(punctuationReplacer.Replace(q)), " ") + " "
	first := leadingWord(words[0])

	for _, prefix := range urlPrefixes {
		if strings.HasPrefix(q, prefix) {
			return models.IntentSearch
		}
	}
	if n == 1 && strings.Contains(q, ".") && c.looksLikeDomain(q) {
		return models.IntentSearch
	}
	if n <= maxKnownSiteWords && c.index.knownSites[q] {
		return models.IntentSearch
	}
	if strings.Contains(q, "?") {
		return models.IntentAIChat
	}
	if c.index.commandVerbs[first] {
		return models.IntentAIChat
	}
	if containsPhrase(padded, c.index.conversationPhrases) {
		return models.IntentAIChat
	}
	if n > longQueryWords {
		return models.IntentAIChat
	}
	if n >= shortQueryWords && c.index.questionStarters[first] {
		// A question never reads as navigation, so the short band is Ambiguous too.
		if n <= mediumQueryWords {
			return models.IntentAmbiguous
		}
		return models.IntentAIChat
	}
	if containsPhrase(padded, c.index.factualPhrases) {
		return models.IntentSearch
	}
	if n <= maxTopicQueryWords && c.isAmbiguousTopic(q, words) {
		return models.IntentAmbiguous
	}

	switch {
	case n <= shortQueryWords:
		return models.IntentSearch
	case n <= mediumQueryWords:
		return models.IntentAmbiguous
	default:
		return models.IntentAIChat
	}
}

// looksLikeDomain reports whether a single token ends in a known TLD once any
// path, query or port is removed.
func (c *IntentClassifier) looksLikeDomain(token string) bool {
	host := token
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	dot := strings.LastIndex(host, ".")
	if dot <= 0 || dot == len(host)-1 {
		return false
	}
	return c.index.tlds[host[dot+1:]]
}

// isAmbiguousTopic matches the whole query, its first or last token, or a
// singular form of any of those against the topic table.
func (c *IntentClassifier) isAmbiguousTopic(q string, words []string) bool {
	candidates := []string{q, words[0], words[len(words)-1]}
	for _, candidate := range candidates {
		candidate = strings.Trim(candidate, ".,;:!")
		if c.index.ambiguousTopics[candidate] {
			return true
		}
		if singular := strings.TrimSuffix(candidate, "s"); singular != candidate && c.index.ambiguousTopics[singular] {
			return true
		}
	}
	return false
}

// leadingWord strips trailing punctuation and contractions ("what's" -> "what").
func leadingWord(word string) string {
	if i := strings.IndexAny(word, "'’"); i > 0 {
		word = word[:i]
	}
	return strings.Trim(word, ".,;:!?\"()")
}

func containsPhrase(padded string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}
	return false
}
