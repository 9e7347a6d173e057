package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the curated word and phrase tables behind the heuristic
// classifier. The tables are tuning data; replacing them never changes the
// order of the rule cascade.
type Lexicon struct {
	TLDs                []string `yaml:"tlds"`
	KnownSites          []string `yaml:"known_sites"`
	CommandVerbs        []string `yaml:"command_verbs"`
	ConversationPhrases []string `yaml:"conversation_phrases"`
	QuestionStarters    []string `yaml:"question_starters"`
	FactualPhrases      []string `yaml:"factual_phrases"`
	AmbiguousTopics     []string `yaml:"ambiguous_topics"`
}

// DefaultLexicon returns the built-in tables.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		TLDs: []string{
			"com", "org", "net", "edu", "gov", "mil", "int", "io", "dev", "ai", "app", "co",
			"me", "tv", "info", "biz", "xyz", "ly", "gg", "so", "sh", "to", "fm", "cc", "site",
			"online", "tech", "blog", "news", "shop", "store", "cloud", "page", "wiki",
			"us", "uk", "ca", "au", "de", "fr", "es", "it", "nl", "se", "no", "fi", "dk",
			"ch", "at", "be", "pl", "cz", "ru", "ua", "jp", "cn", "kr", "in", "br", "mx",
			"ar", "nz", "ie", "pt", "gr", "tr", "il", "za", "sg", "hk", "tw", "eu",
		},
		KnownSites: []string{
			"google", "gmail", "youtube", "facebook", "instagram", "twitter", "x", "tiktok",
			"reddit", "linkedin", "pinterest", "tumblr", "snapchat", "whatsapp", "telegram",
			"discord", "slack", "zoom", "teams", "notion", "trello", "asana", "figma",
			"github", "gitlab", "bitbucket", "stackoverflow", "wikipedia", "amazon", "ebay",
			"etsy", "walmart", "target", "netflix", "hulu", "spotify", "twitch", "disney+",
			"imdb", "yelp", "craigslist", "paypal", "dropbox", "outlook", "hotmail", "yahoo",
			"bing", "duckduckgo", "medium", "substack", "quora", "airbnb", "uber", "maps",
			"google maps", "google docs", "google drive", "google sheets", "google calendar",
			"google translate", "amazon prime", "prime video", "youtube music", "apple music",
			"hacker news", "product hunt", "stack overflow", "office 365", "microsoft teams",
		},
		CommandVerbs: []string{
			"explain", "write", "summarize", "summarise", "compare", "help", "debug", "fix",
			"create", "generate", "draft", "rewrite", "translate", "analyze", "analyse",
			"describe", "list", "suggest", "recommend", "brainstorm", "outline", "plan",
			"design", "review", "refactor", "convert", "calculate", "solve", "teach", "tell",
			"give", "make", "improve", "edit", "proofread", "paraphrase", "simplify",
			"elaborate", "evaluate", "critique", "compose", "imagine", "pretend", "act",
			"implement", "optimize", "code",
		},
		ConversationPhrases: []string{
			"how do i", "how can i", "how should i", "how would i", "help me", "can you",
			"could you", "would you", "please", "i want to", "i need to", "i need help",
			"what's the difference", "what is the difference", "difference between",
			"pros and cons", "step by step", "in simple terms", "eli5", "walk me through",
			"tell me about", "what do you think", "is it better", "should i", "why does",
			"why do", "what if", "in your opinion", "for example", "versus", "vs",
		},
		QuestionStarters: []string{
			"what", "why", "how", "when", "where", "who", "whom", "whose", "which",
			"is", "are", "can", "could", "should", "would", "will", "do", "does", "did",
		},
		FactualPhrases: []string{
			"near me", "nearby", "price of", "prices", "weather in", "weather", "forecast",
			"hours of", "opening hours", "open now", "stock price", "score", "scores",
			"tickets", "showtimes", "directions to", "flights to", "hotels in", "menu",
			"phone number", "address of", "login", "log in", "sign in", "download",
			"coupon", "deals", "buy", "for sale", "exchange rate", "time in", "population of",
			"lyrics", "trailer", "reviews", "release date", "news",
		},
		AmbiguousTopics: []string{
			"python", "javascript", "typescript", "java", "rust", "golang", "go", "c++",
			"ruby", "swift", "kotlin", "haskell", "scala", "sql", "react", "docker",
			"kubernetes", "linux", "machine learning", "ai", "blockchain", "bitcoin",
			"crypto", "quantum computing", "meditation", "yoga", "mindfulness", "sleep",
			"anxiety", "depression", "stress", "nutrition", "diet", "keto", "fasting",
			"vitamin", "protein", "exercise", "workout", "running", "fitness", "calories",
			"therapy", "climate change", "history", "philosophy", "economics", "stoicism",
		},
	}
}

// LoadLexicon reads a YAML lexicon and lays it over the defaults: every
// non-empty list in the file replaces the built-in one.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon %s: %w", path, err)
	}
	var overlay Lexicon
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon %s: %w", path, err)
	}
	return DefaultLexicon().Merge(&overlay), nil
}

// Merge returns a copy of l with every non-empty list of overlay replacing
// its counterpart.
func (l *Lexicon) Merge(overlay *Lexicon) *Lexicon {
	out := *l
	if overlay == nil {
		return &out
	}
	pick := func(base, over []string) []string {
		if len(over) > 0 {
			return over
		}
		return base
	}
	out.TLDs = pick(l.TLDs, overlay.TLDs)
	out.KnownSites = pick(l.KnownSites, overlay.KnownSites)
	out.CommandVerbs = pick(l.CommandVerbs, overlay.CommandVerbs)
	out.ConversationPhrases = pick(l.ConversationPhrases, overlay.ConversationPhrases)
	out.QuestionStarters = pick(l.QuestionStarters, overlay.QuestionStarters)
	out.FactualPhrases = pick(l.FactualPhrases, overlay.FactualPhrases)
	out.AmbiguousTopics = pick(l.AmbiguousTopics, overlay.AmbiguousTopics)
	return &out
}

// lexiconIndex is the lookup form of a Lexicon.
type lexiconIndex struct {
	tlds                map[string]bool
	knownSites          map[string]bool
	commandVerbs        map[string]bool
	questionStarters    map[string]bool
	ambiguousTopics     map[string]bool
	conversationPhrases []string
	factualPhrases      []string
}

func (l *Lexicon) index() *lexiconIndex {
	return &lexiconIndex{
		tlds:                toSet(l.TLDs),
		knownSites:          toSet(l.KnownSites),
		commandVerbs:        toSet(l.CommandVerbs),
		questionStarters:    toSet(l.QuestionStarters),
		ambiguousTopics:     toSet(l.AmbiguousTopics),
		conversationPhrases: normalizeList(l.ConversationPhrases),
		factualPhrases:      normalizeList(l.FactualPhrases),
	}
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range normalizeList(words) {
		set[w] = true
	}
	return set
}

// normalizeList lowercases entries and collapses inner whitespace.
func normalizeList(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.Join(strings.Fields(strings.ToLower(w)), " "); w != "" {
			out = append(out, w)
		}
	}
	return out
}
