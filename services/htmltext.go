package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"queryrouter/models"
)

// Extraction thresholds
const (
	// minRegionChars is the shortest primary region accepted before falling
	// back to <body>. Shorter regions are usually empty layout shells.
	minRegionChars = 200
)

// nonContentTags are removed with their whole subtree before extraction.
var nonContentTags = []string{
	"script", "style", "nav", "footer", "header", "aside", "noscript", "iframe",
}

var (
	subtreePatterns = compileSubtreePatterns(nonContentTags)
	commentPattern  = regexp.MustCompile(`(?s)<!--.*?-->`)
	tagPattern      = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRunPattern = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	bodyOpenPattern = regexp.MustCompile(`(?i)<body\b[^>]*>`)
	bodyClosePrefix = "</body"
)

// entityReplacer decodes the fixed entity table in a single pass, so
// "&amp;lt;" becomes "&lt;" rather than "<".
var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
	"&#x27;", "'",
	"&#x2F;", "/",
	"&#x2f;", "/",
	"&mdash;", "—",
	"&ndash;", "–",
	"&hellip;", "…",
)

func compileSubtreePatterns(tags []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(tags))
	for _, tag := range tags {
		patterns = append(patterns, regexp.MustCompile(`(?is)<`+tag+`\b[^>]*>.*?</`+tag+`\s*>`))
	}
	return patterns
}

// regionStrategy isolates a candidate content region from a document that has
// already had its non-content subtrees removed. ok is false when the strategy
// does not apply or its text is too thin to trust.
type regionStrategy struct {
	name     string
	minChars int
	region   func(doc string) (string, bool)
}

// contentStrategies are tried in order; the first region whose text reaches
// the strategy's minimum wins.
var contentStrategies = []regionStrategy{
	{name: "article", minChars: minRegionChars, region: elementRegion("article")},
	{name: "main", minChars: minRegionChars, region: elementRegion("main")},
	{name: "body", minChars: 1, region: bodyRegion},
	{name: "document", minChars: 0, region: func(doc string) (string, bool) { return doc, true }},
}

func elementRegion(tag string) func(string) (string, bool) {
	pattern := regexp.MustCompile(`(?is)<` + tag + `\b[^>]*>(.*?)</` + tag + `\s*>`)
	return func(doc string) (string, bool) {
		match := pattern.FindStringSubmatch(doc)
		if match == nil {
			return "", false
		}
		return match[1], true
	}
}

// bodyRegion returns everything after the opening <body> tag, up to the last
// closing tag when one exists. Truncated documents without </body> keep the tail.
func bodyRegion(doc string) (string, bool) {
	loc := bodyOpenPattern.FindStringIndex(doc)
	if loc == nil {
		return "", false
	}
	inner := doc[loc[1]:]
	if end := strings.LastIndex(strings.ToLower(inner), bodyClosePrefix); end >= 0 {
		inner = inner[:end]
	}
	return inner, true
}

// ExtractContent turns an HTML document into plain readable text. It never
// fails; malformed input at worst yields an empty string.
func ExtractContent(html string) string {
	doc := RemoveNonContent(html)
	for _, strategy := range contentStrategies {
		region, ok := strategy.region(doc)
		if !ok {
			continue
		}
		text := HTMLToText(region)
		if utf8.RuneCountInString(text) >= strategy.minChars {
			return text
		}
	}
	return ""
}

// RemoveNonContent replaces comments and script, style, navigation and
// similar subtrees with a single space.
func RemoveNonContent(html string) string {
	html = commentPattern.ReplaceAllString(html, " ")
	for _, pattern := range subtreePatterns {
		html = pattern.ReplaceAllString(html, " ")
	}
	return html
}

// HTMLToText strips tags, decodes entities and normalizes whitespace to one
// trimmed line per non-empty source line.
func HTMLToText(fragment string) string {
	return NormalizeWhitespace(DecodeEntities(StripTags(fragment)))
}

// StripTags replaces every <...> span with a space.
func StripTags(fragment string) string {
	return tagPattern.ReplaceAllString(fragment, " ")
}

// DecodeEntities decodes the common HTML entities.
func DecodeEntities(text string) string {
	return entityReplacer.Replace(text)
}

// NormalizeWhitespace trims every line, collapses inner runs of blanks, drops
// empty lines and rejoins with single newlines.
func NormalizeWhitespace(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(spaceRunPattern.ReplaceAllString(strings.ReplaceAll(line, "\r", " "), " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// InlineText flattens a fragment into a single line of text. Titles and
// snippets use this.
func InlineText(fragment string) string {
	return strings.Join(strings.Fields(DecodeEntities(StripTags(fragment))), " ")
}

// TruncateRunes cuts s to at most max characters without splitting a rune.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return strings.TrimSpace(s[:i])
		}
		count++
	}
	return s
}

// TruncateContent applies the RetrievedSource content cap.
func TruncateContent(s string) string {
	return TruncateRunes(s, models.MaxContentChars)
}
