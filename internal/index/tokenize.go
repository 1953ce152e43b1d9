package index

import "regexp"

var wordPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9]*`)

var codeBlock = regexp.MustCompile("(?s)```.*?```")
var inlineCode = regexp.MustCompile("`[^`]+`")
var mdLink = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
var wikiLink = regexp.MustCompile(`\[\[([^\]|]+)(?:\|[^\]]+)?\]\]`)
var heading = regexp.MustCompile(`(?m)^#+\s+`)
var emphasis = regexp.MustCompile(`[*_]{1,2}([^*_]+)[*_]{1,2}`)

// stripMarkup removes code fences, inline code, link syntax (keeping link
// text), heading markers, and emphasis markers from markdown body text,
// ported from brain_index.py's _extract_text.
func stripMarkup(body string) string {
	s := codeBlock.ReplaceAllString(body, "")
	s = inlineCode.ReplaceAllString(s, "")
	s = mdLink.ReplaceAllString(s, "$1")
	s = wikiLink.ReplaceAllString(s, "$1")
	s = heading.ReplaceAllString(s, "")
	s = emphasis.ReplaceAllString(s, "$1")
	return s
}

// defaultStopwords is the brain tools' built-in stopword list (union of
// brain_index.py's and brain_search.py's lists), overridable via
// config.IndexConfig.ExtraStopwords per SPEC_FULL.md open question #1.
var defaultStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "must": true, "shall": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "it": true, "its": true,
	"they": true, "them": true, "their": true, "we": true, "our": true,
	"you": true, "your": true, "he": true, "she": true, "his": true, "her": true,
	"i": true, "my": true, "me": true, "not": true, "no": true, "yes": true,
	"all": true, "any": true, "some": true, "each": true, "every": true,
	"both": true, "few": true, "more": true, "most": true, "other": true,
	"such": true, "only": true, "own": true, "same": true, "so": true,
	"than": true, "too": true, "very": true, "just": true, "also": true,
	"now": true, "here": true, "there": true, "when": true, "where": true,
	"why": true, "how": true, "what": true, "which": true, "who": true,
	"whom": true, "whose": true,
}

// Tokenizer extracts, stems, and filters tokens from text using a
// stopword set built from the defaults plus any configured extras.
type Tokenizer struct {
	stopwords map[string]bool
}

// NewTokenizer builds a Tokenizer with extra stopwords layered onto the
// built-in set.
func NewTokenizer(extraStopwords []string) *Tokenizer {
	sw := make(map[string]bool, len(defaultStopwords)+len(extraStopwords))
	for w := range defaultStopwords {
		sw[w] = true
	}
	for _, w := range extraStopwords {
		sw[w] = true
	}
	return &Tokenizer{stopwords: sw}
}

// TokenizeContent extracts the unique stemmed token set from markdown
// body content, for indexing (minimum token length 3, pre-stem).
func (t *Tokenizer) TokenizeContent(body string) map[string]bool {
	return t.tokenize(stripMarkup(body), 3)
}

// TokenizeQuery extracts the ordered stemmed token list from a search
// query (minimum token length 2, pre-stem), preserving duplicates so
// callers can compute query-term coverage.
func (t *Tokenizer) TokenizeQuery(query string) []string {
	words := wordPattern.FindAllString(toLower(query), -1)
	var out []string
	for _, w := range words {
		if t.stopwords[w] || len(w) < 2 {
			continue
		}
		s := stem(w)
		if len(s) >= 2 {
			out = append(out, s)
		}
	}
	return out
}

func (t *Tokenizer) tokenize(text string, minLen int) map[string]bool {
	words := wordPattern.FindAllString(toLower(text), -1)
	out := map[string]bool{}
	for _, w := range words {
		if t.stopwords[w] || len(w) < minLen {
			continue
		}
		s := stem(w)
		if len(s) >= 2 {
			out[s] = true
		}
	}
	return out
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
