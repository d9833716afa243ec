package selecter

import (
    "regexp"
    "strings"
    "unicode/utf8"
)

// DefaultKeywords is the housing vocabulary used when no keywords are
// configured. Terms are matched as lowercase substrings, so short
// abbreviations that occur inside common words are left out.
var DefaultKeywords = []string{
	"housing",
	"affordable",
	"residential",
	"zoning",
	"apartment",
	"tenant",
	"landlord",
	"rental",
	"homeless",
	"dwelling",
	"eviction",
	"multifamily",
	"multi-family",
	"accessory dwelling",
}

// DefaultMaxChars bounds the excerpt when Options.MaxChars is zero.
const DefaultMaxChars = 12000

// Options configures selection constraints.
type Options struct {
	// Keywords are matched case-insensitively against each paragraph.
	// Empty means DefaultKeywords.
	Keywords []string
    // MaxChars is the total character budget across all selected
    // paragraphs, counted in runes. Zero means DefaultMaxChars.
    MaxChars int
}

// Excerpt is the ordered, keyword-filtered subset of a document's paragraphs.
type Excerpt struct {
	Paragraphs []string
}

// Text joins the paragraphs with blank lines.
func (e Excerpt) Text() string { return strings.Join(e.Paragraphs, "\n\n") }

// Len is the total number of characters across all paragraphs.
func (e Excerpt) Len() int {
	n := 0
	for _, p := range e.Paragraphs {
		n += utf8.RuneCountInString(p)
	}
	return n
}

func (e Excerpt) Empty() bool { return len(e.Paragraphs) == 0 }

var blankLine = regexp.MustCompile(`\n[ \t\f\v]*\n`)

// Paragraphs splits text on blank-line boundaries and returns the trimmed,
// non-empty paragraphs in order.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := blankLine.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Select keeps, in original order, every paragraph containing at least one
// keyword, stopping before the first paragraph that would push the total
// over the character budget. No paragraph is ever truncated.
func Select(text string, opt Options) Excerpt {
	keywords := normalizeKeywords(opt.Keywords)
	if len(keywords) == 0 {
		keywords = normalizeKeywords(DefaultKeywords)
	}
	budget := opt.MaxChars
	if budget <= 0 {
		budget = DefaultMaxChars
	}

	var out Excerpt
	total := 0
	for _, p := range Paragraphs(text) {
		if !Matches(p, keywords) {
			continue
		}
        n := utf8.RuneCountInString(p)
        if total+n > budget {
            break
        }
		total += n
		out.Paragraphs = append(out.Paragraphs, p)
	}
	return out
}

// Matches reports whether the lowercase form of paragraph contains any of
// the (already lowercase) keywords.
func Matches(paragraph string, keywords []string) bool {
	lower := strings.ToLower(paragraph)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// KeywordsFor builds a keyword set from a topic name and its synonyms,
// lowercased and de-duplicated in first-seen order.
func KeywordsFor(topic string, synonyms []string) []string {
	return normalizeKeywords(append([]string{topic}, synonyms...))
}

func normalizeKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
