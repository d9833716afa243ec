package locate

import (
	"regexp"
	"strings"
	"time"
)

// Date patterns seen on US municipal listings, most specific first.
var datePatterns = []struct {
	re      *regexp.Regexp
	layouts []string
}{
	{
		re:      regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`),
		layouts: []string{"January 2, 2006", "January 2 2006"},
	},
	{
		re:      regexp.MustCompile(`(?i)\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`),
		layouts: []string{"Jan 2, 2006", "Jan 2 2006"},
	},
	{
		re:      regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}`),
		layouts: []string{"2006-01-02"},
	},
	{
		re:      regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
		layouts: []string{"1/2/2006"},
	},
	{
		re:      regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{4}\b`),
		layouts: []string{"1-2-2006"},
	},
}

var ordinalRe = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)

// ParseDate finds the first recognizable calendar date in s.
func ParseDate(s string) (time.Time, bool) {
	for _, p := range datePatterns {
		m := p.re.FindString(s)
		if m == "" {
			continue
		}
		m = ordinalRe.ReplaceAllString(m, "$1")
		m = strings.Join(strings.Fields(strings.ReplaceAll(m, ".", "")), " ")
		m = titleMonth(m)
		if strings.HasPrefix(m, "Sept ") {
			m = "Sep " + strings.TrimPrefix(m, "Sept ")
		}
		for _, layout := range p.layouts {
			if t, err := time.Parse(layout, m); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// titleMonth normalizes "MARCH 4, 2025" and "march 4, 2025" to "March 4, 2025".
func titleMonth(s string) string {
	if s == "" || s[0] < 'A' || (s[0] > 'Z' && s[0] < 'a') || s[0] > 'z' {
		return s
	}
	end := strings.IndexByte(s, ' ')
	if end < 0 {
		return s
	}
	word := strings.ToLower(s[:end])
	return strings.ToUpper(word[:1]) + word[1:] + s[end:]
}
