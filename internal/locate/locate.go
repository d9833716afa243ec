package locate

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hyperifyio/minutewatch/internal/fetch"
)

// ErrOrigin marks a failure to reach the listing origin at all. It is fatal
// for the invocation, unlike per-day or per-item errors which are swallowed.
var ErrOrigin = errors.New("listing origin unavailable")

// LinkKind tells the resolver how a raw link must be retrieved.
type LinkKind int

const (
	// DirectBinary links point at the document itself.
	DirectBinary LinkKind = iota
	// GatedShare links point at a cloud-storage share page.
	GatedShare
)

func (k LinkKind) String() string {
	switch k {
	case GatedShare:
		return "gated"
	default:
		return "direct"
	}
}

// CandidateLink is one discovered minutes document.
type CandidateLink struct {
	// SourceDate is a calendar date at midnight UTC.
	SourceDate time.Time
	RawURL     string
	Kind       LinkKind
}

// DateString formats SourceDate as YYYY-MM-DD.
func (c CandidateLink) DateString() string {
	return c.SourceDate.Format(time.DateOnly)
}

// Source discovers candidate documents relative to now.
type Source interface {
	Locate(ctx context.Context, now time.Time) ([]CandidateLink, error)
	Name() string
}

var shareHosts = map[string]struct{}{
	"drive.google.com": {},
	"docs.google.com":  {},
}

// Classify reports GatedShare for cloud-storage share URLs and DirectBinary
// for everything else.
func Classify(raw string) LinkKind {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return DirectBinary
	}
	if _, ok := shareHosts[strings.ToLower(u.Hostname())]; ok {
		return GatedShare
	}
	return DirectBinary
}

var pathIDRe = regexp.MustCompile(`/d/([A-Za-z0-9_-]+)`)

// ShareFileID extracts the storage file identifier from a share URL using
// either the /d/<id>/ path segment or the id=<id> query parameter.
func ShareFileID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if m := pathIDRe.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	if id := strings.TrimSpace(u.Query().Get("id")); id != "" {
		return id, true
	}
	return "", false
}

// calendarDate truncates t to midnight UTC of its calendar day.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// finalize applies the window, de-duplicates by canonical URL, sorts newest
// first and caps the result.
func finalize(links []CandidateLink, now time.Time, lookback time.Duration, maxCount int) []CandidateLink {
	today := calendarDate(now)
	var oldest time.Time
	if lookback > 0 {
		oldest = calendarDate(now.Add(-lookback))
	}
	seen := map[string]struct{}{}
	out := make([]CandidateLink, 0, len(links))
	for _, l := range links {
		d := calendarDate(l.SourceDate)
		if d.After(today) {
			continue
		}
		if !oldest.IsZero() && d.Before(oldest) {
			continue
		}
		key := Canonical(l.RawURL)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		l.SourceDate = d
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SourceDate.After(out[j].SourceDate)
	})
	if maxCount > 0 && len(out) > maxCount {
		out = out[:maxCount]
	}
	return out
}

// fetcherOrDefault returns f, or a client with two attempts and a 20s
// per-request timeout.
func fetcherOrDefault(f *fetch.Client) *fetch.Client {
	if f != nil {
		return f
	}
	return &fetch.Client{MaxAttempts: 2, PerRequestTimeout: 20 * time.Second}
}
