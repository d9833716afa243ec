package locate

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/minutewatch/internal/fetch"
	"github.com/hyperifyio/minutewatch/internal/markup"
)

// ListingSource scrapes a single HTML listing page for minutes documents.
type ListingSource struct {
	URL string
	// Fetcher retrieves the listing page. Nil means a default fetch.Client.
	Fetcher *fetch.Client
	// Selector picks candidate anchors. Defaults to "a[href]".
	Selector string
	// Keywords identify minutes documents in href or link text. Defaults to "minutes".
	Keywords []string
	// Lookback bounds how old a document may be. Zero disables the bound.
	Lookback time.Duration
	// MaxCount caps the number of returned links. Zero means 10.
	MaxCount int
}

func (s *ListingSource) Name() string { return "listing" }

// Locate fetches the listing page and returns dated candidate links, newest
// first. A failed fetch of the listing itself is an ErrOrigin.
func (s *ListingSource) Locate(ctx context.Context, now time.Time) ([]CandidateLink, error) {
	if strings.TrimSpace(s.URL) == "" {
		return nil, fmt.Errorf("%w: missing listing url", ErrOrigin)
	}
	body, finalURL, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrigin, err)
	}
	doc, err := markup.Parse(bytes.NewReader(body), finalURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrigin, err)
	}
	links := s.Extract(ctx, doc)
	max := s.MaxCount
	if max <= 0 {
		max = 10
	}
	out := finalize(links, now, s.Lookback, max)
	log.Ctx(ctx).Info().Int("found", len(links)).Int("kept", len(out)).Str("source", s.Name()).Msg("located documents")
	return out, nil
}

// Extract applies the anchor matching rules to an already parsed document.
// Anchors without a parseable date are dropped.
func (s *ListingSource) Extract(ctx context.Context, doc *markup.Document) []CandidateLink {
	selector := s.Selector
	if strings.TrimSpace(selector) == "" {
		selector = "a[href]"
	}
	keywords := s.Keywords
	if len(keywords) == 0 {
		keywords = []string{"minutes"}
	}
	var out []CandidateLink
	for _, a := range doc.Select(selector) {
		href, ok := a.URLAttr("href")
		if !ok {
			continue
		}
		text := a.Text()
		if !isMinutesLink(href, text, keywords) {
			continue
		}
		date, ok := dateNear(a)
		if !ok {
			log.Ctx(ctx).Debug().Str("url", href).Str("text", text).Msg("no date near link; skipping")
			continue
		}
		out = append(out, CandidateLink{SourceDate: date, RawURL: href, Kind: Classify(href)})
	}
	return out
}

func (s *ListingSource) fetch(ctx context.Context) ([]byte, string, error) {
	resp, err := fetcherOrDefault(s.Fetcher).Fetch(ctx, s.URL)
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.URL, nil
}

// isMinutesLink accepts a keyword-bearing link to a PDF, or a keyword-bearing
// cloud-share link.
func isMinutesLink(href, text string, keywords []string) bool {
	hay := strings.ToLower(href + " " + text)
	hit := false
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" && strings.Contains(hay, k) {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	if Classify(href) == GatedShare {
		return true
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// dateNear looks for a date in the anchor text, then in the text run around
// the anchor (bounded by <br> and neighbouring anchors), then its parent, then
// the element preceding the parent (table layouts keep the date in its own
// cell).
func dateNear(a markup.Element) (time.Time, bool) {
	for _, text := range []string{a.Text(), a.PrecedingText(), a.FollowingText()} {
		if t, ok := ParseDate(text); ok {
			return t, true
		}
	}
	p, ok := a.Parent()
	if !ok {
		return time.Time{}, false
	}
	if t, ok := ParseDate(p.Text()); ok {
		return t, true
	}
	if prev, ok := p.Prev(); ok {
		if t, ok := ParseDate(prev.Text()); ok {
			return t, true
		}
	}
	return time.Time{}, false
}
