package locate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/minutewatch/internal/fetch"
)

// IndexSource queries a per-date JSON meeting index, one request per calendar
// day in the lookback window.
type IndexSource struct {
	// URL is either a template containing "{date}" or a base URL that receives
	// a date=YYYY-MM-DD query parameter.
	URL string
	// Fetcher issues the per-day queries. Nil means a default fetch.Client.
	Fetcher *fetch.Client
	// Body filters meetings by body or category name (case-insensitive
	// substring). Empty keeps all meetings.
	Body string
	// DocumentType selects the document link by its type label. Defaults to "Minutes".
	DocumentType string
	// Lookback is the number of days queried, today included. Zero means 90.
	LookbackDays int
	// MaxCount caps the number of returned links. Zero means 10.
	MaxCount int
	// MaxConcurrent bounds in-flight day queries. Zero means 8.
	MaxConcurrent int
}

// meetingRecord is one entry in a day's index response.
type meetingRecord struct {
	Date      string `json:"date"`
	Body      string `json:"body"`
	Category  string `json:"category"`
	Documents []struct {
		Type string `json:"type"`
		Path string `json:"path"`
	} `json:"documents"`
}

func (s *IndexSource) Name() string { return "index" }

// Locate queries every day in the window concurrently. Non-JSON or error
// responses mean "no meeting that day". Only when no day could be reached at
// all is the origin considered down.
func (s *IndexSource) Locate(ctx context.Context, now time.Time) ([]CandidateLink, error) {
	if strings.TrimSpace(s.URL) == "" {
		return nil, fmt.Errorf("%w: missing index url", ErrOrigin)
	}
	days := s.LookbackDays
	if days <= 0 {
		days = 90
	}
	limit := s.MaxConcurrent
	if limit <= 0 {
		limit = 8
	}
	today := calendarDate(now)
	fc := fetcherOrDefault(s.Fetcher)

	var (
		mu          sync.Mutex
		links       []CandidateLink
		unreachable int
		lastErr     error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, -i)
		g.Go(func() error {
			found, err := s.queryDay(gctx, fc, day)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if isTransportError(err) {
					unreachable++
					lastErr = err
				}
				log.Ctx(ctx).Debug().Err(err).Str("date", day.Format(time.DateOnly)).Msg("index query yielded nothing")
				return nil
			}
			links = append(links, found...)
			return nil
		})
	}
	_ = g.Wait()

	if unreachable == days {
		return nil, fmt.Errorf("%w: %v", ErrOrigin, lastErr)
	}
	max := s.MaxCount
	if max <= 0 {
		max = 10
	}
	out := finalize(links, now, time.Duration(days)*24*time.Hour, max)
	log.Ctx(ctx).Info().Int("days", days).Int("found", len(links)).Int("kept", len(out)).Str("source", s.Name()).Msg("located documents")
	return out, nil
}

// isTransportError reports whether err means the origin could not be
// reached at all, as opposed to answering with an error status.
func isTransportError(err error) bool {
	return err != nil && !errors.Is(err, fetch.ErrStatus) && !errors.Is(err, errNoMeeting)
}

// errNoMeeting marks a day whose response was reachable but held no usable
// index.
var errNoMeeting = errors.New("no meeting")

func (s *IndexSource) dayURL(day time.Time) (string, error) {
	date := day.Format(time.DateOnly)
	if strings.Contains(s.URL, "{date}") {
		return strings.ReplaceAll(s.URL, "{date}", date), nil
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("date", date)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *IndexSource) queryDay(ctx context.Context, fc *fetch.Client, day time.Time) ([]CandidateLink, error) {
	endpoint, err := s.dayURL(day)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNoMeeting, err)
	}
	resp, err := fc.Fetch(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if ct := strings.ToLower(resp.ContentType); ct != "" && !strings.Contains(ct, "json") {
		return nil, fmt.Errorf("%w: index content type %s", errNoMeeting, ct)
	}
	var records []meetingRecord
	if err := json.Unmarshal(resp.Body, &records); err != nil {
		return nil, fmt.Errorf("%w: decode index: %v", errNoMeeting, err)
	}
	base, err := url.Parse(resp.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNoMeeting, err)
	}
	return s.pick(records, day, base), nil
}

// pick filters records to the configured body and document type. The
// record's own date wins over the queried day when it parses.
func (s *IndexSource) pick(records []meetingRecord, day time.Time, base *url.URL) []CandidateLink {
	docType := strings.ToLower(strings.TrimSpace(s.DocumentType))
	if docType == "" {
		docType = "minutes"
	}
	body := strings.ToLower(strings.TrimSpace(s.Body))
	var out []CandidateLink
	for _, r := range records {
		if body != "" && !strings.Contains(strings.ToLower(r.Body), body) && !strings.Contains(strings.ToLower(r.Category), body) {
			continue
		}
		date := day
		if t, ok := ParseDate(r.Date); ok {
			date = t
		}
		for _, d := range r.Documents {
			if !strings.Contains(strings.ToLower(d.Type), docType) || strings.TrimSpace(d.Path) == "" {
				continue
			}
			ref, err := url.Parse(strings.TrimSpace(d.Path))
			if err != nil {
				continue
			}
			abs := base.ResolveReference(ref).String()
			out = append(out, CandidateLink{SourceDate: date, RawURL: abs, Kind: Classify(abs)})
		}
	}
	return out
}
