package locate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/minutewatch/internal/fetch"
	"github.com/hyperifyio/minutewatch/internal/markup"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		raw  string
		want LinkKind
	}{
		{"https://drive.google.com/file/d/abc/view?usp=sharing", GatedShare},
		{"https://docs.google.com/uc?export=download&id=abc", GatedShare},
		{"https://city.example/files/minutes.pdf", DirectBinary},
		{"::not a url", DirectBinary},
	}
	for _, c := range cases {
		if got := Classify(c.raw); got != c.want {
			t.Errorf("Classify(%q)=%v, want %v", c.raw, got, c.want)
		}
	}
}

func TestShareFileID(t *testing.T) {
	cases := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"https://drive.google.com/file/d/1AbC-_x9/view?usp=sharing", "1AbC-_x9", true},
		{"https://drive.google.com/open?id=XYZ123", "XYZ123", true},
		{"https://drive.google.com/uc?export=download&id=Q_q", "Q_q", true},
		{"https://drive.google.com/drive/folders", "", false},
	}
	for _, c := range cases {
		got, ok := ShareFileID(c.raw)
		if got != c.want || ok != c.wantOK {
			t.Errorf("ShareFileID(%q)=(%q,%v), want (%q,%v)", c.raw, got, ok, c.want, c.wantOK)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)
	inputs := []string{
		"Regular Meeting - March 4, 2025",
		"MARCH 4 2025 minutes",
		"Mar. 4th, 2025",
		"posted 2025-03-04T18:00:00Z",
		"3/4/2025",
		"03-04-2025",
	}
	for _, in := range inputs {
		got, ok := ParseDate(in)
		if !ok || !got.Equal(want) {
			t.Errorf("ParseDate(%q)=(%v,%v), want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseDate("Agenda (no date)"); ok {
		t.Errorf("expected no date")
	}
}

func TestCanonical_StripsTracking(t *testing.T) {
	got := Canonical("HTTPS://City.Example:443/a.pdf?utm_source=x&v=1#frag")
	if got != "https://city.example/a.pdf?v=1" {
		t.Fatalf("Canonical=%q", got)
	}
	if Canonical("/relative") != "" {
		t.Fatalf("expected empty canonical for host-less URL")
	}
}

func TestFinalize_WindowDedupeSortCap(t *testing.T) {
	now := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	d := func(m time.Month, day int) time.Time { return time.Date(2025, m, day, 0, 0, 0, 0, time.UTC) }
	in := []CandidateLink{
		{SourceDate: d(5, 1), RawURL: "https://x.test/a.pdf"},
		{SourceDate: d(5, 20), RawURL: "https://x.test/b.pdf"},
		{SourceDate: d(5, 20), RawURL: "https://x.test/b.pdf#dup"},
		{SourceDate: d(1, 1), RawURL: "https://x.test/old.pdf"},
		{SourceDate: d(7, 1), RawURL: "https://x.test/future.pdf"},
		{SourceDate: d(5, 10), RawURL: "https://x.test/c.pdf"},
	}
	out := finalize(in, now, 90*24*time.Hour, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 links, got %d: %+v", len(out), out)
	}
	if out[0].RawURL != "https://x.test/b.pdf" || out[1].RawURL != "https://x.test/c.pdf" {
		t.Fatalf("unexpected order: %+v", out)
	}
}

const listingHTML = `<!doctype html><html><body>
<table>
 <tr><td>May 20, 2025</td><td><a href="/docs/Council-Minutes-2025-05-20.pdf">Minutes</a></td></tr>
 <tr><td>May 13, 2025</td><td><a href="/docs/Council-Agenda-2025-05-13.pdf">Agenda</a></td></tr>
 <tr><td>May 6, 2025</td><td><a href="https://drive.google.com/file/d/FILE42/view">Minutes</a></td></tr>
 <tr><td>TBD</td><td><a href="/docs/minutes-draft.pdf">Minutes</a></td></tr>
 <tr><td>April 1, 2025</td><td><a href="/docs/minutes-april.html">Minutes page</a></td></tr>
</table>
<p>Older: <a href="/docs/minutes-2025-04-15.pdf">Minutes April 15, 2025</a></p>
</body></html>`

func TestListingSource_Extract(t *testing.T) {
	doc, err := markup.ParseString(listingHTML, "https://city.example/council/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := &ListingSource{}
	links := s.Extract(context.Background(), doc)
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d: %+v", len(links), links)
	}
	if links[0].RawURL != "https://city.example/docs/Council-Minutes-2025-05-20.pdf" || links[0].Kind != DirectBinary {
		t.Fatalf("first link %+v", links[0])
	}
	if links[1].Kind != GatedShare || links[1].DateString() != "2025-05-06" {
		t.Fatalf("drive link %+v", links[1])
	}
	if links[2].DateString() != "2025-04-15" {
		t.Fatalf("inline dated link %+v", links[2])
	}
}

func TestListingSource_Locate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	s := &ListingSource{URL: srv.URL + "/council/", Lookback: 30 * 24 * time.Hour, MaxCount: 5}
	now := time.Date(2025, 5, 25, 12, 0, 0, 0, time.UTC)
	links, err := s.Locate(context.Background(), now)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	// April 15 falls outside the 30 day window.
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %+v", links)
	}
	if !links[0].SourceDate.After(links[1].SourceDate) {
		t.Fatalf("links not sorted newest first: %+v", links)
	}
}

func TestListingSource_OriginFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := &ListingSource{URL: srv.URL}
	_, err := s.Locate(context.Background(), time.Now())
	if !errors.Is(err, ErrOrigin) {
		t.Fatalf("expected ErrOrigin, got %v", err)
	}
}

func TestListingSource_Extract_EntriesSharingOneBlock(t *testing.T) {
	doc, err := markup.ParseString(`<html><body>
<p>March 3, 2025 <a href="/m/a.pdf">Minutes</a><br>March 17, 2025 <a href="/m/b.pdf">Minutes</a><br>
<a href="/m/c.pdf">Minutes</a> April 7, 2025</p>
</body></html>`, "https://city.example/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	links := (&ListingSource{}).Extract(context.Background(), doc)
	want := map[string]string{
		"https://city.example/m/a.pdf": "2025-03-03",
		"https://city.example/m/b.pdf": "2025-03-17",
		"https://city.example/m/c.pdf": "2025-04-07",
	}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %+v", len(want), links)
	}
	for _, l := range links {
		if want[l.RawURL] != l.DateString() {
			t.Errorf("%s dated %s, want %s", l.RawURL, l.DateString(), want[l.RawURL])
		}
	}
}

func TestListingSource_RetriesTransientOriginError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	s := &ListingSource{URL: srv.URL + "/council/", Fetcher: &fetch.Client{MaxAttempts: 2}}
	links, err := s.Locate(context.Background(), time.Date(2025, 5, 25, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if len(links) == 0 {
		t.Fatalf("expected links after retry")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 listing requests, got %d", got)
	}
}
