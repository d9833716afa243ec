package resolve

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/minutewatch/internal/fetch"
	"github.com/hyperifyio/minutewatch/internal/locate"
)

var pdfBytes = []byte("%PDF-1.4\n%fake\n")

func gated(id string) locate.CandidateLink {
	return locate.CandidateLink{
		SourceDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		RawURL:     "https://drive.google.com/file/d/" + id + "/view?usp=sharing",
		Kind:       locate.GatedShare,
	}
}

func newResolver(srv *httptest.Server) *Resolver {
	return &Resolver{
		Fetcher:     &fetch.Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second},
		DownloadURL: srv.URL + "/uc",
	}
}

func TestResolve_DirectLinkIsNotNegotiated(t *testing.T) {
	var ucHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/uc", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ucHits, 1)
	})
	mux.HandleFunc("/files/minutes.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdfBytes)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := newResolver(srv)
	doc, err := r.Resolve(context.Background(), locate.CandidateLink{RawURL: srv.URL + "/files/minutes.pdf", Kind: locate.DirectBinary})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if string(doc.Body) != string(pdfBytes) {
		t.Fatalf("unexpected body %q", doc.Body)
	}
	if atomic.LoadInt32(&ucHits) != 0 {
		t.Fatalf("direct link must not touch the download endpoint")
	}
}

func TestResolve_DirectLinkWithHTMLIsUnresolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not a pdf</html>"))
	}))
	defer srv.Close()

	_, err := newResolver(srv).Resolve(context.Background(), locate.CandidateLink{RawURL: srv.URL + "/m.pdf", Kind: locate.DirectBinary})
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
}

func TestResolve_GatedImmediateBinary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "SMALL" || r.URL.Query().Get("export") != "download" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(pdfBytes)
	}))
	defer srv.Close()

	doc, err := newResolver(srv).Resolve(context.Background(), gated("SMALL"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(doc.Body) == 0 {
		t.Fatalf("empty body")
	}
}

func TestResolve_ConfirmLinkSingleFollowUp(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Query().Get("confirm") == "t0k" {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(pdfBytes)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><p>Google Drive can't scan this file for viruses.</p>
<a href="/uc?export=download&amp;confirm=t0k&amp;id=BIG">Download</a></body></html>`))
	}))
	defer srv.Close()

	doc, err := newResolver(srv).Resolve(context.Background(), gated("BIG"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if doc.ContentType != "application/pdf" {
		t.Fatalf("content type %q", doc.ContentType)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("expected exactly 2 requests, got %d", got)
	}
}

func TestResolve_FollowUpServerErrorIsNotRetried(t *testing.T) {
	var confirmHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("confirm") != "" {
			atomic.AddInt32(&confirmHits, 1)
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><a href="/uc?export=download&amp;confirm=t0k&amp;id=BIG">Download</a></body></html>`))
	}))
	defer srv.Close()

	r := &Resolver{
		Fetcher:     &fetch.Client{MaxAttempts: 3, PerRequestTimeout: 2 * time.Second},
		DownloadURL: srv.URL + "/uc",
	}
	_, err := r.Resolve(context.Background(), gated("BIG"))
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
	if got := atomic.LoadInt32(&confirmHits); got != 1 {
		t.Fatalf("expected exactly 1 confirmation request, got %d", got)
	}
}

func TestResolve_ConfirmFormWithHiddenInputs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path == "/download" && q.Get("confirm") == "t" && q.Get("uuid") == "u-1" && q.Get("id") == "F" {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(pdfBytes)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
<form id="download-form" action="/download" method="get">
  <input type="hidden" name="id" value="F">
  <input type="hidden" name="export" value="download">
  <input type="hidden" name="confirm" value="t">
  <input type="hidden" name="uuid" value="u-1">
  <input type="submit" value="Download anyway">
</form></body></html>`))
	}))
	defer srv.Close()

	if _, err := newResolver(srv).Resolve(context.Background(), gated("F")); err != nil {
		t.Fatalf("resolve: %v", err)
	}
}

func TestResolve_CookieToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("confirm") == "ck" {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(pdfBytes)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "download_warning_13058876669334088843", Value: "ck"})
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>warning</body></html>"))
	}))
	defer srv.Close()

	if _, err := newResolver(srv).Resolve(context.Background(), gated("C")); err != nil {
		t.Fatalf("resolve: %v", err)
	}
}

func TestResolve_DownloadAnywayAnchor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/anyway" {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(pdfBytes)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/anyway">Download anyway</a></body></html>`))
	}))
	defer srv.Close()

	doc, err := newResolver(srv).Resolve(context.Background(), gated("A"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if doc.URL != srv.URL+"/anyway" {
		t.Fatalf("doc url %q", doc.URL)
	}
}

func TestResolve_SecondInterstitialIsUnresolved(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/uc?export=download&amp;confirm=again&amp;id=X">Download</a></body></html>`))
	}))
	defer srv.Close()

	_, err := newResolver(srv).Resolve(context.Background(), gated("X"))
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("expected no third request, got %d requests", got)
	}
}

func TestResolve_InterstitialWithoutTokenIsUnresolved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>Sign in to continue</body></html>`))
	}))
	defer srv.Close()

	_, err := newResolver(srv).Resolve(context.Background(), gated("N"))
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
}

type fakeDrive struct {
	meta  FileMeta
	body  []byte
	ct    string
	err   error
	calls int
}

func (f *fakeDrive) Metadata(ctx context.Context, id string) (FileMeta, error) {
	f.calls++
	if f.err != nil {
		return FileMeta{}, f.err
	}
	m := f.meta
	m.ID = id
	return m, nil
}

func (f *fakeDrive) Media(ctx context.Context, id string) ([]byte, string, error) {
	return f.body, f.ct, nil
}

func TestResolve_DriveAPI(t *testing.T) {
	d := &fakeDrive{meta: FileMeta{MimeType: "application/pdf", CanDownload: true}, body: pdfBytes}
	r := &Resolver{Fetcher: &fetch.Client{}, Drive: d}
	doc, err := r.Resolve(context.Background(), gated("D1"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if doc.ContentType != "application/pdf" || doc.URL != "drive:D1" {
		t.Fatalf("doc %+v", doc)
	}
}

func TestResolve_DriveFallsBackToPublicKey(t *testing.T) {
	auth := &fakeDrive{err: errors.New("403 insufficient permissions")}
	pub := &fakeDrive{meta: FileMeta{CanDownload: true}, body: pdfBytes, ct: "application/pdf"}
	r := &Resolver{Fetcher: &fetch.Client{}, Drive: auth, PublicDrive: pub}
	if _, err := r.Resolve(context.Background(), gated("D2")); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if auth.calls != 1 || pub.calls != 1 {
		t.Fatalf("calls auth=%d pub=%d", auth.calls, pub.calls)
	}
}

func TestResolve_DriveFailureWithoutFallback(t *testing.T) {
	r := &Resolver{Fetcher: &fetch.Client{}, Drive: &fakeDrive{err: errors.New("boom")}}
	_, err := r.Resolve(context.Background(), gated("D3"))
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
}

func TestResolve_DriveRejectsTrashedAndNonDownloadable(t *testing.T) {
	for _, meta := range []FileMeta{{Trashed: true, CanDownload: true}, {CanDownload: false}} {
		d := &fakeDrive{meta: meta, body: pdfBytes, ct: "application/pdf"}
		r := &Resolver{Fetcher: &fetch.Client{}, Drive: d}
		if _, err := r.Resolve(context.Background(), gated("T")); !errors.Is(err, ErrUnresolved) {
			t.Fatalf("meta %+v: expected ErrUnresolved, got %v", meta, err)
		}
	}
}

func TestResolve_DriveRejectsNonDocumentMedia(t *testing.T) {
	d := &fakeDrive{meta: FileMeta{CanDownload: true}, body: []byte("<html/>"), ct: "text/html"}
	r := &Resolver{Fetcher: &fetch.Client{}, Drive: d}
	if _, err := r.Resolve(context.Background(), gated("H")); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}
}

func TestDecodeCredentials(t *testing.T) {
	raw := `{"type":"service_account","project_id":"p"}`
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding} {
		got, err := DecodeCredentials("  " + enc.EncodeToString([]byte(raw)) + "\n")
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(got) != raw {
			t.Fatalf("got %q", got)
		}
	}
	if _, err := DecodeCredentials(""); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := DecodeCredentials(base64.StdEncoding.EncodeToString([]byte("plain text"))); err == nil {
		t.Fatalf("expected error for non-JSON payload")
	}
	if _, err := DecodeCredentials("%%%"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
}

func TestAPIKeyTransportAddsKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
	}))
	defer srv.Close()

	hc := &http.Client{Transport: &apiKeyTransport{key: "k-1"}}
	resp, err := hc.Get(srv.URL + "/files/x?alt=media")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if gotKey != "k-1" {
		t.Fatalf("key=%q", gotKey)
	}
}
