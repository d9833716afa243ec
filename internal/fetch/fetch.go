package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var (
	// ErrStatus marks a response whose HTTP status is outside 2xx.
	ErrStatus = errors.New("unexpected status")
	// ErrContentType marks a response that does not carry a binary document.
	ErrContentType = errors.New("unsupported content type")
)

// DefaultMaxBodyBytes bounds a single downloaded body when MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 64 << 20

// Response is a fully read HTTP response. It is owned by the caller and is
// discarded after text extraction.
type Response struct {
	// URL is the final URL after redirects.
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Cookies     []*http.Cookie
}

// Client wraps http.Client and provides timeouts and limited retry on transient errors.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each request.
	PerRequestTimeout time.Duration
	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int
	// MaxBodyBytes caps the bytes read from a single body. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// internal limiter initialized on first use when MaxConcurrent > 0
	limiter     chan struct{}
	limiterOnce sync.Once
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirectFunc()}
}

// Get fetches url and returns the body only when the response is a 2xx
// carrying a binary document content type.
func (c *Client) Get(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, "", err
	}
	if err := Accept(resp); err != nil {
		return nil, "", err
	}
	return resp.Body, resp.ContentType, nil
}

// Fetch issues a GET with context, user-agent, and bounded retry for
// transient errors. Any 2xx response is returned regardless of content type
// so callers can inspect HTML interstitials.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		resp, err := c.tryOnce(ctx, url)
		if err == nil {
			return resp, nil
		}
		if !isTransient(err) || i == attempts-1 {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, lastErr
}

// FetchOnce is Fetch without retries. Requests that must be issued at most
// once, such as a download confirmation, go through here.
func (c *Client) FetchOnce(ctx context.Context, url string) (*Response, error) {
	return c.tryOnce(ctx, url)
}

func (c *Client) tryOnce(ctx context.Context, url string) (*Response, error) {
	// Concurrency gate per client instance
	c.acquire()
	defer c.release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	// Reject non-HTTP(S) schemes early
	if req.URL == nil || !isHTTPScheme(req.URL) {
		return nil, fmt.Errorf("unsupported URL scheme: %q", req.URL.String())
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	httpClient := c.getHTTPClient()
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
		return nil, &statusError{code: resp.StatusCode, transient: true}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode}
	}

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("body exceeds %d bytes", limit)
	}
	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        b,
		Cookies:     resp.Cookies(),
	}, nil
}

// Accept verifies that resp is a 2xx response declaring a binary document.
func Accept(resp *Response) error {
	if resp == nil {
		return errors.New("nil response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode}
	}
	if !IsDocumentType(resp.ContentType) {
		return fmt.Errorf("%w: %s", ErrContentType, resp.ContentType)
	}
	return nil
}

// IsDocumentType reports whether ct names a PDF or a generic binary payload.
// Some servers label PDFs as octet streams, so both are accepted.
func IsDocumentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(ct))
	}
	switch mt {
	case "application/pdf", "application/x-pdf", "application/octet-stream", "binary/octet-stream":
		return true
	}
	return false
}

// IsHTMLType reports whether ct names an HTML page.
func IsHTMLType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

type statusError struct {
	code      int
	transient bool
}

func (e *statusError) Error() string {
	if e.transient {
		return fmt.Sprintf("server error: %d", e.code)
	}
	return fmt.Sprintf("%s: %d", ErrStatus.Error(), e.code)
}

func (e *statusError) Unwrap() error { return ErrStatus }

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}

func isTransient(err error) bool {
	// Treat HTTP 5xx and context deadline as transient.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.transient
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		// Only allow http/https during redirects
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
		// should not happen, but avoid blocking
	}
}
