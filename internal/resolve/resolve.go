package resolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/minutewatch/internal/fetch"
	"github.com/hyperifyio/minutewatch/internal/locate"
	"github.com/hyperifyio/minutewatch/internal/markup"
)

// DefaultDownloadURL is the storage provider's anonymous download endpoint.
const DefaultDownloadURL = "https://drive.google.com/uc"

// ErrUnresolved means no binary payload could be obtained for a link. The
// link is skipped; it is never retried.
var ErrUnresolved = errors.New("unresolved")

// Document is a retrieved binary document (ResolvedDocument).
type Document struct {
	URL         string
	Body        []byte
	ContentType string
}

// Fetcher is the subset of fetch.Client used here.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Response, error)
	FetchOnce(ctx context.Context, url string) (*fetch.Response, error)
	Get(ctx context.Context, url string) ([]byte, string, error)
}

// Resolver turns candidate links into documents. Gated share links go
// through the authenticated storage API when one is configured, otherwise
// through anonymous confirm-token negotiation.
type Resolver struct {
	Fetcher Fetcher
	// DownloadURL overrides DefaultDownloadURL.
	DownloadURL string
	// Drive is the credentialed storage client (read-only scope).
	Drive DriveFiles
	// PublicDrive is the API-key storage client, used as primary when Drive
	// is nil and as fallback when Drive fails.
	PublicDrive DriveFiles
}

// Resolve retrieves the document behind link.
func (r *Resolver) Resolve(ctx context.Context, link locate.CandidateLink) (Document, error) {
	if r.Fetcher == nil {
		return Document{}, errors.New("resolver not configured")
	}
	if link.Kind != locate.GatedShare {
		return r.direct(ctx, link.RawURL)
	}
	id, ok := locate.ShareFileID(link.RawURL)
	if !ok {
		log.Ctx(ctx).Debug().Str("url", link.RawURL).Msg("share link without file id; fetching as-is")
		return r.direct(ctx, link.RawURL)
	}
	if r.Drive != nil || r.PublicDrive != nil {
		return r.viaAPI(ctx, id)
	}
	return r.negotiate(ctx, id)
}

func (r *Resolver) direct(ctx context.Context, raw string) (Document, error) {
	body, ct, err := r.Fetcher.Get(ctx, raw)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrUnresolved, err)
	}
	return Document{URL: raw, Body: body, ContentType: ct}, nil
}

func (r *Resolver) viaAPI(ctx context.Context, id string) (Document, error) {
	if r.Drive != nil {
		doc, err := fetchFromDrive(ctx, r.Drive, id)
		if err == nil {
			return doc, nil
		}
		if r.PublicDrive == nil {
			return Document{}, fmt.Errorf("%w: %v", ErrUnresolved, err)
		}
		log.Ctx(ctx).Warn().Err(err).Str("file_id", id).Msg("authenticated download failed; trying api key")
	}
	doc, err := fetchFromDrive(ctx, r.PublicDrive, id)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrUnresolved, err)
	}
	return doc, nil
}

// negotiate performs the anonymous download: one request to the download
// endpoint and at most one follow-up carrying a confirmation token or the
// "download anyway" target.
func (r *Resolver) negotiate(ctx context.Context, id string) (Document, error) {
	first := r.downloadURL(id, "")
	resp, err := r.Fetcher.Fetch(ctx, first)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrUnresolved, err)
	}
	if fetch.IsDocumentType(resp.ContentType) {
		return Document{URL: first, Body: resp.Body, ContentType: resp.ContentType}, nil
	}
	if !fetch.IsHTMLType(resp.ContentType) {
		return Document{}, fmt.Errorf("%w: %s", ErrUnresolved, resp.ContentType)
	}
	next, ok := r.followUp(resp, id)
	if !ok {
		return Document{}, fmt.Errorf("%w: no confirmation token in interstitial", ErrUnresolved)
	}
	log.Ctx(ctx).Debug().Str("file_id", id).Str("next", next).Msg("following download confirmation")
	resp, err = r.Fetcher.FetchOnce(ctx, next)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrUnresolved, err)
	}
	if err := fetch.Accept(resp); err != nil {
		return Document{}, fmt.Errorf("%w: after confirmation: %v", ErrUnresolved, err)
	}
	return Document{URL: next, Body: resp.Body, ContentType: resp.ContentType}, nil
}

func (r *Resolver) downloadURL(id, confirm string) string {
	base := r.DownloadURL
	if strings.TrimSpace(base) == "" {
		base = DefaultDownloadURL
	}
	u, err := url.Parse(base)
	if err != nil {
		u = &url.URL{Scheme: "https", Host: "drive.google.com", Path: "/uc"}
	}
	q := u.Query()
	q.Set("export", "download")
	q.Set("id", id)
	if confirm != "" {
		q.Set("confirm", confirm)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// followUp finds the single follow-up URL on an interstitial page. It checks
// a download_warning cookie, the download form, any link carrying confirm=,
// and finally an explicit "download anyway" anchor.
func (r *Resolver) followUp(resp *fetch.Response, id string) (string, bool) {
	for _, c := range resp.Cookies {
		if strings.HasPrefix(c.Name, "download_warning") && c.Value != "" {
			return r.downloadURL(id, c.Value), true
		}
	}
	doc, err := markup.Parse(bytes.NewReader(resp.Body), resp.URL)
	if err != nil {
		return "", false
	}
	if next, ok := formTarget(doc); ok {
		return next, true
	}
	for _, a := range doc.Select("a[href]") {
		href, ok := a.URLAttr("href")
		if !ok {
			continue
		}
		u, err := url.Parse(href)
		if err != nil {
			continue
		}
		if tok := u.Query().Get("confirm"); tok != "" {
			return r.downloadURL(id, tok), true
		}
	}
	if a, ok := doc.First("a#uc-download-link"); ok {
		if href, ok := a.URLAttr("href"); ok {
			return href, true
		}
	}
	for _, a := range doc.Select("a[href]") {
		if strings.Contains(strings.ToLower(a.Text()), "download anyway") {
			if href, ok := a.URLAttr("href"); ok {
				return href, true
			}
		}
	}
	return "", false
}

// formTarget rebuilds the GET submission of a confirmation form that carries
// a confirm field.
func formTarget(doc *markup.Document) (string, bool) {
	forms := doc.Select("form#download-form")
	if len(forms) == 0 {
		forms = doc.Select("form")
	}
	for _, f := range forms {
		action, ok := f.URLAttr("action")
		if !ok {
			continue
		}
		u, err := url.Parse(action)
		if err != nil {
			continue
		}
		q := u.Query()
		hasConfirm := q.Get("confirm") != ""
		for _, in := range f.Select("input[name]") {
			name, _ := in.Attr("name")
			val, _ := in.Attr("value")
			if name == "confirm" && val != "" {
				hasConfirm = true
			}
			q.Set(name, val)
		}
		if !hasConfirm {
			continue
		}
		u.RawQuery = q.Encode()
		return u.String(), true
	}
	return "", false
}
