package resolve

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/hyperifyio/minutewatch/internal/fetch"
)

// FileMeta is the subset of storage metadata checked before download.
type FileMeta struct {
	ID          string
	Name        string
	MimeType    string
	Trashed     bool
	CanDownload bool
}

// DriveFiles is the read-only storage API surface: metadata and media.
type DriveFiles interface {
	Metadata(ctx context.Context, id string) (FileMeta, error)
	Media(ctx context.Context, id string) ([]byte, string, error)
}

func fetchFromDrive(ctx context.Context, files DriveFiles, id string) (Document, error) {
	meta, err := files.Metadata(ctx, id)
	if err != nil {
		return Document{}, fmt.Errorf("metadata: %w", err)
	}
	if meta.Trashed {
		return Document{}, fmt.Errorf("file %s is trashed", id)
	}
	if !meta.CanDownload {
		return Document{}, fmt.Errorf("file %s is not downloadable", id)
	}
	body, ct, err := files.Media(ctx, id)
	if err != nil {
		return Document{}, fmt.Errorf("media: %w", err)
	}
	if ct == "" {
		ct = meta.MimeType
	}
	if !fetch.IsDocumentType(ct) {
		return Document{}, fmt.Errorf("%w: %s", fetch.ErrContentType, ct)
	}
	return Document{URL: "drive:" + id, Body: body, ContentType: ct}, nil
}

// DriveService adapts the Drive v3 API to DriveFiles.
type DriveService struct {
	files *drive.FilesService
	// MaxBodyBytes caps a media download. Zero means fetch.DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// NewServiceAccountDrive builds a read-only Drive client from a base64
// encoded service-account JSON credential.
func NewServiceAccountDrive(ctx context.Context, credentialsB64 string) (*DriveService, error) {
	raw, err := DecodeCredentials(credentialsB64)
	if err != nil {
		return nil, err
	}
	opts := []option.ClientOption{
		option.WithCredentialsJSON(raw),
		option.WithScopes(drive.DriveReadonlyScope),
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &DriveService{files: svc.Files}, nil
}

// NewAPIKeyDrive builds a Drive client that can read publicly shared files.
func NewAPIKeyDrive(ctx context.Context, apiKey string, hc *http.Client) (*DriveService, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("drive api key is empty")
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(&http.Client{
			Transport: &apiKeyTransport{key: apiKey, base: hc.Transport},
			Timeout:   hc.Timeout,
		}))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &DriveService{files: svc.Files}, nil
}

// DecodeCredentials decodes a base64 (standard or URL alphabet) credential
// blob and checks it looks like JSON.
func DecodeCredentials(b64 string) ([]byte, error) {
	s := strings.TrimSpace(b64)
	if s == "" {
		return nil, errors.New("empty credentials")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(s)
	}
	if err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
		return nil, errors.New("decode credentials: not a JSON object")
	}
	return raw, nil
}

func (d *DriveService) Metadata(ctx context.Context, id string) (FileMeta, error) {
	f, err := d.files.Get(id).
		Fields("id", "name", "mimeType", "trashed", "capabilities/canDownload").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return FileMeta{}, err
	}
	meta := FileMeta{ID: f.Id, Name: f.Name, MimeType: f.MimeType, Trashed: f.Trashed, CanDownload: true}
	if f.Capabilities != nil {
		meta.CanDownload = f.Capabilities.CanDownload
	}
	return meta, nil
}

func (d *DriveService) Media(ctx context.Context, id string) ([]byte, string, error) {
	resp, err := d.files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	limit := d.MaxBodyBytes
	if limit <= 0 {
		limit = fetch.DefaultMaxBodyBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("read media: %w", err)
	}
	if int64(len(b)) > limit {
		return nil, "", fmt.Errorf("media exceeds %d bytes", limit)
	}
	return b, resp.Header.Get("Content-Type"), nil
}

// apiKeyTransport appends key= to every request. option.WithAPIKey is
// ignored once a custom HTTP client is supplied.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	r := req.Clone(req.Context())
	q := r.URL.Query()
	q.Set("key", t.key)
	r.URL.RawQuery = q.Encode()
	return base.RoundTrip(r)
}
