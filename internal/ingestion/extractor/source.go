package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	types "github.com/yungbote/research-evidence-backend/internal/domain"
	"github.com/yungbote/research-evidence-backend/internal/platform/gcp"
	"github.com/yungbote/research-evidence-backend/internal/platform/httpx"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

const DefaultMaxBytes int64 = 50 << 20

// ErrMissingSource means the document's file or link does not exist.
var ErrMissingSource = errors.New("source file missing")

// Content is a loaded evidence file.
type Content struct {
	Name     string
	MimeType string
	Data     []byte
}

// Source loads the raw bytes behind an EvidenceDocument.
type Source interface {
	Load(ctx context.Context, doc *types.EvidenceDocument) (*Content, error)
}

type SourceConfig struct {
	// LocalRoot anchors relative storage keys.
	LocalRoot  string
	MaxBytes   int64
	HTTPClient *http.Client
	MaxRetries int
}

type source struct {
	log        *logger.Logger
	cfg        SourceConfig
	objects    gcp.ObjectReader
	httpClient *http.Client
	retry      httpx.Policy
}

// NewSource resolves storage keys as local paths or gs:// URIs (objects may be
// nil when Cloud Storage is not configured) and links over HTTP.
func NewSource(log *logger.Logger, cfg SourceConfig, objects gcp.ObjectReader) Source {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &source{
		log:        log.With("component", "EvidenceSource"),
		cfg:        cfg,
		objects:    objects,
		httpClient: hc,
		retry:      httpx.Policy{MaxRetries: cfg.MaxRetries},
	}
}

func (s *source) Load(ctx context.Context, doc *types.EvidenceDocument) (*Content, error) {
	key := strings.TrimSpace(doc.StorageKey)
	link := strings.TrimSpace(doc.LinkURL)
	switch {
	case strings.HasPrefix(key, "gs://"):
		return s.loadGCS(ctx, key, doc.MimeType)
	case isHTTPURL(key):
		return s.loadHTTP(ctx, key, doc.MimeType)
	case key != "":
		return s.loadLocal(key, doc.MimeType)
	case link != "":
		return s.loadHTTP(ctx, link, doc.MimeType)
	default:
		return nil, fmt.Errorf("no storage key or link: %w", ErrMissingSource)
	}
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (s *source) loadLocal(key, mimeType string) (*Content, error) {
	path := filepath.Clean(key)
	if !filepath.IsAbs(path) && s.cfg.LocalRoot != "" {
		path = filepath.Join(s.cfg.LocalRoot, path)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrMissingSource)
		}
		return nil, err
	}
	defer f.Close()

	data, err := readCapped(f, s.cfg.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Content{Name: path, MimeType: guessMime(path, mimeType), Data: data}, nil
}

func (s *source) loadGCS(ctx context.Context, uri, mimeType string) (*Content, error) {
	if s.objects == nil {
		return nil, fmt.Errorf("object storage not configured for %s", uri)
	}
	bucket, key, err := gcp.ParseGSURI(uri)
	if err != nil {
		return nil, err
	}
	rc, err := s.objects.Open(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return nil, fmt.Errorf("%s: %w", uri, ErrMissingSource)
		}
		return nil, err
	}
	defer rc.Close()

	data, err := readCapped(rc, s.cfg.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", uri, err)
	}
	return &Content{Name: key, MimeType: guessMime(key, mimeType), Data: data}, nil
}

func (s *source) loadHTTP(ctx context.Context, link, mimeType string) (*Content, error) {
	policy := s.retry
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		s.log.Warn("Evidence download retrying", "url", link, "attempt", attempt, "sleep", wait.String(), "error", err)
	}
	var content *Content
	err := policy.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		c, resp, err := s.fetchOnce(ctx, link, mimeType)
		content = c
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (s *source) fetchOnce(ctx context.Context, link, mimeType string) (*Content, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, resp, fmt.Errorf("%s: %w", link, ErrMissingSource)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp, &httpx.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	data, err := readCapped(resp.Body, s.cfg.MaxBytes)
	if err != nil {
		return nil, resp, fmt.Errorf("%s: %w", link, err)
	}
	if mimeType == "" {
		if ct, _, perr := mime.ParseMediaType(resp.Header.Get("Content-Type")); perr == nil {
			mimeType = ct
		}
	}
	name := link
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return &Content{Name: name, MimeType: guessMime(name, mimeType), Data: data}, resp, nil
}

func readCapped(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("file exceeds %d bytes", max)
	}
	return data, nil
}

func guessMime(name, declared string) string {
	if m := strings.TrimSpace(declared); m != "" {
		return m
	}
	if m := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); m != "" {
		if base, _, err := mime.ParseMediaType(m); err == nil {
			return base
		}
		return m
	}
	return ""
}
