package extractor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/research-evidence-backend/internal/data/repos"
	"github.com/yungbote/research-evidence-backend/internal/data/repos/testutil"
	types "github.com/yungbote/research-evidence-backend/internal/domain"
	"github.com/yungbote/research-evidence-backend/internal/platform/dbctx"
	"github.com/yungbote/research-evidence-backend/internal/platform/gcp"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func noSleep(src Source) Source {
	s := src.(*source)
	s.retry.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return s
}

func TestSourceLocalRelativeToRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plan.html", "hola")
	src := NewSource(logger.Nop(), SourceConfig{LocalRoot: dir}, nil)

	c, err := src.Load(context.Background(), &types.EvidenceDocument{StorageKey: "plan.html"})
	require.NoError(t, err)
	assert.Equal(t, "hola", string(c.Data))
	assert.Equal(t, "text/html", c.MimeType)

	_, err = src.Load(context.Background(), &types.EvidenceDocument{StorageKey: "missing.txt"})
	assert.ErrorIs(t, err, ErrMissingSource)

	_, err = src.Load(context.Background(), &types.EvidenceDocument{})
	assert.ErrorIs(t, err, ErrMissingSource)
}

func TestSourceMaxBytes(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "big.txt", strings.Repeat("x", 64))
	src := NewSource(logger.Nop(), SourceConfig{MaxBytes: 16}, nil)

	_, err := src.Load(context.Background(), &types.EvidenceDocument{StorageKey: p})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 16 bytes")
}

func TestSourceHTTPRetriesAndDetectsMime(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<p>hola</p>")
	}))
	defer srv.Close()

	src := noSleep(NewSource(logger.Nop(), SourceConfig{MaxRetries: 2}, nil))
	c, err := src.Load(context.Background(), &types.EvidenceDocument{LinkURL: srv.URL + "/evidencia?x=1"})
	require.NoError(t, err)
	assert.Equal(t, "text/html", c.MimeType)
	assert.Equal(t, srv.URL+"/evidencia", c.Name)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestSourceHTTPNotFoundIsMissing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	src := noSleep(NewSource(logger.Nop(), SourceConfig{MaxRetries: 3}, nil))
	_, err := src.Load(context.Background(), &types.EvidenceDocument{LinkURL: srv.URL})
	assert.ErrorIs(t, err, ErrMissingSource)
}

type fakeObjects struct {
	objects map[string]string
}

func (f *fakeObjects) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	body, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, gcp.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeObjects) Size(ctx context.Context, bucket, key string) (int64, error) {
	return int64(len(f.objects[bucket+"/"+key])), nil
}

func (f *fakeObjects) Close() error { return nil }

func TestSourceGCS(t *testing.T) {
	objs := &fakeObjects{objects: map[string]string{"evidencias/2024/informe.md": "# Informe"}}
	src := NewSource(logger.Nop(), SourceConfig{}, objs)

	c, err := src.Load(context.Background(), &types.EvidenceDocument{StorageKey: "gs://evidencias/2024/informe.md"})
	require.NoError(t, err)
	assert.Equal(t, "# Informe", string(c.Data))

	_, err = src.Load(context.Background(), &types.EvidenceDocument{StorageKey: "gs://evidencias/otro.md"})
	assert.ErrorIs(t, err, ErrMissingSource)

	_, err = NewSource(logger.Nop(), SourceConfig{}, nil).Load(context.Background(), &types.EvidenceDocument{StorageKey: "gs://evidencias/2024/informe.md"})
	assert.Error(t, err)
}

func newTestExtractor(t *testing.T, dir string, opts Options) (*Extractor, repos.SectionRepo) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	sections := repos.NewSectionRepo(db, log)
	src := NewSource(log, SourceConfig{LocalRoot: dir}, nil)
	return New(log, src, NewTextExtractor(log, nil, nil), sections, opts), sections
}

func TestRederivePersistsOrderedSections(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "Resumen del proyecto\n\n# Objetivos\nFormar estudiantes\n\n# Resultados\nDos artículos\n")

	db := testutil.DB(t)
	log := testutil.Logger(t)
	sections := repos.NewSectionRepo(db, log)
	ex := New(log, NewSource(log, SourceConfig{LocalRoot: dir}, nil), NewTextExtractor(log, nil, nil), sections, Options{})

	ctx := context.Background()
	doc := testutil.SeedDocument(t, ctx, db, "a")
	doc.StorageKey = "a.md"

	saved, err := ex.Rederive(dbctx.Context{Ctx: ctx}, doc)
	require.NoError(t, err)
	require.Len(t, saved, 3)

	got, err := sections.GetByDocumentID(dbctx.Context{Ctx: ctx}, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, PreambleTitle, got[0].Title)
	assert.Equal(t, "Objetivos", got[1].Title)
	assert.Equal(t, "Formar estudiantes", got[1].Content)
	assert.Equal(t, 2, got[2].Sequence)
	assert.JSONEq(t, `{"heading_kind":"markdown"}`, string(got[2].Metadata))

	// Re-deriving an unchanged document leaves the same state as deriving once.
	_, err = ex.Rederive(dbctx.Context{Ctx: ctx}, doc)
	require.NoError(t, err)
	n, err := sections.CountByDocumentID(dbctx.Context{Ctx: ctx}, doc.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestRederiveFailureKeepsExistingSections(t *testing.T) {
	dir := t.TempDir()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	sections := repos.NewSectionRepo(db, log)
	ex := New(log, NewSource(log, SourceConfig{LocalRoot: dir}, nil), NewTextExtractor(log, nil, nil), sections, Options{})

	ctx := context.Background()
	doc := testutil.SeedDocument(t, ctx, db, "gone")
	testutil.SeedSections(t, ctx, db, doc.ID, "old")
	doc.StorageKey = "gone.pdf"

	_, err := ex.Rederive(dbctx.Context{Ctx: ctx}, doc)
	require.Error(t, err)
	var ee *types.ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, doc.ID, ee.DocumentID)
	assert.Equal(t, "file is missing", ee.Reason)

	n, err := sections.CountByDocumentID(dbctx.Context{Ctx: ctx}, doc.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestExtractSectionsImageEvidence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "asistencia.jpg"), jpegBytes, 0o644))
	log := testutil.Logger(t)
	sections := repos.NewSectionRepo(testutil.DB(t), log)
	src := NewSource(log, SourceConfig{LocalRoot: dir}, nil)
	doc := &types.EvidenceDocument{ID: 9, StorageKey: "asistencia.jpg"}

	ocr := &fakeOCR{res: &gcp.ProcessedDocument{Pages: [][]string{{"LISTA DE ASISTENCIA", "Ana Pérez, Luis Gómez"}}}}
	drafts, err := New(log, src, NewTextExtractor(log, nil, ocr), sections, Options{}).ExtractSections(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "LISTA DE ASISTENCIA", drafts[0].Title)
	assert.Contains(t, drafts[0].Content, "Ana Pérez")

	_, err = New(log, src, NewTextExtractor(log, nil, nil), sections, Options{}).ExtractSections(context.Background(), doc)
	var ee *types.ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, uint(9), ee.DocumentID)
}

func TestExtractSectionsErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blank.txt", "  \n\n ")
	writeFile(t, dir, "broken.pdf", "%PDF-1.4 truncated")
	ex, _ := newTestExtractor(t, dir, Options{})

	_, err := ex.ExtractSections(context.Background(), &types.EvidenceDocument{ID: 1, StorageKey: "blank.txt"})
	var ee *types.ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "no extractable text", ee.Reason)

	_, err = ex.ExtractSections(context.Background(), &types.EvidenceDocument{ID: 2, StorageKey: "broken.pdf"})
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "unreadable or corrupted file", ee.Reason)
}

type slowText struct{ release chan struct{} }

func (s slowText) ExtractText(ctx context.Context, name, mime string, data []byte) (string, error) {
	<-s.release
	return "late", nil
}

func TestExtractSectionsTimeout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "hola")
	release := make(chan struct{})
	defer close(release)

	log := logger.Nop()
	ex := New(log, NewSource(log, SourceConfig{LocalRoot: dir}, nil), slowText{release: release}, nil, Options{Timeout: 20 * time.Millisecond})
	_, err := ex.ExtractSections(context.Background(), &types.EvidenceDocument{ID: 3, StorageKey: "a.txt"})
	var ee *types.ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "extraction timed out", ee.Reason)
}
