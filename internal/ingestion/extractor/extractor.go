package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/research-evidence-backend/internal/data/repos"
	types "github.com/yungbote/research-evidence-backend/internal/domain"
	"github.com/yungbote/research-evidence-backend/internal/platform/ctxutil"
	"github.com/yungbote/research-evidence-backend/internal/platform/dbctx"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

const (
	DefaultTimeout      = 60 * time.Second
	DefaultChunkSize    = 2000
	DefaultChunkOverlap = 200
)

type Options struct {
	Timeout      time.Duration
	ChunkSize    int
	ChunkOverlap int
}

// Extractor turns stored evidence documents into ordered sections.
type Extractor struct {
	log      *logger.Logger
	source   Source
	text     TextExtractor
	sections repos.SectionRepo
	opts     Options
}

func New(log *logger.Logger, source Source, text TextExtractor, sections repos.SectionRepo, opts Options) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{
		log:      log.With("service", "SectionExtractor"),
		source:   source,
		text:     text,
		sections: sections,
		opts:     opts,
	}
}

type extractOutcome struct {
	drafts []SectionDraft
	err    error
}

// ExtractSections loads and parses doc without touching the database. Every
// failure is an *ExtractionError.
func (e *Extractor) ExtractSections(ctx context.Context, doc *types.EvidenceDocument) ([]SectionDraft, error) {
	if doc == nil {
		return nil, &types.ExtractionError{Reason: "document required"}
	}
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), e.opts.Timeout)
	defer cancel()

	// Parsers are not context-aware; run them aside so the timeout holds.
	done := make(chan extractOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extractOutcome{err: fmt.Errorf("parser panic: %v", r)}
			}
		}()
		drafts, err := e.extract(ctx, doc)
		done <- extractOutcome{drafts: drafts, err: err}
	}()

	var out extractOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
	}
	if out.err != nil {
		return nil, asExtractionError(doc.ID, out.err)
	}
	return out.drafts, nil
}

func (e *Extractor) extract(ctx context.Context, doc *types.EvidenceDocument) ([]SectionDraft, error) {
	content, err := e.source.Load(ctx, doc)
	if err != nil {
		return nil, err
	}
	text, err := e.text.ExtractText(ctx, content.Name, content.MimeType, content.Data)
	if err != nil {
		return nil, fmt.Errorf("unreadable file: %w", err)
	}
	drafts := SplitSections(text, e.opts.ChunkSize, e.opts.ChunkOverlap)
	if len(drafts) == 0 {
		return nil, errNoText
	}
	e.log.Debug("Sections extracted",
		"document_id", doc.ID,
		"source", content.Name,
		"mime_type", content.MimeType,
		"bytes", len(content.Data),
		"sections", len(drafts),
	)
	return drafts, nil
}

var errNoText = errors.New("no extractable text")

func asExtractionError(documentID uint, err error) error {
	var ee *types.ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	reason := "unreadable or corrupted file"
	switch {
	case errors.Is(err, ErrMissingSource):
		reason = "file is missing"
	case errors.Is(err, errNoText):
		reason = "no extractable text"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "extraction timed out"
	case errors.Is(err, context.Canceled):
		reason = "extraction canceled"
	}
	return &types.ExtractionError{DocumentID: documentID, Reason: reason, Err: err}
}

// Rederive extracts doc and replaces its sections wholesale. Extraction runs
// before anything is written, so a failure leaves the old state.
func (e *Extractor) Rederive(dbc dbctx.Context, doc *types.EvidenceDocument) ([]*types.Section, error) {
	drafts, err := e.ExtractSections(dbc.Ctx, doc)
	if err != nil {
		return nil, err
	}
	return e.ReplaceSections(dbc, doc, drafts)
}

// ReplaceSections persists drafts as doc's sections. The old sections and every
// comparison that referenced them or the document are deleted in the same
// transaction.
func (e *Extractor) ReplaceSections(dbc dbctx.Context, doc *types.EvidenceDocument, drafts []SectionDraft) ([]*types.Section, error) {
	rows := make([]*types.Section, 0, len(drafts))
	for _, d := range drafts {
		meta, _ := json.Marshal(map[string]any{"heading_kind": d.HeadingKind})
		rows = append(rows, &types.Section{
			Title:    d.Title,
			Content:  d.Content,
			Metadata: datatypes.JSON(meta),
		})
	}
	saved, err := e.sections.ReplaceForDocument(dbc, doc.ID, rows)
	if err != nil {
		return nil, fmt.Errorf("replace sections for document %d: %w", doc.ID, err)
	}
	e.log.Info("Sections re-derived", "document_id", doc.ID, "sections", len(saved))
	return saved, nil
}
