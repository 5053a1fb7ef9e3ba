package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/yungbote/research-evidence-backend/internal/data/repos"
	types "github.com/yungbote/research-evidence-backend/internal/domain"
	"github.com/yungbote/research-evidence-backend/internal/ingestion/extractor"
	"github.com/yungbote/research-evidence-backend/internal/observability"
	"github.com/yungbote/research-evidence-backend/internal/platform/ctxutil"
	"github.com/yungbote/research-evidence-backend/internal/platform/dbctx"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
	"github.com/yungbote/research-evidence-backend/internal/platform/redis"
	"github.com/yungbote/research-evidence-backend/internal/similarity"
)

const (
	DefaultLockTTL  = 2 * time.Minute
	DefaultLockWait = 30 * time.Second

	// UnavailableNotice accompanies comparisons whose qualitative verdict could not be obtained.
	UnavailableNotice = "qualitative analysis is currently unavailable; the numeric similarity was stored"
)

// SectionDeriver replaces a document's sections with freshly extracted ones.
// ExtractSections never touches the database.
type SectionDeriver interface {
	ExtractSections(ctx context.Context, doc *types.EvidenceDocument) ([]extractor.SectionDraft, error)
	ReplaceSections(dbc dbctx.Context, doc *types.EvidenceDocument, drafts []extractor.SectionDraft) ([]*types.Section, error)
	Rederive(dbc dbctx.Context, doc *types.EvidenceDocument) ([]*types.Section, error)
}

// Scorer computes the similarity of two texts. It never fails.
type Scorer interface {
	Compute(ctx context.Context, textA, textB string) similarity.Result
}

type DocumentComparisonResult struct {
	Comparison *types.DocumentComparison `json:"comparison"`
	Notice     string                    `json:"notice,omitempty"`
}

type SectionComparisonResult struct {
	Comparison *types.SectionComparison `json:"comparison"`
	Notice     string                   `json:"notice,omitempty"`
}

type ComparisonView struct {
	Comparison *types.DocumentComparison  `json:"comparison"`
	Sections   []*types.SectionComparison `json:"section_comparisons"`
	Notice     string                     `json:"notice,omitempty"`
}

type RecalculateResult struct {
	FirstID        uint             `json:"first_id"`
	SecondID       uint             `json:"second_id"`
	FirstSections  []*types.Section `json:"first_sections"`
	SecondSections []*types.Section `json:"second_sections"`
}

type ComparisonService interface {
	CompareDocuments(ctx context.Context, docA, docB uint) (*DocumentComparisonResult, error)
	CompareSections(ctx context.Context, parentID, sectionA, sectionB, elementID uint) (*SectionComparisonResult, error)
	RecalculateSections(ctx context.Context, docA, docB uint, confirm bool, actorID uint) (*RecalculateResult, error)

	SectionsForDocument(ctx context.Context, docID uint) ([]*types.Section, error)
	ComparisonsForDocument(ctx context.Context, docID uint) ([]*types.DocumentComparison, error)
	ComparisonsForSection(ctx context.Context, sectionID uint) ([]*types.SectionComparison, error)
	ComparisonView(ctx context.Context, comparisonID uint) (*ComparisonView, error)
}

type ComparisonOptions struct {
	LockTTL  time.Duration
	LockWait time.Duration
}

type comparisonService struct {
	db          *gorm.DB
	log         *logger.Logger
	docs        repos.EvidenceDocumentRepo
	sections    repos.SectionRepo
	comparisons repos.ComparisonRepo
	reviews     repos.ReviewLogRepo
	deriver     SectionDeriver
	scorer      Scorer
	locker      redis.Locker
	flight      singleflight.Group
	opts        ComparisonOptions
}

func NewComparisonService(
	db *gorm.DB,
	baseLog *logger.Logger,
	docs repos.EvidenceDocumentRepo,
	sections repos.SectionRepo,
	comparisons repos.ComparisonRepo,
	reviews repos.ReviewLogRepo,
	deriver SectionDeriver,
	scorer Scorer,
	locker redis.Locker,
	opts ComparisonOptions,
) ComparisonService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.LockWait <= 0 {
		opts.LockWait = DefaultLockWait
	}
	if locker == nil {
		locker = redis.NopLocker{}
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &comparisonService{
		db:          db,
		log:         baseLog.With("service", "ComparisonService"),
		docs:        docs,
		sections:    sections,
		comparisons: comparisons,
		reviews:     reviews,
		deriver:     deriver,
		scorer:      scorer,
		locker:      locker,
		opts:        opts,
	}
}

func (s *comparisonService) CompareDocuments(ctx context.Context, docA, docB uint) (out *DocumentComparisonResult, err error) {
	ctx, span := observability.StartSpan(ctxutil.Default(ctx), "comparison.compare_documents",
		attribute.Int64("document.first", int64(docA)),
		attribute.Int64("document.second", int64(docB)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if docA == docB {
		return nil, &types.InvalidPairError{Kind: "document", First: docA, Second: docB, Reason: "a document cannot be compared with itself"}
	}
	dbc := dbctx.Context{Ctx: ctx}

	first, err := s.docs.GetByID(dbc, docA)
	if err != nil {
		return nil, err
	}
	second, err := s.docs.GetByID(dbc, docB)
	if err != nil {
		return nil, err
	}
	for _, doc := range []*types.EvidenceDocument{first, second} {
		if err := s.ensureSections(ctx, doc); err != nil {
			return nil, err
		}
	}

	row, err := s.comparisons.GetOrCreateDocumentComparison(dbc, docA, docB)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("comparison.id", int64(row.ID)))
	if !row.Computed() {
		row, err = s.computeDocument(ctx, row.ID)
		if err != nil {
			return nil, err
		}
	}
	return &DocumentComparisonResult{Comparison: row, Notice: noticeFor(row.Similarity)}, nil
}

// ensureSections extracts doc when it has no sections yet. Concurrent callers
// for the same document share one extraction.
func (s *comparisonService) ensureSections(ctx context.Context, doc *types.EvidenceDocument) error {
	ctx, span := observability.StartSpan(ctx, "comparison.ensure_sections", attribute.Int64("document.id", int64(doc.ID)))
	key := fmt.Sprintf("sections:%d", doc.ID)
	_, err, _ := s.flight.Do(key, func() (any, error) {
		work := context.WithoutCancel(ctx)
		n, err := s.sections.CountByDocumentID(dbctx.Context{Ctx: work}, doc.ID)
		if err != nil || n > 0 {
			return nil, err
		}
		release := s.lock(work, key)
		defer release()

		n, err = s.sections.CountByDocumentID(dbctx.Context{Ctx: work}, doc.ID)
		if err != nil || n > 0 {
			return nil, err
		}
		_, err = s.deriver.Rederive(dbctx.Context{Ctx: work}, doc)
		return nil, err
	})
	observability.EndSpan(span, err)
	return err
}

func (s *comparisonService) computeDocument(ctx context.Context, comparisonID uint) (*types.DocumentComparison, error) {
	ctx, span := observability.StartSpan(ctx, "comparison.compute_document", attribute.Int64("comparison.id", int64(comparisonID)))
	key := fmt.Sprintf("doc:%d", comparisonID)
	v, err, shared := s.flight.Do(key, func() (any, error) {
		// Detached so one caller going away does not fail the others waiting on it.
		work := context.WithoutCancel(ctx)
		dbc := dbctx.Context{Ctx: work}
		release := s.lock(work, key)
		defer release()

		row, err := s.comparisons.GetDocumentComparison(dbc, comparisonID)
		if err != nil || row.Computed() {
			return row, err
		}
		textA, err := s.documentText(dbc, row.FirstID)
		if err != nil {
			return nil, err
		}
		textB, err := s.documentText(dbc, row.SecondID)
		if err != nil {
			return nil, err
		}
		res := s.scorer.Compute(work, textA, textB)
		row, filled, err := s.comparisons.FillDocumentScore(dbc, comparisonID, res.Similarity())
		if err != nil {
			return nil, err
		}
		s.log.WithContext(work).Info("Document comparison computed",
			"comparison_id", comparisonID,
			"score", res.Score,
			"analysis_status", res.Status,
			"filled", filled,
		)
		return row, nil
	})
	span.SetAttributes(attribute.Bool("singleflight.shared", shared))
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return v.(*types.DocumentComparison), nil
}

func (s *comparisonService) documentText(dbc dbctx.Context, docID uint) (string, error) {
	secs, err := s.sections.GetByDocumentID(dbc, docID)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(secs))
	for _, sec := range secs {
		if strings.TrimSpace(sec.Content) != "" {
			parts = append(parts, sec.Content)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func (s *comparisonService) CompareSections(ctx context.Context, parentID, sectionA, sectionB, elementID uint) (out *SectionComparisonResult, err error) {
	ctx, span := observability.StartSpan(ctxutil.Default(ctx), "comparison.compare_sections",
		attribute.Int64("comparison.parent", int64(parentID)),
		attribute.Int64("section.first", int64(sectionA)),
		attribute.Int64("section.second", int64(sectionB)),
		attribute.Int64("element.id", int64(elementID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if sectionA == sectionB {
		return nil, &types.InvalidPairError{Kind: "section", First: sectionA, Second: sectionB, Reason: "a section cannot be compared with itself"}
	}
	dbc := dbctx.Context{Ctx: ctx}
	parent, err := s.comparisons.GetDocumentComparison(dbc, parentID)
	if err != nil {
		return nil, err
	}
	secA, err := s.sections.GetByID(dbc, sectionA)
	if err != nil {
		return nil, err
	}
	secB, err := s.sections.GetByID(dbc, sectionB)
	if err != nil {
		return nil, err
	}
	if secA.DocumentID == secB.DocumentID {
		return nil, &types.InvalidPairError{
			Kind: "section", First: sectionA, Second: sectionB,
			Reason: fmt.Sprintf("both sections belong to document %d", secA.DocumentID),
		}
	}
	for _, sec := range []*types.Section{secA, secB} {
		if !parent.Involves(sec.DocumentID) {
			return nil, &types.InvalidPairError{
				Kind: "section", First: sectionA, Second: sectionB,
				Reason: fmt.Sprintf("section %d belongs to document %d, which is not part of comparison %d", sec.ID, sec.DocumentID, parentID),
			}
		}
	}

	row, err := s.comparisons.GetOrCreateSectionComparison(dbc, parentID, sectionA, sectionB, elementID)
	if err != nil {
		return nil, err
	}
	if !row.Computed() {
		row, err = s.computeSection(ctx, row.ID)
		if err != nil {
			return nil, err
		}
	}
	return &SectionComparisonResult{Comparison: row, Notice: noticeFor(row.Similarity)}, nil
}

func (s *comparisonService) computeSection(ctx context.Context, comparisonID uint) (*types.SectionComparison, error) {
	ctx, span := observability.StartSpan(ctx, "comparison.compute_section", attribute.Int64("comparison.id", int64(comparisonID)))
	key := fmt.Sprintf("section:%d", comparisonID)
	v, err, shared := s.flight.Do(key, func() (any, error) {
		work := context.WithoutCancel(ctx)
		dbc := dbctx.Context{Ctx: work}
		release := s.lock(work, key)
		defer release()

		row, err := s.comparisons.GetSectionComparison(dbc, comparisonID)
		if err != nil || row.Computed() {
			return row, err
		}
		secs, err := s.sections.GetByIDs(dbc, []uint{row.FirstSectionID, row.SecondSectionID})
		if err != nil {
			return nil, err
		}
		byID := make(map[uint]*types.Section, len(secs))
		for _, sec := range secs {
			byID[sec.ID] = sec
		}
		first, second := byID[row.FirstSectionID], byID[row.SecondSectionID]
		if first == nil || second == nil {
			return nil, fmt.Errorf("sections of comparison %d: %w", comparisonID, types.ErrNotFound)
		}
		res := s.scorer.Compute(work, first.Content, second.Content)
		row, filled, err := s.comparisons.FillSectionScore(dbc, comparisonID, res.Similarity())
		if err != nil {
			return nil, err
		}
		s.log.WithContext(work).Info("Section comparison computed",
			"comparison_id", comparisonID,
			"score", res.Score,
			"analysis_status", res.Status,
			"filled", filled,
		)
		return row, nil
	})
	span.SetAttributes(attribute.Bool("singleflight.shared", shared))
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return v.(*types.SectionComparison), nil
}

// RecalculateSections re-derives the sections of both documents. Both are
// extracted first; only the replacement and the review entries share a
// transaction. Every comparison touching either document is discarded.
func (s *comparisonService) RecalculateSections(ctx context.Context, docA, docB uint, confirm bool, actorID uint) (out *RecalculateResult, err error) {
	ctx, span := observability.StartSpan(ctxutil.Default(ctx), "comparison.recalculate_sections",
		attribute.Int64("document.first", int64(docA)),
		attribute.Int64("document.second", int64(docB)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if !confirm {
		return nil, types.ErrConfirmationRequired
	}
	if docA == docB {
		return nil, &types.InvalidPairError{Kind: "document", First: docA, Second: docB, Reason: "a document cannot be compared with itself"}
	}
	dbc := dbctx.Context{Ctx: ctx}
	first, err := s.docs.GetByID(dbc, docA)
	if err != nil {
		return nil, err
	}
	second, err := s.docs.GetByID(dbc, docB)
	if err != nil {
		return nil, err
	}

	lo, hi := types.CanonicalPair(docA, docB)
	for _, id := range []uint{lo, hi} {
		release := s.lock(ctx, fmt.Sprintf("sections:%d", id))
		defer release()
	}

	firstDrafts, err := s.deriver.ExtractSections(ctx, first)
	if err != nil {
		return nil, err
	}
	secondDrafts, err := s.deriver.ExtractSections(ctx, second)
	if err != nil {
		return nil, err
	}

	out = &RecalculateResult{FirstID: docA, SecondID: docB}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		var err error
		if out.FirstSections, err = s.deriver.ReplaceSections(inner, first, firstDrafts); err != nil {
			return err
		}
		if out.SecondSections, err = s.deriver.ReplaceSections(inner, second, secondDrafts); err != nil {
			return err
		}
		for _, pair := range [][2]uint{{docA, docB}, {docB, docA}} {
			ref := types.EntityRef{Kind: types.EntityEvidenceDocument, ID: pair[0]}
			payload := map[string]any{"other_document_id": pair[1]}
			if _, err := s.reviews.Append(inner, ref, actorID, types.ReviewRecalculate, "sections recalculated", payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Info("Sections recalculated",
		"first_id", docA,
		"second_id", docB,
		"first_sections", len(out.FirstSections),
		"second_sections", len(out.SecondSections),
		"actor_id", actorID,
	)
	return out, nil
}

func (s *comparisonService) SectionsForDocument(ctx context.Context, docID uint) ([]*types.Section, error) {
	dbc := dbctx.Context{Ctx: ctxutil.Default(ctx)}
	if _, err := s.docs.GetByID(dbc, docID); err != nil {
		return nil, err
	}
	return s.sections.GetByDocumentID(dbc, docID)
}

func (s *comparisonService) ComparisonsForDocument(ctx context.Context, docID uint) ([]*types.DocumentComparison, error) {
	dbc := dbctx.Context{Ctx: ctxutil.Default(ctx)}
	if _, err := s.docs.GetByID(dbc, docID); err != nil {
		return nil, err
	}
	return s.comparisons.ListByDocument(dbc, docID)
}

func (s *comparisonService) ComparisonsForSection(ctx context.Context, sectionID uint) ([]*types.SectionComparison, error) {
	dbc := dbctx.Context{Ctx: ctxutil.Default(ctx)}
	if _, err := s.sections.GetByID(dbc, sectionID); err != nil {
		return nil, err
	}
	return s.comparisons.ListBySection(dbc, sectionID)
}

func (s *comparisonService) ComparisonView(ctx context.Context, comparisonID uint) (*ComparisonView, error) {
	dbc := dbctx.Context{Ctx: ctxutil.Default(ctx)}
	row, err := s.comparisons.GetDocumentComparison(dbc, comparisonID)
	if err != nil {
		return nil, err
	}
	secs, err := s.comparisons.ListByParent(dbc, comparisonID)
	if err != nil {
		return nil, err
	}
	return &ComparisonView{Comparison: row, Sections: secs, Notice: noticeFor(row.Similarity)}, nil
}

// lock takes the cross-replica lock for key. Lock trouble never blocks the
// work: FillScore only writes unset scores, so a duplicate compute is harmless.
func (s *comparisonService) lock(ctx context.Context, key string) func() {
	release, acquired, err := s.locker.Acquire(ctx, key, s.opts.LockTTL, s.opts.LockWait)
	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		s.log.WithContext(ctx).Warn("Compute lock unavailable; continuing without it", "key", key, "error", err)
	case err == nil && !acquired:
		s.log.WithContext(ctx).Warn("Compute lock wait expired; continuing without it", "key", key)
	}
	if release == nil {
		return func() {}
	}
	return release
}

func noticeFor(sim types.Similarity) string {
	if sim.AnalysisStatus == types.AnalysisUnavailable {
		return UnavailableNotice
	}
	return ""
}
