package evidence

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/research-evidence-backend/internal/domain"
	"github.com/yungbote/research-evidence-backend/internal/platform/dbctx"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

// ComparisonRepo is the comparison-pair registry. Pairs are canonicalized
// (lower id first) before every lookup or insert, and creation is
// insert-if-absent against the pair's unique index.
type ComparisonRepo interface {
	GetOrCreateDocumentComparison(dbc dbctx.Context, idA, idB uint) (*types.DocumentComparison, error)
	GetOrCreateSectionComparison(dbc dbctx.Context, parentID, sectionA, sectionB, elementID uint) (*types.SectionComparison, error)

	GetDocumentComparison(dbc dbctx.Context, id uint) (*types.DocumentComparison, error)
	FindDocumentComparison(dbc dbctx.Context, idA, idB uint) (*types.DocumentComparison, error)
	GetSectionComparison(dbc dbctx.Context, id uint) (*types.SectionComparison, error)

	// Fill* set the measurements only while the row is still uncomputed. The
	// returned row is the stored state; filled is false when another caller won.
	FillDocumentScore(dbc dbctx.Context, id uint, sim types.Similarity) (row *types.DocumentComparison, filled bool, err error)
	FillSectionScore(dbc dbctx.Context, id uint, sim types.Similarity) (row *types.SectionComparison, filled bool, err error)

	ListByDocument(dbc dbctx.Context, documentID uint) ([]*types.DocumentComparison, error)
	ListBySection(dbc dbctx.Context, sectionID uint) ([]*types.SectionComparison, error)
	ListByParent(dbc dbctx.Context, parentID uint) ([]*types.SectionComparison, error)
}

type comparisonRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComparisonRepo(db *gorm.DB, baseLog *logger.Logger) ComparisonRepo {
	return &comparisonRepo{
		db:  db,
		log: baseLog.With("repo", "ComparisonRepo"),
	}
}

func (r *comparisonRepo) GetOrCreateDocumentComparison(dbc dbctx.Context, idA, idB uint) (*types.DocumentComparison, error) {
	first, second := types.CanonicalPair(idA, idB)
	if first == second {
		return nil, &types.InvalidPairError{Kind: "document", First: idA, Second: idB, Reason: "a document cannot be compared with itself"}
	}
	if first == 0 {
		return nil, &types.InvalidPairError{Kind: "document", First: idA, Second: idB, Reason: "document id required"}
	}
	conn := dbc.Conn(r.db)

	if row, err := findDocumentPair(conn, first, second); err == nil {
		return row, nil
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	candidate := &types.DocumentComparison{
		FirstID:    first,
		SecondID:   second,
		Similarity: types.Similarity{AnalysisStatus: types.AnalysisPending},
	}
	res := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(candidate)
	if res.Error != nil && !isUniqueViolation(res.Error) {
		return nil, fmt.Errorf("create document comparison (%d, %d): %w", first, second, res.Error)
	}
	if res.Error == nil && res.RowsAffected == 1 && candidate.ID != 0 {
		r.log.Debug("Document comparison created", "comparison_id", candidate.ID, "first_id", first, "second_id", second)
		return candidate, nil
	}
	// Another caller inserted the pair first.
	return findDocumentPair(conn, first, second)
}

func (r *comparisonRepo) GetOrCreateSectionComparison(dbc dbctx.Context, parentID, sectionA, sectionB, elementID uint) (*types.SectionComparison, error) {
	first, second := types.CanonicalPair(sectionA, sectionB)
	if first == second {
		return nil, &types.InvalidPairError{Kind: "section", First: sectionA, Second: sectionB, Reason: "a section cannot be compared with itself"}
	}
	if first == 0 || parentID == 0 {
		return nil, &types.InvalidPairError{Kind: "section", First: sectionA, Second: sectionB, Reason: "section and parent comparison ids required"}
	}
	conn := dbc.Conn(r.db)

	if row, err := findSectionPair(conn, first, second); err == nil {
		return row, nil
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	candidate := &types.SectionComparison{
		ParentComparisonID: parentID,
		FirstSectionID:     first,
		SecondSectionID:    second,
		ElementID:          elementID,
		Similarity:         types.Similarity{AnalysisStatus: types.AnalysisPending},
	}
	res := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(candidate)
	if res.Error != nil && !isUniqueViolation(res.Error) {
		return nil, fmt.Errorf("create section comparison (%d, %d): %w", first, second, res.Error)
	}
	if res.Error == nil && res.RowsAffected == 1 && candidate.ID != 0 {
		r.log.Debug("Section comparison created",
			"comparison_id", candidate.ID,
			"parent_comparison_id", parentID,
			"element_id", elementID,
		)
		return candidate, nil
	}
	return findSectionPair(conn, first, second)
}

func findDocumentPair(conn *gorm.DB, first, second uint) (*types.DocumentComparison, error) {
	var out types.DocumentComparison
	err := conn.Where("first_id = ? AND second_id = ?", first, second).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document comparison (%d, %d): %w", first, second, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func findSectionPair(conn *gorm.DB, first, second uint) (*types.SectionComparison, error) {
	var out types.SectionComparison
	err := conn.Where("first_section_id = ? AND second_section_id = ?", first, second).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("section comparison (%d, %d): %w", first, second, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *comparisonRepo) GetDocumentComparison(dbc dbctx.Context, id uint) (*types.DocumentComparison, error) {
	var out types.DocumentComparison
	err := dbc.Conn(r.db).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document comparison %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *comparisonRepo) FindDocumentComparison(dbc dbctx.Context, idA, idB uint) (*types.DocumentComparison, error) {
	first, second := types.CanonicalPair(idA, idB)
	return findDocumentPair(dbc.Conn(r.db), first, second)
}

func (r *comparisonRepo) GetSectionComparison(dbc dbctx.Context, id uint) (*types.SectionComparison, error) {
	var out types.SectionComparison
	err := dbc.Conn(r.db).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("section comparison %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func similarityUpdates(sim types.Similarity) map[string]any {
	computedAt := time.Now().UTC()
	if sim.ComputedAt != nil {
		computedAt = *sim.ComputedAt
	}
	status := sim.AnalysisStatus
	if status == "" || status == types.AnalysisPending {
		status = types.AnalysisSkipped
	}
	return map[string]any{
		"similarity_degree":          sim.SimilarityDegree,
		"external_similarity_degree": sim.ExternalSimilarityDegree,
		"similarity_verdict":         sim.SimilarityVerdict,
		"analysis_status":            status,
		"analysis_error":             sim.AnalysisError,
		"computed_at":                computedAt,
		"updated_at":                 time.Now().UTC(),
	}
}

func (r *comparisonRepo) FillDocumentScore(dbc dbctx.Context, id uint, sim types.Similarity) (*types.DocumentComparison, bool, error) {
	if sim.SimilarityDegree == nil {
		return nil, false, fmt.Errorf("fill document comparison %d: similarity degree required", id)
	}
	conn := dbc.Conn(r.db)
	res := conn.Model(&types.DocumentComparison{}).
		Where("id = ? AND similarity_degree IS NULL", id).
		Updates(similarityUpdates(sim))
	if res.Error != nil {
		return nil, false, fmt.Errorf("fill document comparison %d: %w", id, res.Error)
	}
	row, err := r.GetDocumentComparison(dbc, id)
	if err != nil {
		return nil, false, err
	}
	return row, res.RowsAffected == 1, nil
}

func (r *comparisonRepo) FillSectionScore(dbc dbctx.Context, id uint, sim types.Similarity) (*types.SectionComparison, bool, error) {
	if sim.SimilarityDegree == nil {
		return nil, false, fmt.Errorf("fill section comparison %d: similarity degree required", id)
	}
	conn := dbc.Conn(r.db)
	res := conn.Model(&types.SectionComparison{}).
		Where("id = ? AND similarity_degree IS NULL", id).
		Updates(similarityUpdates(sim))
	if res.Error != nil {
		return nil, false, fmt.Errorf("fill section comparison %d: %w", id, res.Error)
	}
	row, err := r.GetSectionComparison(dbc, id)
	if err != nil {
		return nil, false, err
	}
	return row, res.RowsAffected == 1, nil
}

func (r *comparisonRepo) ListByDocument(dbc dbctx.Context, documentID uint) ([]*types.DocumentComparison, error) {
	var out []*types.DocumentComparison
	if err := dbc.Conn(r.db).
		Where("first_id = ? OR second_id = ?", documentID, documentID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *comparisonRepo) ListBySection(dbc dbctx.Context, sectionID uint) ([]*types.SectionComparison, error) {
	var out []*types.SectionComparison
	if err := dbc.Conn(r.db).
		Where("first_section_id = ? OR second_section_id = ?", sectionID, sectionID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *comparisonRepo) ListByParent(dbc dbctx.Context, parentID uint) ([]*types.SectionComparison, error) {
	var out []*types.SectionComparison
	if err := dbc.Conn(r.db).
		Where("parent_comparison_id = ?", parentID).
		Order("element_id ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
