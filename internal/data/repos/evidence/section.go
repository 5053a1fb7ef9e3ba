package evidence

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/research-evidence-backend/internal/domain"
	"github.com/yungbote/research-evidence-backend/internal/platform/dbctx"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

type SectionRepo interface {
	// ReplaceForDocument wipes the document's sections together with every
	// comparison that referenced them or the document, then inserts rows in order.
	ReplaceForDocument(dbc dbctx.Context, documentID uint, rows []*types.Section) ([]*types.Section, error)
	GetByDocumentID(dbc dbctx.Context, documentID uint) ([]*types.Section, error)
	GetByID(dbc dbctx.Context, id uint) (*types.Section, error)
	GetByIDs(dbc dbctx.Context, ids []uint) ([]*types.Section, error)
	CountByDocumentID(dbc dbctx.Context, documentID uint) (int64, error)
}

type sectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSectionRepo(db *gorm.DB, baseLog *logger.Logger) SectionRepo {
	return &sectionRepo{
		db:  db,
		log: baseLog.With("repo", "SectionRepo"),
	}
}

func (r *sectionRepo) ReplaceForDocument(dbc dbctx.Context, documentID uint, rows []*types.Section) ([]*types.Section, error) {
	if documentID == 0 {
		return nil, fmt.Errorf("replace sections: document id required")
	}
	err := inTx(dbc, r.db, func(tx *gorm.DB) error {
		removed, err := invalidateDocument(tx, documentID)
		if err != nil {
			return err
		}
		if removed.any() {
			r.log.Info("Invalidated comparisons for re-derived document",
				"document_id", documentID,
				"document_comparisons", removed.documentComparisons,
				"section_comparisons", removed.sectionComparisons,
				"sections", removed.sections,
			)
		}
		if len(rows) == 0 {
			return nil
		}
		now := time.Now().UTC()
		for i, row := range rows {
			row.ID = 0
			row.DocumentID = documentID
			row.Sequence = i
			if row.CreatedAt.IsZero() {
				row.CreatedAt = now
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert sections: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type invalidation struct {
	documentComparisons int64
	sectionComparisons  int64
	sections            int64
}

func (i invalidation) any() bool {
	return i.documentComparisons+i.sectionComparisons+i.sections > 0
}

// invalidateDocument deletes explicitly rather than relying on FK cascades
// alone, so a database without enforced foreign keys stays consistent too.
func invalidateDocument(tx *gorm.DB, documentID uint) (invalidation, error) {
	var out invalidation

	var sectionIDs []uint
	if err := tx.Model(&types.Section{}).Where("document_id = ?", documentID).Pluck("id", &sectionIDs).Error; err != nil {
		return out, fmt.Errorf("load sections: %w", err)
	}
	var parentIDs []uint
	if err := tx.Model(&types.DocumentComparison{}).
		Where("first_id = ? OR second_id = ?", documentID, documentID).
		Pluck("id", &parentIDs).Error; err != nil {
		return out, fmt.Errorf("load document comparisons: %w", err)
	}

	if len(parentIDs) > 0 {
		res := tx.Where("parent_comparison_id IN ?", parentIDs).Delete(&types.SectionComparison{})
		if res.Error != nil {
			return out, fmt.Errorf("delete section comparisons by parent: %w", res.Error)
		}
		out.sectionComparisons += res.RowsAffected
	}
	if len(sectionIDs) > 0 {
		res := tx.Where("first_section_id IN ? OR second_section_id IN ?", sectionIDs, sectionIDs).
			Delete(&types.SectionComparison{})
		if res.Error != nil {
			return out, fmt.Errorf("delete section comparisons by section: %w", res.Error)
		}
		out.sectionComparisons += res.RowsAffected
	}
	if len(parentIDs) > 0 {
		res := tx.Where("id IN ?", parentIDs).Delete(&types.DocumentComparison{})
		if res.Error != nil {
			return out, fmt.Errorf("delete document comparisons: %w", res.Error)
		}
		out.documentComparisons = res.RowsAffected
	}
	if len(sectionIDs) > 0 {
		res := tx.Where("id IN ?", sectionIDs).Delete(&types.Section{})
		if res.Error != nil {
			return out, fmt.Errorf("delete sections: %w", res.Error)
		}
		out.sections = res.RowsAffected
	}
	return out, nil
}

func (r *sectionRepo) GetByDocumentID(dbc dbctx.Context, documentID uint) ([]*types.Section, error) {
	var out []*types.Section
	if err := dbc.Conn(r.db).
		Where("document_id = ?", documentID).
		Order("sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sectionRepo) GetByID(dbc dbctx.Context, id uint) (*types.Section, error) {
	var out types.Section
	err := dbc.Conn(r.db).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("section %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sectionRepo) GetByIDs(dbc dbctx.Context, ids []uint) ([]*types.Section, error) {
	var out []*types.Section
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("id IN ?", ids).
		Order("document_id ASC, sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sectionRepo) CountByDocumentID(dbc dbctx.Context, documentID uint) (int64, error) {
	var n int64
	if err := dbc.Conn(r.db).Model(&types.Section{}).Where("document_id = ?", documentID).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
