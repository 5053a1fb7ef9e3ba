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

type EvidenceDocumentRepo interface {
	Create(dbc dbctx.Context, rows []*types.EvidenceDocument) ([]*types.EvidenceDocument, error)
	GetByID(dbc dbctx.Context, id uint) (*types.EvidenceDocument, error)
	GetByIDs(dbc dbctx.Context, ids []uint) ([]*types.EvidenceDocument, error)
	UpdateStatus(dbc dbctx.Context, id uint, status string) error
}

type evidenceDocumentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEvidenceDocumentRepo(db *gorm.DB, baseLog *logger.Logger) EvidenceDocumentRepo {
	return &evidenceDocumentRepo{
		db:  db,
		log: baseLog.With("repo", "EvidenceDocumentRepo"),
	}
}

func (r *evidenceDocumentRepo) Create(dbc dbctx.Context, rows []*types.EvidenceDocument) ([]*types.EvidenceDocument, error) {
	if len(rows) == 0 {
		return []*types.EvidenceDocument{}, nil
	}
	for _, row := range rows {
		if row != nil && row.Status == "" {
			row.Status = types.DocumentStatusSubmitted
		}
	}
	if err := dbc.Conn(r.db).Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("create evidence documents: %w", err)
	}
	return rows, nil
}

func (r *evidenceDocumentRepo) GetByID(dbc dbctx.Context, id uint) (*types.EvidenceDocument, error) {
	var out types.EvidenceDocument
	err := dbc.Conn(r.db).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("evidence document %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *evidenceDocumentRepo) GetByIDs(dbc dbctx.Context, ids []uint) ([]*types.EvidenceDocument, error) {
	var out []*types.EvidenceDocument
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.Conn(r.db).Where("id IN ?", ids).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *evidenceDocumentRepo) UpdateStatus(dbc dbctx.Context, id uint, status string) error {
	res := dbc.Conn(r.db).Model(&types.EvidenceDocument{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("evidence document %d: %w", id, types.ErrNotFound)
	}
	return nil
}
