package repos

import (
	"github.com/yungbote/research-evidence-backend/internal/data/repos/evidence"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type EvidenceDocumentRepo = evidence.EvidenceDocumentRepo
type SectionRepo = evidence.SectionRepo
type ComparisonRepo = evidence.ComparisonRepo
type ReviewLogRepo = evidence.ReviewLogRepo

func NewEvidenceDocumentRepo(db *gorm.DB, baseLog *logger.Logger) EvidenceDocumentRepo {
	return evidence.NewEvidenceDocumentRepo(db, baseLog)
}
func NewSectionRepo(db *gorm.DB, baseLog *logger.Logger) SectionRepo {
	return evidence.NewSectionRepo(db, baseLog)
}
func NewComparisonRepo(db *gorm.DB, baseLog *logger.Logger) ComparisonRepo {
	return evidence.NewComparisonRepo(db, baseLog)
}
func NewReviewLogRepo(db *gorm.DB, baseLog *logger.Logger) ReviewLogRepo {
	return evidence.NewReviewLogRepo(db, baseLog)
}
