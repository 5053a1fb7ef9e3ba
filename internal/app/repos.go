package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/research-evidence-backend/internal/data/repos"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

type Repos struct {
	EvidenceDocument repos.EvidenceDocumentRepo
	Section          repos.SectionRepo
	Comparison       repos.ComparisonRepo
	ReviewLog        repos.ReviewLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		EvidenceDocument: repos.NewEvidenceDocumentRepo(db, log),
		Section:          repos.NewSectionRepo(db, log),
		Comparison:       repos.NewComparisonRepo(db, log),
		ReviewLog:        repos.NewReviewLogRepo(db, log),
	}
}
