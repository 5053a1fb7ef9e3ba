package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/research-evidence-backend/internal/ingestion/extractor"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
	"github.com/yungbote/research-evidence-backend/internal/services"
	"github.com/yungbote/research-evidence-backend/internal/similarity"
)

type Services struct {
	Extractor  *extractor.Extractor
	Engine     *similarity.Engine
	Comparison services.ComparisonService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients *Clients) Services {
	log.Info("Wiring services...")

	source := extractor.NewSource(log, cfg.Source, clients.Objects)
	text := extractor.NewTextExtractor(log, clients.DocumentAI, clients.OCR)
	ex := extractor.New(log, source, text, reposet.Section, cfg.Extract)

	var analyzer similarity.Analyzer
	if clients.OpenAI != nil {
		analyzer = similarity.NewOpenAIAnalyzer(clients.OpenAI, cfg.AnalysisMaxRunes)
	}
	engine := similarity.NewEngine(log, analyzer, cfg.AnalysisTimeout)

	comparison := services.NewComparisonService(
		db,
		log,
		reposet.EvidenceDocument,
		reposet.Section,
		reposet.Comparison,
		reposet.ReviewLog,
		ex,
		engine,
		clients.Locker,
		services.ComparisonOptions{LockTTL: cfg.LockTTL, LockWait: cfg.LockWait},
	)
	return Services{Extractor: ex, Engine: engine, Comparison: comparison}
}
