package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/research-evidence-backend/internal/http"
	httpH "github.com/yungbote/research-evidence-backend/internal/http/handlers"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Comparison *httpH.ComparisonHandler
	Evidence   *httpH.EvidenceHandler
	Progress   *httpH.ProgressHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(db),
		Comparison: httpH.NewComparisonHandler(services.Comparison),
		Evidence:   httpH.NewEvidenceHandler(services.Comparison),
		Progress:   httpH.NewProgressHandler(),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers) *gin.Engine {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:               log,
		ServiceName:       serviceName,
		AllowedOrigins:    cfg.AllowedOrigins,
		HealthHandler:     handlers.Health,
		ComparisonHandler: handlers.Comparison,
		EvidenceHandler:   handlers.Evidence,
		ProgressHandler:   handlers.Progress,
	})
}
