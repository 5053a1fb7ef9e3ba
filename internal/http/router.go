package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/research-evidence-backend/internal/http/handlers"
	httpMW "github.com/yungbote/research-evidence-backend/internal/http/middleware"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string

	ComparisonHandler *httpH.ComparisonHandler
	EvidenceHandler   *httpH.EvidenceHandler
	ProgressHandler   *httpH.ProgressHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Comparisons
		if cfg.ComparisonHandler != nil {
			api.POST("/comparisons/documents", cfg.ComparisonHandler.CompareDocuments)
			api.GET("/comparisons/:id", cfg.ComparisonHandler.GetComparison)
			api.POST("/comparisons/:id/sections", cfg.ComparisonHandler.CompareSections)
		}

		// Evidence
		if cfg.EvidenceHandler != nil {
			api.POST("/evidence/recalculate", cfg.EvidenceHandler.RecalculateSections)
			api.GET("/evidence/:id/sections", cfg.EvidenceHandler.ListSections)
			api.GET("/evidence/:id/comparisons", cfg.EvidenceHandler.ListDocumentComparisons)
			api.GET("/sections/:id/comparisons", cfg.EvidenceHandler.ListSectionComparisons)
		}

		// Progress
		if cfg.ProgressHandler != nil {
			api.POST("/progress", cfg.ProgressHandler.Aggregate)
		}
	}

	return r
}
