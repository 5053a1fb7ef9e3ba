package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	httpH "github.com/yungbote/research-evidence-backend/internal/http/handlers"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

func TestRouterHealthcheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{
		Log:           logger.Nop(),
		ServiceName:   "research-evidence-test",
		HealthHandler: httpH.NewHealthHandler(nil),
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/comparisons/documents", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
