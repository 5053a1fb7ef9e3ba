package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/research-evidence-backend/internal/http/response"
	"github.com/yungbote/research-evidence-backend/internal/services"
)

type ProgressHandler struct{}

func NewProgressHandler() *ProgressHandler { return &ProgressHandler{} }

type progressRequest struct {
	Activities []services.ActivityProgress `json:"activities"`
}

type activityPercent struct {
	ActivityID uint    `json:"activity_id"`
	Percent    float64 `json:"percent"`
}

// POST /api/progress
func (h *ProgressHandler) Aggregate(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out := make([]activityPercent, 0, len(req.Activities))
	for _, a := range req.Activities {
		out = append(out, activityPercent{ActivityID: a.ActivityID, Percent: services.ActivityPercent(a)})
	}
	response.RespondOK(c, gin.H{
		"plan_percent": services.PlanPercent(req.Activities),
		"activities":   out,
	})
}
