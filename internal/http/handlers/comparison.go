package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/research-evidence-backend/internal/http/response"
	"github.com/yungbote/research-evidence-backend/internal/services"
)

type ComparisonHandler struct {
	comparisons services.ComparisonService
}

func NewComparisonHandler(comparisons services.ComparisonService) *ComparisonHandler {
	return &ComparisonHandler{comparisons: comparisons}
}

type compareDocumentsRequest struct {
	FirstID  uint `json:"first_id" binding:"required"`
	SecondID uint `json:"second_id" binding:"required"`
}

// POST /api/comparisons/documents
func (h *ComparisonHandler) CompareDocuments(c *gin.Context) {
	var req compareDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.comparisons.CompareDocuments(c.Request.Context(), req.FirstID, req.SecondID)
	if err != nil {
		response.RespondErr(c, "compare_documents_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/comparisons/:id
func (h *ComparisonHandler) GetComparison(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_comparison_id", err)
		return
	}
	view, err := h.comparisons.ComparisonView(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, "load_comparison_failed", err)
		return
	}
	response.RespondOK(c, view)
}

type compareSectionsRequest struct {
	FirstSectionID  uint `json:"first_section_id" binding:"required"`
	SecondSectionID uint `json:"second_section_id" binding:"required"`
	ElementID       uint `json:"element_id"`
}

// POST /api/comparisons/:id/sections
func (h *ComparisonHandler) CompareSections(c *gin.Context) {
	parentID, err := idParam(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_comparison_id", err)
		return
	}
	var req compareSectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.comparisons.CompareSections(c.Request.Context(), parentID, req.FirstSectionID, req.SecondSectionID, req.ElementID)
	if err != nil {
		response.RespondErr(c, "compare_sections_failed", err)
		return
	}
	response.RespondOK(c, res)
}
