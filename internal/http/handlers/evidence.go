package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/research-evidence-backend/internal/http/response"
	"github.com/yungbote/research-evidence-backend/internal/services"
)

type EvidenceHandler struct {
	comparisons services.ComparisonService
}

func NewEvidenceHandler(comparisons services.ComparisonService) *EvidenceHandler {
	return &EvidenceHandler{comparisons: comparisons}
}

type recalculateRequest struct {
	FirstID  uint `json:"first_id" binding:"required"`
	SecondID uint `json:"second_id" binding:"required"`
	Confirm  bool `json:"confirm"`
	ActorID  uint `json:"actor_id"`
}

// POST /api/evidence/recalculate
func (h *EvidenceHandler) RecalculateSections(c *gin.Context) {
	var req recalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.comparisons.RecalculateSections(c.Request.Context(), req.FirstID, req.SecondID, req.Confirm, req.ActorID)
	if err != nil {
		response.RespondErr(c, "recalculate_failed", err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/evidence/:id/sections
func (h *EvidenceHandler) ListSections(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	sections, err := h.comparisons.SectionsForDocument(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, "list_sections_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"sections": sections})
}

// GET /api/evidence/:id/comparisons
func (h *EvidenceHandler) ListDocumentComparisons(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_document_id", err)
		return
	}
	rows, err := h.comparisons.ComparisonsForDocument(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, "list_comparisons_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"comparisons": rows})
}

// GET /api/sections/:id/comparisons
func (h *EvidenceHandler) ListSectionComparisons(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_section_id", err)
		return
	}
	rows, err := h.comparisons.ComparisonsForSection(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, "list_comparisons_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"comparisons": rows})
}
