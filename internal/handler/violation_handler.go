package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/provalab/examguard-backend/internal/middleware"
	"github.com/provalab/examguard-backend/internal/model"
	"github.com/provalab/examguard-backend/internal/response"
	"github.com/provalab/examguard-backend/internal/service"
	"github.com/provalab/examguard-backend/internal/validator"
)

// ViolationHandler handles client-reported anti-cheat events.
type ViolationHandler struct {
	violationService *service.ViolationService
}

// NewViolationHandler creates a new ViolationHandler.
func NewViolationHandler(violationService *service.ViolationService) *ViolationHandler {
	return &ViolationHandler{violationService: violationService}
}

// Report godoc
// POST /api/v1/student/attempts/:attempt_id/violations
// Records a batch of violations and returns the enforcement decision.
// The whole batch is rejected if any event fails validation.
func (h *ViolationHandler) Report(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ViolationBatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	enforcement, err := h.violationService.Record(c.Request.Context(), attemptID, claims.UserID, &req)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"enforcement": enforcement})
}
