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

// AttemptHandler handles the student-facing attempt lifecycle.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// JoinSession godoc
// POST /api/v1/student/sessions/:session_id/join
// Creates (or returns) the student's attempt for the session window.
func (h *AttemptHandler) JoinSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.JoinSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// Start godoc
// POST /api/v1/student/attempts/:attempt_id/start
// First touch: starts the clock, freezes the paper and returns it.
// Idempotent; a reconnect gets the same frozen paper.
func (h *AttemptHandler) Start(c *gin.Context) {
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

	paper, hb, err := h.attemptService.Start(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"paper": paper,
		"timer": hb,
	})
}

// GetPaper godoc
// GET /api/v1/student/attempts/:attempt_id/paper
// Returns the frozen question set (Redis first, DB fallback).
func (h *AttemptHandler) GetPaper(c *gin.Context) {
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

	paper, err := h.attemptService.GetPaper(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// Heartbeat godoc
// GET /api/v1/student/attempts/:attempt_id/heartbeat
// Returns the server-authoritative remaining time. A detected expiry
// finalizes the attempt and reports ended=true.
func (h *AttemptHandler) Heartbeat(c *gin.Context) {
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

	hb, err := h.attemptService.Heartbeat(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, hb)
}

// SubmitAnswer godoc
// PUT /api/v1/student/attempts/:attempt_id/answers/:question_id
// Stores and scores one submission. Correctness is not revealed.
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
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
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.SubmitAnswer(c.Request.Context(), attemptID, claims.UserID, questionID, req.Submission); err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// Submit godoc
// POST /api/v1/student/attempts/:attempt_id/submit
// Finishes the attempt. Idempotent against the other finalization paths.
func (h *AttemptHandler) Submit(c *gin.Context) {
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

	attempt, err := h.attemptService.Submit(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// Results godoc
// GET /api/v1/student/attempts/:attempt_id/results
// Returns the completed attempt with its per-answer breakdown.
func (h *AttemptHandler) Results(c *gin.Context) {
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

	attempt, answers, err := h.attemptService.Results(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempt": attempt,
		"answers": answers,
	})
}
