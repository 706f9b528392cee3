package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/provalab/examguard-backend/internal/middleware"
	"github.com/provalab/examguard-backend/internal/model"
	"github.com/provalab/examguard-backend/internal/repository"
	"github.com/provalab/examguard-backend/internal/response"
	"github.com/provalab/examguard-backend/internal/service"
	"github.com/provalab/examguard-backend/internal/validator"
)

// ProctorHandler handles proctor controls: pause/resume, extensions,
// force-submit, manual grading, retries and violation review.
type ProctorHandler struct {
	attemptService    *service.AttemptService
	completionService *service.CompletionService
	violationService  *service.ViolationService
	monitorService    *service.MonitorService
	authService       *service.AuthService
	examRepo          *repository.ExamRepository
	sessionRepo       *repository.SessionRepository
	studentRepo       *repository.StudentRepository
}

// NewProctorHandler creates a new ProctorHandler.
func NewProctorHandler(
	attemptService *service.AttemptService,
	completionService *service.CompletionService,
	violationService *service.ViolationService,
	monitorService *service.MonitorService,
	authService *service.AuthService,
	examRepo *repository.ExamRepository,
	sessionRepo *repository.SessionRepository,
	studentRepo *repository.StudentRepository,
) *ProctorHandler {
	return &ProctorHandler{
		attemptService:    attemptService,
		completionService: completionService,
		violationService:  violationService,
		monitorService:    monitorService,
		authService:       authService,
		examRepo:          examRepo,
		sessionRepo:       sessionRepo,
		studentRepo:       studentRepo,
	}
}

// ListExams godoc
// GET /api/v1/proctor/exams
func (h *ProctorHandler) ListExams(c *gin.Context) {
	exams, err := h.examRepo.List(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// ListSessions godoc
// GET /api/v1/proctor/exams/:exam_id/sessions
func (h *ProctorHandler) ListSessions(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sessions, err := h.sessionRepo.ListByExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if sessions == nil {
		sessions = []model.SessionWindow{}
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// SessionState godoc
// GET /api/v1/proctor/sessions/:session_id/attempts
// Returns the live monitor rows for every attempt in the session.
func (h *ProctorHandler) SessionState(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	rows, err := h.monitorService.SessionState(c.Request.Context(), sessionID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": rows})
}

// PauseAttempt godoc
// POST /api/v1/proctor/attempts/:attempt_id/pause
func (h *ProctorHandler) PauseAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.PauseAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Pause(c.Request.Context(), attemptID, req.Reason)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// ResumeAttempt godoc
// POST /api/v1/proctor/attempts/:attempt_id/resume
func (h *ProctorHandler) ResumeAttempt(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.Resume(c.Request.Context(), attemptID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// PauseSession godoc
// POST /api/v1/proctor/sessions/:session_id/pause
// Pauses every running attempt in the window (e.g. fire alarm).
func (h *ProctorHandler) PauseSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.PauseAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	paused, err := h.attemptService.PauseSession(c.Request.Context(), sessionID, req.Reason)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paused": paused})
}

// ResumeSession godoc
// POST /api/v1/proctor/sessions/:session_id/resume
func (h *ProctorHandler) ResumeSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	resumed, err := h.attemptService.ResumeSession(c.Request.Context(), sessionID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"resumed": resumed})
}

// ExtendTime godoc
// POST /api/v1/proctor/attempts/:attempt_id/extend
func (h *ProctorHandler) ExtendTime(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ExtendTimeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Extend(c.Request.Context(), attemptID, req.Minutes, req.Reason)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// ForceSubmit godoc
// POST /api/v1/proctor/attempts/:attempt_id/force-submit
func (h *ProctorHandler) ForceSubmit(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.ForceSubmit(c.Request.Context(), attemptID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// ResetForRetry godoc
// POST /api/v1/proctor/attempts/:attempt_id/retry
// Grants a remedial retry: wipes the completed attempt back to NOT_STARTED.
func (h *ProctorHandler) ResetForRetry(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.ResetForRetry(c.Request.Context(), attemptID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// ListViolations godoc
// GET /api/v1/proctor/attempts/:attempt_id/violations
func (h *ProctorHandler) ListViolations(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	violations, err := h.violationService.ListByAttempt(c.Request.Context(), attemptID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"violations": violations})
}

// AttemptResults godoc
// GET /api/v1/proctor/attempts/:attempt_id/results
// The proctor view of a completed attempt, including answers pending review.
func (h *ProctorHandler) AttemptResults(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, answers, err := h.attemptService.Results(c.Request.Context(), attemptID, 0)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"attempt": attempt,
		"answers": answers,
	})
}

// GradeAnswer godoc
// PUT /api/v1/proctor/answers/:answer_id/grade
// Records manual essay points and recalculates the attempt's totals.
func (h *ProctorHandler) GradeAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	answerID, err := uuid.Parse(c.Param("answer_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.GradeAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.completionService.ManualGrade(c.Request.Context(), answerID, claims.UserID, req.Points)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// UnblockStudent godoc
// POST /api/v1/proctor/students/:student_id/unblock
// Lifts an account block after review.
func (h *ProctorHandler) UnblockStudent(c *gin.Context) {
	studentID, err := parseIntParam(c, "student_id")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.studentRepo.SetBlocked(c.Request.Context(), studentID, false); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "unblocked"})
}

// ResetStudentSession godoc
// POST /api/v1/proctor/students/:student_id/reset-session
// Clears the single-device lock so the student can log in again.
func (h *ProctorHandler) ResetStudentSession(c *gin.Context) {
	studentID, err := parseIntParam(c, "student_id")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetStudentSession(c.Request.Context(), studentID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "reset"})
}
