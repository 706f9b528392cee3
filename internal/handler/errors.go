package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/provalab/examguard-backend/internal/model"
	"github.com/provalab/examguard-backend/internal/response"
	"github.com/provalab/examguard-backend/internal/service"
	"github.com/provalab/examguard-backend/internal/timekeeper"
)

// failFromErr maps service and model sentinel errors onto the response
// envelope. Every attempt endpoint funnels through this so the same
// condition always yields the same code.
func failFromErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotAttemptOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, timekeeper.ErrNotYetOpen):
		response.Fail(c, http.StatusConflict, response.ErrNotYetOpen)
	case errors.Is(err, service.ErrTimeExpired):
		response.Fail(c, http.StatusConflict, response.ErrTimeExpired)
	case errors.Is(err, model.ErrAttemptCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyCompleted)
	case errors.Is(err, model.ErrAttemptPaused):
		response.Fail(c, http.StatusConflict, response.ErrAttemptPaused)
	case errors.Is(err, model.ErrAttemptNotRunning),
		errors.Is(err, model.ErrAlreadyPaused),
		errors.Is(err, model.ErrNotPaused):
		response.Fail(c, http.StatusConflict, response.ErrActionForbidden)
	case errors.Is(err, service.ErrNoQuestionsInExam):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
	case errors.Is(err, service.ErrInvalidViolationType):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidViolationType)
	case errors.Is(err, service.ErrAttemptNotCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotDone)
	case errors.Is(err, service.ErrNotManuallyGradable):
		response.Fail(c, http.StatusConflict, response.ErrNotManuallyGradable)
	case errors.Is(err, service.ErrPointsExceedMax):
		response.Fail(c, http.StatusBadRequest, response.ErrPointsExceedMax)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func parseIntParam(c *gin.Context, name string) (int, error) {
	return strconv.Atoi(c.Param(name))
}
