package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/provalab/examguard-backend/internal/config"
	"github.com/provalab/examguard-backend/internal/handler"
	"github.com/provalab/examguard-backend/internal/middleware"
	"github.com/provalab/examguard-backend/internal/response"
	"github.com/provalab/examguard-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Attempt   *handler.AttemptHandler
	Violation *handler.ViolationHandler
	Proctor   *handler.ProctorHandler
	Monitor   *handler.MonitorHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestID())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Violation snapshots are served statically; URLs come back from the
	// report endpoint as /snapshots/<file>.
	router.Static("/snapshots", cfg.SnapshotDir)

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for the violation report route. A misbehaving client
	// script must not be able to flood the recording engine.
	violationLimiter := middleware.NewRateLimiter(cfg.ViolationRatePerMin, time.Minute)

	// ─── 1. Auth Group (Public) ────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/proctor/login", handlers.Auth.ProctorLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.POST("/sessions/:session_id/join", handlers.Attempt.JoinSession)
		studentAPI.POST("/attempts/:attempt_id/start", handlers.Attempt.Start)
		studentAPI.GET("/attempts/:attempt_id/paper", handlers.Attempt.GetPaper)
		studentAPI.GET("/attempts/:attempt_id/heartbeat", handlers.Attempt.Heartbeat)
		studentAPI.PUT("/attempts/:attempt_id/answers/:question_id", handlers.Attempt.SubmitAnswer)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.Submit)
		studentAPI.GET("/attempts/:attempt_id/results", handlers.Attempt.Results)

		studentAPI.POST("/attempts/:attempt_id/violations",
			violationLimiter.Middleware(),
			handlers.Violation.Report,
		)
	}

	// ─── 3. Proctor Group (JWT) ────────────────────────────────────────
	proctorAPI := router.Group("/api/v1/proctor")
	proctorAPI.Use(middleware.RequireProctorJWT(authService))
	{
		proctorAPI.GET("/exams", handlers.Proctor.ListExams)
		proctorAPI.GET("/exams/:exam_id/sessions", handlers.Proctor.ListSessions)

		proctorAPI.GET("/sessions/:session_id/attempts", handlers.Proctor.SessionState)
		proctorAPI.POST("/sessions/:session_id/pause", handlers.Proctor.PauseSession)
		proctorAPI.POST("/sessions/:session_id/resume", handlers.Proctor.ResumeSession)

		proctorAPI.POST("/attempts/:attempt_id/pause", handlers.Proctor.PauseAttempt)
		proctorAPI.POST("/attempts/:attempt_id/resume", handlers.Proctor.ResumeAttempt)
		proctorAPI.POST("/attempts/:attempt_id/extend", handlers.Proctor.ExtendTime)
		proctorAPI.POST("/attempts/:attempt_id/force-submit", handlers.Proctor.ForceSubmit)
		proctorAPI.POST("/attempts/:attempt_id/retry", handlers.Proctor.ResetForRetry)
		proctorAPI.GET("/attempts/:attempt_id/violations", handlers.Proctor.ListViolations)
		proctorAPI.GET("/attempts/:attempt_id/results", handlers.Proctor.AttemptResults)

		proctorAPI.PUT("/answers/:answer_id/grade", handlers.Proctor.GradeAnswer)

		proctorAPI.POST("/students/:student_id/unblock", handlers.Proctor.UnblockStudent)
		proctorAPI.POST("/students/:student_id/reset-session", handlers.Proctor.ResetStudentSession)
	}

	// ─── 4. WebSocket Group (Proctor WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireProctorWSAuth(authService))
	{
		ws.GET("/proctor/sessions/:session_id/monitor", handlers.Monitor.SessionMonitorStream)
	}

	return router
}
