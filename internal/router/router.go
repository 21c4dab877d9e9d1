package router

import (
	"net/http"
	"time"

	"github.com/civitest/civitest-backend/internal/config"
	"github.com/civitest/civitest-backend/internal/handler"
	"github.com/civitest/civitest-backend/internal/middleware"
	"github.com/civitest/civitest-backend/internal/response"
	"github.com/civitest/civitest-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Results *handler.ResultsHandler
	Clock   *handler.ClockHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens *service.TokenService,
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
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for session mutations (60 requests per minute per IP
	// covers one autosave per second).
	writeLimiter := middleware.NewRateLimiter(60, time.Minute)

	// ─── 1. Exam Taker Group (JWT + Single Device) ─────────────────────
	userAPI := router.Group("/api/v1")
	userAPI.Use(
		middleware.RequireUserJWT(tokens),
		middleware.CheckSingleDeviceSession(tokens),
	)
	{
		userAPI.POST("/exams/:exam_id/sessions", writeLimiter.Middleware(), handlers.Session.StartSession)

		userAPI.GET("/sessions/:session_id", handlers.Session.GetSession)
		userAPI.GET("/sessions/:session_id/state", handlers.Session.GetSessionState)
		userAPI.GET("/sessions/:session_id/paper", handlers.Session.GetSessionPaper)
		userAPI.PUT("/sessions/:session_id/answers/:question_id", writeLimiter.Middleware(), handlers.Session.SubmitAnswer)
		userAPI.POST("/sessions/:session_id/submit", writeLimiter.Middleware(), handlers.Session.SubmitExam)
		userAPI.GET("/sessions/:session_id/review", handlers.Session.GetSessionReview)

		userAPI.GET("/sessions", handlers.Session.ListMySessions)
		userAPI.GET("/me/summary", handlers.Session.GetMySummary)
	}

	// ─── 2. WebSocket Group (Taker WS Auth) ────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireUserWSAuth(tokens))
	{
		ws.GET("/sessions/:session_id/clock", handlers.Clock.SessionClockStream)
	}

	// ─── 3. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(tokens))
	{
		adminAPI.GET("/exams/:exam_id/results", handlers.Results.GetExamResults)
		adminAPI.GET("/exams/:exam_id/results/export", handlers.Results.ExportExamResults)
	}

	return router
}
