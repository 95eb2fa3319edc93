package router

import (
	"github.com/gin-gonic/gin"

	"github.com/arkan-dev/bootcamp-api/internal/handler"
	"github.com/arkan-dev/bootcamp-api/internal/middleware"
	"github.com/arkan-dev/bootcamp-api/internal/models"
	"github.com/arkan-dev/bootcamp-api/internal/service"
)

// Dependencies bundles everything route registration needs.
type Dependencies struct {
	APIPrefix        string
	DashboardEnabled bool

	AuthService *service.AuthService

	Auth         *handler.AuthHandler
	Users        *handler.UserHandler
	Curriculum   *handler.CurriculumHandler
	Progress     *handler.ProgressHandler
	Submissions  *handler.SubmissionHandler
	Phases       *handler.PhaseHandler
	Certificates *handler.CertificateHandler
	Dashboard    *handler.DashboardHandler
	Metrics      *handler.MetricsHandler
}

// Register wires all API routes onto the engine.
func Register(r *gin.Engine, deps Dependencies) {
	prefix := deps.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	authed := middleware.JWT(deps.AuthService)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	// Public.
	api.POST("/auth/login", deps.Auth.Login)
	api.POST("/auth/refresh", deps.Auth.Refresh)
	api.GET("/files", deps.Submissions.Download)

	// Session management.
	session := api.Group("/auth", authed)
	session.POST("/logout", deps.Auth.Logout)
	session.PUT("/password", deps.Auth.ChangePassword)

	// User management.
	users := api.Group("/users", authed)
	users.GET("/me", deps.Users.Me)
	users.GET("", adminOnly, deps.Users.List)
	users.POST("", adminOnly, deps.Users.Create)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), deps.Users.Get)
	users.PUT("/:id", adminOnly, deps.Users.Update)
	users.DELETE("/:id", adminOnly, deps.Users.Delete)

	// Curriculum.
	phases := api.Group("/phases", authed)
	phases.GET("", deps.Curriculum.ListPhases)
	phases.GET("/:id", deps.Curriculum.GetPhase)
	phases.GET("/:id/weeks", deps.Curriculum.ListWeeks)
	phases.POST("", adminOnly, deps.Curriculum.CreatePhase)
	phases.PUT("/:id", adminOnly, deps.Curriculum.UpdatePhase)
	phases.POST("/:id/weeks", adminOnly, deps.Curriculum.CreateWeek)

	weeks := api.Group("/weeks", authed)
	weeks.PUT("/:id", adminOnly, deps.Curriculum.UpdateWeek)
	weeks.GET("/:id/content", deps.Curriculum.GetContent)
	weeks.PUT("/:id/content", adminOnly, deps.Curriculum.UpsertContent)
	weeks.GET("/:id/progress", deps.Progress.GetWeek)
	weeks.POST("/:id/video-progress", studentOnly, deps.Progress.RecordVideo)
	weeks.POST("/:id/assignment", studentOnly, deps.Submissions.SubmitAssignment)
	weeks.POST("/:id/quiz", studentOnly, deps.Submissions.SubmitQuiz)

	// Progress.
	api.GET("/progress/phases", authed, deps.Progress.Standing)

	// Submissions.
	submissions := api.Group("/submissions", authed)
	submissions.GET("", deps.Submissions.List)
	submissions.GET("/:id", deps.Submissions.Get)
	submissions.GET("/:id/download", deps.Submissions.DownloadToken)
	submissions.PUT("/:id/review", adminOnly, deps.Submissions.Review)
	submissions.DELETE("/:id", adminOnly, deps.Submissions.Delete)

	// Certificates.
	certificates := api.Group("/certificates", authed)
	certificates.GET("/me", deps.Certificates.Mine)
	certificates.GET("/me/download", deps.Certificates.DownloadToken)

	// Dashboards.
	if deps.DashboardEnabled {
		api.GET("/dashboard", authed, deps.Dashboard.Student)
		api.GET("/leaderboard", authed, deps.Dashboard.Leaderboard)
	}

	// Admin.
	admin := api.Group("/admin", authed, adminOnly)
	if deps.DashboardEnabled {
		admin.GET("/overview", deps.Dashboard.AdminOverview)
	}
	admin.GET("/metrics", deps.Metrics.Snapshot)
	admin.GET("/students/:id/progress", deps.Progress.StudentStanding)
	admin.POST("/students/:id/approve-phase", deps.Phases.Approve)
	admin.GET("/students/:id/certificate", deps.Certificates.Get)
	admin.POST("/students/:id/certificate", deps.Certificates.Issue)
	admin.POST("/students/:id/certificate/resend", deps.Certificates.ResendEmail)
}
