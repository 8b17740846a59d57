package v1

import (
	"github.com/gin-gonic/gin"

	"lms/internal/core/security"
	"lms/internal/domain/assessments"
	"lms/internal/domain/auth"
	"lms/internal/domain/billing"
	"lms/internal/domain/certificates"
	"lms/internal/domain/content"
	"lms/internal/domain/courses"
	"lms/internal/domain/enrollments"
	"lms/internal/domain/notifications"
	"lms/internal/domain/reports"
	"lms/internal/domain/reviews"
	"lms/internal/domain/settings"
	"lms/internal/domain/support"
	"lms/internal/infrastructure/http/v1/handlers"
	"lms/internal/infrastructure/http/v1/middleware"
	"lms/internal/infrastructure/metrics"
	"lms/internal/infrastructure/storage/postgres"
	"lms/pkg/logger"
)

// Services groups the domain services exposed over HTTP.
type Services struct {
	Auth          *auth.Service
	Organizations *settings.OrganizationService
	Branches      *settings.BranchService
	Memberships   *settings.MembershipService
	OrgInvites    *settings.OrgInviteService
	Flags         *settings.FlagService
	Sequences     *settings.SequenceService
	Courses       *courses.Service
	Lessons       *content.Service
	Enrollments   *enrollments.Service
	CourseInvites *enrollments.InviteService
	Coupons       *billing.CouponService
	Orders        *billing.OrderService
	Certificates  *certificates.Service
	Quizzes       *assessments.QuizService
	Attempts      *assessments.AttemptService
	Reviews       *reviews.Service
	Tickets       *support.Service
	Notifications *notifications.Service
	Reports       *reports.Service
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	Services Services

	// Logger for request logging
	Logger *logger.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Resolver turns the token's branch into a request scope.
	Resolver middleware.ScopeResolver

	// Idempotency is optional; without it Idempotency-Key is ignored.
	Idempotency *postgres.IdempotencyStore

	// Health probes keyed by dependency name.
	Health  map[string]handlers.Pinger
	Version string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.Metrics(cfg.Metrics))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Version, cfg.Health)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()
	svc := cfg.Services

	v1 := router.Group("/api/v1")
	{
		certHandler := handlers.NewCertificateHandler(base, svc.Certificates)
		v1.GET("/certificates/verify/:code", certHandler.Verify)

		authHandler := handlers.NewAuthHandler(base, svc.Auth)
		protectedAuth := v1.Group("/auth")
		protectedAuth.Use(middleware.Auth(cfg.JWTValidator))
		authHandler.RegisterRoutes(v1.Group("/auth"), protectedAuth)

		// 1. Validate JWT 2. Resolve branch scope 3. Idempotency-Key replay
		api := v1.Group("")
		api.Use(middleware.Auth(cfg.JWTValidator))
		api.Use(middleware.BranchScope(cfg.Resolver))
		if cfg.Idempotency != nil {
			api.Use(middleware.Idempotency(cfg.Idempotency))
		}

		registerSettingsRoutes(api, base, svc)
		registerLearningRoutes(api, base, svc)
		registerEnrollmentRoutes(api, base, svc)
		registerBillingRoutes(api, base, svc)
		registerCertificateRoutes(api, certHandler)
		registerAssessmentRoutes(api, base, svc)
		registerReviewRoutes(api, base, svc)
		registerSupportRoutes(api, base, svc)
		registerNotificationRoutes(api, base, svc)
		registerReportRoutes(api, base, svc)
	}

	return router
}

func registerSettingsRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	RegisterEntityRoutes(rg.Group("/organizations"), handlers.NewOrganizationHandler(base, svc.Organizations), "organizations")
	RegisterEntityRoutes(rg.Group("/branches"), handlers.NewBranchHandler(base, svc.Branches), "branches")

	h := handlers.NewSettingsHandler(base, svc.Memberships, svc.OrgInvites, svc.Flags)
	memberships := rg.Group("/memberships")
	{
		memberships.GET("/mine", h.MyMemberships)
		memberships.POST("/switch", h.SwitchBranch)
		memberships.POST("", can("memberships", security.ActionCreate), h.AddMember)
		memberships.DELETE("/:branchId/users/:userId", can("memberships", security.ActionDelete), h.RevokeMember)
	}
	invites := rg.Group("/org-invites")
	{
		invites.POST("", can("memberships", security.ActionCreate), h.InviteMember)
		invites.POST("/accept", h.AcceptInvite)
	}
	flags := rg.Group("/flags")
	{
		flags.GET("", can("flags", security.ActionRead), h.ListFlags)
		flags.PUT("", can("flags", security.ActionUpdate), h.SetFlag)
	}

	seq := handlers.NewSequenceHandler(base, svc.Sequences)
	sequences := rg.Group("/sequences")
	{
		sequences.GET("", can("sequences", security.ActionRead), seq.List)
		sequences.GET("/lookup", can("sequences", security.ActionRead), seq.Get)
		sequences.GET("/peek", can("sequences", security.ActionRead), seq.Peek)
		sequences.POST("", can("sequences", security.ActionCreate), seq.Provision)
		sequences.POST("/consume", can("sequences", security.ActionUpdate), seq.Consume)
	}
}

func registerLearningRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	ch := handlers.NewCourseHandler(base, svc.Courses)
	lh := handlers.NewLessonHandler(base, svc.Lessons)

	courseGroup := rg.Group("/courses")
	RegisterEntityRoutes(courseGroup, ch, "courses")
	courseGroup.POST("/:id/archive", can("courses", security.ActionUpdate), ch.Archive)
	courseGroup.GET("/:id/pricing", can("courses", security.ActionRead), ch.GetPricing)
	courseGroup.PUT("/:id/pricing", can("courses", security.ActionUpdate), ch.SetPricing)
	courseGroup.GET("/:id/effective-price", can("courses", security.ActionRead), ch.Quote)
	courseGroup.GET("/:id/modules", can("courses", security.ActionRead), ch.ListModules)
	courseGroup.POST("/:id/modules", can("courses", security.ActionUpdate), ch.AddModule)
	courseGroup.GET("/:id/lessons", can("lessons", security.ActionRead), lh.ListByCourse)
	courseGroup.GET("/:id/progress", lh.Progress)

	lessonGroup := rg.Group("/lessons")
	RegisterEntityRoutes(lessonGroup, lh, "lessons")
	lessonGroup.GET("/:id/release-status", can("lessons", security.ActionRead), lh.ReleaseStatus)
	lessonGroup.POST("/:id/complete", lh.Complete)
}

func registerEnrollmentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	h := handlers.NewEnrollmentHandler(base, svc.Enrollments)
	manage := can("enrollments", security.ActionUpdate)

	g := rg.Group("/enrollments")
	{
		g.GET("", can("enrollments", security.ActionRead), h.List)
		// Self-enrollment; staff sources and other users are checked in the handler.
		g.POST("", h.Enroll)
		g.GET("/:id", can("enrollments", security.ActionRead), h.Get)
		g.GET("/:id/access", can("enrollments", security.ActionRead), h.Access)
		g.GET("/:id/events", can("enrollments", security.ActionRead), h.Events)
		g.POST("/:id/cancel", manage, h.Cancel)
		g.POST("/:id/suspend", manage, h.Suspend)
		g.POST("/:id/resume", manage, h.Resume)
		g.POST("/:id/complete", manage, h.Complete)
		g.POST("/:id/refund", manage, h.Refund)
		g.POST("/:id/extend", manage, h.Extend)
		g.POST("/:id/expire", manage, h.Expire)
	}

	ih := handlers.NewInviteHandler(base, svc.CourseInvites)
	inv := rg.Group("/course-invites")
	{
		inv.GET("", can("course_invites", security.ActionRead), ih.List)
		inv.POST("", can("course_invites", security.ActionCreate), ih.Create)
		inv.POST("/:id/revoke", can("course_invites", security.ActionDelete), ih.Revoke)
		inv.POST("/accept", ih.Accept)
	}
}

func registerBillingRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	couponGroup := rg.Group("/coupons")
	RegisterEntityRoutes(couponGroup, handlers.NewCouponHandler(base, svc.Coupons), "coupons")

	h := handlers.NewBillingHandler(base, svc.Coupons, svc.Orders)
	couponGroup.POST("/validate", h.ValidateCoupon)

	orders := rg.Group("/orders")
	{
		orders.GET("", can("orders", security.ActionRead), h.ListOrders)
		orders.POST("", h.Checkout)
		orders.GET("/:id", can("orders", security.ActionRead), h.GetOrder)
		orders.POST("/:id/pay", can("orders", security.ActionUpdate), h.Pay)
		orders.POST("/:id/cancel", can("orders", security.ActionUpdate), h.CancelOrder)
		orders.POST("/:id/refund", can("orders", security.ActionUpdate), h.RefundOrder)
	}
}

func registerCertificateRoutes(rg *gin.RouterGroup, h *handlers.CertificateHandler) {
	g := rg.Group("/certificates")
	{
		g.GET("", can("certificates", security.ActionRead), h.List)
		g.POST("", can("certificates", security.ActionCreate), h.Issue)
		g.GET("/:id", can("certificates", security.ActionRead), h.Get)
		g.GET("/:id/url", can("certificates", security.ActionRead), h.DownloadURL)
		g.GET("/:id/document", can("certificates", security.ActionRead), h.Document)
		g.POST("/:id/revoke", can("certificates", security.ActionDelete), h.Revoke)
	}
}

func registerAssessmentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	qh := handlers.NewQuizHandler(base, svc.Quizzes)
	ah := handlers.NewAttemptHandler(base, svc.Attempts)

	quizzes := rg.Group("/quizzes")
	RegisterEntityRoutes(quizzes, qh, "quizzes")
	// Students take quizzes; enrollment is checked by the service.
	quizzes.GET("/:id/paper", ah.Paper)
	quizzes.GET("/:id/attempts", ah.Mine)
	quizzes.POST("/:id/attempts", ah.Start)
	rg.POST("/attempts/:id/submit", ah.Submit)
	rg.GET("/courses/:id/quizzes", can("quizzes", security.ActionRead), qh.ListByCourse)
}

func registerReviewRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	h := handlers.NewReviewHandler(base, svc.Reviews)
	g := rg.Group("/reviews")
	{
		g.GET("", can("reviews", security.ActionRead), h.List)
		g.POST("", h.Submit)
		g.PUT("/:id", h.Edit)
		g.POST("/:id/moderate", can("reviews", security.ActionUpdate), h.Moderate)
	}
	rg.GET("/courses/:id/reviews", h.Published)
	rg.GET("/courses/:id/rating", h.Summary)
}

func registerSupportRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	h := handlers.NewSupportHandler(base, svc.Tickets)
	desk := can("tickets", security.ActionUpdate)

	g := rg.Group("/tickets")
	{
		g.GET("", can("tickets", security.ActionRead), h.List)
		g.GET("/mine", h.Mine)
		g.GET("/overdue", can("tickets", security.ActionRead), h.Overdue)
		g.POST("", h.Open)
		g.GET("/:id", h.Get)
		g.GET("/:id/messages", h.Messages)
		g.POST("/:id/messages", h.Reply)
		g.POST("/:id/reopen", h.Reopen)
		g.POST("/:id/assign", desk, h.Assign)
		g.PUT("/:id/priority", desk, h.SetPriority)
		g.POST("/:id/status", desk, h.Transition)
	}
}

func registerNotificationRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	h := handlers.NewNotificationHandler(base, svc.Notifications)
	g := rg.Group("/notifications")
	{
		g.GET("", h.Mine)
		g.GET("/unread-count", h.UnreadCount)
		g.POST("/read-all", h.MarkAllRead)
		g.POST("/:id/read", h.MarkRead)
		g.POST("", can("notifications", security.ActionCreate), h.Send)
	}
}

func registerReportRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	h := handlers.NewReportHandler(base, svc.Reports)
	g := rg.Group("/reports", can("reports", security.ActionRead))
	{
		g.GET("/enrollments", h.Enrollments)
		g.GET("/revenue", h.Revenue)
		g.GET("/activity", h.Activity)
	}
}
