// Package app wires repositories, domain services and infrastructure into
// one graph shared by the server, the worker and the admin CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lms/internal/core/tenant"
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
	"lms/internal/infrastructure/blob"
	"lms/internal/infrastructure/cache"
	"lms/internal/infrastructure/events"
	v1 "lms/internal/infrastructure/http/v1"
	"lms/internal/infrastructure/jobs"
	"lms/internal/infrastructure/metrics"
	"lms/internal/infrastructure/numerator"
	"lms/internal/infrastructure/storage/postgres"
	"lms/internal/infrastructure/storage/postgres/assessment_repo"
	"lms/internal/infrastructure/storage/postgres/auth_repo"
	"lms/internal/infrastructure/storage/postgres/billing_repo"
	"lms/internal/infrastructure/storage/postgres/certificate_repo"
	"lms/internal/infrastructure/storage/postgres/course_repo"
	"lms/internal/infrastructure/storage/postgres/enrollment_repo"
	"lms/internal/infrastructure/storage/postgres/notification_repo"
	"lms/internal/infrastructure/storage/postgres/report_repo"
	"lms/internal/infrastructure/storage/postgres/review_repo"
	"lms/internal/infrastructure/storage/postgres/settings_repo"
	"lms/internal/infrastructure/storage/postgres/support_repo"
	"lms/pkg/logger"
)

// Config carries everything the graph needs from the environment.
type Config struct {
	DatabaseURL     string
	MaxConns        int32
	ApplicationName string

	// RedisAddr is optional; without it branch lookups stay process-local
	// and events are not published.
	RedisAddr string

	JWTSecret string

	// Storage.Endpoint empty selects the in-memory store.
	Storage       blob.Config
	PublicBaseURL string

	IdempotencyTTL time.Duration

	// AuditThreshold is the payload size above which event payloads are
	// zstd-compressed.
	AuditThreshold int
}

// App is the wired application.
type App struct {
	Log         *logger.Logger
	Pool        *postgres.Pool
	TxManager   *postgres.TxManager
	Redis       redis.UniversalClient
	Metrics     *metrics.Metrics
	JWT         *auth.JWTService
	Resolver    *tenant.Resolver
	Flags       *cache.FlagCache
	Outbox      *postgres.OutboxPublisher
	Idempotency *postgres.IdempotencyStore
	Numbers     *numerator.Service
	Services    v1.Services
}

// New connects to PostgreSQL (and Redis when configured) and builds the graph.
// Migrations are not run here.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ApplicationName != "" {
		poolCfg.ApplicationName = cfg.ApplicationName
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	a := &App{
		Log:       log,
		Pool:      pool,
		TxManager: postgres.NewTxManager(pool),
		Metrics:   metrics.New(),
	}
	a.Metrics.ObservePool("primary", pool.Stats)
	if err := a.build(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg Config) error {
	txm := a.TxManager
	clock := time.Now

	var shared tenant.BranchCache
	if cfg.RedisAddr != "" {
		a.Redis = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		shared = cache.NewRedisBranchCache(a.Redis)
	}
	a.Resolver = tenant.NewResolver(tenant.DefaultResolverConfig(), tenant.NewPostgresRegistry(a.Pool), shared, a.Log.WithComponent("tenant"))

	codec, err := postgres.NewCodec(cfg.AuditThreshold)
	if err != nil {
		return fmt.Errorf("zstd codec: %w", err)
	}
	audit, err := postgres.NewAuditService(txm)
	if err != nil {
		return fmt.Errorf("audit service: %w", err)
	}
	a.Outbox = postgres.NewOutboxPublisher(txm)
	a.Idempotency = postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL)
	a.Numbers = numerator.New(txm, a.Metrics, numerator.DefaultOptions())

	rules, err := cache.NewRuleEngine()
	if err != nil {
		return fmt.Errorf("rule engine: %w", err)
	}
	flagRepo := settings_repo.NewFlagRepo(txm)
	a.Flags = cache.NewFlagCache(flagRepo, rules, a.Pool.Pool)

	var store certificates.ObjectStore
	if cfg.Storage.Endpoint != "" {
		ms, err := blob.NewMinioStore(cfg.Storage)
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		store = ms
	} else {
		store = blob.NewMemoryStore(cfg.PublicBaseURL)
	}

	// --- Settings ---
	orgRepo := settings_repo.NewOrganizationRepo(txm)
	branchRepo := settings_repo.NewBranchRepo(txm)
	memberships := settings.NewMembershipService(settings_repo.NewMembershipRepo(txm), branchRepo, a.Resolver, txm, clock)
	svc := v1.Services{
		Organizations: settings.NewOrganizationService(orgRepo, branchRepo, a.Resolver, txm, clock),
		Branches:      settings.NewBranchService(branchRepo, orgRepo, a.Resolver, txm, clock),
		Memberships:   memberships,
		OrgInvites:    settings.NewOrgInviteService(settings_repo.NewOrgInviteRepo(txm), branchRepo, memberships, txm, clock),
		Flags:         settings.NewFlagService(flagRepo, rules, a.Flags, txm, clock),
		Sequences:     settings.NewSequenceService(a.Numbers),
	}

	// --- Auth ---
	a.JWT = auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))
	svc.Auth = auth.NewService(auth.Deps{
		Users:       auth_repo.NewUserRepo(txm),
		Roles:       auth_repo.NewRoleRepo(txm),
		Permissions: auth_repo.NewPermissionRepo(txm),
		Tokens:      auth_repo.NewTokenRepo(txm),
		UserTokens:  auth_repo.NewUserTokenRepo(txm),
		TxManager:   txm,
		JWT:         a.JWT,
		Sender:      events.NewOutboxTokenSender(a.Outbox),
		Clock:       clock,
	}, auth.DefaultServiceConfig())

	// --- Learning ---
	svc.Courses = courses.NewService(course_repo.NewCourseRepo(txm), course_repo.NewPricingRepo(txm), course_repo.NewModuleRepo(txm), txm, clock)
	svc.Enrollments = enrollments.NewService(enrollment_repo.NewEnrollmentRepo(txm), enrollment_repo.NewEventRepo(txm, codec), svc.Courses, a.Numbers, txm, clock)
	svc.Enrollments.SetFlags(a.Flags)
	svc.Lessons = content.NewService(course_repo.NewLessonRepo(txm), course_repo.NewCompletionRepo(txm), svc.Courses, svc.Enrollments, txm, clock)
	svc.CourseInvites = enrollments.NewInviteService(enrollment_repo.NewInviteRepo(txm), svc.Courses, a.Resolver, svc.Enrollments, txm, clock)

	// --- Billing ---
	svc.Coupons = billing.NewCouponService(billing_repo.NewCouponRepo(txm), svc.Courses, txm, clock)
	svc.Orders = billing.NewOrderService(billing_repo.NewOrderRepo(txm), svc.Coupons, svc.Courses, svc.Enrollments, a.Numbers, txm, clock)

	// --- Certificates and notifications ---
	svc.Certificates = certificates.NewService(certificate_repo.New(txm), svc.Enrollments, svc.Courses, svc.Auth, a.Numbers, txm, certificates.Config{
		Store:    store,
		Renderer: certificates.NewPDFRenderer(),
		Flags:    a.Flags,
		Clock:    clock,
	})
	svc.Notifications = notifications.NewService(notification_repo.New(txm), txm, clock)
	svc.Reports = reports.NewService(report_repo.NewReportRepo(txm), clock)

	// --- Assessments, reviews and support ---
	svc.Quizzes = assessments.NewQuizService(assessment_repo.NewQuizRepo(txm), svc.Courses, txm, clock)
	svc.Attempts = assessments.NewAttemptService(assessment_repo.NewAttemptRepo(txm), svc.Quizzes, svc.Enrollments, txm, clock)
	svc.Reviews = reviews.NewService(review_repo.New(txm), svc.Courses, svc.Enrollments, txm, clock)
	svc.Tickets = support.NewService(support_repo.NewTicketRepo(txm), support_repo.NewMessageRepo(txm), a.Numbers, txm, clock)

	svc.Enrollments.Hooks().OnAfterCreate(svc.Notifications.OnEnrollmentCreated())
	svc.Certificates.Hooks().OnAfterCreate(svc.Notifications.OnCertificateIssued())

	postgres.RegisterAuditHooks(audit, svc.Courses.Hooks(), "course")
	postgres.RegisterAuditHooks(audit, svc.Enrollments.Hooks(), "enrollment")
	postgres.RegisterAuditHooks(audit, svc.Coupons.Hooks(), "coupon")
	postgres.RegisterAuditHooks(audit, svc.Orders.Hooks(), "order")
	postgres.RegisterAuditHooks(audit, svc.Certificates.Hooks(), "certificate")
	postgres.RegisterAuditHooks(audit, svc.Quizzes.Hooks(), "quiz")
	postgres.RegisterAuditHooks(audit, svc.Reviews.Hooks(), "review")
	postgres.RegisterAuditHooks(audit, svc.Tickets.Hooks(), "ticket")

	postgres.RegisterOutboxHooks(a.Outbox, svc.Enrollments.Hooks(), "enrollment")
	postgres.RegisterOutboxHooks(a.Outbox, svc.Orders.Hooks(), "order")
	postgres.RegisterOutboxHooks(a.Outbox, svc.Certificates.Hooks(), "certificate")
	postgres.RegisterOutboxHooks(a.Outbox, svc.Tickets.Hooks(), "ticket")

	a.Services = svc
	return nil
}

// Close releases connections.
func (a *App) Close() {
	if a.Flags != nil {
		a.Flags.Stop()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.Pool.Close()
}

// JobsConfig sets the worker's intervals.
type JobsConfig struct {
	Timeout      time.Duration
	ExpiryEvery  time.Duration
	OutboxEvery  time.Duration
	OutboxBatch  int
	CleanupEvery time.Duration
}

// DefaultJobsConfig returns the production intervals.
func DefaultJobsConfig() JobsConfig {
	return JobsConfig{
		Timeout:      5 * time.Minute,
		ExpiryEvery:  time.Minute,
		OutboxEvery:  2 * time.Second,
		OutboxBatch:  100,
		CleanupEvery: time.Hour,
	}
}

// Jobs builds the maintenance scheduler. The outbox relay is registered only
// when Redis is configured; otherwise messages wait in the table.
func (a *App) Jobs(cfg JobsConfig) (*jobs.Scheduler, error) {
	tasks := []jobs.Task{
		jobs.EnrollmentExpiry(a.Services.Enrollments, cfg.ExpiryEvery),
		jobs.InviteExpiry(cfg.ExpiryEvery, a.Services.CourseInvites, a.Services.OrgInvites),
		jobs.TokenCleanup(a.Services.Auth, cfg.CleanupEvery),
		jobs.IdempotencyCleanup(a.Idempotency, cfg.CleanupEvery),
	}
	if a.Redis != nil {
		relay := postgres.NewOutboxRelay(a.TxManager, cfg.OutboxBatch, events.NewRedisPublisher(a.Redis))
		tasks = append(tasks, jobs.OutboxRelay(relay, cfg.OutboxBatch, cfg.OutboxEvery))
	} else {
		a.Log.Warnw("redis not configured, outbox relay disabled")
	}
	return jobs.New(a.Metrics, cfg.Timeout, tasks...)
}
