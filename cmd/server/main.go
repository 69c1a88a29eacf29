package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Skotchmaster/elearning/internal/cache"
	"github.com/Skotchmaster/elearning/internal/config"
	"github.com/Skotchmaster/elearning/internal/db"
	"github.com/Skotchmaster/elearning/internal/es"
	"github.com/Skotchmaster/elearning/internal/housekeeping"
	"github.com/Skotchmaster/elearning/internal/httpserver"
	"github.com/Skotchmaster/elearning/internal/logging"
	"github.com/Skotchmaster/elearning/internal/mailer"
	"github.com/Skotchmaster/elearning/internal/metrics"
	authmw "github.com/Skotchmaster/elearning/internal/middleware/auth"
	"github.com/Skotchmaster/elearning/internal/middleware/csrf"
	"github.com/Skotchmaster/elearning/internal/mykafka"
	"github.com/Skotchmaster/elearning/internal/payment"
	"github.com/Skotchmaster/elearning/internal/repo"
	"github.com/Skotchmaster/elearning/internal/search"
	"github.com/Skotchmaster/elearning/internal/service"
	"github.com/Skotchmaster/elearning/internal/tokens"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, "elearning")
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		fatal(logger, "config_invalid", err)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		fatal(logger, "db_init_failed", err)
	}
	metrics.SetDependencyHealth("db", true)

	cc, err := cache.New(cfg.RedisURL)
	if err != nil {
		fatal(logger, "redis_init_failed", err)
	}
	if err := cc.Ping(initCtx); err != nil {
		fatal(logger, "redis_ping_failed", err)
	}
	metrics.SetDependencyHealth("redis", true)

	var (
		events service.EventPublisher
		mail   service.Dispatcher
		prod   *mykafka.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		prod, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			fatal(logger, "kafka_init_failed", err)
		}
		events = prod
		mail = &mailer.KafkaDispatcher{Publisher: prod, Topic: cfg.MailTopic}
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS not set, mail is logged only")
		mail = &mailer.LogDispatcher{Logger: logger.With("component", "mailer")}
	}

	var index service.CourseIndex
	if cfg.ESURL != "" {
		esClient, err := es.NewClient(initCtx, es.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			fatal(logger, "elasticsearch_init_failed", err)
		}
		index = &search.CourseIndex{ES: esClient, Index: cfg.ESIndex}
		metrics.SetDependencyHealth("elasticsearch", true)
	} else {
		logger.Warn("search_disabled", "reason", "ES_URL not set, searching the database")
	}

	var payments service.PaymentGateway
	if cfg.StripeSecretKey != "" {
		payments = payment.NewStripeClient(cfg.StripeSecretKey, payment.Options{
			BaseURL:    cfg.StripeAPIURL,
			MaxRetries: 2,
			Logger:     logger.With("component", "stripe"),
		})
	} else {
		logger.Warn("payments_disabled", "reason", "STRIPE_SECRET_KEY not set")
	}

	r := repo.New(gdb)
	sessions := cache.NewSessionStore(cc)
	courseCache := cache.NewCourseCache(cc)
	ts := &tokens.Service{
		AccessSecret:     cfg.AccessSecret,
		RefreshSecret:    cfg.RefreshSecret,
		ActivationSecret: cfg.ActivationSecret,
		AccessTTL:        cfg.AccessTTL,
		RefreshTTL:       cfg.RefreshTTL,
		ActivationTTL:    cfg.ActivationTTL,
	}
	cookies := tokens.CookiePolicy{Secure: cfg.Production}

	authSvc := &service.AuthService{
		Repo:          r,
		Tokens:        ts,
		Sessions:      sessions,
		ResetCodes:    cache.NewResetCodeStore(cc, cfg.CodeMaxAttempts, cfg.ResetLockout),
		ResetGrants:   cache.NewResetGrantStore(cc),
		Mail:          mail,
		Events:        events,
		SessionTTL:    cfg.SessionTTL,
		ResetCodeTTL:  cfg.ResetCodeTTL,
		ResetGrantTTL: cfg.ResetGrantTTL,

		ActivationAttempts:    cache.NewActivationAttempts(cc, cfg.ActivationTTL),
		MaxActivationAttempts: cfg.CodeMaxAttempts,
	}
	notifications := &service.NotificationService{Repo: r}

	var csrfCfg *csrf.Config
	if cfg.CSRFProtection {
		csrfCfg = &csrf.Config{Secure: cfg.Production, EnforceSameOrigin: true}
	}

	e := httpserver.New(&httpserver.Deps{
		Logger: logger,
		DB:     gdb,
		Cache:  cc,
		Gate:   &authmw.Gate{Tokens: ts, Sessions: sessions, Refresher: authSvc, Cookies: cookies},
		Users: &httpserver.UserHTTP{
			Auth:    authSvc,
			Users:   &service.UserService{Repo: r, Sessions: sessions, Events: events},
			Cookies: cookies,
		},
		Courses: &httpserver.CourseHTTP{Svc: &service.CourseService{
			Repo:     r,
			Cache:    courseCache,
			Index:    index,
			Mail:     mail,
			Events:   events,
			CacheTTL: cfg.CourseCacheTTL,
		}},
		Orders: &httpserver.OrderHTTP{Svc: &service.OrderService{
			Repo:           r,
			Sessions:       sessions,
			Courses:        courseCache,
			Payments:       payments,
			Mail:           mail,
			Events:         events,
			PublishableKey: cfg.StripePublishableKey,
		}},
		Notifications: &httpserver.NotificationHTTP{Svc: notifications},
		Analytics:     &httpserver.AnalyticsHTTP{Svc: &service.AnalyticsService{Repo: r}},
		CORSOrigins:   cfg.CORSOrigins,
		AuthRateLimit: cfg.AuthRateLimit,
		CSRF:          csrfCfg,
	})

	cleaner := housekeeping.NewNotificationCleaner(notifications, logger.With("component", "housekeeping"),
		cfg.CleanupInterval, cfg.NotificationRetention)
	cleaner.Start()

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("server_started", "addr", srv.Addr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "http_server_failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	go func() {
		<-quit
		logger.Error("force_exit")
		os.Exit(1)
	}()

	logger.Info("shutting_down")

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server_shutdown_failed", "error", err)
	}
	cleaner.Stop()
	if prod != nil {
		if err := prod.Close(); err != nil {
			logger.Error("kafka_close_failed", "error", err)
		}
	}
	if err := cc.Close(); err != nil {
		logger.Error("redis_close_failed", "error", err)
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_failed", "error", err)
	}

	logger.Info("shutdown_complete")
}

func fatal(l *slog.Logger, msg string, err error) {
	l.Error(msg, "error", err)
	os.Exit(1)
}
