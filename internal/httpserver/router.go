package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/Skotchmaster/elearning/internal/apperr"
	"github.com/Skotchmaster/elearning/internal/metrics"
	authmw "github.com/Skotchmaster/elearning/internal/middleware/auth"
	"github.com/Skotchmaster/elearning/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/elearning/internal/middleware/logging"
	"github.com/Skotchmaster/elearning/internal/models"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger *slog.Logger
	DB     *gorm.DB
	Cache  Pinger

	Gate          *authmw.Gate
	Users         *UserHTTP
	Courses       *CourseHTTP
	Orders        *OrderHTTP
	Notifications *NotificationHTTP
	Analytics     *AnalyticsHTTP

	CORSOrigins []string
	// AuthRateLimit is requests per second per client IP on the public auth
	// endpoints. Zero disables limiting.
	AuthRateLimit int
	// CSRF enables double-submit protection when set.
	CSRF *csrf.Config
}

// New builds the echo instance with the shared middleware chain and all
// routes registered.
func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler
	e.Validator = NewValidator()

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.RequestID(),
		metrics.Middleware(),
		loggingmw.RequestLogger(d.Logger),
		middleware.Recover(),
	)
	if len(d.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     d.CORSOrigins,
			AllowCredentials: true,
		}))
	}

	if d.CSRF != nil {
		cfg := *d.CSRF
		cfg.SkipPrefixes = append(cfg.SkipPrefixes, "/health", "/metrics")
		e.Use(csrf.Middleware(cfg))
	}

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.ready)
	e.GET("/metrics", metrics.Handler())

	limit := authLimiter(d.AuthRateLimit)
	auth := d.Gate.RequireAuth
	admin := []echo.MiddlewareFunc{d.Gate.RequireAuth, authmw.AuthorizeRoles(models.RoleAdmin)}
	dashboard := []echo.MiddlewareFunc{d.Gate.AutoRefresh, authmw.AuthorizeRoles(models.RoleAdmin)}

	v1 := e.Group("/api/v1")

	v1.POST("/registration", d.Users.Register, limit)
	v1.POST("/activate-user", d.Users.Activate, limit)
	v1.POST("/login", d.Users.Login, limit)
	v1.GET("/logout", d.Users.Logout, auth)
	v1.GET("/refresh", d.Users.Refresh)
	v1.GET("/me", d.Users.Me, auth)
	v1.POST("/social-auth", d.Users.SocialAuth, limit)
	v1.PUT("/update-user-info", d.Users.UpdateInfo, auth)
	v1.PUT("/update-user-password", d.Users.UpdatePassword, auth)
	v1.PUT("/update-user-avatar", d.Users.UpdateAvatar, auth)
	v1.POST("/reset-password-request", d.Users.RequestReset, limit)
	v1.POST("/verify-reset-code", d.Users.VerifyResetCode, limit)
	v1.PUT("/reset-password", d.Users.ResetPassword, limit, d.Gate.OptionalAuth)
	v1.GET("/get-users", d.Users.ListUsers, admin...)
	v1.PUT("/update-user-role", d.Users.UpdateRole, admin...)
	v1.DELETE("/delete-user/:id", d.Users.DeleteUser, admin...)

	v1.POST("/create-course", d.Courses.CreateCourse, admin...)
	v1.PUT("/edit-course/:id", d.Courses.EditCourse, admin...)
	v1.GET("/get-course/:id", d.Courses.GetCourse)
	v1.GET("/get-courses", d.Courses.GetCourses)
	v1.GET("/get-featured-courses", d.Courses.FeaturedCourses)
	v1.GET("/search-courses", d.Courses.SearchCourses)
	v1.GET("/get-course-content/:id", d.Courses.GetCourseContent, auth)
	v1.PUT("/add-question", d.Courses.AddQuestion, auth)
	v1.PUT("/add-answer", d.Courses.AddAnswer, auth)
	v1.PUT("/add-review/:id", d.Courses.AddReview, auth)
	v1.PUT("/add-reply", d.Courses.AddReplyToReview, admin...)
	v1.GET("/get-course-questions/:id", d.Courses.ListQuestions)
	v1.GET("/get-course-reviews/:id", d.Courses.ListReviews)
	v1.GET("/get-admin-courses", d.Courses.AdminCourses, admin...)
	v1.DELETE("/delete-course/:id", d.Courses.DeleteCourse, admin...)

	v1.POST("/create-order", d.Orders.CreateOrder, auth)
	v1.GET("/get-orders", d.Orders.ListOrders, dashboard...)
	v1.GET("/payment/stripepublishablekey", d.Orders.PublishableKey)
	v1.POST("/payment", d.Orders.NewPayment, auth)

	v1.GET("/get-all-notifications", d.Notifications.List, dashboard...)
	v1.PUT("/update-notification/:id", d.Notifications.MarkRead, dashboard...)

	v1.GET("/get-users-analytics", d.Analytics.Users, dashboard...)
	v1.GET("/get-courses-analytics", d.Analytics.Courses, dashboard...)
	v1.GET("/get-orders-analytics", d.Analytics.Orders, dashboard...)
}

func authLimiter(perSecond int) echo.MiddlewareFunc {
	if perSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     perSecond * 2,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiter(store)
}

// ready pings the database and redis and mirrors the result into the
// dependency gauges.
func (d *Deps) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := echo.Map{"db": "ok", "redis": "ok"}
	healthy := true

	if err := pingDB(ctx, d.DB); err != nil {
		status["db"] = err.Error()
		healthy = false
		metrics.SetDependencyHealth("db", false)
	} else {
		metrics.SetDependencyHealth("db", true)
	}

	if err := d.Cache.Ping(ctx); err != nil {
		status["redis"] = err.Error()
		healthy = false
		metrics.SetDependencyHealth("redis", false)
	} else {
		metrics.SetDependencyHealth("redis", true)
	}

	if !healthy {
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
