// Package service implements the use cases behind the HTTP handlers. Every
// method takes the caller identity, when it needs one, as an explicit
// parameter and returns *apperr.Error values for expected failures.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/elearning/internal/apperr"
	"github.com/Skotchmaster/elearning/internal/hash"
	"github.com/Skotchmaster/elearning/internal/logging"
	"github.com/Skotchmaster/elearning/internal/mailer"
	"github.com/Skotchmaster/elearning/internal/models"
	"github.com/Skotchmaster/elearning/internal/payment"
	"github.com/Skotchmaster/elearning/internal/repo"
	"github.com/Skotchmaster/elearning/internal/search"
)

// SessionStore is last-writer-wins; see cache.SessionStore.
type SessionStore interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	Save(ctx context.Context, u *models.User, ttl time.Duration) error
	Replace(ctx context.Context, u *models.User) (bool, error)
	Delete(ctx context.Context, userID string) error
}

type CodeStore interface {
	Save(ctx context.Context, userID, code string, ttl time.Duration) error
	Consume(ctx context.Context, userID, code string) (bool, error)
	Locked(ctx context.Context, userID string) (bool, error)
	Delete(ctx context.Context, userID string) error
}

type AttemptCounter interface {
	Fail(ctx context.Context, key string) (int, error)
	Count(ctx context.Context, key string) (int, error)
}

type CourseCache interface {
	Get(ctx context.Context, id string, dst any) (bool, error)
	Set(ctx context.Context, id string, v any, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, m mailer.Message) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type PaymentGateway interface {
	RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error)
	CreateIntent(ctx context.Context, amount int64, currency string) (*payment.Intent, error)
}

type CourseIndex interface {
	IndexCourse(ctx context.Context, c *models.Course) error
	DeleteCourse(ctx context.Context, id string) error
	Search(ctx context.Context, query string, from, size int) (int64, []search.Document, error)
}

const (
	TopicUserEvents   = "user_events"
	TopicCourseEvents = "course_events"
	TopicOrderEvents  = "order_events"
)

var (
	ErrLoginRequired      = apperr.New(apperr.Unauthenticated, "Please login to access this resource")
	ErrAccessTokenInvalid = apperr.New(apperr.Unauthenticated, "access token is not valid")
	ErrRefreshFailed      = apperr.New(apperr.Unauthenticated, "Could not refresh token")
	ErrSessionExpired     = apperr.New(apperr.Unauthenticated, "Please login for access this resources!")

	ErrEmailExists        = apperr.New(apperr.Duplicate, "Email already exist")
	ErrUserExists         = apperr.New(apperr.Duplicate, "User already exist")
	ErrUsernameTaken      = apperr.New(apperr.Duplicate, "Username already taken")
	ErrTicketExpired      = apperr.New(apperr.Validation, "Activation token expired")
	ErrTicketInvalid      = apperr.New(apperr.Validation, "Activation token is not valid")
	ErrCodeMismatch       = apperr.New(apperr.Validation, "Invalid activation code")
	ErrCodeInvalid        = apperr.New(apperr.Validation, "Invalid or expired reset code")
	ErrResetLocked        = apperr.New(apperr.Validation, "Too many invalid codes, please try again later")
	ErrInvalidCredentials = apperr.New(apperr.Validation, "Invalid email or password")
	ErrInvalidUser        = apperr.New(apperr.Validation, "Invalid user")
	ErrInvalidOldPassword = apperr.New(apperr.Validation, "Invalid old password")
	ErrUserNotFound       = apperr.New(apperr.NotFound, "User not found")

	ErrCourseNotFound     = apperr.New(apperr.NotFound, "Course not found")
	ErrNotEligible        = apperr.New(apperr.NotFound, "You are not eligible to access this course")
	ErrInvalidContentID   = apperr.New(apperr.Validation, "Invalid content id")
	ErrInvalidQuestionID  = apperr.New(apperr.Validation, "Invalid question id")
	ErrReviewNotFound     = apperr.New(apperr.NotFound, "Review not found")
	ErrPaymentUnavailable = apperr.New(apperr.Upstream, "Payment service unavailable")
	ErrPaymentNotAuth     = apperr.New(apperr.Validation, "Payment not authorized!")
	ErrAlreadyPurchased   = apperr.New(apperr.Duplicate, "You have already purchased this course")

	ErrNotificationNotFound = apperr.New(apperr.NotFound, "Notification not found")
)

func internal(op string, err error) error {
	return apperr.Wrap(apperr.Internal, "Internal server error", fmt.Errorf("%s: %w", op, err))
}

func upstream(msg string, err error) error {
	return apperr.Wrap(apperr.Upstream, msg, err)
}

// hashPassword passes validation failures (too long) through and treats
// anything else as internal.
func hashPassword(password string) (string, error) {
	hashed, err := hash.HashPassword(password)
	if err != nil {
		if apperr.KindOf(err) == apperr.Validation {
			return "", err
		}
		return "", internal("hash password", err)
	}
	return hashed, nil
}

// storeErr maps a record-not-found to notFound and everything else to an
// internal failure.
func storeErr(op string, err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return internal(op, err)
}

// refreshSession reloads the user and rewrites an existing session with it.
// A missing session stays missing.
func refreshSession(ctx context.Context, r *repo.GormRepo, sessions SessionStore, userID string) (*models.User, error) {
	u, err := r.UserByID(ctx, userID)
	if err != nil {
		return nil, storeErr("reload user", err, ErrUserNotFound)
	}
	if _, err := sessions.Replace(ctx, u); err != nil {
		return nil, internal("replace session", err)
	}
	return u, nil
}

// publish emits a domain event. Failures are logged, never returned: the
// state change already happened.
func publish(ctx context.Context, p EventPublisher, topic, key string, event map[string]any) {
	if p == nil {
		return
	}
	event["at"] = time.Now().UTC()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "topic", topic, "type", event["type"], "error", err)
	}
}

func notify(ctx context.Context, r *repo.GormRepo, userID, title, message string) {
	n := &models.Notification{UserID: userID, Title: title, Message: message}
	if err := r.CreateNotification(ctx, n); err != nil {
		logging.FromContext(ctx).Error("notification_create_failed", "title", title, "error", err)
	}
}
