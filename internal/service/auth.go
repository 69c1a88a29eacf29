package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/elearning/internal/apperr"
	"github.com/Skotchmaster/elearning/internal/cache"
	"github.com/Skotchmaster/elearning/internal/hash"
	"github.com/Skotchmaster/elearning/internal/logging"
	"github.com/Skotchmaster/elearning/internal/mailer"
	"github.com/Skotchmaster/elearning/internal/metrics"
	"github.com/Skotchmaster/elearning/internal/models"
	"github.com/Skotchmaster/elearning/internal/repo"
	"github.com/Skotchmaster/elearning/internal/tokens"
)

const resetGrantValue = "granted"

// Grant is the outcome of a login or refresh: both tokens and the session
// copy of the user.
type Grant struct {
	User         *models.User
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

type AuthService struct {
	Repo        *repo.GormRepo
	Tokens      *tokens.Service
	Sessions    SessionStore
	ResetCodes  CodeStore
	ResetGrants CodeStore
	Mail        Dispatcher
	Events      EventPublisher

	// ActivationAttempts caps wrong codes per ticket. Nil disables the cap.
	ActivationAttempts    AttemptCounter
	MaxActivationAttempts int

	SessionTTL    time.Duration
	ResetCodeTTL  time.Duration
	ResetGrantTTL time.Duration
}

// Register mints an activation ticket for a new account and mails its code.
// Nothing is persisted until Activate.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (string, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return "", apperr.Validationf("Please enter username, email and password")
	}

	exists, err := s.Repo.EmailExists(ctx, email)
	if err != nil {
		return "", internal("check email", err)
	}
	if exists {
		return "", ErrEmailExists
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return "", err
	}
	ticket, err := s.Tokens.IssueActivation(tokens.PendingUser{Username: username, Email: email, Password: hashed})
	if err != nil {
		return "", internal("issue activation", err)
	}

	err = s.Mail.Dispatch(ctx, mailer.Message{
		To:       email,
		Subject:  "Activate your account",
		Template: mailer.TemplateActivation,
		Data: map[string]any{
			"user":           map[string]any{"name": username},
			"activationCode": ticket.Code,
		},
	})
	if err != nil {
		return "", upstream("Could not send activation mail", err)
	}

	metrics.RecordAuthEvent(metrics.EventRegistration)
	return ticket.Token, nil
}

func (s *AuthService) Activate(ctx context.Context, ticket, code string) (*models.User, error) {
	claims, err := s.Tokens.VerifyActivation(ticket)
	if err != nil {
		if errors.Is(err, tokens.ErrTokenExpired) {
			return nil, ErrTicketExpired
		}
		return nil, ErrTicketInvalid
	}
	if err := s.checkActivationAttempts(ctx, claims.ID); err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(claims.ActivationCode), []byte(code)) != 1 {
		if s.ActivationAttempts != nil {
			if _, err := s.ActivationAttempts.Fail(ctx, claims.ID); err != nil {
				return nil, internal("record activation miss", err)
			}
		}
		return nil, ErrCodeMismatch
	}

	pending := claims.User
	exists, err := s.Repo.EmailExists(ctx, pending.Email)
	if err != nil {
		return nil, internal("check email", err)
	}
	if exists {
		return nil, ErrEmailExists
	}

	u := &models.User{
		Username: pending.Username,
		Email:    pending.Email,
		Password: pending.Password,
		Role:     models.RoleUser,
	}
	if err := s.Repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, internal("create user", err)
	}

	metrics.RecordAuthEvent(metrics.EventActivation)
	publish(ctx, s.Events, TopicUserEvents, u.ID, map[string]any{
		"type": "user_registered", "userId": u.ID, "username": u.Username,
	})
	return u, nil
}

// checkActivationAttempts rejects a ticket that has used up its misses.
func (s *AuthService) checkActivationAttempts(ctx context.Context, ticketID string) error {
	if s.ActivationAttempts == nil || s.MaxActivationAttempts <= 0 {
		return nil
	}
	if ticketID == "" {
		return ErrTicketInvalid
	}
	n, err := s.ActivationAttempts.Count(ctx, ticketID)
	if err != nil {
		return internal("check activation attempts", err)
	}
	if n >= s.MaxActivationAttempts {
		return ErrTicketInvalid
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Grant, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Validationf("Please provide an email and password")
	}
	u, err := s.Repo.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.RecordAuthEvent(metrics.EventLoginFailed)
			return nil, ErrInvalidCredentials
		}
		return nil, internal("load user", err)
	}
	if !hash.CheckPassword(u.Password, password) {
		metrics.RecordAuthEvent(metrics.EventLoginFailed)
		return nil, ErrInvalidCredentials
	}

	g, err := s.sendToken(ctx, u)
	if err != nil {
		return nil, err
	}
	metrics.RecordAuthEvent(metrics.EventLogin)
	publish(ctx, s.Events, TopicUserEvents, u.ID, map[string]any{
		"type": "user_logged_in", "userId": u.ID, "username": u.Username,
	})
	return g, nil
}

// SocialAuth logs in the account with the given email, creating a
// password-less one on first sight.
func (s *AuthService) SocialAuth(ctx context.Context, email, username, avatarURL string) (*Grant, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Repo.UserByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		u, err = s.createSocialUser(ctx, email, username, avatarURL)
		if err != nil {
			return nil, err
		}
	default:
		return nil, internal("load user", err)
	}
	return s.sendToken(ctx, u)
}

func (s *AuthService) createSocialUser(ctx context.Context, email, username, avatarURL string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	taken, err := s.Repo.UsernameTaken(ctx, username, "")
	if err != nil {
		return nil, internal("check username", err)
	}
	if taken {
		username = username + "-" + uuid.NewString()[:8]
	}

	u := &models.User{
		Username:   username,
		Email:      email,
		Avatar:     models.Image{URL: avatarURL},
		Role:       models.RoleUser,
		IsVerified: true,
	}
	if err := s.Repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, internal("create user", err)
	}
	publish(ctx, s.Events, TopicUserEvents, u.ID, map[string]any{
		"type": "user_registered", "userId": u.ID, "username": u.Username, "social": true,
	})
	return u, nil
}

// sendToken issues both tokens and (re)starts the session with a full TTL.
func (s *AuthService) sendToken(ctx context.Context, u *models.User) (*Grant, error) {
	access, accessExp, err := s.Tokens.IssueAccessToken(u.ID)
	if err != nil {
		return nil, internal("issue access token", err)
	}
	refresh, refreshExp, err := s.Tokens.IssueRefreshToken(u.ID)
	if err != nil {
		return nil, internal("issue refresh token", err)
	}
	if err := s.Sessions.Save(ctx, u, s.SessionTTL); err != nil {
		return nil, internal("save session", err)
	}
	return &Grant{
		User:         u,
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, u *models.User) error {
	if err := s.Sessions.Delete(ctx, u.ID); err != nil {
		return internal("delete session", err)
	}
	metrics.RecordAuthEvent(metrics.EventLogout)
	return nil
}

// Refresh rotates both tokens for a live session and slides its TTL.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	claims, err := s.Tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		logging.FromContext(ctx).Info("refresh_rejected", "reason", err.Error())
		return nil, ErrRefreshFailed
	}
	u, err := s.Sessions.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, internal("load session", err)
	}

	g, err := s.sendToken(ctx, u)
	if err != nil {
		return nil, err
	}
	metrics.RecordAuthEvent(metrics.EventRefresh)
	return g, nil
}

// RequestReset mails a one-time code and returns the reset ticket.
func (s *AuthService) RequestReset(ctx context.Context, email string) (string, error) {
	u, err := s.Repo.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", storeErr("load user", err, ErrUserNotFound)
	}
	locked, err := s.ResetCodes.Locked(ctx, u.ID)
	if err != nil {
		return "", internal("check reset attempts", err)
	}
	if locked {
		metrics.RecordAuthEvent(metrics.EventResetLocked)
		return "", ErrResetLocked
	}
	ticket, err := s.Tokens.IssueActivation(tokens.PendingUser{ID: u.ID, Username: u.Username, Email: u.Email})
	if err != nil {
		return "", internal("issue reset ticket", err)
	}
	if err := s.ResetCodes.Save(ctx, u.ID, ticket.Code, s.ResetCodeTTL); err != nil {
		return "", internal("save reset code", err)
	}

	err = s.Mail.Dispatch(ctx, mailer.Message{
		To:       u.Email,
		Subject:  "Reset your password",
		Template: mailer.TemplateResetCode,
		Data: map[string]any{
			"user":           map[string]any{"name": u.Username},
			"activationCode": ticket.Code,
		},
	})
	if err != nil {
		return "", upstream("Could not send reset mail", err)
	}
	return ticket.Token, nil
}

// VerifyCode consumes the reset code and leaves a single-use grant that
// allows one password reset without a session. Misses are counted per user;
// at the limit the code is burned and verification stays locked for the
// lockout window, whatever code is presented.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) error {
	u, err := s.Repo.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return storeErr("load user", err, ErrUserNotFound)
	}
	ok, err := s.ResetCodes.Consume(ctx, u.ID, strings.TrimSpace(code))
	if errors.Is(err, cache.ErrAttemptsExceeded) {
		metrics.RecordAuthEvent(metrics.EventResetLocked)
		logging.FromContext(ctx).Warn("reset_code_locked", "user_id", u.ID)
		return ErrResetLocked
	}
	if err != nil {
		return internal("consume reset code", err)
	}
	if !ok {
		return ErrCodeInvalid
	}
	if err := s.ResetGrants.Save(ctx, u.ID, resetGrantValue, s.ResetGrantTTL); err != nil {
		return internal("save reset grant", err)
	}
	return nil
}

// ResetPassword sets a new password for the logged in identity or, when
// identity is nil, for the account holding a reset grant.
func (s *AuthService) ResetPassword(ctx context.Context, identity *models.User, email, password string) error {
	if password == "" {
		return apperr.Validationf("Password is required")
	}

	var userID string
	if identity != nil {
		userID = identity.ID
	} else {
		if strings.TrimSpace(email) == "" {
			return apperr.Validationf("Email is required")
		}
		u, err := s.Repo.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
		if err != nil {
			return storeErr("load user", err, ErrUserNotFound)
		}
		ok, err := s.ResetGrants.Consume(ctx, u.ID, resetGrantValue)
		if err != nil {
			return internal("consume reset grant", err)
		}
		if !ok {
			return ErrCodeInvalid
		}
		userID = u.ID
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdateUserFields(ctx, userID, map[string]any{"password": hashed}); err != nil {
		return storeErr("update password", err, ErrUserNotFound)
	}
	if err := s.ResetCodes.Delete(ctx, userID); err != nil {
		logging.FromContext(ctx).Warn("reset_code_cleanup_failed", "error", err)
	}
	if _, err := refreshSession(ctx, s.Repo, s.Sessions, userID); err != nil {
		return err
	}
	metrics.RecordAuthEvent(metrics.EventPasswordReset)
	return nil
}
