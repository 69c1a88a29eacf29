package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/elearning/internal/logging"
	authmw "github.com/Skotchmaster/elearning/internal/middleware/auth"
	"github.com/Skotchmaster/elearning/internal/service"
	"github.com/Skotchmaster/elearning/internal/tokens"
	"github.com/Skotchmaster/elearning/internal/transport"
)

type UserHTTP struct {
	Auth    *service.AuthService
	Users   *service.UserService
	Cookies tokens.CookiePolicy
}

func (h *UserHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_register")

	var req transport.RegisterRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return err
	}

	token, err := h.Auth.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		l.Warn("register_failed", "error", err)
		return err
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success":         true,
		"message":         fmt.Sprintf("Please check your email: %s to activate your account!", req.Email),
		"activationToken": token,
	})
}

func (h *UserHTTP) Activate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_activate")

	var req transport.ActivateRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("activate_error", "status", 400, "error", err)
		return err
	}

	u, err := h.Auth.Activate(ctx, req.ActivationToken, req.ActivationCode)
	if err != nil {
		l.Warn("activate_failed", "error", err)
		return err
	}
	l.Info("user_activated", "user_id", u.ID)

	return c.JSON(http.StatusCreated, echo.Map{"success": true})
}

func (h *UserHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_login")

	var req transport.LoginRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return err
	}

	g, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		l.Warn("login_failed", "error", err)
		return err
	}
	authmw.SetAuthCookies(c, h.Cookies, g)
	l.Info("login_successful", "user_id", g.User.ID)

	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"user":        g.User,
		"accessToken": g.AccessToken,
	})
}

func (h *UserHTTP) SocialAuth(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_social_auth")

	var req transport.SocialAuthRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("social_auth_error", "status", 400, "error", err)
		return err
	}

	g, err := h.Auth.SocialAuth(ctx, req.Email, req.Username, req.Avatar)
	if err != nil {
		l.Warn("social_auth_failed", "error", err)
		return err
	}
	authmw.SetAuthCookies(c, h.Cookies, g)

	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"user":        g.User,
		"accessToken": g.AccessToken,
	})
}

func (h *UserHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_logout")

	u, err := authmw.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := h.Auth.Logout(ctx, u); err != nil {
		l.Error("logout_failed", "error", err)
		return err
	}
	authmw.ClearAuthCookies(c, h.Cookies)
	l.Info("logout_successful", "user_id", u.ID)

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (h *UserHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_refresh")

	ck, err := c.Cookie(tokens.RefreshCookie)
	if err != nil || ck.Value == "" {
		l.Warn("refresh_error", "status", 400, "reason", "missing refresh cookie")
		return service.ErrRefreshFailed
	}

	g, err := h.Auth.Refresh(ctx, ck.Value)
	if err != nil {
		l.Warn("refresh_failed", "error", err)
		return err
	}
	authmw.SetAuthCookies(c, h.Cookies, g)

	return c.JSON(http.StatusOK, echo.Map{
		"success":     true,
		"accessToken": g.AccessToken,
	})
}

func (h *UserHTTP) Me(c echo.Context) error {
	u, err := authmw.CurrentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": u})
}

func (h *UserHTTP) UpdateInfo(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update_info")

	u, err := authmw.CurrentUser(c)
	if err != nil {
		return err
	}
	var req transport.UpdateInfoRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("update_info_error", "status", 400, "error", err)
		return err
	}

	updated, err := h.Users.UpdateInfo(ctx, u, req.Username)
	if err != nil {
		l.Warn("update_info_failed", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "User updated successfully",
		"user":    updated,
	})
}

func (h *UserHTTP) UpdatePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update_password")

	u, err := authmw.CurrentUser(c)
	if err != nil {
		return err
	}
	var req transport.UpdatePasswordRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("update_password_error", "status", 400, "error", err)
		return err
	}

	updated, err := h.Users.UpdatePassword(ctx, u, req.OldPassword, req.NewPassword)
	if err != nil {
		l.Warn("update_password_failed", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Password updated successfully",
		"user":    updated,
	})
}

func (h *UserHTTP) UpdateAvatar(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update_avatar")

	u, err := authmw.CurrentUser(c)
	if err != nil {
		return err
	}
	var req transport.UpdateAvatarRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("update_avatar_error", "status", 400, "error", err)
		return err
	}

	updated, err := h.Users.UpdateAvatar(ctx, u, req.Avatar)
	if err != nil {
		l.Warn("update_avatar_failed", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Avatar updated successfully",
		"user":    updated,
	})
}

func (h *UserHTTP) RequestReset(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_reset_request")

	var req transport.ResetRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("reset_request_error", "status", 400, "error", err)
		return err
	}

	token, err := h.Auth.RequestReset(ctx, req.Email)
	if err != nil {
		l.Warn("reset_request_failed", "error", err)
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Reset password code sent to your email",
		"token":   token,
	})
}

func (h *UserHTTP) VerifyResetCode(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_verify_reset_code")

	var req transport.VerifyResetCodeRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("verify_code_error", "status", 400, "error", err)
		return err
	}

	if err := h.Auth.VerifyCode(ctx, req.Email, req.Code); err != nil {
		l.Warn("verify_code_failed", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Code verified successfully",
	})
}

// ResetPassword runs behind OptionalAuth: a logged in caller resets their
// own password, anyone else needs a reset grant for the given email.
func (h *UserHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_reset_password")

	var req transport.ResetPasswordRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("reset_password_error", "status", 400, "error", err)
		return err
	}

	identity, _ := authmw.UserFromContext(ctx)
	if err := h.Auth.ResetPassword(ctx, identity, req.Email, req.Password); err != nil {
		l.Warn("reset_password_failed", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Password reset successfully",
	})
}

func (h *UserHTTP) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()

	users, err := h.Users.ListUsers(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("list_users_failed", "handler", "user_list", "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "users": users})
}

func (h *UserHTTP) UpdateRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update_role")

	var req transport.UpdateRoleRequest
	if err := bindValid(c, &req); err != nil {
		l.Warn("update_role_error", "status", 400, "error", err)
		return err
	}

	u, err := h.Users.UpdateRole(ctx, req.ID, req.Role)
	if err != nil {
		l.Warn("update_role_failed", "error", err)
		return err
	}
	l.Info("role_updated", "user_id", u.ID, "role", u.Role)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": u})
}

func (h *UserHTTP) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_delete")

	id := c.Param("id")
	if err := h.Users.DeleteUser(ctx, id); err != nil {
		l.Warn("delete_user_failed", "user_id", id, "error", err)
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "User deleted successfully",
	})
}
