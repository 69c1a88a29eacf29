package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/elearning/internal/apperr"
	"github.com/Skotchmaster/elearning/internal/hash"
	"github.com/Skotchmaster/elearning/internal/models"
	"github.com/Skotchmaster/elearning/internal/repo"
)

type UserService struct {
	Repo     *repo.GormRepo
	Sessions SessionStore
	Events   EventPublisher
}

func (s *UserService) UpdateInfo(ctx context.Context, identity *models.User, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.Validationf("Username is required")
	}
	taken, err := s.Repo.UsernameTaken(ctx, username, identity.ID)
	if err != nil {
		return nil, internal("check username", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	if err := s.Repo.UpdateUserFields(ctx, identity.ID, map[string]any{"username": username}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, storeErr("update user", err, ErrUserNotFound)
	}
	return refreshSession(ctx, s.Repo, s.Sessions, identity.ID)
}

func (s *UserService) UpdatePassword(ctx context.Context, identity *models.User, oldPassword, newPassword string) (*models.User, error) {
	if oldPassword == "" || newPassword == "" {
		return nil, apperr.Validationf("Old password and new password are required")
	}
	u, err := s.Repo.UserByID(ctx, identity.ID)
	if err != nil {
		return nil, storeErr("load user", err, ErrUserNotFound)
	}
	if u.Password == "" {
		return nil, ErrInvalidUser
	}
	if !hash.CheckPassword(u.Password, oldPassword) {
		return nil, ErrInvalidOldPassword
	}

	hashed, err := hashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateUserFields(ctx, u.ID, map[string]any{"password": hashed}); err != nil {
		return nil, storeErr("update password", err, ErrUserNotFound)
	}
	return refreshSession(ctx, s.Repo, s.Sessions, u.ID)
}

func (s *UserService) UpdateAvatar(ctx context.Context, identity *models.User, avatar models.Image) (*models.User, error) {
	if avatar.URL == "" {
		return nil, apperr.Validationf("Avatar url is required")
	}
	err := s.Repo.UpdateUserFields(ctx, identity.ID, map[string]any{
		"avatar_public_id": avatar.PublicID,
		"avatar_url":       avatar.URL,
	})
	if err != nil {
		return nil, storeErr("update avatar", err, ErrUserNotFound)
	}
	return refreshSession(ctx, s.Repo, s.Sessions, identity.ID)
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.Repo.ListUsers(ctx)
	if err != nil {
		return nil, internal("list users", err)
	}
	return users, nil
}

// UpdateRole changes a user's role and rewrites their live session so the
// next request is authorized with it.
func (s *UserService) UpdateRole(ctx context.Context, id, role string) (*models.User, error) {
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, apperr.Validationf("Invalid role %q", role)
	}
	if err := s.Repo.UpdateUserFields(ctx, id, map[string]any{"role": role}); err != nil {
		return nil, storeErr("update role", err, ErrUserNotFound)
	}
	u, err := refreshSession(ctx, s.Repo, s.Sessions, id)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.Events, TopicUserEvents, id, map[string]any{"type": "user_role_changed", "userId": id, "role": role})
	return u, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.Repo.DeleteUser(ctx, id); err != nil {
		return storeErr("delete user", err, ErrUserNotFound)
	}
	if err := s.Sessions.Delete(ctx, id); err != nil {
		return internal("delete session", err)
	}
	publish(ctx, s.Events, TopicUserEvents, id, map[string]any{"type": "user_deleted", "userId": id})
	return nil
}
