package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/internal/repo"
	"github.com/Skotchmaster/teashop/internal/transport"
	"github.com/Skotchmaster/teashop/pkg/logging"
	"github.com/Skotchmaster/teashop/pkg/pagination"
	"github.com/Skotchmaster/teashop/pkg/storage"
)

type UserService struct {
	Repo     *repo.GormRepo
	Uploader *storage.Uploader
}

func (s *UserService) GetProfile(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.Repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
		}
		return nil, err
	}
	return u, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id uint, req transport.UpdateProfileRequest) (*models.User, error) {
	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if len([]rune(name)) < 2 {
			return nil, fmt.Errorf("%w: name must be at least 2 characters", ErrValidation)
		}
		fields["name"] = name
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone != "" {
			normalized, ok := normalizePhone(phone)
			if !ok {
				return nil, fmt.Errorf("%w: phone number must have 10-11 digits", ErrValidation)
			}
			phone = normalized
		}
		fields["phone"] = phone
	}
	if req.Address != nil {
		fields["address"] = strings.TrimSpace(*req.Address)
	}

	if _, err := s.GetProfile(ctx, id); err != nil {
		return nil, err
	}
	return s.Repo.UpdateUser(ctx, id, fields)
}

// placeholderAvatar is used when the client posts no file.
func placeholderAvatar(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&size=200&background=667eea&color=fff"
}

// SetAvatar stores f (when given) under avatars/ and points the user at
// it. Without a file the user gets a generated initials avatar.
func (s *UserService) SetAvatar(ctx context.Context, id uint, f *storage.File, baseURL string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "user.avatar", "user_id", id)

	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	avatarURL := placeholderAvatar(user.Name)
	if f != nil {
		if s.Uploader == nil {
			return nil, errors.New("storage is not configured")
		}
		up, err := s.Uploader.Upload(ctx, *f, baseURL, storage.UploadOptions{Folder: "avatars"})
		if err != nil {
			if errors.Is(err, storage.ErrInvalidFile) {
				return nil, fmt.Errorf("%w: %v", ErrValidation, err)
			}
			return nil, err
		}
		avatarURL = up.URL
		l.Info("avatar_uploaded", "key", up.Key)
	}

	updated, err := s.Repo.UpdateUser(ctx, id, map[string]any{"avatar_url": avatarURL})
	if err != nil {
		return nil, err
	}

	if s.Uploader != nil && user.AvatarURL != "" && user.AvatarURL != avatarURL {
		if key, ok := storage.KeyFromURL(baseURL, user.AvatarURL); ok && strings.HasPrefix(key, "avatars/") {
			if err := s.Uploader.Bucket.Delete(ctx, key); err != nil {
				l.Warn("old_avatar_delete_failed", "key", key, "error", err)
			}
		}
	}
	return updated, nil
}

func (s *UserService) ListUsers(ctx context.Context, cursor string, limit int) (pagination.Page[models.User], error) {
	limit = pagination.Limit(limit)
	rows, err := s.Repo.ListUsers(ctx, pagination.DecodeCursor(cursor), limit)
	if err != nil {
		return pagination.Page[models.User]{}, err
	}
	return pagination.Trim(rows, limit, func(u models.User) (uint, time.Time) { return u.ID, u.CreatedAt }), nil
}
