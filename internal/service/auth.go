package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/internal/repo"
	"github.com/Skotchmaster/teashop/internal/transport"
	"github.com/Skotchmaster/teashop/pkg/events"
	pkg_hash "github.com/Skotchmaster/teashop/pkg/hash"
	"github.com/Skotchmaster/teashop/pkg/logging"
	"github.com/Skotchmaster/teashop/pkg/tokens"
)

type AuthService struct {
	Repo      *repo.GormRepo
	JWTSecret []byte
	TokenTTL  time.Duration
	Events    events.Publisher
}

func (s *AuthService) ttl() time.Duration {
	if s.TokenTTL <= 0 {
		return 24 * time.Hour
	}
	return s.TokenTTL
}

func (s *AuthService) issue(user *models.User) (*transport.AuthResponse, error) {
	token, exp, err := tokens.NewAccessToken(user.ID, user.Email, string(user.Role), s.ttl(), s.JWTSecret)
	if err != nil {
		return nil, err
	}
	return &transport.AuthResponse{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) Register(ctx context.Context, req transport.RegisterRequest) (*transport.AuthResponse, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)

	if !validEmail(email) {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	if len([]rune(name)) < 2 {
		return nil, fmt.Errorf("%w: name must be at least 2 characters", ErrValidation)
	}

	taken, err := s.Repo.EmailTaken(ctx, email)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot check email", "error", err)
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: email is already registered", ErrConflict)
	}

	pwHash, err := pkg_hash.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, pkg_hash.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	phone := strings.TrimSpace(req.Phone)
	if phone != "" {
		normalized, ok := normalizePhone(phone)
		if !ok {
			return nil, fmt.Errorf("%w: phone number must have 10-11 digits", ErrValidation)
		}
		phone = normalized
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		Phone:        phone,
		Address:      strings.TrimSpace(req.Address),
		PasswordHash: pwHash,
		Role:         models.RoleCustomer,
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: email is already registered", ErrConflict)
		}
		l.Error("register_error", "status", 500, "reason", "cannot create user", "error", err)
		return nil, err
	}

	l.Info("user_registered", "user_id", user.ID)
	publish(ctx, s.Events, events.TopicUsers, strconv.FormatUint(uint64(user.ID), 10), events.New("user_registered", map[string]any{
		"id":    user.ID,
		"email": user.Email,
	}))
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req transport.LoginRequest) (*transport.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	l := logging.FromContext(ctx).With("svc", "auth.login", "email", email)

	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login failed", "status", 401, "reason", "unknown email")
			return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
		}
		return nil, err
	}
	if !pkg_hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login failed", "status", 401, "reason", "wrong password")
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	return s.issue(user)
}
