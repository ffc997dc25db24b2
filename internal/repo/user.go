package repo

import (
	"context"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/pkg/pagination"
)

func (r *GormRepo) CreateUser(ctx context.Context, user *models.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateUser writes only the given columns.
func (r *GormRepo) UpdateUser(ctx context.Context, id uint, fields map[string]any) (*models.User, error) {
	if len(fields) > 0 {
		if err := r.DB.WithContext(ctx).Model(&models.User{ID: id}).Updates(fields).Error; err != nil {
			return nil, err
		}
	}
	return r.GetUserByID(ctx, id)
}

func (r *GormRepo) ListUsers(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.User, error) {
	var users []models.User
	if err := pagination.Apply(r.DB.WithContext(ctx).Model(&models.User{}), cursor, limit).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
