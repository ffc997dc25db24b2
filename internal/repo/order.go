package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/pkg/pagination"
)

type OrderFilter struct {
	UserID *uint
	Status *models.OrderStatus
}

func withOrderItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

// CreateOrder inserts the order row first and then its items.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	db := r.DB.WithContext(ctx)
	items := order.Items
	order.Items = nil

	if err := db.Create(order).Error; err != nil {
		order.Items = items
		return err
	}

	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := db.Create(&items).Error; err != nil {
			order.Items = items
			return err
		}
	}
	order.Items = items
	return nil
}

func (r *GormRepo) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := withOrderItems(r.DB.WithContext(ctx)).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, f OrderFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	q := withOrderItems(r.DB.WithContext(ctx)).Model(&models.Order{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}

	var orders []models.Order
	if err := pagination.Apply(q, cursor, limit).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// SetOrderStatus moves an order from one status to another. It reports
// false when the order is no longer in the expected status.
func (r *GormRepo) SetOrderStatus(ctx context.Context, id uint, from, to models.OrderStatus) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
