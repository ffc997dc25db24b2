package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/teashop/internal/models"
)

func lineScope(userID, productID uint, variantID *uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ? AND product_id = ?", userID, productID)
		if variantID == nil {
			return db.Where("variant_id IS NULL")
		}
		return db.Where("variant_id = ?", *variantID)
	}
}

func (r *GormRepo) GetCart(ctx context.Context, userID uint) ([]models.CartItem, error) {
	items := []models.CartItem{}
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ReplaceCart swaps the user's whole cart for items in one transaction.
func (r *GormRepo) ReplaceCart(ctx context.Context, userID uint, items []models.CartItem) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].ID = 0
			items[i].UserID = userID
		}
		return tx.CreateInBatches(&items, 100).Error
	})
}

// AddToCart merges with an existing line for the same product and variant.
// When a concurrent insert wins the race for the line, the unique index
// rejects ours and the add is retried as a merge.
func (r *GormRepo) AddToCart(ctx context.Context, item *models.CartItem) error {
	err := r.addToCart(ctx, item)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		item.ID = 0
		err = r.addToCart(ctx, item)
	}
	return err
}

func (r *GormRepo) addToCart(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.CartItem
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(lineScope(item.UserID, item.ProductID, item.VariantID)).
			First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Update("quantity", gorm.Expr("quantity + ?", item.Quantity)).Error; err != nil {
				return err
			}
			return tx.First(item, existing.ID).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(item).Error
		default:
			return err
		}
	})
}

func (r *GormRepo) SetCartQuantity(ctx context.Context, userID, productID uint, variantID *uint, qty int) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(lineScope(userID, productID, variantID)).
			First(&item).Error; err != nil {
			return err
		}
		if err := tx.Model(&item).Update("quantity", qty).Error; err != nil {
			return err
		}
		item.Quantity = qty
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) RemoveFromCart(ctx context.Context, userID, productID uint, variantID *uint) error {
	res := r.DB.WithContext(ctx).Scopes(lineScope(userID, productID, variantID)).Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) ClearCart(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}
