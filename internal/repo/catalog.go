package repo

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/pkg/pagination"
)

type ProductFilter struct {
	Category *models.Category
	InStock  *bool
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

func withProductRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("display_order ASC, id ASC") })
}

func (r *GormRepo) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := withProductRelations(r.DB.WithContext(ctx)).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductForUpdate locks the row where the dialect supports it.
func (r *GormRepo) GetProductForUpdate(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) GetProductsByIDs(ctx context.Context, ids []uint) ([]models.Product, error) {
	items := make([]models.Product, 0, len(ids))
	if len(ids) == 0 {
		return items, nil
	}
	if err := withProductRelations(r.DB.WithContext(ctx)).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) ListProducts(ctx context.Context, f ProductFilter, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	q := withProductRelations(r.DB.WithContext(ctx)).Model(&models.Product{})

	if f.Category != nil {
		q = q.Where("category = ?", *f.Category)
	}
	if f.InStock != nil {
		q = q.Where("in_stock = ?", *f.InStock)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}

	var items []models.Product
	if err := pagination.Apply(q, cursor, limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// SearchProducts is the database fallback used when no search cluster
// is configured.
func (r *GormRepo) SearchProducts(ctx context.Context, query string, limit int) ([]models.Product, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	var items []models.Product
	err := withProductRelations(r.DB.WithContext(ctx)).
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) error {
	return r.DB.WithContext(ctx).Create(prod).Error
}

// VariantChanges describes how to reconcile a product's variants:
// rows with a known id are updated, rows with id 0 are inserted and
// existing rows that are not mentioned are removed.
type VariantChanges []models.ProductVariant

// UpdateProduct saves the scalar columns of prod. Variants and images are
// only touched when the matching argument is non-nil.
func (r *GormRepo) UpdateProduct(ctx context.Context, prod *models.Product, variants VariantChanges, images []models.ProductImage) error {
	return r.Transaction(ctx, func(tx *GormRepo) error {
		db := tx.DB.WithContext(ctx)

		if err := db.Model(prod).Select("name", "description", "price", "category", "image_url", "in_stock", "updated_at").Updates(prod).Error; err != nil {
			return err
		}

		if variants != nil {
			if err := reconcileVariants(db, prod.ID, variants); err != nil {
				return err
			}
		}

		if images != nil {
			if err := db.Where("product_id = ?", prod.ID).Delete(&models.ProductImage{}).Error; err != nil {
				return err
			}
			for i := range images {
				images[i].ID = 0
				images[i].ProductID = prod.ID
			}
			if len(images) > 0 {
				if err := db.Create(&images).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func reconcileVariants(db *gorm.DB, productID uint, changes VariantChanges) error {
	keep := make([]uint, 0, len(changes))
	for i := range changes {
		v := changes[i]
		v.ProductID = productID

		if v.ID == 0 {
			if err := db.Create(&v).Error; err != nil {
				return err
			}
			keep = append(keep, v.ID)
			continue
		}

		res := db.Model(&models.ProductVariant{}).
			Where("id = ? AND product_id = ?", v.ID, productID).
			Updates(map[string]any{
				"size":             v.Size,
				"stock":            v.Stock,
				"price_adjustment": v.PriceAdjustment,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		keep = append(keep, v.ID)
	}

	del := db.Where("product_id = ?", productID)
	if len(keep) > 0 {
		del = del.Where("id NOT IN ?", keep)
	}
	return del.Delete(&models.ProductVariant{}).Error
}

func (r *GormRepo) DeleteProduct(ctx context.Context, id uint) error {
	return r.Transaction(ctx, func(tx *GormRepo) error {
		db := tx.DB.WithContext(ctx)
		if err := db.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}
		if err := db.Where("product_id = ?", id).Delete(&models.ProductImage{}).Error; err != nil {
			return err
		}

		res := db.Delete(&models.Product{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *GormRepo) GetVariantForUpdate(ctx context.Context, id uint) (*models.ProductVariant, error) {
	var v models.ProductVariant
	if err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// DecrementVariantStock only succeeds while enough stock is left, so two
// buyers racing for the last units cannot both win.
func (r *GormRepo) DecrementVariantStock(ctx context.Context, id uint, qty int) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.ProductVariant{}).
		Where("id = ? AND stock >= ?", id, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) IncrementVariantStock(ctx context.Context, id uint, qty int) error {
	return r.DB.WithContext(ctx).Model(&models.ProductVariant{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", qty)).Error
}
