package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/internal/repo"
	pkgdb "github.com/Skotchmaster/teashop/pkg/db"
)

func newRepo(t *testing.T) *repo.GormRepo {
	t.Helper()
	ctx := context.Background()

	db, err := pkgdb.Open(ctx, "file:"+uuid.NewString()+"?mode=memory")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pkgdb.Close(db) })

	r := repo.New(db)
	require.NoError(t, r.Migrate(ctx))
	return r
}

// seedProduct stores a product with one variant per entry in stocks,
// sized "S", "M", "L" in order.
func seedProduct(t *testing.T, r *repo.GormRepo, name, price string, stocks ...int) *models.Product {
	t.Helper()
	sizes := []string{"S", "M", "L"}

	p := &models.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Category: models.CategoryMilkTea,
		InStock:  true,
	}
	for i, s := range stocks {
		p.Variants = append(p.Variants, models.ProductVariant{
			Size:            sizes[i],
			Stock:           s,
			PriceAdjustment: decimal.NewFromInt(int64(i)),
		})
	}
	require.NoError(t, r.CreateProduct(context.Background(), p))
	return p
}

func stockOf(t *testing.T, r *repo.GormRepo, variantID uint) int {
	t.Helper()
	v, err := r.GetVariantForUpdate(context.Background(), variantID)
	require.NoError(t, err)
	return v.Stock
}

func ptr[T any](v T) *T { return &v }
