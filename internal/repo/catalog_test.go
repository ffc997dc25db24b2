package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/teashop/internal/models"
	pkgdb "github.com/Skotchmaster/teashop/pkg/db"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()
	ctx := context.Background()

	db, err := pkgdb.Open(ctx, "file:"+uuid.NewString()+"?mode=memory")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pkgdb.Close(db) })

	r := New(db)
	require.NoError(t, r.Migrate(ctx))
	return r
}

func TestDecrementVariantStock(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	p := &models.Product{
		Name:     "Peach Oolong",
		Price:    decimal.RequireFromString("3.20"),
		Category: models.CategoryDrink,
		InStock:  true,
		Variants: []models.ProductVariant{{Size: "M", Stock: 4}},
	}
	require.NoError(t, r.CreateProduct(ctx, p))
	id := p.Variants[0].ID

	ok, err := r.DecrementVariantStock(ctx, id, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := r.GetVariantForUpdate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, v.Stock)

	ok, err = r.DecrementVariantStock(ctx, id, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.DecrementVariantStock(ctx, id, 1)
	require.NoError(t, err)
	assert.False(t, ok, "stock never goes below zero")

	ok, err = r.DecrementVariantStock(ctx, 9999, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
