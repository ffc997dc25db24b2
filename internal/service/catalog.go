package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/internal/repo"
	"github.com/Skotchmaster/teashop/internal/transport"
	"github.com/Skotchmaster/teashop/pkg/events"
	"github.com/Skotchmaster/teashop/pkg/logging"
	"github.com/Skotchmaster/teashop/pkg/pagination"
)

// ProductIndex is the full-text side of the catalog. Search returns
// product ids ordered by relevance.
type ProductIndex interface {
	Index(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id uint) error
	Search(ctx context.Context, query string, limit int) ([]uint, error)
}

type CatalogService struct {
	Repo   *repo.GormRepo
	Index  ProductIndex
	Events events.Publisher
}

func productKey(p models.Product) (uint, time.Time) { return p.ID, p.CreatedAt }

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, f repo.ProductFilter, cursor string, limit int) (pagination.Page[models.Product], error) {
	if f.Category != nil && !f.Category.Valid() {
		return pagination.Page[models.Product]{}, fmt.Errorf("%w: unknown category %q", ErrValidation, *f.Category)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return pagination.Page[models.Product]{}, fmt.Errorf("%w: minPrice is greater than maxPrice", ErrValidation)
	}

	limit = pagination.Limit(limit)
	rows, err := s.Repo.ListProducts(ctx, f, pagination.DecodeCursor(cursor), limit)
	if err != nil {
		return pagination.Page[models.Product]{}, err
	}
	return pagination.Trim(rows, limit, productKey), nil
}

// SearchProducts asks the index first and falls back to a LIKE query
// when no index is configured or the index is unavailable.
func (s *CatalogService) SearchProducts(ctx context.Context, query string, limit int) ([]models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.search")

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	limit = pagination.Limit(limit)

	if s.Index != nil {
		ids, err := s.Index.Search(ctx, query, limit)
		if err == nil {
			return s.hydrate(ctx, ids)
		}
		l.Warn("search_index_failed", "reason", "falling back to database", "error", err)
	}
	return s.Repo.SearchProducts(ctx, query, limit)
}

// hydrate loads products for ids and keeps the relevance order.
func (s *CatalogService) hydrate(ctx context.Context, ids []uint) ([]models.Product, error) {
	rows, err := s.Repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Product, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func validateName(name string) error {
	if len([]rune(strings.TrimSpace(name))) < 2 {
		return fmt.Errorf("%w: product name must be at least 2 characters", ErrValidation)
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than 0", ErrValidation)
	}
	return nil
}

func validateCategory(c models.Category) error {
	if !c.Valid() {
		return fmt.Errorf("%w: category must be one of snack, drink, milk-tea", ErrValidation)
	}
	return nil
}

func buildVariants(price decimal.Decimal, in []transport.VariantInput) ([]models.ProductVariant, error) {
	out := make([]models.ProductVariant, 0, len(in))
	for i, v := range in {
		size := strings.TrimSpace(v.Size)
		if size == "" {
			return nil, fmt.Errorf("%w: variant %d: size is required", ErrValidation, i+1)
		}
		if v.Stock < 0 {
			return nil, fmt.Errorf("%w: variant %q: stock cannot be negative", ErrValidation, size)
		}
		if price.Add(v.PriceAdjustment).IsNegative() {
			return nil, fmt.Errorf("%w: variant %q: price adjustment makes the price negative", ErrValidation, size)
		}
		out = append(out, models.ProductVariant{
			ID:              v.ID,
			Size:            size,
			Stock:           v.Stock,
			PriceAdjustment: v.PriceAdjustment,
		})
	}
	return out, nil
}

func buildImages(in []transport.ImageInput) ([]models.ProductImage, error) {
	out := make([]models.ProductImage, 0, len(in))
	for i, img := range in {
		url := strings.TrimSpace(img.ImageURL)
		if url == "" {
			return nil, fmt.Errorf("%w: image %d: image_url is required", ErrValidation, i+1)
		}
		order := img.DisplayOrder
		if order == 0 {
			order = i
		}
		out = append(out, models.ProductImage{ImageURL: url, DisplayOrder: order})
	}
	return out, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.create_product")

	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if err := validatePrice(req.Price); err != nil {
		return nil, err
	}
	if err := validateCategory(req.Category); err != nil {
		return nil, err
	}

	variants, err := buildVariants(req.Price, req.Variants)
	if err != nil {
		return nil, err
	}
	for i := range variants {
		variants[i].ID = 0
	}
	images, err := buildImages(req.Images)
	if err != nil {
		return nil, err
	}

	inStock := true
	if req.InStock != nil {
		inStock = *req.InStock
	}

	p := &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		Category:    req.Category,
		ImageURL:    strings.TrimSpace(req.ImageURL),
		InStock:     inStock,
		Variants:    variants,
		Images:      images,
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	created, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	l.Info("product_created", "product_id", created.ID)
	s.syncIndex(ctx, created)
	publish(ctx, s.Events, events.TopicProducts, strconv.FormatUint(uint64(created.ID), 10), events.New("product_created", created))
	return created, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, req transport.UpdateProductRequest) (*models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.update_product", "product_id", id)

	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			return nil, err
		}
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if err := validatePrice(*req.Price); err != nil {
			return nil, err
		}
		p.Price = *req.Price
	}
	if req.Category != nil {
		if err := validateCategory(*req.Category); err != nil {
			return nil, err
		}
		p.Category = *req.Category
	}
	if req.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*req.ImageURL)
	}
	if req.InStock != nil {
		p.InStock = *req.InStock
	}

	var variants repo.VariantChanges
	if req.Variants != nil {
		built, err := buildVariants(p.Price, *req.Variants)
		if err != nil {
			return nil, err
		}
		variants = repo.VariantChanges(built)
	} else if req.Price != nil {
		for _, v := range p.Variants {
			if p.Price.Add(v.PriceAdjustment).IsNegative() {
				return nil, fmt.Errorf("%w: variant %q: price adjustment makes the price negative", ErrValidation, v.Size)
			}
		}
	}
	var images []models.ProductImage
	if req.Images != nil {
		if images, err = buildImages(*req.Images); err != nil {
			return nil, err
		}
	}

	if err := s.Repo.UpdateProduct(ctx, p, variants, images); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: variant does not belong to product %d", ErrValidation, id)
		}
		return nil, err
	}

	updated, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	l.Info("product_updated")
	s.syncIndex(ctx, updated)
	publish(ctx, s.Events, events.TopicProducts, strconv.FormatUint(uint64(id), 10), events.New("product_updated", updated))
	return updated, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	l := logging.FromContext(ctx).With("svc", "catalog.delete_product", "product_id", id)

	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: product %d", ErrNotFound, id)
		}
		return err
	}

	l.Info("product_deleted")
	if s.Index != nil {
		if err := s.Index.Delete(ctx, id); err != nil {
			l.Warn("search_index_delete_failed", "error", err)
		}
	}
	publish(ctx, s.Events, events.TopicProducts, strconv.FormatUint(uint64(id), 10), events.New("product_deleted", map[string]any{"id": id}))
	return nil
}

func (s *CatalogService) syncIndex(ctx context.Context, p *models.Product) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Index(ctx, p); err != nil {
		logging.FromContext(ctx).Warn("search_index_failed", "product_id", p.ID, "error", err)
	}
}

// Reindex pushes every product into the index, a page at a time.
func (s *CatalogService) Reindex(ctx context.Context) (int, error) {
	if s.Index == nil {
		return 0, nil
	}
	var (
		cursor *pagination.Cursor
		n      int
	)
	for {
		rows, err := s.Repo.ListProducts(ctx, repo.ProductFilter{}, cursor, pagination.MaxLimit)
		if err != nil {
			return n, err
		}
		page := pagination.Trim(rows, pagination.MaxLimit, productKey)
		for i := range page.Items {
			if err := s.Index.Index(ctx, &page.Items[i]); err != nil {
				return n, err
			}
			n++
		}
		if !page.HasMore {
			return n, nil
		}
		cursor = pagination.DecodeCursor(page.NextCursor)
	}
}
