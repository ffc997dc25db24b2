package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/internal/repo"
	"github.com/Skotchmaster/teashop/internal/transport"
	"github.com/Skotchmaster/teashop/pkg/logging"
)

// CartService keeps a server-side copy of the shopper's cart. Names,
// prices and images are taken from the catalog, not from the client.
type CartService struct {
	Repo *repo.GormRepo
}

func (s *CartService) GetCart(ctx context.Context, userID uint) ([]models.CartItem, error) {
	return s.Repo.GetCart(ctx, userID)
}

func (s *CartService) buildLine(ctx context.Context, userID uint, in transport.CartItemInput) (*models.CartItem, error) {
	if in.ProductID == 0 {
		return nil, fmt.Errorf("%w: product_id required", ErrValidation)
	}
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be more than zero", ErrValidation)
	}

	p, err := s.Repo.GetProduct(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: Product with ID %d not found", ErrValidation, in.ProductID)
		}
		return nil, err
	}

	item := &models.CartItem{
		UserID:      userID,
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    in.Quantity,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
	}
	if in.VariantID == nil {
		return item, nil
	}

	for _, v := range p.Variants {
		if v.ID == *in.VariantID {
			variantID := v.ID
			item.VariantID = &variantID
			item.VariantSize = v.Size
			item.Price = p.Price.Add(v.PriceAdjustment)
			return item, nil
		}
	}
	return nil, fmt.Errorf("%w: Variant %d does not belong to product %d", ErrValidation, *in.VariantID, p.ID)
}

// cartLineKey identifies a cart line. Variant 0 stands for "no variant".
type cartLineKey struct {
	productID uint
	variantID uint
}

func lineKey(item *models.CartItem) cartLineKey {
	k := cartLineKey{productID: item.ProductID}
	if item.VariantID != nil {
		k.variantID = *item.VariantID
	}
	return k
}

func (s *CartService) ReplaceCart(ctx context.Context, userID uint, in []transport.CartItemInput) ([]models.CartItem, error) {
	items := make([]models.CartItem, 0, len(in))
	seen := make(map[cartLineKey]int, len(in))
	for _, it := range in {
		line, err := s.buildLine(ctx, userID, it)
		if err != nil {
			return nil, err
		}
		key := lineKey(line)
		if i, ok := seen[key]; ok {
			items[i].Quantity += line.Quantity
			continue
		}
		seen[key] = len(items)
		items = append(items, *line)
	}

	if err := s.Repo.ReplaceCart(ctx, userID, items); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("cart_replaced", "svc", "cart.replace", "items", len(items))
	return s.Repo.GetCart(ctx, userID)
}

func (s *CartService) AddToCart(ctx context.Context, userID uint, in transport.CartItemInput) (*models.CartItem, error) {
	item, err := s.buildLine(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.AddToCart(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// SetQuantity removes the line when qty drops to zero or below and
// reports (nil, nil) in that case.
func (s *CartService) SetQuantity(ctx context.Context, userID, productID uint, variantID *uint, qty int) (*models.CartItem, error) {
	if productID == 0 {
		return nil, fmt.Errorf("%w: product_id required", ErrValidation)
	}
	if qty <= 0 {
		return nil, s.RemoveItem(ctx, userID, productID, variantID)
	}

	item, err := s.Repo.SetCartQuantity(ctx, userID, productID, variantID, qty)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product not in cart", ErrNotFound)
		}
		return nil, err
	}
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID uint, variantID *uint) error {
	if err := s.Repo.RemoveFromCart(ctx, userID, productID, variantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: product not in cart", ErrNotFound)
		}
		return err
	}
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID uint) error {
	return s.Repo.ClearCart(ctx, userID)
}
