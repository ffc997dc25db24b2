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

// OrderCache is a read-through cache for single-order lookups.
// Get returns (nil, nil) on a miss.
type OrderCache interface {
	Get(ctx context.Context, id uint) (*models.Order, error)
	Set(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id uint) error
}

type OrderService struct {
	Repo   *repo.GormRepo
	Cache  OrderCache
	Events events.Publisher
}

// Caller identifies who is acting on an order. A zero UserID is a guest.
type Caller struct {
	UserID uint
	Role   string
}

func (c Caller) IsAdmin() bool { return c.Role == string(models.RoleAdmin) }

func validateOrderRequest(req *transport.CreateOrderRequest) error {
	ci := &req.CustomerInfo
	ci.Name = strings.TrimSpace(ci.Name)
	ci.Email = strings.TrimSpace(ci.Email)
	ci.Address = strings.TrimSpace(ci.Address)

	if len([]rune(ci.Name)) < 2 {
		return fmt.Errorf("%w: customer name must be at least 2 characters", ErrValidation)
	}
	phone, ok := normalizePhone(ci.Phone)
	if !ok {
		return fmt.Errorf("%w: phone number must have 10-11 digits", ErrValidation)
	}
	ci.Phone = phone
	if ci.Email != "" && !validEmail(ci.Email) {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}

	if len(req.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	for i, it := range req.Items {
		if it.ProductID == 0 {
			return fmt.Errorf("%w: item %d: product_id required", ErrValidation, i+1)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d: quantity must be > 0", ErrValidation, i+1)
		}
	}
	return nil
}

// CreateOrder prices every line from the current catalog, takes variant
// stock and stores the order in one transaction. Any failing line aborts
// the whole order and leaves stock untouched.
func (s *OrderService) CreateOrder(ctx context.Context, req transport.CreateOrderRequest, userID *uint) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.create")

	if err := validateOrderRequest(&req); err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:          userID,
		Status:          models.OrderStatusPending,
		CustomerName:    req.CustomerInfo.Name,
		CustomerPhone:   req.CustomerInfo.Phone,
		CustomerEmail:   req.CustomerInfo.Email,
		CustomerAddress: req.CustomerInfo.Address,
		Notes:           strings.TrimSpace(req.Notes),
	}

	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(req.Items))

		for _, it := range req.Items {
			line, err := priceLine(ctx, tx, it)
			if err != nil {
				return err
			}
			total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
			items = append(items, *line)
		}

		order.TotalAmount = total
		order.Items = items
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		if !errors.Is(err, ErrValidation) {
			l.Error("create_order_failed", "error", err)
		}
		return nil, err
	}

	l.Info("order_created", "order_id", order.ID, "total", order.TotalAmount.String(), "items", len(order.Items))
	publish(ctx, s.Events, events.TopicOrders, strconv.FormatUint(uint64(order.ID), 10), events.New("order_created", order))
	return order, nil
}

func priceLine(ctx context.Context, tx *repo.GormRepo, it transport.OrderItemInput) (*models.OrderItem, error) {
	product, err := tx.GetProductForUpdate(ctx, it.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: Product with ID %d not found", ErrValidation, it.ProductID)
		}
		return nil, err
	}
	if !product.InStock {
		return nil, fmt.Errorf("%w: Product %q is out of stock", ErrValidation, product.Name)
	}

	line := &models.OrderItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    it.Quantity,
		Price:       product.Price,
	}
	if it.VariantID == nil {
		return line, nil
	}

	variant, err := tx.GetVariantForUpdate(ctx, *it.VariantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: Variant with ID %d not found", ErrValidation, *it.VariantID)
		}
		return nil, err
	}
	if variant.ProductID != product.ID {
		return nil, fmt.Errorf("%w: Variant %d does not belong to product %d", ErrValidation, variant.ID, product.ID)
	}

	insufficient := fmt.Errorf("%w: Variant %q only has %d items in stock, but %d were requested", ErrValidation, variant.Size, variant.Stock, it.Quantity)
	if variant.Stock < it.Quantity {
		return nil, insufficient
	}
	ok, err := tx.DecrementVariantStock(ctx, variant.ID, it.Quantity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, insufficient
	}

	variantID := variant.ID
	line.VariantID = &variantID
	line.VariantSize = variant.Size
	line.Price = product.Price.Add(variant.PriceAdjustment)
	return line, nil
}

// GetOrder lets admins read any order and signed-in users read their own.
// Guest orders are readable by id so the checkout page can show them.
func (s *OrderService) GetOrder(ctx context.Context, id uint, caller Caller) (*models.Order, error) {
	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != nil && !caller.IsAdmin() && caller.UserID != *order.UserID {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	return order, nil
}

func (s *OrderService) loadOrder(ctx context.Context, id uint) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.get")

	if s.Cache != nil {
		cached, err := s.Cache.Get(ctx, id)
		if err != nil {
			l.Warn("order_cache_get_failed", "order_id", id, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	order, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
		}
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, order); err != nil {
			l.Warn("order_cache_set_failed", "order_id", id, "error", err)
		}
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, f repo.OrderFilter, cursor string, limit int) (pagination.Page[models.Order], error) {
	if f.Status != nil && !f.Status.Valid() {
		return pagination.Page[models.Order]{}, fmt.Errorf("%w: unknown status %q", ErrValidation, *f.Status)
	}
	limit = pagination.Limit(limit)
	rows, err := s.Repo.ListOrders(ctx, f, pagination.DecodeCursor(cursor), limit)
	if err != nil {
		return pagination.Page[models.Order]{}, err
	}
	return pagination.Trim(rows, limit, func(o models.Order) (uint, time.Time) { return o.ID, o.CreatedAt }), nil
}

// UpdateStatus applies an allowed status transition. Admins may make any
// allowed move; an owner may only cancel a pending order. Cancelling puts
// variant stock back.
func (s *OrderService) UpdateStatus(ctx context.Context, id uint, next models.OrderStatus, caller Caller) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.update_status", "order_id", id)

	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, next)
	}

	var prev models.OrderStatus
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		order, err := tx.GetOrder(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, id)
			}
			return err
		}

		if !caller.IsAdmin() {
			owner := order.UserID != nil && *order.UserID == caller.UserID
			if !owner {
				return fmt.Errorf("%w: order %d", ErrNotFound, id)
			}
			if next != models.OrderStatusCancelled || order.Status != models.OrderStatusPending {
				return fmt.Errorf("%w: customers can only cancel pending orders", ErrForbidden)
			}
		}

		if !order.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: cannot change order status from %s to %s", ErrConflict, order.Status, next)
		}
		prev = order.Status

		ok, err := tx.SetOrderStatus(ctx, id, order.Status, next)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %d was modified concurrently", ErrConflict, id)
		}

		if next == models.OrderStatusCancelled {
			for _, it := range order.Items {
				if it.VariantID == nil {
					continue
				}
				if err := tx.IncrementVariantStock(ctx, *it.VariantID, it.Quantity); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.Delete(ctx, id); err != nil {
			l.Warn("order_cache_delete_failed", "error", err)
		}
	}

	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	l.Info("order_status_changed", "from", prev, "to", next)
	publish(ctx, s.Events, events.TopicOrders, strconv.FormatUint(uint64(id), 10), events.New("order_status_changed", map[string]any{
		"order_id": id,
		"from":     prev,
		"to":       next,
	}))
	return order, nil
}
