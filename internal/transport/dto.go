package transport

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/pkg/pagination"
)

type VariantInput struct {
	ID              uint            `json:"id"`
	Size            string          `json:"size"`
	Stock           int             `json:"stock"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
}

type ImageInput struct {
	ImageURL     string `json:"image_url"`
	DisplayOrder int    `json:"display_order"`
}

type CreateProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    models.Category `json:"category"`
	ImageURL    string          `json:"image_url"`
	InStock     *bool           `json:"in_stock"`
	Variants    []VariantInput  `json:"variants"`
	Images      []ImageInput    `json:"images"`
}

// UpdateProductRequest is a partial update: nil fields are left alone.
// A present "variants" or "images" array replaces the current set.
type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *models.Category `json:"category"`
	ImageURL    *string          `json:"image_url"`
	InStock     *bool            `json:"in_stock"`
	Variants    *[]VariantInput  `json:"variants"`
	Images      *[]ImageInput    `json:"images"`
}

type OrderItemInput struct {
	ProductID uint  `json:"product_id"`
	VariantID *uint `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type CustomerInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type CreateOrderRequest struct {
	Items        []OrderItemInput `json:"items"`
	CustomerInfo CustomerInfo     `json:"customer_info"`
	Notes        string           `json:"notes"`
}

type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type UpdateProfileRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type CartItemInput struct {
	ProductID uint  `json:"product_id"`
	VariantID *uint `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type ReplaceCartRequest struct {
	Items *[]CartItemInput `json:"items"`
}

type SetQuantityRequest struct {
	Quantity  int   `json:"quantity"`
	VariantID *uint `json:"variant_id"`
}

type ListResponse[T any] struct {
	Data []T             `json:"data"`
	Meta pagination.Meta `json:"meta"`
}

func NewListResponse[T any](p pagination.Page[T]) ListResponse[T] {
	return ListResponse[T]{Data: p.Items, Meta: p.Meta()}
}
