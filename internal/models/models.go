package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// prices go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type Category string

const (
	CategorySnack   Category = "snack"
	CategoryDrink   Category = "drink"
	CategoryMilkTea Category = "milk-tea"
)

func (c Category) Valid() bool {
	switch c {
	case CategorySnack, CategoryDrink, CategoryMilkTea:
		return true
	}
	return false
}

type Product struct {
	ID          uint             `gorm:"primaryKey;autoIncrement"              json:"id"`
	Name        string           `gorm:"not null"                              json:"name"`
	Description string           `gorm:"type:text"                             json:"description"`
	Price       decimal.Decimal  `gorm:"type:decimal(10,2);not null"           json:"price"`
	Category    Category         `gorm:"type:varchar(16);not null;index"       json:"category"`
	ImageURL    string           `                                             json:"image_url"`
	InStock     bool             `gorm:"not null;index"                        json:"in_stock"`
	Variants    []ProductVariant `gorm:"constraint:OnDelete:CASCADE"           json:"variants"`
	Images      []ProductImage   `gorm:"constraint:OnDelete:CASCADE"           json:"images"`
	CreatedAt   time.Time        `gorm:"index"                                 json:"created_at"`
	UpdatedAt   time.Time        `                                             json:"updated_at"`
}

type ProductVariant struct {
	ID              uint            `gorm:"primaryKey;autoIncrement"        json:"id"`
	ProductID       uint            `gorm:"not null;index"                  json:"product_id"`
	Size            string          `gorm:"not null"                        json:"size"`
	Stock           int             `gorm:"not null;default:0"              json:"stock"`
	PriceAdjustment decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price_adjustment"`
	CreatedAt       time.Time       `                                       json:"created_at"`
	UpdatedAt       time.Time       `                                       json:"updated_at"`
}

type ProductImage struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID    uint      `gorm:"not null;index"           json:"product_id"`
	ImageURL     string    `gorm:"not null"                 json:"image_url"`
	DisplayOrder int       `gorm:"not null;default:0"       json:"display_order"`
	CreatedAt    time.Time `                                json:"created_at"`
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"            json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"not null"                            json:"name"`
	Phone        string    `                                           json:"phone"`
	Address      string    `                                           json:"address"`
	AvatarURL    string    `                                           json:"avatar_url"`
	PasswordHash string    `gorm:"not null"                            json:"-"`
	Role         Role      `gorm:"type:varchar(16);not null;default:customer" json:"role"`
	CreatedAt    time.Time `gorm:"index"                               json:"created_at"`
	UpdatedAt    time.Time `                                           json:"updated_at"`
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusCompleted, OrderStatusCancelled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID              uint            `gorm:"primaryKey;autoIncrement"       json:"id"`
	UserID          *uint           `gorm:"index"                          json:"user_id"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null"    json:"total_amount"`
	Status          OrderStatus     `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	CustomerName    string          `gorm:"not null"                       json:"customer_name"`
	CustomerPhone   string          `gorm:"not null"                       json:"customer_phone"`
	CustomerEmail   string          `                                      json:"customer_email"`
	CustomerAddress string          `                                      json:"customer_address"`
	Notes           string          `gorm:"type:text"                      json:"notes"`
	Items           []OrderItem     `gorm:"constraint:OnDelete:CASCADE"    json:"items"`
	CreatedAt       time.Time       `gorm:"index"                          json:"created_at"`
	UpdatedAt       time.Time       `                                      json:"updated_at"`
}

// OrderItem is a snapshot of the product line at purchase time.
type OrderItem struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"    json:"id"`
	OrderID     uint            `gorm:"not null;index"              json:"order_id"`
	ProductID   uint            `gorm:"not null"                    json:"product_id"`
	ProductName string          `gorm:"not null"                    json:"product_name"`
	VariantID   *uint           `                                   json:"variant_id"`
	VariantSize string          `                                   json:"variant_size"`
	Quantity    int             `gorm:"not null"                    json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
}

type CartItem struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"     json:"id"`
	UserID      uint            `gorm:"not null;uniqueIndex:idx_cart_line,priority:1" json:"user_id"`
	ProductID   uint            `gorm:"not null;uniqueIndex:idx_cart_line,priority:2" json:"product_id"`
	ProductName string          `gorm:"not null"                     json:"product_name"`
	VariantID   *uint           `gorm:"uniqueIndex:idx_cart_line,priority:3" json:"variant_id"`
	VariantSize string          `                                    json:"variant_size"`
	Quantity    int             `gorm:"not null"                     json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"  json:"price"`
	ImageURL    string          `                                    json:"image_url"`
	CreatedAt   time.Time       `gorm:"index"                        json:"created_at"`
	UpdatedAt   time.Time       `                                    json:"updated_at"`
}

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&Product{}, &ProductVariant{}, &ProductImage{},
		&User{}, &Order{}, &OrderItem{}, &CartItem{},
	}
}
