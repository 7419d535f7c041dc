package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

const (
	IntentStatusPending         = "pending"
	IntentStatusReserved        = "reserved"
	IntentStatusAwaitingPayment = "awaiting_payment"
	IntentStatusConfirmed       = "confirmed"
	IntentStatusAborted         = "aborted"
	IntentStatusExpired         = "expired"
)

type Category struct {
	ID        uuid.UUID `gorm:"primaryKey"           json:"id"`
	Name      string    `gorm:"not null"             json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	CreatedAt time.Time `gorm:"not null"             json:"created_at"`
	UpdatedAt time.Time `gorm:"not null"             json:"updated_at"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Category) TableName() string { return "categories" }

type Product struct {
	ID          uuid.UUID       `gorm:"primaryKey"                             json:"id"`
	Name        string          `gorm:"not null"                               json:"name"`
	Description string          `gorm:"not null"                               json:"description"`
	Slug        string          `gorm:"uniqueIndex;not null"                   json:"slug"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null"            json:"price"`
	Discount    decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0"  json:"discount"`
	Stock       int             `gorm:"not null;check:stock>=0"                json:"stock"`
	IsActive    bool            `gorm:"not null;default:true"                  json:"is_active"`
	CategoryID  *uuid.UUID      `gorm:"index"                                  json:"category_id"`
	Rating      float64         `gorm:"not null;default:0"                     json:"rating"`
	CreatedAt   time.Time       `gorm:"not null"                               json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null"                               json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (Product) TableName() string { return "products" }

// DiscountedPrice is the unit price a buyer actually pays.
func (p *Product) DiscountedPrice() decimal.Decimal {
	return p.Price.Sub(p.Discount)
}

type CartItem struct {
	ID         uuid.UUID `gorm:"primaryKey"                             json:"id"`
	UserID     uuid.UUID `gorm:"uniqueIndex:idx_user_product;not null"  json:"user_id"`
	ProductID  uuid.UUID `gorm:"uniqueIndex:idx_user_product;not null"  json:"product_id"`
	Quantity   uint      `gorm:"default:1;check:quantity>0"             json:"quantity"`
	CheckedOut bool      `gorm:"not null;default:false"                 json:"checked_out"`
	CreatedAt  time.Time `gorm:"not null"                               json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null"                               json:"updated_at"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (CartItem) TableName() string { return "cart_items" }

// CheckoutIntent is the priced snapshot of a cart taken when checkout
// starts. Its ID doubles as the idempotency key sent to the payment
// gateway, so a retried call can never open a second session.
type CheckoutIntent struct {
	ID         uuid.UUID       `gorm:"primaryKey"                  json:"id"`
	UserID     uuid.UUID       `gorm:"index;not null"              json:"user_id"`
	Total      decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total"`
	CouponCode string          `json:"coupon_code,omitempty"`
	Status     string          `gorm:"index;not null"              json:"status"`
	SessionRef string          `gorm:"index"                       json:"session_ref,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	ExpiresAt  time.Time       `gorm:"index;not null"              json:"expires_at"`
	CreatedAt  time.Time       `gorm:"not null"                    json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null"                    json:"updated_at"`

	Lines []CheckoutLine `gorm:"foreignKey:IntentID" json:"lines"`
}

func (CheckoutIntent) TableName() string { return "checkout_intents" }

type CheckoutLine struct {
	ID        uuid.UUID       `gorm:"primaryKey"                            json:"id"`
	IntentID  uuid.UUID       `gorm:"index;not null"                        json:"intent_id"`
	ProductID uuid.UUID       `gorm:"not null"                              json:"product_id"`
	Name      string          `gorm:"not null"                              json:"name"`
	Quantity  uint            `gorm:"not null;check:quantity>0"             json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(10,2);not null"           json:"unit_price"`
	Discount  decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"discount"`
}

func (l *CheckoutLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (CheckoutLine) TableName() string { return "checkout_lines" }

// LineTotal is quantity times the discounted unit price.
func (l *CheckoutLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Sub(l.Discount).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID        uuid.UUID       `gorm:"primaryKey"                  json:"id"`
	UserID    uuid.UUID       `gorm:"index;not null"              json:"user_id"`
	IntentID  uuid.UUID       `gorm:"uniqueIndex;not null"        json:"intent_id"`
	Total     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total"`
	Status    string          `gorm:"index;not null"              json:"status"`
	CreatedAt time.Time       `gorm:"not null"                    json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null"                    json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID        uuid.UUID       `gorm:"primaryKey"                  json:"id"`
	OrderID   uuid.UUID       `gorm:"index;not null"              json:"order_id"`
	ProductID uuid.UUID       `gorm:"not null"                    json:"product_id"`
	Name      string          `gorm:"not null"                    json:"name"`
	Quantity  uint            `gorm:"not null;check:quantity>0"   json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"line_total"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (OrderItem) TableName() string { return "order_items" }

type Coupon struct {
	ID        uuid.UUID       `gorm:"primaryKey"                  json:"id"`
	Code      string          `gorm:"uniqueIndex;not null"        json:"code"`
	Amount    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	ValidFrom time.Time       `gorm:"not null"                    json:"valid_from"`
	ValidTo   time.Time       `gorm:"not null"                    json:"valid_to"`
	IsActive  bool            `gorm:"not null;default:true"       json:"is_active"`
	CreatedAt time.Time       `gorm:"not null"                    json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null"                    json:"updated_at"`
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Coupon) TableName() string { return "coupons" }

// ValidAt reports whether the coupon can be applied at the given time.
func (c *Coupon) ValidAt(now time.Time) bool {
	return c.IsActive && !now.Before(c.ValidFrom) && !now.After(c.ValidTo)
}

type Review struct {
	ID        uuid.UUID `gorm:"primaryKey"                                   json:"id"`
	UserID    uuid.UUID `gorm:"uniqueIndex:idx_review_user_product;not null" json:"user_id"`
	ProductID uuid.UUID `gorm:"uniqueIndex:idx_review_user_product;not null" json:"product_id"`
	Rating    int       `gorm:"not null;check:rating>=0 AND rating<=5"       json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `gorm:"not null"                                     json:"created_at"`
	UpdatedAt time.Time `gorm:"not null"                                     json:"updated_at"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (Review) TableName() string { return "reviews" }
