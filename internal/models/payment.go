package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PaymentRecord is one ingested order line aggregate. (OrderID, LineItemID)
// is the natural key: re-ingesting the same order overwrites, never
// duplicates.
type PaymentRecord struct {
	bun.BaseModel `bun:"table:payments"`

	OrderID    int64     `bun:"order_id,pk" json:"order_id"`
	LineItemID int64     `bun:"line_item_id,pk" json:"line_item_id"`
	EventID    int64     `bun:"event_id,notnull" json:"event_id"`
	Quantity   int       `bun:"quantity" json:"quantity"`
	Currency   string    `bun:"currency" json:"currency"`
	TotalPaid  float64   `bun:"total_paid" json:"total_paid"`
	UnitPrice  float64   `bun:"unit_price" json:"unit_price"`
	Subtotal   float64   `bun:"subtotal" json:"subtotal"`
	Discount   float64   `bun:"discount" json:"discount"`
	Coupons    []string  `bun:"coupons,type:jsonb" json:"coupons,omitempty"`
	OrderTotal float64   `bun:"order_total" json:"order_total"`
	PaidAt     time.Time `bun:"paid_at" json:"paid_at"`
	Debug      string    `bun:"debug" json:"debug,omitempty"`
}

// RawOrder is an order as returned by the commerce API.
type RawOrder struct {
	ID          int64           `json:"id"`
	Status      string          `json:"status"`
	Currency    string          `json:"currency"`
	Total       float64         `json:"total,string"`
	LineItems   []RawLineItem   `json:"line_items"`
	CouponLines []RawCouponLine `json:"coupon_lines"`
	DatePaid    string          `json:"date_paid"`
	DateCreated string          `json:"date_created"`
}

type RawLineItem struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal,string"`
	Total     float64 `json:"total,string"`
}

type RawCouponLine struct {
	Code string `json:"code"`
}

// RawProduct carries the product metadata used to recover an event
// association for orders whose attendees have not synced yet.
type RawProduct struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	MetaData []RawMetaEntry `json:"meta_data"`
}

type RawMetaEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}
