package storage

import (
	"time"

	"github.com/uptrace/bun"
)

// Product statuses.
const (
	ProductDraft    = "draft"
	ProductListed   = "listed"
	ProductSold     = "sold"
	ProductArchived = "archived"
)

// Order statuses. Unmatched orders could not be linked to a product at
// ingest time; they are kept for manual review instead of being dropped.
const (
	OrderPending   = "pending"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderUnmatched = "unmatched"
)

type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID              string         `bun:"id,pk" json:"id"`
	Title           string         `bun:"title,notnull" json:"title"`
	Description     string         `bun:"description" json:"description,omitempty"`
	Category        string         `bun:"category" json:"category,omitempty"`
	Status          string         `bun:"status,notnull" json:"status"`
	Condition       string         `bun:"condition" json:"condition,omitempty"`
	Materials       string         `bun:"materials" json:"materials,omitempty"`
	Era             string         `bun:"era" json:"era,omitempty"`
	Dimensions      string         `bun:"dimensions" json:"dimensions,omitempty"`
	Source          string         `bun:"source" json:"source,omitempty"`
	AcquisitionCost float64        `bun:"acquisition_cost" json:"acquisition_cost,omitempty"`
	ListingPrice    float64        `bun:"listing_price" json:"listing_price,omitempty"`
	SoldPrice       float64        `bun:"sold_price" json:"sold_price,omitempty"`
	Extra           map[string]any `bun:"extra,type:jsonb" json:"extra,omitempty"`
	CreatedAt       time.Time      `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time      `bun:"updated_at,notnull" json:"updated_at"`
}

type ProductImage struct {
	bun.BaseModel `bun:"table:product_images"`

	ID        string    `bun:"id,pk" json:"id"`
	ProductID string    `bun:"product_id,notnull" json:"product_id"`
	Ref       string    `bun:"ref,notnull" json:"ref"`
	IsPrimary bool      `bun:"is_primary" json:"is_primary"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              string         `bun:"id,pk" json:"id"`
	ProductID       string         `bun:"product_id" json:"product_id,omitempty"`
	Platform        string         `bun:"platform,notnull" json:"platform"`
	ExternalOrderID string         `bun:"external_order_id" json:"external_order_id,omitempty"`
	BuyerName       string         `bun:"buyer_name" json:"buyer_name,omitempty"`
	BuyerAddress    string         `bun:"buyer_address" json:"buyer_address,omitempty"`
	SalePrice       float64        `bun:"sale_price" json:"sale_price,omitempty"`
	PlatformFee     float64        `bun:"platform_fee" json:"platform_fee,omitempty"`
	ShippingCost    float64        `bun:"shipping_cost" json:"shipping_cost,omitempty"`
	Status          string         `bun:"status,notnull" json:"status"`
	FeedbackSent    bool           `bun:"feedback_sent" json:"feedback_sent,omitempty"`
	Extra           map[string]any `bun:"extra,type:jsonb" json:"extra,omitempty"`
	OrderedAt       time.Time      `bun:"ordered_at" json:"ordered_at,omitempty"`
	ShippedAt       time.Time      `bun:"shipped_at,nullzero" json:"shipped_at,omitempty"`
}

type VoucherRow struct {
	Account int     `json:"account"`
	Debit   float64 `json:"debit,omitempty"`
	Credit  float64 `json:"credit,omitempty"`
}

type Voucher struct {
	bun.BaseModel `bun:"table:vouchers"`

	ID              string       `bun:"id,pk" json:"id"`
	Number          int64        `bun:"number,notnull" json:"number"`
	Description     string       `bun:"description,notnull" json:"description"`
	Rows            []VoucherRow `bun:"rows,type:jsonb" json:"rows"`
	OrderID         string       `bun:"order_id" json:"order_id,omitempty"`
	TransactionDate time.Time    `bun:"transaction_date,notnull" json:"transaction_date"`
	CreatedAt       time.Time    `bun:"created_at,notnull" json:"created_at"`
}

// SavedSearch is a sourcing watch: criteria the scout runs against the
// marketplaces to surface new acquisition candidates. Deactivated searches
// are kept for history instead of deleted.
type SavedSearch struct {
	bun.BaseModel `bun:"table:saved_searches"`

	ID        string    `bun:"id,pk" json:"id"`
	Query     string    `bun:"query,notnull" json:"query"`
	Platform  string    `bun:"platform,notnull" json:"platform"`
	Category  string    `bun:"category" json:"category,omitempty"`
	MaxPrice  float64   `bun:"max_price" json:"max_price,omitempty"`
	Region    string    `bun:"region" json:"region,omitempty"`
	Active    bool      `bun:"active,notnull" json:"active"`
	LastRunAt time.Time `bun:"last_run_at,nullzero" json:"last_run_at,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// SeenItem records a marketplace hit a saved search has already reported,
// keyed by platform and external id so re-runs only surface new finds.
type SeenItem struct {
	bun.BaseModel `bun:"table:seen_items"`

	ID         string    `bun:"id,pk" json:"id"`
	SearchID   string    `bun:"search_id,notnull" json:"search_id"`
	Platform   string    `bun:"platform,notnull" json:"platform"`
	ExternalID string    `bun:"external_id,notnull" json:"external_id"`
	Title      string    `bun:"title" json:"title,omitempty"`
	Price      float64   `bun:"price" json:"price,omitempty"`
	URL        string    `bun:"url" json:"url,omitempty"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

// AdminIdentity is the single persisted operator record. It replaces the
// implicit "first chat to say /start becomes admin" convention: the admin is
// set once through an explicit operation and read by alerting collaborators.
type AdminIdentity struct {
	bun.BaseModel `bun:"table:admin_identity"`

	ID      int64     `bun:"id,pk" json:"id"`
	ChatKey string    `bun:"chat_key,notnull" json:"chat_key"`
	SetAt   time.Time `bun:"set_at,notnull" json:"set_at"`
}
