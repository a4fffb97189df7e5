package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrAdminAlreadySet = errors.New("admin identity already set")
)

type ProductStore interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	SearchProducts(ctx context.Context, query, status string, includeArchived bool) ([]*Product, error)
	SaveImage(ctx context.Context, img *ProductImage) error
	Images(ctx context.Context, productID string) ([]*ProductImage, error)
}

type OrderStore interface {
	InsertOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	FindOrderByExternalID(ctx context.Context, platform, externalID string) (*Order, error)
	ListOrders(ctx context.Context, status string) ([]*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
}

type VoucherStore interface {
	// NextVoucherNumber returns a monotonic unique number backed by a
	// durable counter, never by a row count.
	NextVoucherNumber(ctx context.Context) (int64, error)
	InsertVoucher(ctx context.Context, v *Voucher) error
	ListVouchers(ctx context.Context, from, to time.Time) ([]*Voucher, error)
}

type SearchStore interface {
	CreateSearch(ctx context.Context, s *SavedSearch) error
	GetSearch(ctx context.Context, id string) (*SavedSearch, error)
	ListSearches(ctx context.Context, includeInactive bool) ([]*SavedSearch, error)
	UpdateSearch(ctx context.Context, s *SavedSearch) error
	SeenItems(ctx context.Context, searchID string) ([]*SeenItem, error)
	InsertSeenItems(ctx context.Context, items []*SeenItem) error
}

type AdminStore interface {
	// SetAdmin persists the operator identity exactly once; a second call
	// fails with ErrAdminAlreadySet.
	SetAdmin(ctx context.Context, chatKey string) error
	Admin(ctx context.Context) (string, error)
}

// Store bundles the relational stores behind one constructor per backend.
type Store interface {
	ProductStore
	OrderStore
	VoucherStore
	SearchStore
	AdminStore
}
