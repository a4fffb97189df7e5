package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// BunStore implements Store on Postgres through bun.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

// Init creates tables and the voucher number sequence if missing.
func (s *BunStore) Init(ctx context.Context) error {
	models := []any{
		(*Product)(nil),
		(*ProductImage)(nil),
		(*Order)(nil),
		(*Voucher)(nil),
		(*SavedSearch)(nil),
		(*SeenItem)(nil),
		(*AdminIdentity)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, "CREATE SEQUENCE IF NOT EXISTS voucher_number_seq"); err != nil {
		return fmt.Errorf("create voucher sequence: %w", err)
	}
	return nil
}

func (s *BunStore) CreateProduct(ctx context.Context, p *Product) error {
	_, err := s.db.NewInsert().Model(p).Exec(ctx)
	return err
}

func (s *BunStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := s.db.NewSelect().Model(&p).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BunStore) UpdateProduct(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(p).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: product %s", ErrNotFound, p.ID)
	}
	return nil
}

func (s *BunStore) SearchProducts(ctx context.Context, query, status string, includeArchived bool) ([]*Product, error) {
	var products []*Product
	q := s.db.NewSelect().Model(&products).Order("created_at DESC")
	if trimmed := strings.TrimSpace(query); trimmed != "" {
		pattern := "%" + trimmed + "%"
		q = q.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	} else if !includeArchived {
		q = q.Where("status != ?", ProductArchived)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *BunStore) SaveImage(ctx context.Context, img *ProductImage) error {
	_, err := s.db.NewInsert().Model(img).Exec(ctx)
	return err
}

func (s *BunStore) Images(ctx context.Context, productID string) ([]*ProductImage, error) {
	var images []*ProductImage
	err := s.db.NewSelect().Model(&images).
		Where("product_id = ?", productID).
		Order("is_primary DESC", "created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return images, nil
}

func (s *BunStore) InsertOrder(ctx context.Context, o *Order) error {
	_, err := s.db.NewInsert().Model(o).Exec(ctx)
	return err
}

func (s *BunStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := s.db.NewSelect().Model(&o).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *BunStore) FindOrderByExternalID(ctx context.Context, platform, externalID string) (*Order, error) {
	var o Order
	err := s.db.NewSelect().Model(&o).
		Where("platform = ? AND external_order_id = ?", platform, externalID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s/%s", ErrNotFound, platform, externalID)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *BunStore) ListOrders(ctx context.Context, status string) ([]*Order, error) {
	var orders []*Order
	q := s.db.NewSelect().Model(&orders).Order("ordered_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *BunStore) UpdateOrder(ctx context.Context, o *Order) error {
	res, err := s.db.NewUpdate().Model(o).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: order %s", ErrNotFound, o.ID)
	}
	return nil
}

func (s *BunStore) NextVoucherNumber(ctx context.Context) (int64, error) {
	var number int64
	if err := s.db.QueryRowContext(ctx, "SELECT nextval('voucher_number_seq')").Scan(&number); err != nil {
		return 0, fmt.Errorf("next voucher number: %w", err)
	}
	return number, nil
}

func (s *BunStore) InsertVoucher(ctx context.Context, v *Voucher) error {
	_, err := s.db.NewInsert().Model(v).Exec(ctx)
	return err
}

func (s *BunStore) ListVouchers(ctx context.Context, from, to time.Time) ([]*Voucher, error) {
	var vouchers []*Voucher
	q := s.db.NewSelect().Model(&vouchers).Order("number ASC")
	if !from.IsZero() {
		q = q.Where("transaction_date >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("transaction_date <= ?", to.UTC())
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return vouchers, nil
}

func (s *BunStore) CreateSearch(ctx context.Context, search *SavedSearch) error {
	_, err := s.db.NewInsert().Model(search).Exec(ctx)
	return err
}

func (s *BunStore) GetSearch(ctx context.Context, id string) (*SavedSearch, error) {
	var search SavedSearch
	err := s.db.NewSelect().Model(&search).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: search %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &search, nil
}

func (s *BunStore) ListSearches(ctx context.Context, includeInactive bool) ([]*SavedSearch, error) {
	var searches []*SavedSearch
	q := s.db.NewSelect().Model(&searches).Order("created_at DESC")
	if !includeInactive {
		q = q.Where("active")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return searches, nil
}

func (s *BunStore) UpdateSearch(ctx context.Context, search *SavedSearch) error {
	res, err := s.db.NewUpdate().Model(search).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: search %s", ErrNotFound, search.ID)
	}
	return nil
}

func (s *BunStore) SeenItems(ctx context.Context, searchID string) ([]*SeenItem, error) {
	var items []*SeenItem
	err := s.db.NewSelect().Model(&items).
		Where("search_id = ?", searchID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *BunStore) InsertSeenItems(ctx context.Context, items []*SeenItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().Model(&items).Exec(ctx)
	return err
}

func (s *BunStore) SetAdmin(ctx context.Context, chatKey string) error {
	row := AdminIdentity{ID: 1, ChatKey: chatKey, SetAt: time.Now().UTC()}
	res, err := s.db.NewInsert().Model(&row).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrAdminAlreadySet
	}
	return nil
}

func (s *BunStore) Admin(ctx context.Context) (string, error) {
	var row AdminIdentity
	err := s.db.NewSelect().Model(&row).Where("id = 1").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: admin identity", ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return row.ChatKey, nil
}
