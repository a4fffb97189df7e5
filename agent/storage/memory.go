package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store in memory for tests and database-less runs.
type MemoryStore struct {
	mu         sync.Mutex
	products   map[string]*Product
	images     map[string][]*ProductImage
	orders     map[string]*Order
	vouchers   []*Voucher
	voucherSeq int64
	searches   map[string]*SavedSearch
	seen       map[string][]*SeenItem
	adminKey   string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*Product),
		images:   make(map[string][]*ProductImage),
		orders:   make(map[string]*Order),
		searches: make(map[string]*SavedSearch),
		seen:     make(map[string][]*SeenItem),
	}
}

func (s *MemoryStore) CreateProduct(_ context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return fmt.Errorf("%w: product %s", ErrNotFound, p.ID)
	}
	cp := *p
	cp.UpdatedAt = time.Now().UTC()
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) SearchProducts(_ context.Context, query, status string, includeArchived bool) ([]*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(strings.TrimSpace(query))
	var out []*Product
	for _, p := range s.products {
		if status != "" && p.Status != status {
			continue
		}
		if status == "" && !includeArchived && p.Status == ProductArchived {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Title), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SaveImage(_ context.Context, img *ProductImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *img
	s.images[img.ProductID] = append(s.images[img.ProductID], &cp)
	return nil
}

func (s *MemoryStore) Images(_ context.Context, productID string) ([]*ProductImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	imgs := s.images[productID]
	out := make([]*ProductImage, 0, len(imgs))
	for _, img := range imgs {
		cp := *img
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) InsertOrder(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) FindOrderByExternalID(_ context.Context, platform, externalID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.Platform == platform && o.ExternalOrderID == externalID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: order %s/%s", ErrNotFound, platform, externalID)
}

func (s *MemoryStore) ListOrders(_ context.Context, status string) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	for _, o := range s.orders {
		if status != "" && o.Status != status {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderedAt.After(out[j].OrderedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateOrder(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		return fmt.Errorf("%w: order %s", ErrNotFound, o.ID)
	}
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *MemoryStore) NextVoucherNumber(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voucherSeq++
	return s.voucherSeq, nil
}

func (s *MemoryStore) InsertVoucher(_ context.Context, v *Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.vouchers = append(s.vouchers, &cp)
	return nil
}

func (s *MemoryStore) ListVouchers(_ context.Context, from, to time.Time) ([]*Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Voucher
	for _, v := range s.vouchers {
		if !from.IsZero() && v.TransactionDate.Before(from) {
			continue
		}
		if !to.IsZero() && v.TransactionDate.After(to) {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *MemoryStore) CreateSearch(_ context.Context, search *SavedSearch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *search
	s.searches[search.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSearch(_ context.Context, id string) (*SavedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	search, ok := s.searches[id]
	if !ok {
		return nil, fmt.Errorf("%w: search %s", ErrNotFound, id)
	}
	cp := *search
	return &cp, nil
}

func (s *MemoryStore) ListSearches(_ context.Context, includeInactive bool) ([]*SavedSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*SavedSearch
	for _, search := range s.searches {
		if !includeInactive && !search.Active {
			continue
		}
		cp := *search
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateSearch(_ context.Context, search *SavedSearch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.searches[search.ID]; !ok {
		return fmt.Errorf("%w: search %s", ErrNotFound, search.ID)
	}
	cp := *search
	s.searches[search.ID] = &cp
	return nil
}

func (s *MemoryStore) SeenItems(_ context.Context, searchID string) ([]*SeenItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.seen[searchID]
	out := make([]*SeenItem, 0, len(items))
	for _, item := range items {
		cp := *item
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) InsertSeenItems(_ context.Context, items []*SeenItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		cp := *item
		s.seen[item.SearchID] = append(s.seen[item.SearchID], &cp)
	}
	return nil
}

func (s *MemoryStore) SetAdmin(_ context.Context, chatKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adminKey != "" {
		return ErrAdminAlreadySet
	}
	s.adminKey = chatKey
	return nil
}

func (s *MemoryStore) Admin(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adminKey == "" {
		return "", fmt.Errorf("%w: admin identity", ErrNotFound)
	}
	return s.adminKey, nil
}
