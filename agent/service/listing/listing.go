package listing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arvidstrom/storeagent/agent/approval"
	contractx "github.com/arvidstrom/storeagent/agent/contract"
	"github.com/arvidstrom/storeagent/agent/storage"
	"github.com/arvidstrom/storeagent/pkg/tradera"
)

// ListingTypes accepted for marketplace drafts.
const (
	TypeAuction  = "auction"
	TypeBuyNow   = "buy_now"
	TypeShopItem = "shop_item"
)

// Publisher is the marketplace surface publishing needs. pkg/tradera
// implements it.
type Publisher interface {
	CreateListing(ctx context.Context, req tradera.CreateListingRequest) (*tradera.CreateListingResult, error)
}

// Service owns the product catalog and the draft-to-published listing flow.
// Every listing starts as an approval draft; publishing requires an approved
// draft and records the publish as the lifecycle commit point.
type Service struct {
	store     storage.ProductStore
	machine   *approval.Machine
	publisher Publisher
	now       func() time.Time
}

func NewService(store storage.ProductStore, machine *approval.Machine, publisher Publisher) *Service {
	return &Service{
		store:     store,
		machine:   machine,
		publisher: publisher,
		now:       time.Now,
	}
}

// WithClock replaces the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateProductInput struct {
	Title           string
	Description     string
	Category        string
	Condition       string
	Materials       string
	Era             string
	Dimensions      string
	Source          string
	AcquisitionCost float64
	Extra           map[string]any
}

func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (*storage.Product, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: product title is required", contractx.ErrValidation)
	}
	now := s.now().UTC()
	p := &storage.Product{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		Category:        in.Category,
		Status:          storage.ProductDraft,
		Condition:       in.Condition,
		Materials:       in.Materials,
		Era:             in.Era,
		Dimensions:      in.Dimensions,
		Source:          in.Source,
		AcquisitionCost: in.AcquisitionCost,
		Extra:           in.Extra,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	log.Info().Str("product_id", p.ID).Str("title", p.Title).Msg("product created")
	return p, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*storage.Product, []*storage.ProductImage, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	images, err := s.store.Images(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return p, images, nil
}

func (s *Service) SearchProducts(ctx context.Context, query, status string, includeArchived bool) ([]*storage.Product, error) {
	return s.store.SearchProducts(ctx, query, status, includeArchived)
}

// ArchiveProduct soft-deletes. Archived products are excluded from search by
// default and can no longer be drafted into listings.
func (s *Service) ArchiveProduct(ctx context.Context, id string) (*storage.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == storage.ProductArchived {
		return p, nil
	}
	p.Status = storage.ProductArchived
	p.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("archive product: %w", err)
	}
	return p, nil
}

// SaveImage attaches an image reference to a product. Only the reference is
// stored; bytes are resolved when the conversation is encoded for the model.
func (s *Service) SaveImage(ctx context.Context, productID, ref string, primary bool) (*storage.ProductImage, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("%w: image ref is required", contractx.ErrValidation)
	}
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	img := &storage.ProductImage{
		ID:        uuid.NewString(),
		ProductID: productID,
		Ref:       ref,
		IsPrimary: primary,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveImage(ctx, img); err != nil {
		return nil, fmt.Errorf("save product image: %w", err)
	}
	return img, nil
}

type DraftInput struct {
	ProductID    string
	Title        string
	Description  string
	ListingType  string
	CategoryID   int64
	StartPrice   float64
	BuyNowPrice  float64
	DurationDays int64
}

// CreateDraft builds a marketplace listing draft for a product. The draft
// enters the approval lifecycle; nothing reaches the marketplace until the
// operator approves and the agent publishes.
func (s *Service) CreateDraft(ctx context.Context, in DraftInput) (*approval.Approvable, error) {
	if err := validateDraftInput(in); err != nil {
		return nil, err
	}

	product, err := s.store.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if product.Status == storage.ProductArchived {
		return nil, fmt.Errorf("%w: product %s is archived", contractx.ErrPrecondition, product.ID)
	}

	title := in.Title
	if title == "" {
		title = product.Title
	}
	body := in.Description
	if body == "" {
		body = product.Description
	}
	duration := in.DurationDays
	if duration <= 0 {
		duration = 7
	}

	extra := map[string]any{
		"listing_type":  in.ListingType,
		"category_id":   in.CategoryID,
		"duration_days": duration,
	}
	if in.StartPrice > 0 {
		extra["start_price"] = in.StartPrice
	}
	if in.BuyNowPrice > 0 {
		extra["buy_now_price"] = in.BuyNowPrice
	}

	return s.machine.Submit(ctx, approval.KindListingDraft, title, body, product.ID, extra)
}

func (s *Service) ListDrafts(ctx context.Context, status approval.Status) ([]*approval.Approvable, error) {
	return s.machine.List(ctx, approval.KindListingDraft, status)
}

func (s *Service) GetDraft(ctx context.Context, id string) (*approval.Approvable, error) {
	return s.getListingDraft(ctx, id)
}

type DraftUpdate struct {
	Title        string
	Description  string
	ListingType  string
	StartPrice   float64
	BuyNowPrice  float64
	DurationDays int64
}

func (s *Service) UpdateDraft(ctx context.Context, id string, upd DraftUpdate) (*approval.Approvable, error) {
	if _, err := s.getListingDraft(ctx, id); err != nil {
		return nil, err
	}
	extra := map[string]any{}
	if upd.ListingType != "" {
		if !validListingType(upd.ListingType) {
			return nil, fmt.Errorf("%w: unknown listing type %q", contractx.ErrValidation, upd.ListingType)
		}
		extra["listing_type"] = upd.ListingType
	}
	if upd.StartPrice > 0 {
		extra["start_price"] = upd.StartPrice
	}
	if upd.BuyNowPrice > 0 {
		extra["buy_now_price"] = upd.BuyNowPrice
	}
	if upd.DurationDays > 0 {
		extra["duration_days"] = upd.DurationDays
	}
	return s.machine.UpdateDraft(ctx, id, upd.Title, upd.Description, extra)
}

func (s *Service) ApproveDraft(ctx context.Context, id string) (*approval.Approvable, error) {
	if _, err := s.getListingDraft(ctx, id); err != nil {
		return nil, err
	}
	return s.machine.Approve(ctx, id)
}

func (s *Service) RejectDraft(ctx context.Context, id, reason string) (*approval.Approvable, error) {
	if _, err := s.getListingDraft(ctx, id); err != nil {
		return nil, err
	}
	return s.machine.Reject(ctx, id, reason)
}

// ReviseDraft turns a rejected draft into a fresh editable draft. The
// rejected entity stays in place; the new draft links back to it.
func (s *Service) ReviseDraft(ctx context.Context, id string, upd DraftUpdate) (*approval.Approvable, error) {
	if _, err := s.getListingDraft(ctx, id); err != nil {
		return nil, err
	}
	extra := map[string]any{}
	if upd.ListingType != "" {
		extra["listing_type"] = upd.ListingType
	}
	if upd.StartPrice > 0 {
		extra["start_price"] = upd.StartPrice
	}
	if upd.BuyNowPrice > 0 {
		extra["buy_now_price"] = upd.BuyNowPrice
	}
	if upd.DurationDays > 0 {
		extra["duration_days"] = upd.DurationDays
	}
	next, err := s.machine.Resubmit(ctx, id, extra)
	if err != nil {
		return nil, err
	}
	if upd.Title != "" || upd.Description != "" {
		return s.machine.UpdateDraft(ctx, next.ID, upd.Title, upd.Description, nil)
	}
	return next, nil
}

// PublishableDraft is the dispatcher precondition for publish_listing: the
// draft must exist and be approved before any marketplace call happens.
func (s *Service) PublishableDraft(ctx context.Context, id string) error {
	if _, err := s.getListingDraft(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrPrecondition, err)
	}
	return s.machine.Executable(ctx, id)
}

type PublishResult struct {
	DraftID    string `json:"draft_id"`
	ProductID  string `json:"product_id"`
	ItemID     string `json:"item_id"`
	URL        string `json:"url"`
	ListedAt   string `json:"listed_at"`
	ListedType string `json:"listing_type"`
}

// Publish sends the approved draft to the marketplace and then commits the
// published transition. The external call happens first: if it fails the
// draft stays approved and can be retried; if the transition then loses a
// race the marketplace listing already exists and the error says so.
func (s *Service) Publish(ctx context.Context, id string) (*PublishResult, error) {
	if s.publisher == nil {
		return nil, fmt.Errorf("%w: no marketplace publisher configured", contractx.ErrPrecondition)
	}

	draft, err := s.getListingDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.machine.Executable(ctx, id); err != nil {
		return nil, err
	}

	product, err := s.store.GetProduct(ctx, draft.EntityRef)
	if err != nil {
		return nil, err
	}
	images, err := s.store.Images(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(images))
	for _, img := range images {
		refs = append(refs, img.Ref)
	}

	req := tradera.CreateListingRequest{
		Title:       draft.Title,
		Description: draft.Body,
		CategoryID:  extraInt(draft.Extra, "category_id"),
		ListingType: extraString(draft.Extra, "listing_type"),
		StartPrice:  extraFloat(draft.Extra, "start_price"),
		BuyNowPrice: extraFloat(draft.Extra, "buy_now_price"),
		Duration:    extraInt(draft.Extra, "duration_days"),
		Images:      refs,
	}
	created, err := s.publisher.CreateListing(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: publish listing: %v", contractx.ErrToolExecution, err)
	}

	if _, err := s.machine.Execute(ctx, id); err != nil {
		return nil, fmt.Errorf("listing %s reached the marketplace as item %s but the local transition failed: %w", id, created.ItemID, err)
	}

	price := req.BuyNowPrice
	if price == 0 {
		price = req.StartPrice
	}
	product.Status = storage.ProductListed
	if price > 0 {
		product.ListingPrice = price
	}
	if product.Extra == nil {
		product.Extra = map[string]any{}
	}
	product.Extra["marketplace_item_id"] = created.ItemID
	product.Extra["marketplace_url"] = created.URL
	product.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateProduct(ctx, product); err != nil {
		log.Error().Err(err).Str("product_id", product.ID).Msg("listing published but product update failed")
	}

	log.Info().
		Str("draft_id", id).
		Str("product_id", product.ID).
		Str("item_id", created.ItemID).
		Msg("listing published")

	return &PublishResult{
		DraftID:    id,
		ProductID:  product.ID,
		ItemID:     created.ItemID,
		URL:        created.URL,
		ListedAt:   s.now().UTC().Format(time.RFC3339),
		ListedType: req.ListingType,
	}, nil
}

func (s *Service) getListingDraft(ctx context.Context, id string) (*approval.Approvable, error) {
	a, err := s.machine.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Kind != approval.KindListingDraft {
		return nil, fmt.Errorf("%w: %s is a %s, not a listing draft", contractx.ErrValidation, id, a.Kind)
	}
	return a, nil
}

func validateDraftInput(in DraftInput) error {
	if strings.TrimSpace(in.ProductID) == "" {
		return fmt.Errorf("%w: product id is required", contractx.ErrValidation)
	}
	if !validListingType(in.ListingType) {
		return fmt.Errorf("%w: unknown listing type %q", contractx.ErrValidation, in.ListingType)
	}
	switch in.ListingType {
	case TypeAuction:
		if in.StartPrice <= 0 {
			return fmt.Errorf("%w: auction listings need a start price", contractx.ErrValidation)
		}
	case TypeBuyNow, TypeShopItem:
		if in.BuyNowPrice <= 0 {
			return fmt.Errorf("%w: %s listings need a buy-now price", contractx.ErrValidation, in.ListingType)
		}
	}
	return nil
}

func validListingType(t string) bool {
	switch t {
	case TypeAuction, TypeBuyNow, TypeShopItem:
		return true
	}
	return false
}

func extraString(extra map[string]any, key string) string {
	if v, ok := extra[key].(string); ok {
		return v
	}
	return ""
}

func extraFloat(extra map[string]any, key string) float64 {
	switch v := extra[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func extraInt(extra map[string]any, key string) int64 {
	switch v := extra[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
