package order

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

// Marketplace is the order surface the ingest path needs. pkg/tradera
// implements it.
type Marketplace interface {
	GetOrders(ctx context.Context, status string) ([]tradera.OrderInfo, error)
	LeaveFeedback(ctx context.Context, orderID, text string) error
}

// Service ingests marketplace orders and drives shipping and feedback.
// Shipping and outbound feedback are gated behind the approval lifecycle;
// the tool handlers run only after the matching approvable is approved.
type Service struct {
	products    storage.ProductStore
	orders      storage.OrderStore
	machine     *approval.Machine
	marketplace Marketplace
	now         func() time.Time
}

func NewService(products storage.ProductStore, orders storage.OrderStore, machine *approval.Machine, marketplace Marketplace) *Service {
	return &Service{
		products:    products,
		orders:      orders,
		machine:     machine,
		marketplace: marketplace,
		now:         time.Now,
	}
}

// WithClock replaces the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type IngestSummary struct {
	New       int      `json:"new"`
	Known     int      `json:"known"`
	Unmatched int      `json:"unmatched"`
	OrderIDs  []string `json:"order_ids"`
}

// Ingest pulls fresh marketplace orders and records them. Orders whose item
// cannot be linked to a product are persisted with status unmatched instead
// of being dropped, so nothing silently disappears between polls.
func (s *Service) Ingest(ctx context.Context) (*IngestSummary, error) {
	if s.marketplace == nil {
		return nil, fmt.Errorf("%w: no marketplace configured", contractx.ErrPrecondition)
	}

	remote, err := s.marketplace.GetOrders(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%w: fetch orders: %v", contractx.ErrToolExecution, err)
	}

	summary := &IngestSummary{}
	for _, ro := range remote {
		existing, err := s.orders.FindOrderByExternalID(ctx, "tradera", ro.OrderID)
		if err == nil && existing != nil {
			summary.Known++
			continue
		}

		o := &storage.Order{
			ID:              uuid.NewString(),
			Platform:        "tradera",
			ExternalOrderID: ro.OrderID,
			BuyerName:       ro.BuyerName,
			BuyerAddress:    ro.BuyerAddress,
			SalePrice:       ro.Price,
			PlatformFee:     ro.Fee,
			Status:          storage.OrderPending,
			OrderedAt:       parseOrderedAt(ro.OrderedAt, s.now().UTC()),
		}

		product := s.matchProduct(ctx, ro.ItemID)
		if product == nil {
			o.Status = storage.OrderUnmatched
			o.Extra = map[string]any{"external_item_id": ro.ItemID}
			summary.Unmatched++
			log.Warn().
				Str("external_order_id", ro.OrderID).
				Str("external_item_id", ro.ItemID).
				Msg("order did not match any product, keeping for review")
		} else {
			o.ProductID = product.ID
			product.Status = storage.ProductSold
			product.SoldPrice = ro.Price
			product.UpdatedAt = s.now().UTC()
			if err := s.products.UpdateProduct(ctx, product); err != nil {
				log.Error().Err(err).Str("product_id", product.ID).Msg("mark product sold failed")
			}
		}

		if err := s.orders.InsertOrder(ctx, o); err != nil {
			return nil, fmt.Errorf("insert order: %w", err)
		}
		summary.New++
		summary.OrderIDs = append(summary.OrderIDs, o.ID)
	}
	return summary, nil
}

func (s *Service) Get(ctx context.Context, id string) (*storage.Order, error) {
	return s.orders.GetOrder(ctx, id)
}

func (s *Service) List(ctx context.Context, status string) ([]*storage.Order, error) {
	return s.orders.ListOrders(ctx, status)
}

// RequestShipment submits a shipment approvable for a pending order. The
// order itself is only marked shipped by MarkShipped, after approval.
func (s *Service) RequestShipment(ctx context.Context, orderID, trackingNumber string) (*approval.Approvable, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != storage.OrderPending {
		return nil, fmt.Errorf("%w: order %s has status %q, only pending orders ship", contractx.ErrPrecondition, orderID, o.Status)
	}
	extra := map[string]any{}
	if trackingNumber != "" {
		extra["tracking_number"] = trackingNumber
	}
	title := fmt.Sprintf("Ship order %s to %s", orderID, o.BuyerName)
	return s.machine.Submit(ctx, approval.KindShipment, title, o.BuyerAddress, orderID, extra)
}

// ShipmentConfirmable fails unless the shipment exists and is still in the
// draft or approved state. Dispatcher precondition for the confirm phase.
func (s *Service) ShipmentConfirmable(ctx context.Context, approvableID string) error {
	a, err := s.machine.Get(ctx, approvableID)
	if err != nil {
		return fmt.Errorf("%w: shipment %s: %v", contractx.ErrPrecondition, approvableID, err)
	}
	if a.Kind != approval.KindShipment {
		return fmt.Errorf("%w: %s is a %s, not a shipment", contractx.ErrPrecondition, approvableID, a.Kind)
	}
	if a.Status != approval.StatusDraft && a.Status != approval.StatusApproved {
		return fmt.Errorf("%w: shipment %s has status %q", contractx.ErrPrecondition, approvableID, a.Status)
	}
	return nil
}

// ConfirmShipment records the operator's confirmation as the approve
// transition and then marks the order shipped.
func (s *Service) ConfirmShipment(ctx context.Context, approvableID string) (*storage.Order, error) {
	a, err := s.machine.Get(ctx, approvableID)
	if err != nil {
		return nil, err
	}
	if a.Kind != approval.KindShipment {
		return nil, fmt.Errorf("%w: %s is a %s, not a shipment", contractx.ErrValidation, approvableID, a.Kind)
	}
	if a.Status == approval.StatusDraft {
		if _, err := s.machine.Approve(ctx, approvableID); err != nil {
			return nil, err
		}
	}
	return s.MarkShipped(ctx, approvableID)
}

// MarkShipped flips the order to shipped and commits the shipment
// approvable. Requires the approvable to be approved.
func (s *Service) MarkShipped(ctx context.Context, approvableID string) (*storage.Order, error) {
	a, err := s.machine.Get(ctx, approvableID)
	if err != nil {
		return nil, err
	}
	if a.Kind != approval.KindShipment {
		return nil, fmt.Errorf("%w: %s is a %s, not a shipment", contractx.ErrValidation, approvableID, a.Kind)
	}

	o, err := s.orders.GetOrder(ctx, a.EntityRef)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o.Status = storage.OrderShipped
	o.ShippedAt = now
	if tn, ok := a.Extra["tracking_number"].(string); ok && tn != "" {
		if o.Extra == nil {
			o.Extra = map[string]any{}
		}
		o.Extra["tracking_number"] = tn
	}
	if err := s.orders.UpdateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("mark order shipped: %w", err)
	}

	if _, err := s.machine.Execute(ctx, approvableID); err != nil {
		return nil, err
	}

	log.Info().Str("order_id", o.ID).Msg("order marked shipped")
	return o, nil
}

// RequestFeedback drafts an outbound feedback message for operator review.
func (s *Service) RequestFeedback(ctx context.Context, orderID, text string) (*approval.Approvable, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != storage.OrderShipped && o.Status != storage.OrderDelivered {
		return nil, fmt.Errorf("%w: order %s has status %q, feedback follows shipping", contractx.ErrPrecondition, orderID, o.Status)
	}
	if o.FeedbackSent {
		return nil, fmt.Errorf("%w: feedback already left for order %s", contractx.ErrPrecondition, orderID)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: feedback text is required", contractx.ErrValidation)
	}
	title := fmt.Sprintf("Feedback for order %s", orderID)
	return s.machine.Submit(ctx, approval.KindOutboundMessage, title, text, orderID, nil)
}

// FeedbackConfirmable mirrors ShipmentConfirmable for outbound feedback.
func (s *Service) FeedbackConfirmable(ctx context.Context, approvableID string) error {
	a, err := s.machine.Get(ctx, approvableID)
	if err != nil {
		return fmt.Errorf("%w: feedback %s: %v", contractx.ErrPrecondition, approvableID, err)
	}
	if a.Kind != approval.KindOutboundMessage {
		return fmt.Errorf("%w: %s is a %s, not an outbound message", contractx.ErrPrecondition, approvableID, a.Kind)
	}
	if a.Status != approval.StatusDraft && a.Status != approval.StatusApproved {
		return fmt.Errorf("%w: feedback %s has status %q", contractx.ErrPrecondition, approvableID, a.Status)
	}
	return nil
}

// ConfirmFeedback approves the drafted message on the operator's
// confirmation and sends it.
func (s *Service) ConfirmFeedback(ctx context.Context, approvableID string) (*storage.Order, error) {
	a, err := s.machine.Get(ctx, approvableID)
	if err != nil {
		return nil, err
	}
	if a.Kind != approval.KindOutboundMessage {
		return nil, fmt.Errorf("%w: %s is a %s, not an outbound message", contractx.ErrValidation, approvableID, a.Kind)
	}
	if a.Status == approval.StatusDraft {
		if _, err := s.machine.Approve(ctx, approvableID); err != nil {
			return nil, err
		}
	}
	return s.LeaveFeedback(ctx, approvableID)
}

// LeaveFeedback sends the approved feedback text to the marketplace, then
// commits the approvable and flags the order. The external call runs first
// so a marketplace failure leaves the approvable approved and retryable.
func (s *Service) LeaveFeedback(ctx context.Context, approvableID string) (*storage.Order, error) {
	if s.marketplace == nil {
		return nil, fmt.Errorf("%w: no marketplace configured", contractx.ErrPrecondition)
	}

	a, err := s.machine.Get(ctx, approvableID)
	if err != nil {
		return nil, err
	}
	if a.Kind != approval.KindOutboundMessage {
		return nil, fmt.Errorf("%w: %s is a %s, not an outbound message", contractx.ErrValidation, approvableID, a.Kind)
	}

	o, err := s.orders.GetOrder(ctx, a.EntityRef)
	if err != nil {
		return nil, err
	}

	if err := s.marketplace.LeaveFeedback(ctx, o.ExternalOrderID, a.Body); err != nil {
		return nil, fmt.Errorf("%w: leave feedback: %v", contractx.ErrToolExecution, err)
	}

	if _, err := s.machine.Execute(ctx, approvableID); err != nil {
		return nil, fmt.Errorf("feedback for order %s was sent but the local transition failed: %w", o.ID, err)
	}

	o.FeedbackSent = true
	if err := s.orders.UpdateOrder(ctx, o); err != nil {
		log.Error().Err(err).Str("order_id", o.ID).Msg("feedback sent but order update failed")
	}
	return o, nil
}

func (s *Service) matchProduct(ctx context.Context, externalItemID string) *storage.Product {
	if externalItemID == "" {
		return nil
	}
	products, err := s.products.SearchProducts(ctx, "", storage.ProductListed, false)
	if err != nil {
		log.Error().Err(err).Msg("product lookup during order ingest failed")
		return nil
	}
	for _, p := range products {
		if id, ok := p.Extra["marketplace_item_id"].(string); ok && id == externalItemID {
			return p
		}
	}
	return nil
}

func parseOrderedAt(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC()
	}
	return fallback
}
