package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arvidstrom/storeagent/agent/approval"
	contractx "github.com/arvidstrom/storeagent/agent/contract"
	"github.com/arvidstrom/storeagent/agent/storage"
	"github.com/arvidstrom/storeagent/pkg/tradera"
)

type fakeMarketplace struct {
	orders      []tradera.OrderInfo
	ordersErr   error
	feedback    []string
	feedbackErr error
}

func (f *fakeMarketplace) GetOrders(context.Context, string) ([]tradera.OrderInfo, error) {
	return f.orders, f.ordersErr
}

func (f *fakeMarketplace) LeaveFeedback(_ context.Context, orderID, text string) error {
	if f.feedbackErr != nil {
		return f.feedbackErr
	}
	f.feedback = append(f.feedback, orderID+": "+text)
	return nil
}

func newTestService(marketplace Marketplace) (*Service, *storage.MemoryStore, *approval.Machine) {
	frozen := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return frozen }
	store := storage.NewMemoryStore()
	machine := approval.NewMachine(approval.NewMemoryStore()).WithClock(clock)
	svc := NewService(store, store, machine, marketplace).WithClock(clock)
	return svc, store, machine
}

func listedProduct(t *testing.T, store *storage.MemoryStore, itemID string) *storage.Product {
	t.Helper()
	p := &storage.Product{
		ID:     "p-" + itemID,
		Title:  "Teakbyrå",
		Status: storage.ProductListed,
		Extra:  map[string]any{"marketplace_item_id": itemID},
	}
	if err := store.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}
	return p
}

func TestIngestMatchesListedProduct(t *testing.T) {
	t.Parallel()

	marketplace := &fakeMarketplace{orders: []tradera.OrderInfo{
		{OrderID: "T-100", ItemID: "item-1", BuyerName: "Anna", BuyerAddress: "Storgatan 1", Price: 450, Fee: 25, OrderedAt: "2026-05-30T10:00:00Z"},
	}}
	svc, store, _ := newTestService(marketplace)
	p := listedProduct(t, store, "item-1")

	summary, err := svc.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if summary.New != 1 || summary.Unmatched != 0 || summary.Known != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	o, err := svc.Get(context.Background(), summary.OrderIDs[0])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if o.Status != storage.OrderPending || o.ProductID != p.ID || o.SalePrice != 450 {
		t.Fatalf("order = %+v", o)
	}
	if o.OrderedAt != time.Date(2026, 5, 30, 10, 0, 0, 0, time.UTC) {
		t.Fatalf("ordered at = %v", o.OrderedAt)
	}

	sold, err := store.GetProduct(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if sold.Status != storage.ProductSold || sold.SoldPrice != 450 {
		t.Fatalf("product after ingest = %+v", sold)
	}
}

func TestIngestPersistsUnmatchedOrders(t *testing.T) {
	t.Parallel()

	marketplace := &fakeMarketplace{orders: []tradera.OrderInfo{
		{OrderID: "T-200", ItemID: "item-okänd", BuyerName: "Bo", Price: 120},
	}}
	svc, _, _ := newTestService(marketplace)

	summary, err := svc.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if summary.New != 1 || summary.Unmatched != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	o, err := svc.Get(context.Background(), summary.OrderIDs[0])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if o.Status != storage.OrderUnmatched {
		t.Fatalf("status = %q, unmatched orders must be kept for review", o.Status)
	}
	if o.Extra["external_item_id"] != "item-okänd" {
		t.Fatalf("order extra = %v", o.Extra)
	}

	unmatched, err := svc.List(context.Background(), storage.OrderUnmatched)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(unmatched) != 1 {
		t.Fatalf("unmatched orders listed = %d, want 1", len(unmatched))
	}
}

func TestIngestDeduplicatesKnownOrders(t *testing.T) {
	t.Parallel()

	marketplace := &fakeMarketplace{orders: []tradera.OrderInfo{
		{OrderID: "T-300", ItemID: "item-3", Price: 80},
	}}
	svc, store, _ := newTestService(marketplace)
	listedProduct(t, store, "item-3")

	if _, err := svc.Ingest(context.Background()); err != nil {
		t.Fatalf("first Ingest() error = %v", err)
	}
	summary, err := svc.Ingest(context.Background())
	if err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}
	if summary.New != 0 || summary.Known != 1 {
		t.Fatalf("summary = %+v, re-polling must not duplicate orders", summary)
	}
}

func TestIngestMarketplaceFailure(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(&fakeMarketplace{ordersErr: errors.New("tradera: status 503")})
	if _, err := svc.Ingest(context.Background()); !errors.Is(err, contractx.ErrToolExecution) {
		t.Fatalf("Ingest() error = %v, want ErrToolExecution", err)
	}
}

func ingestedOrder(t *testing.T, svc *Service, store *storage.MemoryStore, orderID, itemID string) *storage.Order {
	t.Helper()
	listedProduct(t, store, itemID)
	marketplace := svc.marketplace.(*fakeMarketplace)
	marketplace.orders = []tradera.OrderInfo{{OrderID: orderID, ItemID: itemID, BuyerName: "Anna", BuyerAddress: "Storgatan 1", Price: 450}}
	summary, err := svc.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	o, err := svc.Get(context.Background(), summary.OrderIDs[0])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return o
}

func TestShipmentFlow(t *testing.T) {
	t.Parallel()

	svc, store, machine := newTestService(&fakeMarketplace{})
	o := ingestedOrder(t, svc, store, "T-400", "item-4")

	shipment, err := svc.RequestShipment(context.Background(), o.ID, "PN123456789SE")
	if err != nil {
		t.Fatalf("RequestShipment() error = %v", err)
	}
	if shipment.Kind != approval.KindShipment || shipment.EntityRef != o.ID {
		t.Fatalf("shipment = %+v", shipment)
	}

	// The order is untouched until the shipment is confirmed.
	if current, _ := svc.Get(context.Background(), o.ID); current.Status != storage.OrderPending {
		t.Fatalf("order status after request = %q", current.Status)
	}
	if err := svc.ShipmentConfirmable(context.Background(), shipment.ID); err != nil {
		t.Fatalf("ShipmentConfirmable() error = %v", err)
	}

	shipped, err := svc.ConfirmShipment(context.Background(), shipment.ID)
	if err != nil {
		t.Fatalf("ConfirmShipment() error = %v", err)
	}
	if shipped.Status != storage.OrderShipped || shipped.ShippedAt.IsZero() {
		t.Fatalf("order after confirm = %+v", shipped)
	}
	if shipped.Extra["tracking_number"] != "PN123456789SE" {
		t.Fatalf("tracking number = %v", shipped.Extra["tracking_number"])
	}

	a, err := machine.Get(context.Background(), shipment.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if a.Status != approval.StatusPublished {
		t.Fatalf("shipment approvable status = %q, want published", a.Status)
	}

	// A published shipment cannot be confirmed again.
	if err := svc.ShipmentConfirmable(context.Background(), shipment.ID); !errors.Is(err, contractx.ErrPrecondition) {
		t.Fatalf("ShipmentConfirmable() after publish error = %v, want ErrPrecondition", err)
	}
}

func TestRequestShipmentRequiresPendingOrder(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestService(&fakeMarketplace{})
	o := ingestedOrder(t, svc, store, "T-500", "item-5")

	shipment, err := svc.RequestShipment(context.Background(), o.ID, "")
	if err != nil {
		t.Fatalf("RequestShipment() error = %v", err)
	}
	if _, err := svc.ConfirmShipment(context.Background(), shipment.ID); err != nil {
		t.Fatalf("ConfirmShipment() error = %v", err)
	}

	if _, err := svc.RequestShipment(context.Background(), o.ID, ""); !errors.Is(err, contractx.ErrPrecondition) {
		t.Fatalf("RequestShipment() on shipped order error = %v, want ErrPrecondition", err)
	}
}

func TestFeedbackFlow(t *testing.T) {
	t.Parallel()

	marketplace := &fakeMarketplace{}
	svc, store, _ := newTestService(marketplace)
	o := ingestedOrder(t, svc, store, "T-600", "item-6")

	// Feedback only after shipping.
	if _, err := svc.RequestFeedback(context.Background(), o.ID, "Tack för köpet!"); !errors.Is(err, contractx.ErrPrecondition) {
		t.Fatalf("RequestFeedback() on pending order error = %v, want ErrPrecondition", err)
	}

	shipment, err := svc.RequestShipment(context.Background(), o.ID, "")
	if err != nil {
		t.Fatalf("RequestShipment() error = %v", err)
	}
	if _, err := svc.ConfirmShipment(context.Background(), shipment.ID); err != nil {
		t.Fatalf("ConfirmShipment() error = %v", err)
	}

	if _, err := svc.RequestFeedback(context.Background(), o.ID, "  "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("empty feedback error = %v, want ErrValidation", err)
	}

	fb, err := svc.RequestFeedback(context.Background(), o.ID, "Tack för köpet, snabb betalning!")
	if err != nil {
		t.Fatalf("RequestFeedback() error = %v", err)
	}
	if err := svc.FeedbackConfirmable(context.Background(), fb.ID); err != nil {
		t.Fatalf("FeedbackConfirmable() error = %v", err)
	}

	updated, err := svc.ConfirmFeedback(context.Background(), fb.ID)
	if err != nil {
		t.Fatalf("ConfirmFeedback() error = %v", err)
	}
	if !updated.FeedbackSent {
		t.Fatal("order must be flagged after feedback is sent")
	}
	if len(marketplace.feedback) != 1 || marketplace.feedback[0] != "T-600: Tack för köpet, snabb betalning!" {
		t.Fatalf("marketplace feedback = %v", marketplace.feedback)
	}

	// The flag blocks a second feedback draft.
	if _, err := svc.RequestFeedback(context.Background(), o.ID, "igen"); !errors.Is(err, contractx.ErrPrecondition) {
		t.Fatalf("second RequestFeedback() error = %v, want ErrPrecondition", err)
	}
}

func TestLeaveFeedbackMarketplaceFailureKeepsApprovableRetryable(t *testing.T) {
	t.Parallel()

	marketplace := &fakeMarketplace{}
	svc, store, machine := newTestService(marketplace)
	o := ingestedOrder(t, svc, store, "T-700", "item-7")

	shipment, err := svc.RequestShipment(context.Background(), o.ID, "")
	if err != nil {
		t.Fatalf("RequestShipment() error = %v", err)
	}
	if _, err := svc.ConfirmShipment(context.Background(), shipment.ID); err != nil {
		t.Fatalf("ConfirmShipment() error = %v", err)
	}
	fb, err := svc.RequestFeedback(context.Background(), o.ID, "Tack!")
	if err != nil {
		t.Fatalf("RequestFeedback() error = %v", err)
	}

	marketplace.feedbackErr = errors.New("tradera: status 500")
	if _, err := svc.ConfirmFeedback(context.Background(), fb.ID); !errors.Is(err, contractx.ErrToolExecution) {
		t.Fatalf("ConfirmFeedback() error = %v, want ErrToolExecution", err)
	}

	// The confirm recorded the approval; the send can be retried without a
	// second confirmation.
	a, err := machine.Get(context.Background(), fb.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if a.Status != approval.StatusApproved {
		t.Fatalf("feedback status after failed send = %q, want approved", a.Status)
	}

	marketplace.feedbackErr = nil
	updated, err := svc.LeaveFeedback(context.Background(), fb.ID)
	if err != nil {
		t.Fatalf("retry LeaveFeedback() error = %v", err)
	}
	if !updated.FeedbackSent {
		t.Fatal("order must be flagged after the retried send")
	}
}
