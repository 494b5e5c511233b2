package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ms-eventsync/internal/logger"
	"ms-eventsync/internal/models"
)

// Product metadata keys known to carry an event association.
var eventMetaKeys = []string{
	"_tribe_event_for_ticket",
	"_tribe_wooticket_for_event",
	"_event_id",
	"event_id",
}

type ReconcilerStore interface {
	OrderIDsWithPayments(ctx context.Context, orderIDs []int64) (map[int64]bool, error)
	AttendeesByOrderID(ctx context.Context, orderID int64) ([]models.AttendeeRecord, error)
	UpsertPayment(ctx context.Context, p *models.PaymentRecord) error
}

type OrderFetcher interface {
	Validate() error
	FetchOrders(ctx context.Context, orderIDs []int64) ([]models.RawOrder, error)
	FetchProduct(ctx context.Context, productID int64) (*models.RawProduct, error)
}

// Reconciler maps commerce orders to events and ingests their payment
// lines. Orders whose event cannot be resolved are skipped, not failed.
type Reconciler struct {
	store  ReconcilerStore
	orders OrderFetcher
	logger *logger.Logger
}

func NewReconciler(store ReconcilerStore, orders OrderFetcher, log *logger.Logger) *Reconciler {
	return &Reconciler{store: store, orders: orders, logger: log}
}

func (r *Reconciler) Validate() error {
	return r.orders.Validate()
}

// SyncPaymentsForOrders persists one payment record per order that is not
// already ingested. Calling it again with the same set is a no-op: no
// remote fetch happens for orders that already have a payment row.
func (r *Reconciler) SyncPaymentsForOrders(ctx context.Context, orderIDs []int64) error {
	ids := dedupe(orderIDs)
	if len(ids) == 0 {
		return nil
	}

	present, err := r.store.OrderIDsWithPayments(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to check existing payments: %w", err)
	}

	var missing []int64
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	orders, err := r.orders.FetchOrders(ctx, missing)
	if err != nil {
		return fmt.Errorf("failed to fetch orders: %w", err)
	}

	// Product lookups are cached across the batch: many orders share the
	// same ticket product.
	productEvents := make(map[int64]int64)

	ingested, skipped := 0, 0
	for _, order := range orders {
		eventID, err := r.resolveEventID(ctx, order, productEvents)
		if err != nil {
			return err
		}
		if eventID == 0 {
			r.logger.Warn("RECONCILER",
				fmt.Sprintf("order %d: no event association found, skipping", order.ID))
			skipped++
			continue
		}

		record := aggregateOrder(order, eventID)
		if err := r.store.UpsertPayment(ctx, record); err != nil {
			return fmt.Errorf("failed to persist payment for order %d: %w", order.ID, err)
		}
		ingested++
	}

	r.logger.LogReconciler(fmt.Sprintf("ingested %d payments, skipped %d unresolved orders", ingested, skipped))
	return nil
}

// resolveEventID tries the two association strategies in priority order:
// cached attendees sharing the order id carry a verified event id; product
// metadata is the fallback for orders whose attendees have not synced yet.
func (r *Reconciler) resolveEventID(ctx context.Context, order models.RawOrder, productEvents map[int64]int64) (int64, error) {
	attendees, err := r.store.AttendeesByOrderID(ctx, order.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up attendees for order %d: %w", order.ID, err)
	}
	for _, a := range attendees {
		if a.EventID != 0 {
			return a.EventID, nil
		}
	}

	for _, line := range order.LineItems {
		if line.ProductID == 0 {
			continue
		}
		eventID, seen := productEvents[line.ProductID]
		if !seen {
			eventID = r.productEventID(ctx, line.ProductID)
			productEvents[line.ProductID] = eventID
		}
		if eventID != 0 {
			return eventID, nil
		}
	}
	return 0, nil
}

func (r *Reconciler) productEventID(ctx context.Context, productID int64) int64 {
	product, err := r.orders.FetchProduct(ctx, productID)
	if err != nil {
		// Missing product metadata downgrades to "unresolved", it does not
		// fail the batch.
		r.logger.Warn("RECONCILER", fmt.Sprintf("product %d fetch failed: %v", productID, err))
		return 0
	}
	for _, meta := range product.MetaData {
		for _, key := range eventMetaKeys {
			if meta.Key == key {
				if id := metaValueID(meta.Value); id != 0 {
					return id
				}
			}
		}
	}
	return 0
}

func metaValueID(v any) int64 {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case string:
		id, _ := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return id
	case json.Number:
		id, _ := val.Int64()
		return id
	}
	return 0
}

// aggregateOrder folds every line item of one order into a single payment
// record keyed by (order id, first line item id).
func aggregateOrder(order models.RawOrder, eventID int64) *models.PaymentRecord {
	var (
		quantity int
		subtotal float64
		total    float64
		lineID   int64
	)
	for i, line := range order.LineItems {
		if i == 0 {
			lineID = line.ID
		}
		quantity += line.Quantity
		subtotal += line.Subtotal
		total += line.Total
	}

	unitPrice := 0.0
	if quantity > 0 {
		unitPrice = total / float64(quantity)
	}

	var coupons []string
	for _, c := range order.CouponLines {
		coupons = append(coupons, c.Code)
	}

	debug, _ := json.Marshal(order)

	return &models.PaymentRecord{
		OrderID:    order.ID,
		LineItemID: lineID,
		EventID:    eventID,
		Quantity:   quantity,
		Currency:   order.Currency,
		TotalPaid:  total,
		UnitPrice:  unitPrice,
		Subtotal:   subtotal,
		Discount:   subtotal - total,
		Coupons:    coupons,
		OrderTotal: order.Total,
		PaidAt:     parseOrderTime(order.DatePaid, order.DateCreated),
		Debug:      string(debug),
	}
}

func parseOrderTime(paid, created string) time.Time {
	for _, s := range []string{paid, created} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	var out []int64
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
