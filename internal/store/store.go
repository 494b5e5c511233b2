package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-eventsync/internal/models"
)

// Store is the durable cache behind the sync pipeline. It exclusively owns
// events, attendees, payments, sync state, snapshots, manual reservations,
// classifications and settings.
type Store struct {
	Bun *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{Bun: db}
}

// ---------------- EVENTS ----------------

// UpsertEvent writes an event keyed by its external id. If a row with the
// same external id exists its internal id and created timestamp are
// preserved and the mutable fields are overwritten in place.
func (s *Store) UpsertEvent(ctx context.Context, ev *models.Event) error {
	var existing models.Event
	err := s.Bun.NewSelect().
		Model(&existing).
		Where("external_id = ?", ev.ExternalID).
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		ev.ID = uuid.NewString()
		ev.CreatedAt = time.Now()
		ev.UpdatedAt = ev.CreatedAt
		_, err = s.Bun.NewInsert().Model(ev).Exec(ctx)
		return err
	case err != nil:
		return err
	}

	ev.ID = existing.ID
	ev.CreatedAt = existing.CreatedAt
	ev.UpdatedAt = time.Now()
	_, err = s.Bun.NewUpdate().
		Model(ev).
		Column("title", "description", "start_date", "end_date", "list_price",
			"capacity", "label", "wines", "foods", "updated_at").
		Where("id = ?", ev.ID).
		Exec(ctx)
	return err
}

func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var ev models.Event
	err := s.Bun.NewSelect().Model(&ev).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *Store) GetEventByExternalID(ctx context.Context, externalID int64) (*models.Event, error) {
	var ev models.Event
	err := s.Bun.NewSelect().Model(&ev).Where("external_id = ?", externalID).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := s.Bun.NewSelect().Model(&events).Order("start_date ASC").Scan(ctx)
	return events, err
}

// ---------------- ATTENDEES ----------------

// ReplaceAttendees overwrites the whole attendee cache slot for one event.
// Used by full syncs.
func (s *Store) ReplaceAttendees(ctx context.Context, eventID int64, records []models.AttendeeRecord) error {
	return s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.AttendeeRecord)(nil)).
			Where("event_id = ?", eventID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		_, err = tx.NewInsert().Model(&records).Exec(ctx)
		return err
	})
}

// MergeAttendees upserts records keyed by (event id, attendee id). Existing
// rows for the same attendee are overwritten by the incoming version; rows
// not mentioned are left untouched. Used by delta syncs.
func (s *Store) MergeAttendees(ctx context.Context, eventID int64, records []models.AttendeeRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := s.Bun.NewInsert().
		Model(&records).
		On("CONFLICT (event_id, attendee_id) DO UPDATE").
		Set("order_id = EXCLUDED.order_id").
		Set("ticket_id = EXCLUDED.ticket_id").
		Set("name = EXCLUDED.name").
		Set("email = EXCLUDED.email").
		Set("created_at = EXCLUDED.created_at").
		Set("modified_at = EXCLUDED.modified_at").
		Set("checked_in = EXCLUDED.checked_in").
		Set("price = EXCLUDED.price").
		Set("provider = EXCLUDED.provider").
		Set("is_purchaser = EXCLUDED.is_purchaser").
		Exec(ctx)
	return err
}

func (s *Store) ListAttendees(ctx context.Context, eventID int64) ([]models.AttendeeRecord, error) {
	var records []models.AttendeeRecord
	err := s.Bun.NewSelect().
		Model(&records).
		Where("event_id = ?", eventID).
		Order("attendee_id ASC").
		Scan(ctx)
	return records, err
}

func (s *Store) CountAttendees(ctx context.Context, eventID int64) (int, error) {
	return s.Bun.NewSelect().
		Model((*models.AttendeeRecord)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
}

// AttendeeOrderIDs returns the distinct non-zero order ids referenced by
// cached attendees of the given events.
func (s *Store) AttendeeOrderIDs(ctx context.Context, eventIDs []int64) ([]int64, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	var ids []int64
	err := s.Bun.NewSelect().
		Model((*models.AttendeeRecord)(nil)).
		Column("order_id").
		Where("event_id IN (?)", bun.In(eventIDs)).
		Where("order_id != 0").
		Distinct().
		Scan(ctx, &ids)
	return ids, err
}

// AttendeesByOrderID returns cached attendees carrying the given order id,
// any event. Used by the reconciler's first-tier event resolution.
func (s *Store) AttendeesByOrderID(ctx context.Context, orderID int64) ([]models.AttendeeRecord, error) {
	var records []models.AttendeeRecord
	err := s.Bun.NewSelect().
		Model(&records).
		Where("order_id = ?", orderID).
		Scan(ctx)
	return records, err
}

// ---------------- PAYMENTS ----------------

// OrderIDsWithPayments reports which of the given order ids already have at
// least one persisted payment record.
func (s *Store) OrderIDsWithPayments(ctx context.Context, orderIDs []int64) (map[int64]bool, error) {
	present := make(map[int64]bool)
	if len(orderIDs) == 0 {
		return present, nil
	}
	var ids []int64
	err := s.Bun.NewSelect().
		Model((*models.PaymentRecord)(nil)).
		Column("order_id").
		Where("order_id IN (?)", bun.In(orderIDs)).
		Distinct().
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		present[id] = true
	}
	return present, nil
}

// UpsertPayment writes a payment record keyed by (order id, line item id).
func (s *Store) UpsertPayment(ctx context.Context, p *models.PaymentRecord) error {
	_, err := s.Bun.NewInsert().
		Model(p).
		On("CONFLICT (order_id, line_item_id) DO UPDATE").
		Set("event_id = EXCLUDED.event_id").
		Set("quantity = EXCLUDED.quantity").
		Set("currency = EXCLUDED.currency").
		Set("total_paid = EXCLUDED.total_paid").
		Set("unit_price = EXCLUDED.unit_price").
		Set("subtotal = EXCLUDED.subtotal").
		Set("discount = EXCLUDED.discount").
		Set("coupons = EXCLUDED.coupons").
		Set("order_total = EXCLUDED.order_total").
		Set("paid_at = EXCLUDED.paid_at").
		Set("debug = EXCLUDED.debug").
		Exec(ctx)
	return err
}

func (s *Store) ListPayments(ctx context.Context, eventID int64) ([]models.PaymentRecord, error) {
	var payments []models.PaymentRecord
	err := s.Bun.NewSelect().
		Model(&payments).
		Where("event_id = ?", eventID).
		Order("paid_at ASC").
		Scan(ctx)
	return payments, err
}

// ---------------- SYNC STATE ----------------

func (s *Store) GetSyncState(ctx context.Context, eventID int64) (*models.SyncState, error) {
	var st models.SyncState
	err := s.Bun.NewSelect().Model(&st).Where("event_id = ?", eventID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) PutSyncState(ctx context.Context, st *models.SyncState) error {
	_, err := s.Bun.NewInsert().
		Model(st).
		On("CONFLICT (event_id) DO UPDATE").
		Set("last_full_sync = EXCLUDED.last_full_sync").
		Set("last_delta_sync = EXCLUDED.last_delta_sync").
		Set("observed_total = EXCLUDED.observed_total").
		Exec(ctx)
	return err
}

func (s *Store) GetGlobalSyncState(ctx context.Context) (*models.GlobalSyncState, error) {
	var st models.GlobalSyncState
	err := s.Bun.NewSelect().Model(&st).Where("id = 1").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.GlobalSyncState{ID: 1}, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) PutGlobalSyncState(ctx context.Context, st *models.GlobalSyncState) error {
	st.ID = 1
	_, err := s.Bun.NewInsert().
		Model(st).
		On("CONFLICT (id) DO UPDATE").
		Set("last_full_date = EXCLUDED.last_full_date").
		Set("last_delta_run = EXCLUDED.last_delta_run").
		Exec(ctx)
	return err
}

// ---------------- SNAPSHOTS ----------------

// AppendSnapshot records an occupancy point and prunes the per-event series
// down to models.SnapshotCap rows, oldest first.
func (s *Store) AppendSnapshot(ctx context.Context, eventID int64, total int) error {
	snap := &models.AttendeeSnapshot{
		EventID:    eventID,
		Total:      total,
		CapturedAt: time.Now(),
	}
	if _, err := s.Bun.NewInsert().Model(snap).Exec(ctx); err != nil {
		return err
	}

	count, err := s.Bun.NewSelect().
		Model((*models.AttendeeSnapshot)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
	if err != nil {
		return err
	}
	if count <= models.SnapshotCap {
		return nil
	}

	var staleIDs []int64
	err = s.Bun.NewSelect().
		Model((*models.AttendeeSnapshot)(nil)).
		Column("id").
		Where("event_id = ?", eventID).
		Order("captured_at ASC", "id ASC").
		Limit(count - models.SnapshotCap).
		Scan(ctx, &staleIDs)
	if err != nil {
		return err
	}
	_, err = s.Bun.NewDelete().
		Model((*models.AttendeeSnapshot)(nil)).
		Where("id IN (?)", bun.In(staleIDs)).
		Exec(ctx)
	return err
}

func (s *Store) ListSnapshots(ctx context.Context, eventID int64) ([]models.AttendeeSnapshot, error) {
	var snaps []models.AttendeeSnapshot
	err := s.Bun.NewSelect().
		Model(&snaps).
		Where("event_id = ?", eventID).
		Order("captured_at ASC", "id ASC").
		Scan(ctx)
	return snaps, err
}

// ---------------- MANUAL ATTENDEES ----------------

func (s *Store) AddManualAttendee(ctx context.Context, m *models.ManualAttendee) error {
	_, err := s.Bun.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) UpdateManualAttendee(ctx context.Context, m *models.ManualAttendee) error {
	_, err := s.Bun.NewUpdate().
		Model(m).
		Column("name", "phone", "email", "quantity", "source", "status",
			"notes", "ticket_price").
		Where("id = ?", m.ID).
		Exec(ctx)
	return err
}

func (s *Store) DeleteManualAttendee(ctx context.Context, id string) error {
	_, err := s.Bun.NewDelete().
		Model((*models.ManualAttendee)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (s *Store) GetManualAttendee(ctx context.Context, id string) (*models.ManualAttendee, error) {
	var m models.ManualAttendee
	err := s.Bun.NewSelect().Model(&m).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListManualAttendees(ctx context.Context, eventID int64) ([]models.ManualAttendee, error) {
	var list []models.ManualAttendee
	err := s.Bun.NewSelect().
		Model(&list).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Scan(ctx)
	return list, err
}

// ---------------- SETTINGS ----------------

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var setting models.Setting
	err := s.Bun.NewSelect().Model(&setting).Where("key = ?", key).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	setting := &models.Setting{Key: key, Value: value}
	_, err := s.Bun.NewInsert().
		Model(setting).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return err
}

// ---------------- CLASSIFICATIONS ----------------

func (s *Store) GetClassification(ctx context.Context, eventID int64) (*models.Classification, error) {
	var c models.Classification
	err := s.Bun.NewSelect().Model(&c).Where("event_id = ?", eventID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) PutClassification(ctx context.Context, c *models.Classification) error {
	_, err := s.Bun.NewInsert().
		Model(c).
		On("CONFLICT (event_id) DO UPDATE").
		Set("drinks_category = EXCLUDED.drinks_category").
		Set("theme = EXCLUDED.theme").
		Set("confidence = EXCLUDED.confidence").
		Set("classified_at = EXCLUDED.classified_at").
		Exec(ctx)
	return err
}
