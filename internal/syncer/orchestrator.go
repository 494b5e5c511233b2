package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ms-eventsync/internal/extract"
	"ms-eventsync/internal/gateway"
	"ms-eventsync/internal/logger"
	"ms-eventsync/internal/models"
	"ms-eventsync/internal/utils"
)

// Events older than this are no longer attendee-synced.
const relevanceWindow = 90 * 24 * time.Hour

// Per-event attendee fetches run in small concurrent batches to bound
// remote API load.
const defaultBatchSize = 3

type OrchestratorStore interface {
	UpsertEvent(ctx context.Context, ev *models.Event) error
	ListEvents(ctx context.Context) ([]models.Event, error)
	ReplaceAttendees(ctx context.Context, eventID int64, records []models.AttendeeRecord) error
	MergeAttendees(ctx context.Context, eventID int64, records []models.AttendeeRecord) error
	CountAttendees(ctx context.Context, eventID int64) (int, error)
	AttendeeOrderIDs(ctx context.Context, eventIDs []int64) ([]int64, error)
	GetSyncState(ctx context.Context, eventID int64) (*models.SyncState, error)
	PutSyncState(ctx context.Context, st *models.SyncState) error
	GetGlobalSyncState(ctx context.Context) (*models.GlobalSyncState, error)
	PutGlobalSyncState(ctx context.Context, st *models.GlobalSyncState) error
	AppendSnapshot(ctx context.Context, eventID int64, total int) error
}

type EventLister interface {
	Validate() error
	ListEvents() ([]models.RawEvent, error)
}

type AttendeeLister interface {
	ListAttendees(ctx context.Context, eventID int64, since *time.Time) (*gateway.AttendeeResult, error)
}

type PaymentSyncer interface {
	Validate() error
	SyncPaymentsForOrders(ctx context.Context, orderIDs []int64) error
}

type SyncPublisher interface {
	PublishSyncCompleted(strategy string, events int) error
	PublishAttendeesUpdated(eventID int64, total int) error
}

// SyncResult is the only signal surfaced to callers: overall outcome plus a
// human-readable summary. Per-event failures are logged, not enumerated.
type SyncResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Orchestrator drives one sync invocation end to end: event refresh,
// scheduler decision, attendee fetches, payment backfill.
type Orchestrator struct {
	store     OrchestratorStore
	events    EventLister
	attendees AttendeeLister
	payments  PaymentSyncer
	publisher SyncPublisher
	logger    *logger.Logger

	inFlight  atomic.Bool
	batchSize int
	now       func() time.Time
}

func NewOrchestrator(
	store OrchestratorStore,
	events EventLister,
	attendees AttendeeLister,
	payments PaymentSyncer,
	publisher SyncPublisher,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		events:    events,
		attendees: attendees,
		payments:  payments,
		publisher: publisher,
		logger:    log,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
}

// RunSync performs at most one sync at a time. Overlapping calls are
// rejected immediately, never queued.
func (o *Orchestrator) RunSync(ctx context.Context) SyncResult {
	if !o.inFlight.CompareAndSwap(false, true) {
		return SyncResult{Success: false, Message: "sync already in progress"}
	}
	defer o.inFlight.Store(false)

	if err := o.events.Validate(); err != nil {
		return SyncResult{Success: false, Message: err.Error()}
	}
	if err := o.payments.Validate(); err != nil {
		return SyncResult{Success: false, Message: err.Error()}
	}

	now := o.now()

	if err := o.refreshEvents(ctx); err != nil {
		o.logger.Error("SYNC", fmt.Sprintf("event list refresh failed: %v", err))
		return SyncResult{Success: false, Message: fmt.Sprintf("event refresh failed: %v", err)}
	}

	relevant, err := o.relevantEvents(ctx, now)
	if err != nil {
		return SyncResult{Success: false, Message: fmt.Sprintf("failed to load events: %v", err)}
	}

	global, err := o.store.GetGlobalSyncState(ctx)
	if err != nil {
		return SyncResult{Success: false, Message: fmt.Sprintf("failed to load sync state: %v", err)}
	}

	firstRun := global.LastFullDate == "" && global.LastDeltaRun == nil

	strategy := "none"
	switch {
	case firstRun || ShouldRunFullSync(global.LastFullDate, now):
		strategy = "full"
		o.runFullSync(ctx, relevant, now)
		global.LastFullDate = LocalDate(now)
		global.LastDeltaRun = &now
		if err := o.store.PutGlobalSyncState(ctx, global); err != nil {
			o.logger.Error("SYNC", fmt.Sprintf("failed to persist global sync state: %v", err))
		}
	case ShouldRunDeltaSync(global.LastDeltaRun, now):
		strategy = "delta"
		o.runDeltaSync(ctx, relevant, now)
		global.LastDeltaRun = &now
		if err := o.store.PutGlobalSyncState(ctx, global); err != nil {
			o.logger.Error("SYNC", fmt.Sprintf("failed to persist global sync state: %v", err))
		}
	}

	// Payment backfill runs every invocation so orders referenced by
	// attendees ingested in earlier runs eventually catch up. The
	// reconciler no-ops on orders already ingested.
	o.backfillPayments(ctx, relevant)

	if o.publisher != nil {
		if err := o.publisher.PublishSyncCompleted(strategy, len(relevant)); err != nil {
			o.logger.Error("KAFKA", fmt.Sprintf("failed to publish sync completion: %v", err))
		}
	}

	msg := fmt.Sprintf("sync complete: strategy=%s, %d relevant events", strategy, len(relevant))
	o.logger.LogSync("DONE", msg)
	return SyncResult{Success: true, Message: msg}
}

// refreshEvents pulls the full event list and updates the cache in place,
// running each description through the wine/food extractor.
func (o *Orchestrator) refreshEvents(ctx context.Context) error {
	raws, err := o.events.ListEvents()
	if err != nil {
		return err
	}

	for _, raw := range raws {
		wines, foods := extract.Lists(raw.Description)
		ev := &models.Event{
			ExternalID:  raw.ID,
			Title:       raw.Title,
			Description: raw.Description,
			StartDate:   utils.ParseEventDate(raw.StartDate, raw.StartParts, Zone()),
			EndDate:     utils.ParseEventDate(raw.EndDate, raw.EndParts, Zone()),
			ListPrice:   raw.Cost,
			Capacity:    raw.Capacity,
			Wines:       wines,
			Foods:       foods,
		}
		if err := o.store.UpsertEvent(ctx, ev); err != nil {
			o.logger.Error("SYNC", fmt.Sprintf("failed to upsert event %d: %v", raw.ID, err))
		}
	}
	o.logger.LogSync("EVENTS", fmt.Sprintf("refreshed %d events", len(raws)))
	return nil
}

// relevantEvents returns cached events starting inside the trailing window.
func (o *Orchestrator) relevantEvents(ctx context.Context, now time.Time) ([]models.Event, error) {
	all, err := o.store.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-relevanceWindow)
	var relevant []models.Event
	for _, ev := range all {
		if ev.StartDate.After(cutoff) || ev.StartDate.Equal(cutoff) {
			relevant = append(relevant, ev)
		}
	}
	return relevant, nil
}

func (o *Orchestrator) runFullSync(ctx context.Context, events []models.Event, now time.Time) {
	o.logger.LogSync("FULL", fmt.Sprintf("starting full sync for %d events", len(events)))
	o.forEachEvent(events, func(ev models.Event) {
		res, err := o.attendees.ListAttendees(ctx, ev.ExternalID, nil)
		if err != nil {
			o.logger.Error("SYNC", fmt.Sprintf("event %d: full attendee fetch failed: %v", ev.ExternalID, err))
			return
		}
		if err := o.store.ReplaceAttendees(ctx, ev.ExternalID, res.Records); err != nil {
			o.logger.Error("SYNC", fmt.Sprintf("event %d: attendee overwrite failed: %v", ev.ExternalID, err))
			return
		}

		observed := res.ObservedTotal
		if observed == 0 {
			observed = len(res.Records)
		}
		state := &models.SyncState{
			EventID:       ev.ExternalID,
			LastFullSync:  &now,
			LastDeltaSync: &now,
			ObservedTotal: observed,
		}
		if err := o.store.PutSyncState(ctx, state); err != nil {
			o.logger.Error("SYNC", fmt.Sprintf("event %d: sync state write failed: %v", ev.ExternalID, err))
		}
		if err := o.store.AppendSnapshot(ctx, ev.ExternalID, len(res.Records)); err != nil {
			o.logger.Error("SYNC", fmt.Sprintf("event %d: snapshot append failed: %v", ev.ExternalID, err))
		}
		o.notifyAttendeesUpdated(ev.ExternalID, len(res.Records))
	})
}

func (o *Orchestrator) runDeltaSync(ctx context.Context, events []models.Event, now time.Time) {
	// Delta only touches upcoming events; past ones no longer change.
	var upcoming []models.Event
	for _, ev := range events {
		if !ev.StartDate.Before(now) {
			upcoming = append(upcoming, ev)
		}
	}
	o.logger.LogSync("DELTA", fmt.Sprintf("starting delta sync for %d upcoming events", len(upcoming)))

	o.forEachEvent(upcoming, func(ev models.Event) {
		prev, err := o.store.GetSyncState(ctx, ev.ExternalID)
		if err != nil {
			o.logger.Error("SYNC", fmt.Sprintf("event %d: sync state read failed: %v", ev.ExternalID, err))
			return
		}

		res, err := o.attendees.ListAttendees(ctx, ev.ExternalID, prev.LastSyncPoint())
		if err != nil {
			o.logger.Error("SYNC", fmt.Sprintf("event %d: delta attendee fetch failed: %v", ev.ExternalID, err))
			return
		}

		if len(res.Records) > 0 {
			if err := o.store.MergeAttendees(ctx, ev.ExternalID, res.Records); err != nil {
				o.logger.Error("SYNC", fmt.Sprintf("event %d: attendee merge failed: %v", ev.ExternalID, err))
				return
			}
			total, err := o.store.CountAttendees(ctx, ev.ExternalID)
			if err == nil {
				if err := o.store.AppendSnapshot(ctx, ev.ExternalID, total); err != nil {
					o.logger.Error("SYNC", fmt.Sprintf("event %d: snapshot append failed: %v", ev.ExternalID, err))
				}
				o.notifyAttendeesUpdated(ev.ExternalID, total)
			}
		}

		state := &models.SyncState{EventID: ev.ExternalID, LastDeltaSync: &now}
		if prev != nil {
			state.LastFullSync = prev.LastFullSync
			state.ObservedTotal = prev.ObservedTotal
		}
		if res.ObservedTotal > 0 {
			state.ObservedTotal = res.ObservedTotal
		}
		if err := o.store.PutSyncState(ctx, state); err != nil {
			o.logger.Error("SYNC", fmt.Sprintf("event %d: sync state write failed: %v", ev.ExternalID, err))
		}
	})
}

func (o *Orchestrator) notifyAttendeesUpdated(eventID int64, total int) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishAttendeesUpdated(eventID, total); err != nil {
		o.logger.Error("KAFKA", fmt.Sprintf("event %d: failed to publish attendee update: %v", eventID, err))
	}
}

func (o *Orchestrator) backfillPayments(ctx context.Context, events []models.Event) {
	ids := make([]int64, len(events))
	for i, ev := range events {
		ids[i] = ev.ExternalID
	}
	orderIDs, err := o.store.AttendeeOrderIDs(ctx, ids)
	if err != nil {
		o.logger.Error("SYNC", fmt.Sprintf("failed to collect order ids: %v", err))
		return
	}
	if len(orderIDs) == 0 {
		return
	}
	if err := o.payments.SyncPaymentsForOrders(ctx, orderIDs); err != nil {
		// Payment failures never abort the attendee portion of a sync.
		o.logger.Error("SYNC", fmt.Sprintf("payment reconciliation failed: %v", err))
	}
}

// forEachEvent runs fn over events in concurrent batches of batchSize.
// Events own disjoint cache slots, so completion order does not matter.
func (o *Orchestrator) forEachEvent(events []models.Event, fn func(models.Event)) {
	size := o.batchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	for start := 0; start < len(events); start += size {
		end := start + size
		if end > len(events) {
			end = len(events)
		}
		var wg sync.WaitGroup
		for _, ev := range events[start:end] {
			wg.Add(1)
			go func(ev models.Event) {
				defer wg.Done()
				fn(ev)
			}(ev)
		}
		wg.Wait()
	}
}
