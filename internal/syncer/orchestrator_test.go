package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-eventsync/internal/gateway"
	"ms-eventsync/internal/logger"
	"ms-eventsync/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) UpsertEvent(ctx context.Context, ev *models.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockStore) ReplaceAttendees(ctx context.Context, eventID int64, records []models.AttendeeRecord) error {
	args := m.Called(ctx, eventID, records)
	return args.Error(0)
}

func (m *MockStore) MergeAttendees(ctx context.Context, eventID int64, records []models.AttendeeRecord) error {
	args := m.Called(ctx, eventID, records)
	return args.Error(0)
}

func (m *MockStore) CountAttendees(ctx context.Context, eventID int64) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) AttendeeOrderIDs(ctx context.Context, eventIDs []int64) ([]int64, error) {
	args := m.Called(ctx, eventIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockStore) GetSyncState(ctx context.Context, eventID int64) (*models.SyncState, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SyncState), args.Error(1)
}

func (m *MockStore) PutSyncState(ctx context.Context, st *models.SyncState) error {
	args := m.Called(ctx, st)
	return args.Error(0)
}

func (m *MockStore) GetGlobalSyncState(ctx context.Context) (*models.GlobalSyncState, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GlobalSyncState), args.Error(1)
}

func (m *MockStore) PutGlobalSyncState(ctx context.Context, st *models.GlobalSyncState) error {
	args := m.Called(ctx, st)
	return args.Error(0)
}

func (m *MockStore) AppendSnapshot(ctx context.Context, eventID int64, total int) error {
	args := m.Called(ctx, eventID, total)
	return args.Error(0)
}

type MockEventLister struct {
	mock.Mock
}

func (m *MockEventLister) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockEventLister) ListEvents() ([]models.RawEvent, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RawEvent), args.Error(1)
}

type MockAttendeeLister struct {
	mock.Mock
}

func (m *MockAttendeeLister) ListAttendees(ctx context.Context, eventID int64, since *time.Time) (*gateway.AttendeeResult, error) {
	args := m.Called(ctx, eventID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.AttendeeResult), args.Error(1)
}

type MockPaymentSyncer struct {
	mock.Mock
}

func (m *MockPaymentSyncer) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockPaymentSyncer) SyncPaymentsForOrders(ctx context.Context, orderIDs []int64) error {
	args := m.Called(ctx, orderIDs)
	return args.Error(0)
}

type fixture struct {
	store     *MockStore
	events    *MockEventLister
	attendees *MockAttendeeLister
	payments  *MockPaymentSyncer
	orch      *Orchestrator
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     new(MockStore),
		events:    new(MockEventLister),
		attendees: new(MockAttendeeLister),
		payments:  new(MockPaymentSyncer),
		now:       time.Date(2026, 8, 29, 12, 0, 0, 0, Zone()),
	}
	f.orch = NewOrchestrator(f.store, f.events, f.attendees, f.payments, nil, logger.NewLogger())
	f.orch.now = func() time.Time { return f.now }

	f.events.On("Validate").Return(nil)
	f.payments.On("Validate").Return(nil)
	return f
}

func upcomingEvent(id int64, start time.Time) models.Event {
	return models.Event{ID: fmt.Sprintf("ev-%d", id), ExternalID: id, StartDate: start}
}

func TestRunSyncFirstRunIsFull(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(24 * time.Hour)

	f.events.On("ListEvents").Return([]models.RawEvent{
		{ID: 101, Title: "Degustare", StartDate: start.Format("2006-01-02 15:04:05")},
	}, nil)
	f.store.On("UpsertEvent", mock.Anything, mock.Anything).Return(nil)
	f.store.On("ListEvents", mock.Anything).Return([]models.Event{upcomingEvent(101, start)}, nil)
	f.store.On("GetGlobalSyncState", mock.Anything).Return(&models.GlobalSyncState{ID: 1}, nil)

	f.attendees.On("ListAttendees", mock.Anything, int64(101), (*time.Time)(nil)).
		Return(&gateway.AttendeeResult{
			Records:       []models.AttendeeRecord{{EventID: 101, AttendeeID: 1, OrderID: 500}},
			ObservedTotal: 1,
		}, nil)
	f.store.On("ReplaceAttendees", mock.Anything, int64(101), mock.Anything).Return(nil)
	f.store.On("PutSyncState", mock.Anything, mock.Anything).Return(nil)
	f.store.On("AppendSnapshot", mock.Anything, int64(101), 1).Return(nil)
	f.store.On("PutGlobalSyncState", mock.Anything, mock.Anything).Return(nil)

	f.store.On("AttendeeOrderIDs", mock.Anything, []int64{101}).Return([]int64{500}, nil)
	f.payments.On("SyncPaymentsForOrders", mock.Anything, []int64{500}).Return(nil)

	result := f.orch.RunSync(context.Background())
	require.True(t, result.Success, result.Message)

	f.store.AssertCalled(t, "ReplaceAttendees", mock.Anything, int64(101), mock.Anything)
	f.payments.AssertCalled(t, "SyncPaymentsForOrders", mock.Anything, []int64{500})

	// Global state records today's local date and the delta mark.
	f.store.AssertCalled(t, "PutGlobalSyncState", mock.Anything, mock.MatchedBy(func(g *models.GlobalSyncState) bool {
		return g.LastFullDate == "2026-08-29" && g.LastDeltaRun != nil
	}))
}

func TestRunSyncDeltaMergesAndSkipsPastEvents(t *testing.T) {
	f := newFixture(t)
	lastRun := f.now.Add(-30 * time.Minute)
	lastFull := f.now.Add(-3 * time.Hour)

	upcoming := upcomingEvent(101, f.now.Add(2*time.Hour))
	past := upcomingEvent(102, f.now.Add(-2*time.Hour))

	f.events.On("ListEvents").Return([]models.RawEvent{}, nil)
	f.store.On("ListEvents", mock.Anything).Return([]models.Event{upcoming, past}, nil)
	f.store.On("GetGlobalSyncState", mock.Anything).Return(&models.GlobalSyncState{
		ID:           1,
		LastFullDate: "2026-08-29",
		LastDeltaRun: &lastRun,
	}, nil)

	f.store.On("GetSyncState", mock.Anything, int64(101)).Return(&models.SyncState{
		EventID:      101,
		LastFullSync: &lastFull,
	}, nil)
	f.attendees.On("ListAttendees", mock.Anything, int64(101), mock.MatchedBy(func(since *time.Time) bool {
		return since != nil && since.Equal(lastFull)
	})).Return(&gateway.AttendeeResult{
		Records:       []models.AttendeeRecord{{EventID: 101, AttendeeID: 5}},
		ObservedTotal: 12,
	}, nil)
	f.store.On("MergeAttendees", mock.Anything, int64(101), mock.Anything).Return(nil)
	f.store.On("CountAttendees", mock.Anything, int64(101)).Return(12, nil)
	f.store.On("AppendSnapshot", mock.Anything, int64(101), 12).Return(nil)
	f.store.On("PutSyncState", mock.Anything, mock.MatchedBy(func(st *models.SyncState) bool {
		return st.EventID == 101 && st.ObservedTotal == 12 && st.LastDeltaSync != nil
	})).Return(nil)
	f.store.On("PutGlobalSyncState", mock.Anything, mock.Anything).Return(nil)

	f.store.On("AttendeeOrderIDs", mock.Anything, []int64{101, 102}).Return([]int64{}, nil)

	result := f.orch.RunSync(context.Background())
	require.True(t, result.Success, result.Message)

	f.attendees.AssertNotCalled(t, "ListAttendees", mock.Anything, int64(102), mock.Anything)
	f.store.AssertNotCalled(t, "ReplaceAttendees", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunSyncDeltaCooldownSkipsAttendees(t *testing.T) {
	f := newFixture(t)
	lastRun := f.now.Add(-5 * time.Minute)

	f.events.On("ListEvents").Return([]models.RawEvent{}, nil)
	f.store.On("ListEvents", mock.Anything).Return([]models.Event{}, nil)
	f.store.On("GetGlobalSyncState", mock.Anything).Return(&models.GlobalSyncState{
		ID:           1,
		LastFullDate: "2026-08-29",
		LastDeltaRun: &lastRun,
	}, nil)
	f.store.On("AttendeeOrderIDs", mock.Anything, []int64{}).Return([]int64{}, nil)

	result := f.orch.RunSync(context.Background())
	require.True(t, result.Success)

	f.attendees.AssertNotCalled(t, "ListAttendees", mock.Anything, mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "PutGlobalSyncState", mock.Anything, mock.Anything)
}

func TestRunSyncEventFetchFailureIsFatal(t *testing.T) {
	f := newFixture(t)

	f.events.On("ListEvents").Return(nil, &gateway.TransportError{URL: "http://x", Status: 502})

	result := f.orch.RunSync(context.Background())
	assert.False(t, result.Success)
	f.store.AssertNotCalled(t, "ListEvents", mock.Anything)
}

func TestRunSyncPerEventFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(24 * time.Hour)

	f.events.On("ListEvents").Return([]models.RawEvent{}, nil)
	f.store.On("ListEvents", mock.Anything).Return([]models.Event{
		upcomingEvent(101, start),
		upcomingEvent(102, start),
	}, nil)
	f.store.On("GetGlobalSyncState", mock.Anything).Return(&models.GlobalSyncState{ID: 1}, nil)

	f.attendees.On("ListAttendees", mock.Anything, int64(101), (*time.Time)(nil)).
		Return(nil, &gateway.TransportError{URL: "http://x", Status: 500})
	f.attendees.On("ListAttendees", mock.Anything, int64(102), (*time.Time)(nil)).
		Return(&gateway.AttendeeResult{Records: []models.AttendeeRecord{{EventID: 102, AttendeeID: 1}}}, nil)
	f.store.On("ReplaceAttendees", mock.Anything, int64(102), mock.Anything).Return(nil)
	f.store.On("PutSyncState", mock.Anything, mock.Anything).Return(nil)
	f.store.On("AppendSnapshot", mock.Anything, int64(102), 1).Return(nil)
	f.store.On("PutGlobalSyncState", mock.Anything, mock.Anything).Return(nil)
	f.store.On("AttendeeOrderIDs", mock.Anything, mock.Anything).Return([]int64{}, nil)

	result := f.orch.RunSync(context.Background())
	assert.True(t, result.Success, "one failed event does not fail the run")
	f.store.AssertCalled(t, "ReplaceAttendees", mock.Anything, int64(102), mock.Anything)
	f.store.AssertNotCalled(t, "ReplaceAttendees", mock.Anything, int64(101), mock.Anything)
}

func TestRunSyncMissingCredentialsAbortsRun(t *testing.T) {
	f := &fixture{
		store:     new(MockStore),
		events:    new(MockEventLister),
		attendees: new(MockAttendeeLister),
		payments:  new(MockPaymentSyncer),
	}
	f.orch = NewOrchestrator(f.store, f.events, f.attendees, f.payments, nil, logger.NewLogger())

	f.events.On("Validate").Return(nil)
	f.payments.On("Validate").Return(errors.New("commerce API: missing remote service credentials"))

	result := f.orch.RunSync(context.Background())
	assert.False(t, result.Success)
	f.events.AssertNotCalled(t, "ListEvents")
}

func TestRunSyncSingleFlight(t *testing.T) {
	f := newFixture(t)
	start := f.now.Add(24 * time.Hour)

	release := make(chan struct{})
	entered := make(chan struct{})
	var enteredOnce sync.Once

	f.events.On("ListEvents").Run(func(mock.Arguments) {
		enteredOnce.Do(func() { close(entered) })
		<-release
	}).Return([]models.RawEvent{}, nil)
	f.store.On("ListEvents", mock.Anything).Return([]models.Event{upcomingEvent(101, start)}, nil)
	f.store.On("GetGlobalSyncState", mock.Anything).Return(&models.GlobalSyncState{ID: 1}, nil)
	f.attendees.On("ListAttendees", mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.AttendeeResult{}, nil)
	f.store.On("ReplaceAttendees", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.store.On("PutSyncState", mock.Anything, mock.Anything).Return(nil)
	f.store.On("AppendSnapshot", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.store.On("PutGlobalSyncState", mock.Anything, mock.Anything).Return(nil)
	f.store.On("AttendeeOrderIDs", mock.Anything, mock.Anything).Return([]int64{}, nil)

	done := make(chan SyncResult, 1)
	go func() {
		done <- f.orch.RunSync(context.Background())
	}()

	<-entered
	busy := f.orch.RunSync(context.Background())
	assert.False(t, busy.Success)
	assert.Equal(t, "sync already in progress", busy.Message)

	close(release)
	first := <-done
	assert.True(t, first.Success)

	// The guard is released: a fresh call proceeds past the flag again.
	again := f.orch.RunSync(context.Background())
	assert.True(t, again.Success, again.Message)
}
