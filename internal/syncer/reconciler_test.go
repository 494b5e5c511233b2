package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-eventsync/internal/logger"
	"ms-eventsync/internal/models"
)

type MockReconcilerStore struct {
	mock.Mock
}

func (m *MockReconcilerStore) OrderIDsWithPayments(ctx context.Context, orderIDs []int64) (map[int64]bool, error) {
	args := m.Called(ctx, orderIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]bool), args.Error(1)
}

func (m *MockReconcilerStore) AttendeesByOrderID(ctx context.Context, orderID int64) ([]models.AttendeeRecord, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AttendeeRecord), args.Error(1)
}

func (m *MockReconcilerStore) UpsertPayment(ctx context.Context, p *models.PaymentRecord) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockOrderFetcher struct {
	mock.Mock
}

func (m *MockOrderFetcher) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockOrderFetcher) FetchOrders(ctx context.Context, orderIDs []int64) ([]models.RawOrder, error) {
	args := m.Called(ctx, orderIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RawOrder), args.Error(1)
}

func (m *MockOrderFetcher) FetchProduct(ctx context.Context, productID int64) (*models.RawProduct, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RawProduct), args.Error(1)
}

func TestSyncPaymentsIdempotentNoRefetch(t *testing.T) {
	store := new(MockReconcilerStore)
	fetcher := new(MockOrderFetcher)
	r := NewReconciler(store, fetcher, logger.NewLogger())

	// Every requested order already has a payment row: the remote gateway
	// must not be touched at all.
	store.On("OrderIDsWithPayments", mock.Anything, []int64{500, 501}).
		Return(map[int64]bool{500: true, 501: true}, nil)

	err := r.SyncPaymentsForOrders(context.Background(), []int64{500, 501, 500})
	require.NoError(t, err)
	fetcher.AssertNotCalled(t, "FetchOrders", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "UpsertPayment", mock.Anything, mock.Anything)
}

func TestSyncPaymentsResolvesViaCachedAttendees(t *testing.T) {
	store := new(MockReconcilerStore)
	fetcher := new(MockOrderFetcher)
	r := NewReconciler(store, fetcher, logger.NewLogger())

	store.On("OrderIDsWithPayments", mock.Anything, []int64{500}).
		Return(map[int64]bool{}, nil)
	fetcher.On("FetchOrders", mock.Anything, []int64{500}).
		Return([]models.RawOrder{{
			ID:       500,
			Currency: "RON",
			Total:    300,
			LineItems: []models.RawLineItem{
				{ID: 7, ProductID: 77, Quantity: 2, Subtotal: 200, Total: 180},
				{ID: 8, ProductID: 77, Quantity: 1, Subtotal: 110, Total: 100},
			},
			CouponLines: []models.RawCouponLine{{Code: "VARA10"}},
		}}, nil)
	store.On("AttendeesByOrderID", mock.Anything, int64(500)).
		Return([]models.AttendeeRecord{{EventID: 101, AttendeeID: 1, OrderID: 500}}, nil)

	var persisted *models.PaymentRecord
	store.On("UpsertPayment", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			persisted = args.Get(1).(*models.PaymentRecord)
		}).
		Return(nil)

	err := r.SyncPaymentsForOrders(context.Background(), []int64{500})
	require.NoError(t, err)

	require.NotNil(t, persisted)
	assert.Equal(t, int64(500), persisted.OrderID)
	assert.Equal(t, int64(7), persisted.LineItemID, "first line item is the representative key")
	assert.Equal(t, int64(101), persisted.EventID)
	assert.Equal(t, 3, persisted.Quantity)
	assert.Equal(t, 310.0, persisted.Subtotal)
	assert.Equal(t, 280.0, persisted.TotalPaid)
	assert.InDelta(t, 280.0/3, persisted.UnitPrice, 1e-9)
	assert.Equal(t, 30.0, persisted.Discount)
	assert.Equal(t, []string{"VARA10"}, persisted.Coupons)

	// Attendees resolved the event: no product lookup should happen.
	fetcher.AssertNotCalled(t, "FetchProduct", mock.Anything, mock.Anything)
}

func TestSyncPaymentsFallsBackToProductMetadata(t *testing.T) {
	store := new(MockReconcilerStore)
	fetcher := new(MockOrderFetcher)
	r := NewReconciler(store, fetcher, logger.NewLogger())

	store.On("OrderIDsWithPayments", mock.Anything, []int64{600}).
		Return(map[int64]bool{}, nil)
	fetcher.On("FetchOrders", mock.Anything, []int64{600}).
		Return([]models.RawOrder{{
			ID: 600,
			LineItems: []models.RawLineItem{
				{ID: 9, ProductID: 88, Quantity: 1, Subtotal: 120, Total: 120},
			},
		}}, nil)
	store.On("AttendeesByOrderID", mock.Anything, int64(600)).
		Return([]models.AttendeeRecord{}, nil)
	fetcher.On("FetchProduct", mock.Anything, int64(88)).
		Return(&models.RawProduct{
			ID: 88,
			MetaData: []models.RawMetaEntry{
				{Key: "irrelevant", Value: "x"},
				{Key: "_tribe_event_for_ticket", Value: float64(202)},
			},
		}, nil)

	var persisted *models.PaymentRecord
	store.On("UpsertPayment", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			persisted = args.Get(1).(*models.PaymentRecord)
		}).
		Return(nil)

	err := r.SyncPaymentsForOrders(context.Background(), []int64{600})
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, int64(202), persisted.EventID)
}

func TestSyncPaymentsSkipsUnresolvableOrders(t *testing.T) {
	store := new(MockReconcilerStore)
	fetcher := new(MockOrderFetcher)
	r := NewReconciler(store, fetcher, logger.NewLogger())

	store.On("OrderIDsWithPayments", mock.Anything, []int64{700}).
		Return(map[int64]bool{}, nil)
	fetcher.On("FetchOrders", mock.Anything, []int64{700}).
		Return([]models.RawOrder{{
			ID: 700,
			LineItems: []models.RawLineItem{
				{ID: 1, ProductID: 99, Quantity: 1},
			},
		}}, nil)
	store.On("AttendeesByOrderID", mock.Anything, int64(700)).
		Return([]models.AttendeeRecord{}, nil)
	fetcher.On("FetchProduct", mock.Anything, int64(99)).
		Return(&models.RawProduct{ID: 99}, nil)

	err := r.SyncPaymentsForOrders(context.Background(), []int64{700})
	require.NoError(t, err, "an unresolved order is skipped, not fatal")
	store.AssertNotCalled(t, "UpsertPayment", mock.Anything, mock.Anything)
}

func TestMetaValueIDShapes(t *testing.T) {
	assert.Equal(t, int64(42), metaValueID(float64(42)))
	assert.Equal(t, int64(42), metaValueID(" 42 "))
	assert.Equal(t, int64(0), metaValueID("not-a-number"))
	assert.Equal(t, int64(0), metaValueID(nil))
}
