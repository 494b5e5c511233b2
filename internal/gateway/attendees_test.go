package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-eventsync/internal/config"
	"ms-eventsync/internal/logger"
)

func testAttendeesGateway(t *testing.T, handler http.HandlerFunc, pageSize int) (*AttendeesGateway, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.TicketingConfig{BaseURL: server.URL, APIKey: "test-key", PageSize: pageSize}
	return NewAttendeesGateway(cfg, server.Client(), logger.NewLogger()), server
}

func rawAttendees(from, to int) []RawAttendee {
	var out []RawAttendee
	for i := from; i <= to; i++ {
		out = append(out, RawAttendee{
			ID:      int64(i),
			EventID: 101,
			OrderID: int64(500 + i),
			Title:   fmt.Sprintf("Guest %d", i),
		})
	}
	return out
}

func TestListAttendeesPaginatesUntilShortPage(t *testing.T) {
	var pagesServed []int
	gw, _ := testAttendeesGateway(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pagesServed = append(pagesServed, page)

		// Two full pages of 2, then a short page of 1.
		var batch []RawAttendee
		switch page {
		case 1:
			batch = rawAttendees(1, 2)
		case 2:
			batch = rawAttendees(3, 4)
		default:
			batch = rawAttendees(5, 5)
		}
		json.NewEncoder(w).Encode(batch)
	}, 2)

	res, err := gw.ListAttendees(context.Background(), 101, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, pagesServed)
	assert.Len(t, res.Records, 5)
	assert.Equal(t, 0, res.ObservedTotal, "bare array without headers exposes no total")
}

func TestListAttendeesWrappedShapeWithBodyTotal(t *testing.T) {
	gw, _ := testAttendeesGateway(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wrappedAttendeePage{
			Attendees: rawAttendees(1, 3),
			Total:     120,
		})
	}, 10)

	res, err := gw.ListAttendees(context.Background(), 101, nil)
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	assert.Equal(t, 120, res.ObservedTotal)
}

func TestListAttendeesHeaderTotalWinsOverBody(t *testing.T) {
	gw, _ := testAttendeesGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-WP-Total", "77")
		json.NewEncoder(w).Encode(wrappedAttendeePage{
			Attendees: rawAttendees(1, 2),
			Total:     5,
		})
	}, 10)

	res, err := gw.ListAttendees(context.Background(), 101, nil)
	require.NoError(t, err)
	assert.Equal(t, 77, res.ObservedTotal)
}

func TestListAttendeesDeltaFilterPassed(t *testing.T) {
	var gotSince string
	gw, _ := testAttendeesGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("modified_since")
		json.NewEncoder(w).Encode([]RawAttendee{})
	}, 10)

	since := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	res, err := gw.ListAttendees(context.Background(), 101, &since)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, "2026-08-20T10:00:00Z", gotSince)
}

func TestListAttendeesTransportError(t *testing.T) {
	gw, _ := testAttendeesGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, 10)

	_, err := gw.ListAttendees(context.Background(), 101, nil)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestNormalizeAttendeeResolvesNameAndEvent(t *testing.T) {
	rec := normalizeAttendee(101, RawAttendee{
		ID:      9,
		PostID:  202,
		OrderID: 510,
		Email:   "jane.doe@x.com",
		Price:   95.5,
	})
	assert.Equal(t, int64(202), rec.EventID, "post id is used when event id is absent")
	assert.Equal(t, "Jane Doe", rec.Name)
	assert.Equal(t, 95.5, rec.Price)

	rec = normalizeAttendee(101, RawAttendee{ID: 10})
	assert.Equal(t, int64(101), rec.EventID, "requested event is the last resort")
}
