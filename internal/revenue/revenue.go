// Package revenue computes per-event occupancy and revenue figures from
// cached data. Everything here is pure: callers load the inputs from the
// store and pass them in.
package revenue

import (
	"math"

	"ms-eventsync/internal/models"
)

// Totals is the aggregated view for one event.
type Totals struct {
	EventID       int64   `json:"event_id"`
	OnlineCount   int     `json:"online_count"`
	ManualCount   int     `json:"manual_count"`
	TotalCount    int     `json:"total_count"`
	Capacity      int     `json:"capacity"`
	OccupancyPct  int     `json:"occupancy_pct"`
	Overbooked    bool    `json:"overbooked"`
	OnlineRevenue float64 `json:"online_revenue"`
	ManualRevenue float64 `json:"manual_revenue"`
	TotalRevenue  float64 `json:"total_revenue"`
}

// ComputeEventTotals combines the three revenue sources with a strict
// priority order: ingested payment lines beat the list-price estimate for
// online sales, and a per-reservation override price beats the event list
// price for manual ones.
func ComputeEventTotals(
	event models.Event,
	attendees []models.AttendeeRecord,
	manual []models.ManualAttendee,
	payments []models.PaymentRecord,
	defaultCapacity int,
) Totals {
	t := Totals{EventID: event.ExternalID}

	t.OnlineCount = len(attendees)
	for _, m := range manual {
		if m.Status.CountsTowardRevenue() {
			t.ManualCount += m.Quantity
		}
	}
	t.TotalCount = t.OnlineCount + t.ManualCount

	t.Capacity = defaultCapacity
	if event.Capacity != nil && *event.Capacity > 0 {
		t.Capacity = *event.Capacity
	}
	if t.Capacity > 0 {
		t.OccupancyPct = int(math.Round(float64(t.TotalCount) / float64(t.Capacity) * 100))
	}
	t.Overbooked = t.TotalCount > t.Capacity

	if len(payments) > 0 {
		for _, p := range payments {
			t.OnlineRevenue += p.TotalPaid
		}
	} else {
		t.OnlineRevenue = float64(t.OnlineCount) * event.ListPrice
	}

	for _, m := range manual {
		if !m.Status.CountsTowardRevenue() {
			continue
		}
		price := event.ListPrice
		if m.TicketPrice != nil {
			price = *m.TicketPrice
		}
		t.ManualRevenue += price * float64(m.Quantity)
	}

	t.TotalRevenue = t.OnlineRevenue + t.ManualRevenue
	return t
}
