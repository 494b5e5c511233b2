package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AttendeeRecord is a normalized ticket purchase pulled from the ticketing
// API. Records are keyed by (event external id, attendee id): one row per
// attendee per event, merged in place on delta syncs.
type AttendeeRecord struct {
	bun.BaseModel `bun:"table:attendees"`

	EventID     int64     `bun:"event_id,pk" json:"event_id"`
	AttendeeID  int64     `bun:"attendee_id,pk" json:"attendee_id"`
	OrderID     int64     `bun:"order_id" json:"order_id"`
	TicketID    int64     `bun:"ticket_id" json:"ticket_id"`
	Name        string    `bun:"name" json:"name"`
	Email       string    `bun:"email" json:"email"`
	CreatedAt   time.Time `bun:"created_at" json:"created_at"`
	ModifiedAt  time.Time `bun:"modified_at" json:"modified_at"`
	CheckedIn   bool      `bun:"checked_in" json:"checked_in"`
	Price       float64   `bun:"price" json:"price"`
	Provider    string    `bun:"provider" json:"provider"`
	IsPurchaser bool      `bun:"is_purchaser" json:"is_purchaser"`
}

// AttendeeSnapshot is one point in the per-event occupancy time series.
// The store keeps at most SnapshotCap rows per event, oldest dropped first.
type AttendeeSnapshot struct {
	bun.BaseModel `bun:"table:attendee_snapshots"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	EventID    int64     `bun:"event_id,notnull" json:"event_id"`
	Total      int       `bun:"total" json:"total"`
	CapturedAt time.Time `bun:"captured_at,notnull" json:"captured_at"`
}

// SnapshotCap bounds the snapshot ring buffer per event.
const SnapshotCap = 400
