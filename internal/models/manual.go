package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ManualStatus string

const (
	ManualReserved  ManualStatus = "reserved"
	ManualConfirmed ManualStatus = "confirmed"
	ManualCancelled ManualStatus = "cancelled"
	ManualNoShow    ManualStatus = "no_show"
	ManualArrived   ManualStatus = "arrived"
)

// CountsTowardRevenue reports whether a reservation in this status is
// included in occupancy and revenue figures.
func (s ManualStatus) CountsTowardRevenue() bool {
	switch s {
	case ManualReserved, ManualConfirmed, ManualArrived:
		return true
	}
	return false
}

type ManualSource string

const (
	SourcePhone    ManualSource = "phone"
	SourceWalkIn   ManualSource = "walk_in"
	SourceEmail    ManualSource = "email"
	SourcePartner  ManualSource = "partner"
	SourceInternal ManualSource = "internal"
)

// ManualAttendee is a staff-entered reservation that never touches the
// ticketing system.
type ManualAttendee struct {
	bun.BaseModel `bun:"table:manual_attendees"`

	ID          string       `bun:"id,pk" json:"id"`
	EventID     int64        `bun:"event_id,notnull" json:"event_id"`
	Name        string       `bun:"name,notnull" json:"name"`
	Phone       string       `bun:"phone" json:"phone,omitempty"`
	Email       string       `bun:"email" json:"email,omitempty"`
	Quantity    int          `bun:"quantity,notnull" json:"quantity"`
	Source      ManualSource `bun:"source" json:"source"`
	Status      ManualStatus `bun:"status,notnull" json:"status"`
	Notes       string       `bun:"notes" json:"notes,omitempty"`
	TicketPrice *float64     `bun:"ticket_price,nullzero" json:"ticket_price,omitempty"`
	CreatedBy   string       `bun:"created_by" json:"created_by"`
	CreatedAt   time.Time    `bun:"created_at,notnull" json:"created_at"`
}
