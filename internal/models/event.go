package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string    `bun:"id,pk" json:"id"`
	ExternalID  int64     `bun:"external_id,notnull,unique" json:"external_id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description string    `bun:"description" json:"description"`
	StartDate   time.Time `bun:"start_date,notnull" json:"start_date"`
	EndDate     time.Time `bun:"end_date" json:"end_date"`
	ListPrice   float64   `bun:"list_price" json:"list_price"`
	Capacity    *int      `bun:"capacity,nullzero" json:"capacity,omitempty"`
	Label       string    `bun:"label" json:"label"`
	Wines       []string  `bun:"wines,type:jsonb" json:"wines"`
	Foods       []string  `bun:"foods,type:jsonb" json:"foods"`
	CreatedAt   time.Time `bun:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at" json:"updated_at"`
}

// RawEvent is the shape returned by the ticketing events API before it is
// normalized into an Event. Dates may arrive either as an ISO string or as
// nested date-part fields depending on the remote plugin version.
type RawEvent struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	StartDate   string        `json:"start_date"`
	EndDate     string        `json:"end_date"`
	StartParts  *RawDateParts `json:"start_date_details"`
	EndParts    *RawDateParts `json:"end_date_details"`
	Cost        float64       `json:"cost"`
	Capacity    *int          `json:"capacity"`
}

type RawDateParts struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minutes"`
}
