package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SyncState tracks per-event sync progress.
type SyncState struct {
	bun.BaseModel `bun:"table:sync_states"`

	EventID       int64      `bun:"event_id,pk" json:"event_id"`
	LastFullSync  *time.Time `bun:"last_full_sync,nullzero" json:"last_full_sync,omitempty"`
	LastDeltaSync *time.Time `bun:"last_delta_sync,nullzero" json:"last_delta_sync,omitempty"`
	ObservedTotal int        `bun:"observed_total" json:"observed_total"`
}

// LastSyncPoint is the timestamp a delta fetch should filter from: the most
// recent of the two sync marks, or nil if the event has never synced.
func (s *SyncState) LastSyncPoint() *time.Time {
	if s == nil {
		return nil
	}
	if s.LastDeltaSync != nil && (s.LastFullSync == nil || s.LastDeltaSync.After(*s.LastFullSync)) {
		return s.LastDeltaSync
	}
	return s.LastFullSync
}

// GlobalSyncState is a singleton row tracking scheduler-level marks.
type GlobalSyncState struct {
	bun.BaseModel `bun:"table:global_sync_state"`

	ID           int64      `bun:"id,pk" json:"id"`
	LastFullDate string     `bun:"last_full_date" json:"last_full_date"`
	LastDeltaRun *time.Time `bun:"last_delta_run,nullzero" json:"last_delta_run,omitempty"`
}

type Setting struct {
	bun.BaseModel `bun:"table:settings"`

	Key   string `bun:"key,pk" json:"key"`
	Value string `bun:"value" json:"value"`
}

// Classification is the persisted result of the labeling oracle for one
// event.
type Classification struct {
	bun.BaseModel `bun:"table:classifications"`

	EventID        int64     `bun:"event_id,pk" json:"event_id"`
	DrinksCategory string    `bun:"drinks_category" json:"drinks_category"`
	Theme          string    `bun:"theme" json:"theme"`
	Confidence     float64   `bun:"confidence" json:"confidence"`
	ClassifiedAt   time.Time `bun:"classified_at" json:"classified_at"`
}
