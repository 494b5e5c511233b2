package store

import (
	"context"

	"github.com/uptrace/bun"

	"ms-eventsync/internal/models"
)

// Migrate creates every cache table if it does not exist yet.
func Migrate(ctx context.Context, db *bun.DB) error {
	tables := []any{
		(*models.Event)(nil),
		(*models.AttendeeRecord)(nil),
		(*models.ManualAttendee)(nil),
		(*models.PaymentRecord)(nil),
		(*models.SyncState)(nil),
		(*models.GlobalSyncState)(nil),
		(*models.AttendeeSnapshot)(nil),
		(*models.Classification)(nil),
		(*models.Setting)(nil),
	}
	for _, table := range tables {
		_, err := db.NewCreateTable().
			Model(table).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}
