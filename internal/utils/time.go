package utils

import (
	"time"

	"ms-eventsync/internal/models"
)

// ParseEventDate normalizes the two date shapes the ticketing API emits: an
// ISO-ish string, or nested year/month/day/hour/minute parts. The string
// form wins when both parse.
func ParseEventDate(iso string, parts *models.RawDateParts, loc *time.Location) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, iso, loc); err == nil {
			return t
		}
	}
	if parts != nil && parts.Year != 0 {
		return time.Date(parts.Year, time.Month(parts.Month), parts.Day,
			parts.Hour, parts.Minute, 0, 0, loc)
	}
	return time.Time{}
}
