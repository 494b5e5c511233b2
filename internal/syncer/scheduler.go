package syncer

import (
	"sync"
	"time"
)

// Scheduling is anchored to the venue's wall clock, not UTC.
const (
	timeZoneName  = "Europe/Bucharest"
	fullSyncHour  = 7
	deltaInterval = 15 * time.Minute
)

var (
	zoneOnce sync.Once
	zone     *time.Location
)

// Zone returns the fixed scheduling time zone, falling back to EET if the
// tz database is unavailable.
func Zone() *time.Location {
	zoneOnce.Do(func() {
		loc, err := time.LoadLocation(timeZoneName)
		if err != nil {
			loc = time.FixedZone("EET", 2*60*60)
		}
		zone = loc
	})
	return zone
}

// LocalDate formats a moment as a calendar date in the scheduling zone.
func LocalDate(t time.Time) string {
	return t.In(Zone()).Format("2006-01-02")
}

// ShouldRunFullSync reports whether a full resync is due: at most one per
// local calendar day, and never before the threshold hour.
func ShouldRunFullSync(lastFullDate string, now time.Time) bool {
	local := now.In(Zone())
	if local.Hour() < fullSyncHour {
		return false
	}
	return lastFullDate != local.Format("2006-01-02")
}

// ShouldRunDeltaSync reports whether a delta resync is due: always on the
// first run, then after the cooldown interval has elapsed.
func ShouldRunDeltaSync(lastDeltaRun *time.Time, now time.Time) bool {
	if lastDeltaRun == nil {
		return true
	}
	return now.Sub(*lastDeltaRun) > deltaInterval
}
