package pattern

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

var maxNanos = decimal.NewFromInt(math.MaxInt64)

// warp scales wall-clock elapsed time by factor using exact decimal arithmetic on
// integer nanoseconds, truncating the result.
func warp(wall time.Duration, factor decimal.Decimal) time.Duration {
	if wall <= 0 || !factor.IsPositive() {
		return 0
	}
	scaled := decimal.NewFromInt(int64(wall)).Mul(factor)
	if scaled.GreaterThanOrEqual(maxNanos) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(scaled.IntPart())
}

// calendarOffset returns the offset of instant within its local day or
// Monday-based week. ok is false for any other cycle length.
func calendarOffset(instant time.Time, loc *time.Location, cycle time.Duration) (time.Duration, bool) {
	local := instant.In(loc)
	h, m, s := local.Clock()
	sinceMidnight := time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(local.Nanosecond())
	switch cycle {
	case day:
		return sinceMidnight, true
	case week:
		daysSinceMonday := (int(local.Weekday()) + 6) % 7
		return time.Duration(daysSinceMonday)*day + sinceMidnight, true
	default:
		return 0, false
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
